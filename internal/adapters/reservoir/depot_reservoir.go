package reservoir

import (
	"context"
	"fmt"
	"time"

	"github.com/mtransit/fleetsim/internal/adapters/metrics"
	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/passenger"
	"github.com/mtransit/fleetsim/internal/domain/spawning"
)

// DepotReservoir mediates between a depot spawner and the passenger store.
// One instance per depot; Available can additionally pin a destination route
// so a bus arriving at the depot only sees passengers it can carry.
type DepotReservoir struct {
	repo         common.PassengerRepository
	cache        *Cache
	depotID      string
	passengerTTL time.Duration
	maxInFlight  int
}

var _ common.Reservoir = (*DepotReservoir)(nil)

// NewDepotReservoir creates a reservoir scoped to depotID. cache may be nil
// to disable the L1 layer.
func NewDepotReservoir(repo common.PassengerRepository, cache *Cache, depotID string) *DepotReservoir {
	return &DepotReservoir{
		repo:         repo,
		cache:        cache,
		depotID:      depotID,
		passengerTTL: spawning.DefaultPassengerTTL,
		maxInFlight:  defaultMaxInFlight,
	}
}

// SetPassengerTTL overrides the TTL applied at materialization. Zero or
// negative keeps the default.
func (r *DepotReservoir) SetPassengerTTL(ttl time.Duration) {
	if ttl > 0 {
		r.passengerTTL = ttl
	}
}

func (r *DepotReservoir) cacheKey() string {
	return "depot:" + r.depotID
}

// Push persists one spawn request, generating a passenger ID if absent.
func (r *DepotReservoir) Push(ctx context.Context, req *passenger.SpawnRequest) error {
	if req.DepotID == "" {
		req.DepotID = r.depotID
	}
	p, err := materialize(req, r.passengerTTL)
	if err != nil {
		return err
	}
	if err := r.repo.Create(ctx, p); err != nil {
		return fmt.Errorf("depot reservoir %s: %w", r.depotID, err)
	}
	r.cache.invalidate(r.cacheKey())
	return nil
}

// PushBatch persists many requests with bounded concurrency.
func (r *DepotReservoir) PushBatch(ctx context.Context, reqs []*passenger.SpawnRequest) (int, int) {
	for _, req := range reqs {
		if req.DepotID == "" {
			req.DepotID = r.depotID
		}
	}
	ps, skipped := materializeBatch(reqs, r.passengerTTL)
	ok, failed := r.repo.BulkCreate(ctx, ps, r.maxInFlight)
	metrics.RecordBulkCreate(ok, failed+skipped)
	if ok > 0 {
		r.cache.invalidate(r.cacheKey())
	}
	return ok, failed + skipped
}

// Available returns WAITING passengers at this depot, optionally narrowed to
// those whose destination route matches destinationRouteID.
func (r *DepotReservoir) Available(ctx context.Context, limit int, destinationRouteID string) ([]*passenger.Passenger, error) {
	key := r.cacheKey() + ":available:" + destinationRouteID
	if rows, ok := r.cache.get(key); ok {
		return clamp(rows, limit), nil
	}
	rows, err := r.repo.QueryWaiting(ctx, common.PassengerFilter{
		DepotID: r.depotID,
		RouteID: destinationRouteID,
		Status:  passenger.StatusWaiting,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	r.cache.set(key, rows)
	return clamp(rows, limit), nil
}

// MarkPickedUp transitions a passenger to BOARDED.
func (r *DepotReservoir) MarkPickedUp(ctx context.Context, passengerID string) error {
	if err := r.repo.MarkBoarded(ctx, passengerID); err != nil {
		return err
	}
	r.cache.invalidate(r.cacheKey())
	return nil
}

// MarkDroppedOff transitions a passenger to ALIGHTED.
func (r *DepotReservoir) MarkDroppedOff(ctx context.Context, passengerID string) error {
	if err := r.repo.MarkAlighted(ctx, passengerID); err != nil {
		return err
	}
	r.cache.invalidate(r.cacheKey())
	return nil
}
