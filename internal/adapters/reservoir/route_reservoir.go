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

const defaultMaxInFlight = 10

// RouteReservoir mediates between a route spawner and the passenger store.
// One instance per route.
type RouteReservoir struct {
	repo         common.PassengerRepository
	cache        *Cache
	routeID      string
	passengerTTL time.Duration
	maxInFlight  int
}

var _ common.Reservoir = (*RouteReservoir)(nil)

// NewRouteReservoir creates a reservoir scoped to routeID. cache may be nil
// to disable the L1 layer.
func NewRouteReservoir(repo common.PassengerRepository, cache *Cache, routeID string) *RouteReservoir {
	return &RouteReservoir{
		repo:         repo,
		cache:        cache,
		routeID:      routeID,
		passengerTTL: spawning.DefaultPassengerTTL,
		maxInFlight:  defaultMaxInFlight,
	}
}

// SetPassengerTTL overrides the TTL applied at materialization. Zero or
// negative keeps the default.
func (r *RouteReservoir) SetPassengerTTL(ttl time.Duration) {
	if ttl > 0 {
		r.passengerTTL = ttl
	}
}

func (r *RouteReservoir) cacheKey() string {
	return "route:" + r.routeID
}

// Push persists one spawn request, generating a passenger ID if absent.
func (r *RouteReservoir) Push(ctx context.Context, req *passenger.SpawnRequest) error {
	p, err := materialize(req, r.passengerTTL)
	if err != nil {
		return err
	}
	if err := r.repo.Create(ctx, p); err != nil {
		return fmt.Errorf("route reservoir %s: %w", r.routeID, err)
	}
	r.cache.invalidate(r.cacheKey())
	return nil
}

// PushBatch persists many requests with bounded concurrency.
func (r *RouteReservoir) PushBatch(ctx context.Context, reqs []*passenger.SpawnRequest) (int, int) {
	ps, skipped := materializeBatch(reqs, r.passengerTTL)
	ok, failed := r.repo.BulkCreate(ctx, ps, r.maxInFlight)
	metrics.RecordBulkCreate(ok, failed+skipped)
	if ok > 0 {
		r.cache.invalidate(r.cacheKey())
	}
	return ok, failed + skipped
}

// Available returns WAITING passengers on this route. destinationRouteID is
// ignored for route scopes; the scope already pins the route.
func (r *RouteReservoir) Available(ctx context.Context, limit int, destinationRouteID string) ([]*passenger.Passenger, error) {
	key := r.cacheKey() + ":available"
	if rows, ok := r.cache.get(key); ok {
		return clamp(rows, limit), nil
	}
	rows, err := r.repo.QueryWaiting(ctx, common.PassengerFilter{
		RouteID: r.routeID,
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
func (r *RouteReservoir) MarkPickedUp(ctx context.Context, passengerID string) error {
	if err := r.repo.MarkBoarded(ctx, passengerID); err != nil {
		return err
	}
	r.cache.invalidate(r.cacheKey())
	return nil
}

// MarkDroppedOff transitions a passenger to ALIGHTED.
func (r *RouteReservoir) MarkDroppedOff(ctx context.Context, passengerID string) error {
	if err := r.repo.MarkAlighted(ctx, passengerID); err != nil {
		return err
	}
	r.cache.invalidate(r.cacheKey())
	return nil
}

// materialize normalizes a spawn request into a persistable passenger.
// A missing destination collapses onto the spawn point so downstream
// consumers always see a coordinate pair.
func materialize(req *passenger.SpawnRequest, ttl time.Duration) (*passenger.Passenger, error) {
	req.EnsureID()
	if !req.Destination.IsValid() {
		req.Destination = req.Spawn
	}
	p := req.ToPassenger(ttl)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func materializeBatch(reqs []*passenger.SpawnRequest, ttl time.Duration) ([]*passenger.Passenger, int) {
	ps := make([]*passenger.Passenger, 0, len(reqs))
	skipped := 0
	for _, req := range reqs {
		p, err := materialize(req, ttl)
		if err != nil {
			skipped++
			continue
		}
		ps = append(ps, p)
	}
	return ps, skipped
}

func clamp(rows []*passenger.Passenger, limit int) []*passenger.Passenger {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
