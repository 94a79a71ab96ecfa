package api

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/passenger"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

const (
	passengersResource  = "active-passengers"
	defaultBulkInFlight = 10
	expiredPageSize     = 100
	writeTimeout        = 10 * time.Second
)

// PassengerRepository persists passengers through the content API. Create is
// idempotent on the passenger identifier; bulk writes run with bounded
// concurrency.
type PassengerRepository struct {
	client *ContentClient
	clock  shared.Clock

	mu        sync.Mutex
	connected bool
}

var _ common.PassengerRepository = (*PassengerRepository)(nil)

// NewPassengerRepository creates a repository over the shared content
// client. A nil clock selects the real clock.
func NewPassengerRepository(client *ContentClient, clock shared.Clock) *PassengerRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &PassengerRepository{client: client, clock: clock}
}

// passengerAttrs is the content API attribute shape for one passenger row.
type passengerAttrs struct {
	PassengerID     string   `json:"passenger_id"`
	RouteID         string   `json:"route_id"`
	DepotID         string   `json:"depot_id,omitempty"`
	SpawnLat        float64  `json:"spawn_lat"`
	SpawnLon        float64  `json:"spawn_lon"`
	DestLat         float64  `json:"dest_lat"`
	DestLon         float64  `json:"dest_lon"`
	DestinationName string   `json:"destination_name,omitempty"`
	SpawnTime       string   `json:"spawn_time"`
	ExpiresAt       string   `json:"expires_at"`
	Status          string   `json:"status"`
	Priority        int      `json:"priority"`
	RoutePositionM  *float64 `json:"route_position_m,omitempty"`
}

type passengerRow struct {
	ID         int            `json:"id"`
	Attributes passengerAttrs `json:"attributes"`
}

type passengerListResponse struct {
	Data []passengerRow `json:"data"`
	Meta struct {
		Pagination struct {
			Page      int `json:"page"`
			PageSize  int `json:"pageSize"`
			PageCount int `json:"pageCount"`
			Total     int `json:"total"`
		} `json:"pagination"`
	} `json:"meta"`
}

// Connect verifies store reachability. Operations are valid only between
// Connect and Disconnect.
func (r *PassengerRepository) Connect(ctx context.Context) error {
	if err := r.client.Ping(ctx); err != nil {
		return fmt.Errorf("content store unreachable: %w", err)
	}
	r.mu.Lock()
	r.connected = true
	r.mu.Unlock()
	return nil
}

// Disconnect releases pooled connections.
func (r *PassengerRepository) Disconnect() error {
	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()
	r.client.CloseIdleConnections()
	return nil
}

// Create persists one passenger. A second create with the same passenger ID
// is a no-op success.
func (r *PassengerRepository) Create(ctx context.Context, p *passenger.Passenger) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	existing, err := r.findByPassengerID(ctx, p.PassengerID)
	if err != nil {
		return err
	}
	if existing != nil {
		// Idempotent: the row already exists.
		return nil
	}

	body := map[string]interface{}{"data": toAttrs(p)}
	if err := r.client.Post(ctx, passengersResource, body, nil); err != nil {
		return fmt.Errorf("failed to create passenger %s: %w", p.PassengerID, err)
	}
	return nil
}

// BulkCreate persists passengers with at most maxInFlight concurrent writes.
// An empty input returns (0, 0) without contacting the store.
func (r *PassengerRepository) BulkCreate(ctx context.Context, ps []*passenger.Passenger, maxInFlight int) (int, int) {
	if len(ps) == 0 {
		return 0, 0
	}
	if maxInFlight <= 0 {
		maxInFlight = defaultBulkInFlight
	}

	var ok, failed int64
	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup
	for _, p := range ps {
		wg.Add(1)
		sem <- struct{}{}
		go func(p *passenger.Passenger) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := r.Create(ctx, p); err != nil {
				atomic.AddInt64(&failed, 1)
				common.LoggerFromContext(ctx).Log("WARN", "bulk create failed", map[string]interface{}{
					"passenger_id": p.PassengerID,
					"error":        err.Error(),
				})
				return
			}
			atomic.AddInt64(&ok, 1)
		}(p)
	}
	wg.Wait()
	return int(ok), int(failed)
}

// MarkBoarded transitions a WAITING passenger to BOARDED.
func (r *PassengerRepository) MarkBoarded(ctx context.Context, passengerID string) error {
	return r.transition(ctx, passengerID, passenger.StatusBoarded)
}

// MarkAlighted transitions a BOARDED passenger to ALIGHTED.
func (r *PassengerRepository) MarkAlighted(ctx context.Context, passengerID string) error {
	return r.transition(ctx, passengerID, passenger.StatusAlighted)
}

// MarkCancelled transitions a WAITING passenger to CANCELLED.
func (r *PassengerRepository) MarkCancelled(ctx context.Context, passengerID string) error {
	return r.transition(ctx, passengerID, passenger.StatusCancelled)
}

func (r *PassengerRepository) transition(ctx context.Context, passengerID string, next passenger.Status) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	row, err := r.findRowByPassengerID(ctx, passengerID)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("passenger %s: %w", passengerID, shared.ErrNotFound)
	}
	current := passenger.Status(row.Attributes.Status)
	if !current.CanTransitionTo(next) {
		return fmt.Errorf("%w: passenger %s cannot go %s -> %s",
			shared.ErrValidation, passengerID, current, next)
	}

	body := map[string]interface{}{"data": map[string]string{"status": string(next)}}
	path := fmt.Sprintf("%s/%d", passengersResource, row.ID)
	if err := r.client.Put(ctx, path, body, nil); err != nil {
		return fmt.Errorf("failed to mark passenger %s %s: %w", passengerID, next, err)
	}
	return nil
}

// QueryWaiting returns passengers matching the filter. The status filter
// defaults to WAITING when unset. The store paginates, so pages are walked
// until the limit is met or a short page signals exhaustion.
func (r *PassengerRepository) QueryWaiting(ctx context.Context, f common.PassengerFilter) ([]*passenger.Passenger, error) {
	status := f.Status
	if status == "" {
		status = passenger.StatusWaiting
	}
	q := ListQuery{PageSize: 100}
	if f.Limit > 0 && f.Limit < q.PageSize {
		q.PageSize = f.Limit
	}
	q.Filters = append(q.Filters, Filter{Field: "status", Op: "$eq", Value: string(status)})
	if f.RouteID != "" {
		q.Filters = append(q.Filters, Filter{Field: "route_id", Op: "$eq", Value: f.RouteID})
	}
	if f.DepotID != "" {
		q.Filters = append(q.Filters, Filter{Field: "depot_id", Op: "$eq", Value: f.DepotID})
	}
	if !f.Start.IsZero() {
		q.Filters = append(q.Filters, Filter{Field: "spawn_time", Op: "$gte", Value: f.Start.UTC().Format(time.RFC3339)})
	}
	if !f.End.IsZero() {
		q.Filters = append(q.Filters, Filter{Field: "spawn_time", Op: "$lte", Value: f.End.UTC().Format(time.RFC3339)})
	}
	if f.Sort != "" {
		q.Sort = f.Sort
	}

	var rows []*passenger.Passenger
	for page := 1; ; page++ {
		q.Page = page
		var out passengerListResponse
		if err := r.client.Get(ctx, passengersResource+"?"+q.Encode(), &out); err != nil {
			return nil, fmt.Errorf("failed to query passengers: %w", err)
		}
		for _, row := range out.Data {
			p, err := fromAttrs(row.Attributes)
			if err != nil {
				common.LoggerFromContext(ctx).Log("WARN", "skipping malformed passenger row", map[string]interface{}{
					"row_id": row.ID, "error": err.Error(),
				})
				continue
			}
			rows = append(rows, p)
			if f.Limit > 0 && len(rows) == f.Limit {
				return rows, nil
			}
		}
		if len(out.Data) < q.PageSize {
			return rows, nil
		}
	}
}

// QueryNearby returns WAITING passengers on a route whose spawn point lies
// within radiusM of p. The store has no spatial index, so the distance check
// runs client-side with Haversine.
func (r *PassengerRepository) QueryNearby(ctx context.Context, routeID string, p geo.Point, radiusM float64) ([]*passenger.Passenger, error) {
	rows, err := r.QueryWaiting(ctx, common.PassengerFilter{RouteID: routeID})
	if err != nil {
		return nil, err
	}
	nearby := rows[:0]
	for _, row := range rows {
		if geo.Haversine(row.Spawn, p) <= radiusM {
			nearby = append(nearby, row)
		}
	}
	return nearby, nil
}

// DeleteExpired pages through rows whose expires_at is strictly in the past
// and deletes them. A passenger expiring at the sweep instant survives until
// the next tick. Running it twice in a row returns 0 on the second call.
func (r *PassengerRepository) DeleteExpired(ctx context.Context) (int, error) {
	now := r.clock.Now().Format(time.RFC3339)
	deleted := 0
	for {
		q := ListQuery{
			Page:     1,
			PageSize: expiredPageSize,
			Filters:  []Filter{{Field: "expires_at", Op: "$lt", Value: now}},
		}
		var out passengerListResponse
		if err := r.client.Get(ctx, passengersResource+"?"+q.Encode(), &out); err != nil {
			return deleted, fmt.Errorf("failed to page expired passengers: %w", err)
		}
		if len(out.Data) == 0 {
			return deleted, nil
		}
		for _, row := range out.Data {
			path := fmt.Sprintf("%s/%d", passengersResource, row.ID)
			if err := r.client.Delete(ctx, path); err != nil {
				return deleted, fmt.Errorf("failed to delete passenger row %d: %w", row.ID, err)
			}
			deleted++
		}
	}
}

// Purge deletes every passenger matching the filter and returns the count.
// The store has no bulk delete, so rows are paged and removed one by one.
func (r *PassengerRepository) Purge(ctx context.Context, f common.PassengerFilter) (int, error) {
	status := f.Status
	if status == "" {
		status = passenger.StatusWaiting
	}
	deleted := 0
	for {
		q := ListQuery{
			Page:     1,
			PageSize: expiredPageSize,
			Filters:  []Filter{{Field: "status", Op: "$eq", Value: string(status)}},
		}
		if f.RouteID != "" {
			q.Filters = append(q.Filters, Filter{Field: "route_id", Op: "$eq", Value: f.RouteID})
		}
		if f.DepotID != "" {
			q.Filters = append(q.Filters, Filter{Field: "depot_id", Op: "$eq", Value: f.DepotID})
		}
		if !f.Start.IsZero() {
			q.Filters = append(q.Filters, Filter{Field: "spawn_time", Op: "$gte", Value: f.Start.UTC().Format(time.RFC3339)})
		}
		if !f.End.IsZero() {
			q.Filters = append(q.Filters, Filter{Field: "spawn_time", Op: "$lte", Value: f.End.UTC().Format(time.RFC3339)})
		}

		var out passengerListResponse
		if err := r.client.Get(ctx, passengersResource+"?"+q.Encode(), &out); err != nil {
			return deleted, fmt.Errorf("failed to page passengers for purge: %w", err)
		}
		if len(out.Data) == 0 {
			return deleted, nil
		}
		for _, row := range out.Data {
			path := fmt.Sprintf("%s/%d", passengersResource, row.ID)
			if err := r.client.Delete(ctx, path); err != nil {
				return deleted, fmt.Errorf("failed to purge passenger row %d: %w", row.ID, err)
			}
			deleted++
		}
	}
}

func (r *PassengerRepository) findByPassengerID(ctx context.Context, passengerID string) (*passenger.Passenger, error) {
	row, err := r.findRowByPassengerID(ctx, passengerID)
	if err != nil || row == nil {
		return nil, err
	}
	return fromAttrs(row.Attributes)
}

func (r *PassengerRepository) findRowByPassengerID(ctx context.Context, passengerID string) (*passengerRow, error) {
	q := ListQuery{
		Page:     1,
		PageSize: 1,
		Filters:  []Filter{{Field: "passenger_id", Op: "$eq", Value: passengerID}},
	}
	var out passengerListResponse
	if err := r.client.Get(ctx, passengersResource+"?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("failed to look up passenger %s: %w", passengerID, err)
	}
	if len(out.Data) == 0 {
		return nil, nil
	}
	return &out.Data[0], nil
}

func toAttrs(p *passenger.Passenger) passengerAttrs {
	return passengerAttrs{
		PassengerID:     p.PassengerID,
		RouteID:         p.RouteID,
		DepotID:         p.DepotID,
		SpawnLat:        p.Spawn.Lat,
		SpawnLon:        p.Spawn.Lon,
		DestLat:         p.Destination.Lat,
		DestLon:         p.Destination.Lon,
		DestinationName: p.DestinationName,
		SpawnTime:       p.SpawnTime.UTC().Format(time.RFC3339),
		ExpiresAt:       p.ExpiresAt.UTC().Format(time.RFC3339),
		Status:          string(p.Status),
		Priority:        p.Priority,
		RoutePositionM:  p.RoutePositionM,
	}
}

func fromAttrs(a passengerAttrs) (*passenger.Passenger, error) {
	spawnTime, err := time.Parse(time.RFC3339, a.SpawnTime)
	if err != nil {
		return nil, fmt.Errorf("bad spawn_time %q: %w", a.SpawnTime, err)
	}
	expiresAt, err := time.Parse(time.RFC3339, a.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("bad expires_at %q: %w", a.ExpiresAt, err)
	}
	return &passenger.Passenger{
		PassengerID:     a.PassengerID,
		RouteID:         a.RouteID,
		DepotID:         a.DepotID,
		Spawn:           geo.Point{Lat: a.SpawnLat, Lon: a.SpawnLon},
		Destination:     geo.Point{Lat: a.DestLat, Lon: a.DestLon},
		DestinationName: a.DestinationName,
		SpawnTime:       spawnTime.UTC(),
		ExpiresAt:       expiresAt.UTC(),
		Status:          passenger.Status(a.Status),
		Priority:        a.Priority,
		RoutePositionM:  a.RoutePositionM,
	}, nil
}
