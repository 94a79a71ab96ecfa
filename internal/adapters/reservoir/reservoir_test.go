package reservoir_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtransit/fleetsim/internal/adapters/reservoir"
	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/passenger"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

// memRepo is an in-memory PassengerRepository for reservoir tests.
type memRepo struct {
	mu      sync.Mutex
	rows    map[string]*passenger.Passenger
	queries int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]*passenger.Passenger)}
}

func (m *memRepo) Connect(context.Context) error { return nil }
func (m *memRepo) Disconnect() error             { return nil }

func (m *memRepo) Create(_ context.Context, p *passenger.Passenger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.PassengerID]; ok {
		return nil
	}
	cp := *p
	m.rows[p.PassengerID] = &cp
	return nil
}

func (m *memRepo) BulkCreate(ctx context.Context, ps []*passenger.Passenger, _ int) (int, int) {
	ok := 0
	for _, p := range ps {
		if err := m.Create(ctx, p); err == nil {
			ok++
		}
	}
	return ok, len(ps) - ok
}

func (m *memRepo) transition(id string, to passenger.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return shared.ErrNotFound
	}
	if !p.Status.CanTransitionTo(to) {
		return shared.ErrValidation
	}
	p.Status = to
	return nil
}

func (m *memRepo) MarkBoarded(_ context.Context, id string) error {
	return m.transition(id, passenger.StatusBoarded)
}
func (m *memRepo) MarkAlighted(_ context.Context, id string) error {
	return m.transition(id, passenger.StatusAlighted)
}
func (m *memRepo) MarkCancelled(_ context.Context, id string) error {
	return m.transition(id, passenger.StatusCancelled)
}

func (m *memRepo) QueryWaiting(_ context.Context, f common.PassengerFilter) ([]*passenger.Passenger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	var out []*passenger.Passenger
	for _, p := range m.rows {
		if p.Status != passenger.StatusWaiting {
			continue
		}
		if f.RouteID != "" && p.RouteID != f.RouteID {
			continue
		}
		if f.DepotID != "" && p.DepotID != f.DepotID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memRepo) QueryNearby(context.Context, string, geo.Point, float64) ([]*passenger.Passenger, error) {
	return nil, nil
}
func (m *memRepo) DeleteExpired(context.Context) (int, error) { return 0, nil }
func (m *memRepo) Purge(context.Context, common.PassengerFilter) (int, error) {
	return 0, nil
}

func testRequest(routeID string) *passenger.SpawnRequest {
	at := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	return &passenger.SpawnRequest{
		Spawn:       geo.Point{Lat: -6.80, Lon: 39.25},
		Destination: geo.Point{Lat: -6.82, Lon: 39.27},
		RouteID:     routeID,
		SpawnTime:   at,
		Context:     passenger.ContextRoute,
		Method:      "hybrid",
		Priority:    1,
	}
}

func TestRouteReservoir_PushGeneratesID(t *testing.T) {
	repo := newMemRepo()
	res := reservoir.NewRouteReservoir(repo, nil, "route-1")
	req := testRequest("route-1")

	require.NoError(t, res.Push(context.Background(), req))

	assert.NotEmpty(t, req.PassengerID)
	assert.Len(t, repo.rows, 1)
}

func TestRouteReservoir_PushNormalizesDestination(t *testing.T) {
	repo := newMemRepo()
	res := reservoir.NewRouteReservoir(repo, nil, "route-1")
	req := testRequest("route-1")
	req.Destination = geo.Point{Lat: 200, Lon: 0} // invalid

	require.NoError(t, res.Push(context.Background(), req))

	stored := repo.rows[req.PassengerID]
	assert.Equal(t, req.Spawn, stored.Destination, "invalid destination collapses onto spawn point")
}

func TestRouteReservoir_PushBatch(t *testing.T) {
	repo := newMemRepo()
	res := reservoir.NewRouteReservoir(repo, nil, "route-1")
	reqs := []*passenger.SpawnRequest{testRequest("route-1"), testRequest("route-1"), testRequest("route-1")}

	ok, failed := res.PushBatch(context.Background(), reqs)

	assert.Equal(t, 3, ok)
	assert.Zero(t, failed)
}

func TestRouteReservoir_AvailableUsesCache(t *testing.T) {
	repo := newMemRepo()
	clock := shared.NewMockClock(time.Now())
	cache := reservoir.NewCache(time.Minute, clock)
	res := reservoir.NewRouteReservoir(repo, cache, "route-1")
	ctx := context.Background()
	require.NoError(t, res.Push(ctx, testRequest("route-1")))

	_, err := res.Available(ctx, 10, "")
	require.NoError(t, err)
	_, err = res.Available(ctx, 10, "")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.queries, "second read must hit the cache")
}

func TestZeroTTLDisablesCache(t *testing.T) {
	repo := newMemRepo()
	clock := shared.NewMockClock(time.Now())
	cache := reservoir.NewCache(0, clock)
	require.Nil(t, cache)

	// A disabled cache means every read goes to the store, even with a
	// clock that never advances.
	res := reservoir.NewRouteReservoir(repo, cache, "route-1")
	ctx := context.Background()
	require.NoError(t, res.Push(ctx, testRequest("route-1")))

	_, err := res.Available(ctx, 10, "")
	require.NoError(t, err)
	_, err = res.Available(ctx, 10, "")
	require.NoError(t, err)

	assert.Equal(t, 2, repo.queries)
}

func TestRouteReservoir_WritesInvalidateCache(t *testing.T) {
	repo := newMemRepo()
	cache := reservoir.NewCache(time.Hour, shared.NewMockClock(time.Now()))
	res := reservoir.NewRouteReservoir(repo, cache, "route-1")
	ctx := context.Background()
	require.NoError(t, res.Push(ctx, testRequest("route-1")))

	rows, err := res.Available(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, res.Push(ctx, testRequest("route-1")))

	rows, err = res.Available(ctx, 10, "")
	require.NoError(t, err)
	assert.Len(t, rows, 2, "push must invalidate the availability cache")
}

func TestRouteReservoir_MarkPickedUpAndDroppedOff(t *testing.T) {
	repo := newMemRepo()
	res := reservoir.NewRouteReservoir(repo, nil, "route-1")
	ctx := context.Background()
	req := testRequest("route-1")
	require.NoError(t, res.Push(ctx, req))

	require.NoError(t, res.MarkPickedUp(ctx, req.PassengerID))
	require.NoError(t, res.MarkDroppedOff(ctx, req.PassengerID))

	assert.Equal(t, passenger.StatusAlighted, repo.rows[req.PassengerID].Status)
}

func TestDepotReservoir_StampsDepotID(t *testing.T) {
	repo := newMemRepo()
	res := reservoir.NewDepotReservoir(repo, nil, "depot-7")
	req := testRequest("route-1")

	require.NoError(t, res.Push(context.Background(), req))

	assert.Equal(t, "depot-7", repo.rows[req.PassengerID].DepotID)
}

func TestDepotReservoir_AvailableFiltersByDestinationRoute(t *testing.T) {
	repo := newMemRepo()
	res := reservoir.NewDepotReservoir(repo, nil, "depot-7")
	ctx := context.Background()
	require.NoError(t, res.Push(ctx, testRequest("route-1")))
	require.NoError(t, res.Push(ctx, testRequest("route-2")))

	rows, err := res.Available(ctx, 10, "route-2")

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "route-2", rows[0].RouteID)
}

func TestReservoir_CorrectWithoutCache(t *testing.T) {
	repo := newMemRepo()
	res := reservoir.NewRouteReservoir(repo, nil, "route-1")
	ctx := context.Background()
	require.NoError(t, res.Push(ctx, testRequest("route-1")))

	rows, err := res.Available(ctx, 10, "")

	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
