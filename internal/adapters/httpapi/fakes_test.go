package httpapi_test

import (
	"context"
	"sync"
	"time"

	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/passenger"
	"github.com/mtransit/fleetsim/internal/domain/shared"
	"github.com/mtransit/fleetsim/internal/domain/spawning"
	"github.com/mtransit/fleetsim/internal/domain/transit"
)

// fakeSpatial serves the raw spatial endpoints from canned data.
type fakeSpatial struct {
	geometries map[string]*common.RouteGeometry
	buildings  []common.BuildingRef
	addr       *common.Address
	fence      *common.GeofenceResult
	err        error
}

func (f *fakeSpatial) RouteGeometry(_ context.Context, routeID string) (*common.RouteGeometry, error) {
	if f.err != nil {
		return nil, f.err
	}
	if geom, ok := f.geometries[routeID]; ok {
		return geom, nil
	}
	return nil, shared.ErrNotFound
}

func (f *fakeSpatial) NearbyBuildings(context.Context, geo.Point, float64, int) ([]common.BuildingRef, error) {
	return f.buildings, f.err
}

func (f *fakeSpatial) BuildingsAlongRoute(context.Context, geo.Polyline, float64, int) ([]common.BuildingRef, error) {
	return f.buildings, f.err
}

func (f *fakeSpatial) DepotCatchment(context.Context, geo.Point, float64, int) ([]common.BuildingRef, error) {
	return f.buildings, f.err
}

func (f *fakeSpatial) ReverseGeocode(context.Context, geo.Point, float64, float64) (*common.Address, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.addr, nil
}

func (f *fakeSpatial) GeofenceCheck(context.Context, geo.Point) (*common.GeofenceResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.fence, nil
}

// stubGeoSvc backs manifest enrichment and spawn streaming.
type stubGeoSvc struct {
	geometries map[string]*common.RouteGeometry
	buildings  []common.BuildingRef
	formatted  string
}

func (s *stubGeoSvc) RouteGeometry(_ context.Context, routeID string) (*common.RouteGeometry, error) {
	if geom, ok := s.geometries[routeID]; ok {
		return geom, nil
	}
	return nil, shared.ErrNoGeometry
}

func (s *stubGeoSvc) NearbyBuildings(context.Context, geo.Point, float64, int) ([]common.BuildingRef, error) {
	return s.buildings, nil
}

func (s *stubGeoSvc) BuildingsAlongRoute(context.Context, geo.Polyline, float64, int) ([]common.BuildingRef, error) {
	return s.buildings, nil
}

func (s *stubGeoSvc) DepotCatchment(context.Context, geo.Point, float64, int) ([]common.BuildingRef, error) {
	return s.buildings, nil
}

func (s *stubGeoSvc) ReverseGeocode(context.Context, geo.Point) (*common.Address, error) {
	return &common.Address{Formatted: s.formatted}, nil
}

func (s *stubGeoSvc) GeofenceCheck(context.Context, geo.Point) (*common.GeofenceResult, error) {
	return &common.GeofenceResult{}, nil
}

// memRepo is an in-memory passenger store for handler tests.
type memRepo struct {
	mu         sync.Mutex
	passengers []*passenger.Passenger
	failWith   error
}

func (m *memRepo) Connect(context.Context) error { return nil }
func (m *memRepo) Disconnect() error             { return nil }

func (m *memRepo) Create(_ context.Context, p *passenger.Passenger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passengers = append(m.passengers, p)
	return nil
}

func (m *memRepo) BulkCreate(ctx context.Context, ps []*passenger.Passenger, _ int) (int, int) {
	for _, p := range ps {
		_ = m.Create(ctx, p)
	}
	return len(ps), 0
}

func (m *memRepo) MarkBoarded(context.Context, string) error   { return nil }
func (m *memRepo) MarkAlighted(context.Context, string) error  { return nil }
func (m *memRepo) MarkCancelled(context.Context, string) error { return nil }

func matches(p *passenger.Passenger, f common.PassengerFilter) bool {
	status := f.Status
	if status == "" {
		status = passenger.StatusWaiting
	}
	if p.Status != status {
		return false
	}
	if f.RouteID != "" && p.RouteID != f.RouteID {
		return false
	}
	if f.DepotID != "" && p.DepotID != f.DepotID {
		return false
	}
	if !f.Start.IsZero() && p.SpawnTime.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && p.SpawnTime.After(f.End) {
		return false
	}
	return true
}

func (m *memRepo) QueryWaiting(_ context.Context, f common.PassengerFilter) ([]*passenger.Passenger, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*passenger.Passenger
	for _, p := range m.passengers {
		if matches(p, f) {
			cp := *p
			out = append(out, &cp)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memRepo) QueryNearby(context.Context, string, geo.Point, float64) ([]*passenger.Passenger, error) {
	return nil, nil
}

func (m *memRepo) DeleteExpired(context.Context) (int, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	kept := m.passengers[:0]
	deleted := 0
	for _, p := range m.passengers {
		if p.ExpiresAt.Before(now) {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	m.passengers = kept
	return deleted, nil
}

func (m *memRepo) Purge(_ context.Context, f common.PassengerFilter) (int, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.passengers[:0]
	deleted := 0
	for _, p := range m.passengers {
		if matches(p, f) {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	m.passengers = kept
	return deleted, nil
}

// fakeCatalog serves routes and depots from slices.
type fakeCatalog struct {
	routes []*transit.Route
	depots []*transit.Depot
}

func (c *fakeCatalog) Routes(context.Context) ([]*transit.Route, error) { return c.routes, nil }

func (c *fakeCatalog) RouteByShortName(_ context.Context, shortName string) (*transit.Route, error) {
	for _, r := range c.routes {
		if r.ShortName == shortName {
			return r, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (c *fakeCatalog) Depots(context.Context) ([]*transit.Depot, error) { return c.depots, nil }

func (c *fakeCatalog) RoutesForDepot(_ context.Context, depotID string) ([]string, error) {
	for _, d := range c.depots {
		if d.ID == depotID {
			return d.RouteIDs, nil
		}
	}
	return nil, nil
}

// fakeConfigs always serves one snapshot.
type fakeConfigs struct {
	cfg *spawning.SpawnConfig
}

func (f *fakeConfigs) Get(context.Context, string) (*spawning.SpawnConfig, error) {
	return f.cfg, nil
}
func (f *fakeConfigs) Clear(string) {}

func waitingPassenger(id, routeID string, at time.Time) *passenger.Passenger {
	return &passenger.Passenger{
		PassengerID: id,
		RouteID:     routeID,
		Spawn:       geo.Point{Lat: -6.80, Lon: 39.25},
		Destination: geo.Point{Lat: -6.81, Lon: 39.26},
		SpawnTime:   at,
		ExpiresAt:   at.Add(30 * time.Minute),
		Status:      passenger.StatusWaiting,
		Priority:    1,
	}
}
