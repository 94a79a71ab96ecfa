package common

import (
	"context"
	"time"

	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/passenger"
	"github.com/mtransit/fleetsim/internal/domain/spawning"
	"github.com/mtransit/fleetsim/internal/domain/transit"
)

// BuildingRef is a building returned by a spatial query, with its distance
// from the query point in meters.
type BuildingRef struct {
	ID        string
	Location  geo.Point
	DistanceM float64
}

// RouteGeometry is the polyline of a route plus its total arc length.
type RouteGeometry struct {
	RouteID     string
	Coordinates geo.Polyline
	LengthM     float64
}

// Address is a reverse-geocode result. Empty fields mean no feature was
// found within the search radius.
type Address struct {
	Highway   string
	POI       string
	Parish    string
	Formatted string
}

// GeofenceResult reports region and landuse membership for a point.
type GeofenceResult struct {
	InsideRegion  bool
	RegionName    string
	InsideLanduse bool
	LanduseKind   string
}

// GeospatialService answers the spatial queries spawners and manifest
// enrichment depend on. Spawners treat it as optional: inject NoopGeospatial
// when unavailable and they degrade to route-only mode.
type GeospatialService interface {
	RouteGeometry(ctx context.Context, routeID string) (*RouteGeometry, error)
	NearbyBuildings(ctx context.Context, p geo.Point, radiusM float64, limit int) ([]BuildingRef, error)
	BuildingsAlongRoute(ctx context.Context, line geo.Polyline, bufferM float64, limit int) ([]BuildingRef, error)
	DepotCatchment(ctx context.Context, p geo.Point, radiusM float64, limit int) ([]BuildingRef, error)
	ReverseGeocode(ctx context.Context, p geo.Point) (*Address, error)
	GeofenceCheck(ctx context.Context, p geo.Point) (*GeofenceResult, error)
}

// SpawnConfigSource delivers immutable spawn-config snapshots. Get serves a
// cached snapshot while fresh and refetches past the TTL; Clear("")
// invalidates everything.
type SpawnConfigSource interface {
	Get(ctx context.Context, key string) (*spawning.SpawnConfig, error)
	Clear(key string)
}

// PassengerFilter narrows repository queries. Zero values mean "any".
type PassengerFilter struct {
	RouteID string
	DepotID string
	Status  passenger.Status
	Start   time.Time
	End     time.Time
	Limit   int
	Sort    string
}

// PassengerRepository is the idempotent contract against the content store.
// All operations between Connect and Disconnect are safe under concurrent
// use.
type PassengerRepository interface {
	Connect(ctx context.Context) error
	Disconnect() error

	// Create persists one passenger; a second create with the same
	// passenger ID is a no-op success.
	Create(ctx context.Context, p *passenger.Passenger) error

	// BulkCreate persists passengers with at most maxInFlight concurrent
	// writes (<=0 selects the default of 10). Ordering is not preserved;
	// partial success is reported.
	BulkCreate(ctx context.Context, ps []*passenger.Passenger, maxInFlight int) (ok, failed int)

	MarkBoarded(ctx context.Context, passengerID string) error
	MarkAlighted(ctx context.Context, passengerID string) error
	MarkCancelled(ctx context.Context, passengerID string) error

	QueryWaiting(ctx context.Context, f PassengerFilter) ([]*passenger.Passenger, error)
	QueryNearby(ctx context.Context, routeID string, p geo.Point, radiusM float64) ([]*passenger.Passenger, error)

	// DeleteExpired pages through rows with expires_at < now and deletes
	// them, returning the count. Idempotent.
	DeleteExpired(ctx context.Context) (int, error)

	// Purge deletes every passenger matching the filter and returns the
	// count. A zero filter deletes all WAITING passengers.
	Purge(ctx context.Context, f PassengerFilter) (int, error)
}

// Reservoir mediates between spawners and the passenger store for one scope
// (a route or a depot).
type Reservoir interface {
	Push(ctx context.Context, req *passenger.SpawnRequest) error
	PushBatch(ctx context.Context, reqs []*passenger.SpawnRequest) (ok, failed int)
	Available(ctx context.Context, limit int, destinationRouteID string) ([]*passenger.Passenger, error)
	MarkPickedUp(ctx context.Context, passengerID string) error
	MarkDroppedOff(ctx context.Context, passengerID string) error
}

// SpawnerStats is a snapshot of a spawner's counters.
type SpawnerStats struct {
	Name      string
	Cycles    int64
	Spawned   int64
	Errors    int64
	Fallbacks int64
}

// Spawner produces passengers for a scope and time window.
type Spawner interface {
	Name() string
	Spawn(ctx context.Context, t time.Time, window time.Duration) ([]*passenger.SpawnRequest, error)
	SpawnAndStore(ctx context.Context, t time.Time, window time.Duration) (int, error)
	Stats() SpawnerStats
}

// TransitCatalog resolves routes, depots and their junction from the content
// store.
type TransitCatalog interface {
	Routes(ctx context.Context) ([]*transit.Route, error)
	RouteByShortName(ctx context.Context, shortName string) (*transit.Route, error)
	Depots(ctx context.Context) ([]*transit.Depot, error)
	RoutesForDepot(ctx context.Context, depotID string) ([]string, error)
}
