package spawning

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mtransit/fleetsim/internal/adapters/metrics"
	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/passenger"
	"github.com/mtransit/fleetsim/internal/domain/spawning"
	"github.com/mtransit/fleetsim/internal/domain/transit"
)

const (
	// RouteSpawnerName is the kind used for enable flags and stats.
	RouteSpawnerName = "routespawner"

	buildingQueryLimit = 2000

	// backpressureRatio is the failed fraction of a batch above which the
	// spawner logs a warning instead of retrying within the cycle.
	backpressureRatio = 0.25
)

// RouteSpawner generates passengers along one route using the hybrid
// population-attractiveness model. When depot context is missing or the
// spatial queries come back empty it degrades to route-only mode, where the
// route's own buildings stand in for the whole catchment.
type RouteSpawner struct {
	route     *transit.Route
	depot     *transit.Depot
	configKey string

	configs   common.SpawnConfigSource
	geo       common.GeospatialService
	catalog   common.TransitCatalog
	reservoir common.Reservoir

	mu       sync.Mutex
	rng      *rand.Rand
	geometry *common.RouteGeometry

	cycles    atomic.Int64
	spawned   atomic.Int64
	errors    atomic.Int64
	fallbacks atomic.Int64
}

var _ common.Spawner = (*RouteSpawner)(nil)

// NewRouteSpawner creates a spawner for route. depot may be nil, which forces
// route-only mode. seed fixes the random stream for reproducible tests; pass
// 0 to seed from the current time.
func NewRouteSpawner(
	route *transit.Route,
	depot *transit.Depot,
	configKey string,
	configs common.SpawnConfigSource,
	geoSvc common.GeospatialService,
	catalog common.TransitCatalog,
	res common.Reservoir,
	seed int64,
) *RouteSpawner {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RouteSpawner{
		route:     route,
		depot:     depot,
		configKey: configKey,
		configs:   configs,
		geo:       geoSvc,
		catalog:   catalog,
		reservoir: res,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (s *RouteSpawner) Name() string { return RouteSpawnerName }

// Stats returns a snapshot of the spawner's counters.
func (s *RouteSpawner) Stats() common.SpawnerStats {
	return common.SpawnerStats{
		Name:      RouteSpawnerName + ":" + s.route.ID,
		Cycles:    s.cycles.Load(),
		Spawned:   s.spawned.Load(),
		Errors:    s.errors.Load(),
		Fallbacks: s.fallbacks.Load(),
	}
}

// Spawn runs one cycle of the hybrid model at time t over the given window
// and returns the materialized requests without persisting them.
func (s *RouteSpawner) Spawn(ctx context.Context, t time.Time, window time.Duration) ([]*passenger.SpawnRequest, error) {
	s.cycles.Add(1)
	logger := common.LoggerFromContext(ctx)

	cfg, err := s.configs.Get(ctx, s.configKey)
	if err != nil {
		s.errors.Add(1)
		return nil, fmt.Errorf("route spawner %s: config: %w", s.route.ID, err)
	}

	geom, err := s.routeGeometry(ctx)
	if err != nil {
		s.errors.Add(1)
		return nil, fmt.Errorf("route spawner %s: %w", s.route.ID, err)
	}

	bRoute := s.routeBuildingCount(ctx, geom, cfg)
	bDepot, bTotal, fellBack := s.catchmentCounts(ctx, cfg, bRoute)
	if fellBack {
		s.fallbacks.Add(1)
		metrics.RecordFallback(RouteSpawnerName)
		logger.Log("warn", "route spawner falling back to route-only mode", map[string]interface{}{
			"route_id": s.route.ID,
			"b_route":  bRoute,
		})
	}

	result, err := func() (spawning.HybridSpawnResult, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return spawning.CalculateHybridSpawn(cfg, t, window.Minutes(), bDepot, bRoute, bTotal, s.rng)
	}()
	if err != nil {
		s.errors.Add(1)
		return nil, fmt.Errorf("route spawner %s: %w", s.route.ID, err)
	}

	count := result.SpawnCount
	if max := cfg.MaxPerCycle(); count > max {
		count = max
	}

	method := "hybrid"
	if fellBack {
		method = "route_only"
	}
	reqs := s.materialize(geom, count, t, method)

	logger.Log("info", "route spawn cycle complete", map[string]interface{}{
		"route_id":    s.route.ID,
		"lambda":      result.Lambda,
		"spawn_count": len(reqs),
		"method":      method,
	})
	return reqs, nil
}

// SpawnAndStore runs Spawn and pushes the batch through the reservoir,
// returning the number persisted.
func (s *RouteSpawner) SpawnAndStore(ctx context.Context, t time.Time, window time.Duration) (int, error) {
	reqs, err := s.Spawn(ctx, t, window)
	if err != nil {
		return 0, err
	}
	if len(reqs) == 0 {
		return 0, nil
	}
	ok, failed := s.reservoir.PushBatch(ctx, reqs)
	s.spawned.Add(int64(ok))
	if failed > 0 && float64(failed) > backpressureRatio*float64(len(reqs)) {
		common.LoggerFromContext(ctx).Log("warn", "reservoir rejected a large share of the batch", map[string]interface{}{
			"route_id": s.route.ID,
			"ok":       ok,
			"failed":   failed,
		})
	}
	return ok, nil
}

// routeGeometry returns the cached polyline, fetching it on first use. Routes
// carrying their own geometry from the catalog skip the geospatial call.
func (s *RouteSpawner) routeGeometry(ctx context.Context) (*common.RouteGeometry, error) {
	s.mu.Lock()
	cached := s.geometry
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var geom *common.RouteGeometry
	if len(s.route.Geometry) > 0 {
		geom = &common.RouteGeometry{
			RouteID:     s.route.ID,
			Coordinates: s.route.Geometry,
			LengthM:     s.route.Geometry.Length(),
		}
	} else {
		fetched, err := s.geo.RouteGeometry(ctx, s.route.ID)
		if err != nil {
			return nil, err
		}
		geom = fetched
	}

	s.mu.Lock()
	s.geometry = geom
	s.mu.Unlock()
	return geom, nil
}

func (s *RouteSpawner) routeBuildingCount(ctx context.Context, geom *common.RouteGeometry, cfg *spawning.SpawnConfig) float64 {
	buildings, err := s.geo.BuildingsAlongRoute(ctx, geom.Coordinates, cfg.SpawnRadius(), buildingQueryLimit)
	if err != nil {
		return 0
	}
	return float64(len(buildings))
}

// catchmentCounts resolves the depot catchment size and the building total
// across all routes sharing the depot. Any gap collapses to route-only mode:
// attractiveness 1 with the route's own buildings as the catchment.
func (s *RouteSpawner) catchmentCounts(ctx context.Context, cfg *spawning.SpawnConfig, bRoute float64) (bDepot, bTotal float64, fellBack bool) {
	if s.depot == nil || s.catalog == nil {
		return bRoute, bRoute, true
	}

	catchment, err := s.geo.DepotCatchment(ctx, s.depot.Location, cfg.CatchmentRadius(), buildingQueryLimit)
	if err != nil || len(catchment) == 0 {
		return bRoute, bRoute, true
	}

	siblings, err := s.catalog.RoutesForDepot(ctx, s.depot.ID)
	if err != nil || len(siblings) == 0 {
		return bRoute, bRoute, true
	}

	total := 0.0
	for _, routeID := range siblings {
		if routeID == s.route.ID {
			total += bRoute
			continue
		}
		geom, err := s.geo.RouteGeometry(ctx, routeID)
		if err != nil {
			continue
		}
		buildings, err := s.geo.BuildingsAlongRoute(ctx, geom.Coordinates, cfg.SpawnRadius(), buildingQueryLimit)
		if err != nil {
			continue
		}
		total += float64(len(buildings))
	}
	if total <= 0 {
		return bRoute, bRoute, true
	}
	return float64(len(catchment)), total, false
}

// materialize samples board and alight vertices for each passenger. The
// alight index is drawn uniformly at or after the boarding index so travel
// direction follows the polyline.
func (s *RouteSpawner) materialize(geom *common.RouteGeometry, count int, t time.Time, method string) []*passenger.SpawnRequest {
	verts := geom.Coordinates
	if len(verts) == 0 || count <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	depotID := ""
	if s.depot != nil {
		depotID = s.depot.ID
	}
	reqs := make([]*passenger.SpawnRequest, 0, count)
	for i := 0; i < count; i++ {
		boardIdx := s.rng.Intn(len(verts))
		alightIdx := boardIdx + s.rng.Intn(len(verts)-boardIdx)
		req := &passenger.SpawnRequest{
			PassengerID: passenger.NewPassengerID(),
			Spawn:       verts[boardIdx],
			Destination: verts[alightIdx],
			RouteID:     s.route.ID,
			DepotID:     depotID,
			SpawnTime:   t.UTC(),
			Context:     passenger.ContextRoute,
			Method:      method,
			Priority:    1,
		}
		reqs = append(reqs, req)
	}
	return reqs
}
