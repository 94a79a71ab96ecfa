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

// DepotSpawnerName is the kind used for enable flags and stats.
const DepotSpawnerName = "depotspawner"

// DepotSpawner generates passengers waiting at a depot using the spatial-base
// model. Every spawn shares the depot location as origin; the destination is
// a placeholder equal to the depot location until a downstream assignment
// step rewrites it.
type DepotSpawner struct {
	depot     *transit.Depot
	configKey string

	configs   common.SpawnConfigSource
	geo       common.GeospatialService
	catalog   common.TransitCatalog
	reservoir common.Reservoir

	mu     sync.Mutex
	rng    *rand.Rand
	routes []string

	cycles    atomic.Int64
	spawned   atomic.Int64
	errors    atomic.Int64
	fallbacks atomic.Int64
}

var _ common.Spawner = (*DepotSpawner)(nil)

// NewDepotSpawner creates a spawner for depot. Routes are taken from the
// depot record when present, otherwise resolved lazily from the catalog's
// route-depot junction. seed 0 seeds from the current time.
func NewDepotSpawner(
	depot *transit.Depot,
	configKey string,
	configs common.SpawnConfigSource,
	geoSvc common.GeospatialService,
	catalog common.TransitCatalog,
	res common.Reservoir,
	seed int64,
) *DepotSpawner {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DepotSpawner{
		depot:     depot,
		configKey: configKey,
		configs:   configs,
		geo:       geoSvc,
		catalog:   catalog,
		reservoir: res,
		rng:       rand.New(rand.NewSource(seed)),
		routes:    depot.RouteIDs,
	}
}

func (s *DepotSpawner) Name() string { return DepotSpawnerName }

// Stats returns a snapshot of the spawner's counters.
func (s *DepotSpawner) Stats() common.SpawnerStats {
	return common.SpawnerStats{
		Name:      DepotSpawnerName + ":" + s.depot.ID,
		Cycles:    s.cycles.Load(),
		Spawned:   s.spawned.Load(),
		Errors:    s.errors.Load(),
		Fallbacks: s.fallbacks.Load(),
	}
}

// Spawn runs one spatial-base cycle at time t over the given window.
func (s *DepotSpawner) Spawn(ctx context.Context, t time.Time, window time.Duration) ([]*passenger.SpawnRequest, error) {
	s.cycles.Add(1)
	logger := common.LoggerFromContext(ctx)

	cfg, err := s.configs.Get(ctx, s.configKey)
	if err != nil {
		s.errors.Add(1)
		return nil, fmt.Errorf("depot spawner %s: config: %w", s.depot.ID, err)
	}

	routes, err := s.availableRoutes(ctx)
	if err != nil {
		s.errors.Add(1)
		return nil, fmt.Errorf("depot spawner %s: routes: %w", s.depot.ID, err)
	}
	if len(routes) == 0 {
		logger.Log("warn", "depot has no associated routes, spawning nothing", map[string]interface{}{
			"depot_id": s.depot.ID,
		})
		return nil, nil
	}

	base := s.baseRate(ctx, cfg)

	lambda, err := spawning.SpatialBaseLambda(base, cfg, t, window.Minutes())
	if err != nil {
		s.errors.Add(1)
		return nil, fmt.Errorf("depot spawner %s: %w", s.depot.ID, err)
	}

	weights := s.routeWeights(ctx, routes, cfg)

	s.mu.Lock()
	count := spawning.PoissonDraw(lambda, s.rng)
	s.mu.Unlock()
	if max := cfg.MaxPerCycle(); count > max {
		count = max
	}

	reqs := s.materialize(routes, weights, count, t)

	logger.Log("info", "depot spawn cycle complete", map[string]interface{}{
		"depot_id":    s.depot.ID,
		"lambda":      lambda,
		"spawn_count": len(reqs),
		"routes":      len(routes),
	})
	return reqs, nil
}

// SpawnAndStore runs Spawn and pushes the batch through the reservoir.
func (s *DepotSpawner) SpawnAndStore(ctx context.Context, t time.Time, window time.Duration) (int, error) {
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
			"depot_id": s.depot.ID,
			"ok":       ok,
			"failed":   failed,
		})
	}
	return ok, nil
}

// availableRoutes returns the depot's routes, resolving them once from the
// junction table when the depot record does not carry them.
func (s *DepotSpawner) availableRoutes(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	cached := s.routes
	s.mu.Unlock()
	if len(cached) > 0 {
		return cached, nil
	}
	if s.catalog == nil {
		return nil, nil
	}
	routes, err := s.catalog.RoutesForDepot(ctx, s.depot.ID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.routes = routes
	s.mu.Unlock()
	return routes, nil
}

// baseRate prefers the live catchment building count over the configured
// spatial base, so busier depots emit more passengers.
func (s *DepotSpawner) baseRate(ctx context.Context, cfg *spawning.SpawnConfig) float64 {
	buildings, err := s.geo.DepotCatchment(ctx, s.depot.Location, cfg.CatchmentRadius(), buildingQueryLimit)
	if err != nil || len(buildings) == 0 {
		s.fallbacks.Add(1)
		metrics.RecordFallback(DepotSpawnerName)
		return cfg.SpatialBase
	}
	return float64(len(buildings)) * cfg.SpatialBase
}

// routeWeights computes per-route attractiveness as buildings along each
// candidate route. Unreachable routes get weight 0; an all-zero vector makes
// the multinomial pick uniform.
func (s *DepotSpawner) routeWeights(ctx context.Context, routes []string, cfg *spawning.SpawnConfig) []float64 {
	weights := make([]float64, len(routes))
	for i, routeID := range routes {
		geom, err := s.geo.RouteGeometry(ctx, routeID)
		if err != nil {
			continue
		}
		buildings, err := s.geo.BuildingsAlongRoute(ctx, geom.Coordinates, cfg.SpawnRadius(), buildingQueryLimit)
		if err != nil {
			continue
		}
		weights[i] = float64(len(buildings))
	}
	return weights
}

func (s *DepotSpawner) materialize(routes []string, weights []float64, count int, t time.Time) []*passenger.SpawnRequest {
	if count <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs := make([]*passenger.SpawnRequest, 0, count)
	for i := 0; i < count; i++ {
		idx := spawning.MultinomialPick(weights, s.rng)
		if idx < 0 {
			break
		}
		reqs = append(reqs, &passenger.SpawnRequest{
			PassengerID: passenger.NewPassengerID(),
			Spawn:       s.depot.Location,
			Destination: s.depot.Location,
			RouteID:     routes[idx],
			DepotID:     s.depot.ID,
			SpawnTime:   t.UTC(),
			Context:     passenger.ContextDepot,
			Method:      "spatial_base",
			Priority:    1,
		})
	}
	return reqs
}
