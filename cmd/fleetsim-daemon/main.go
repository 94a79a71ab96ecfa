package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mtransit/fleetsim/internal/adapters/api"
	"github.com/mtransit/fleetsim/internal/adapters/geospatial"
	"github.com/mtransit/fleetsim/internal/adapters/httpapi"
	"github.com/mtransit/fleetsim/internal/adapters/metrics"
	"github.com/mtransit/fleetsim/internal/adapters/persistence"
	"github.com/mtransit/fleetsim/internal/adapters/reservoir"
	"github.com/mtransit/fleetsim/internal/application/common"
	appspawning "github.com/mtransit/fleetsim/internal/application/spawning"
	"github.com/mtransit/fleetsim/internal/domain/transit"
	"github.com/mtransit/fleetsim/internal/infrastructure/config"
	"github.com/mtransit/fleetsim/internal/infrastructure/database"
	"github.com/mtransit/fleetsim/internal/infrastructure/logging"
	"github.com/mtransit/fleetsim/internal/infrastructure/pidfile"
)

func main() {
	forceFlag := flag.Bool("force", false, "Kill any existing daemon and start a new one")
	configFlag := flag.String("config", "", "Path to config file")
	flag.Parse()

	fmt.Println("Fleetsim Daemon v0.1.0")
	fmt.Println("======================")

	fmt.Println("Loading configuration...")
	cfg := config.MustLoadConfig(*configFlag)

	fmt.Printf("Acquiring PID file lock: %s\n", cfg.Server.PIDFile)
	pf := pidfile.New(cfg.Server.PIDFile)
	if err := pf.Acquire(); err != nil {
		if !*forceFlag {
			log.Fatalf("Failed to acquire PID file lock: %v\nUse --force to kill the existing daemon", err)
		}
		fmt.Println("Force mode enabled - attempting to kill existing daemon...")
		if killErr := pf.KillExisting(); killErr != nil {
			log.Fatalf("Failed to kill existing daemon: %v", killErr)
		}
		if err := pf.Acquire(); err != nil {
			log.Fatalf("Failed to acquire PID file lock after killing existing daemon: %v", err)
		}
	}
	defer func() {
		if err := pf.Release(); err != nil {
			log.Printf("Warning: failed to release PID file: %v", err)
		}
	}()
	fmt.Println("PID file lock acquired")

	if err := run(cfg); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Spatial database
	fmt.Printf("Connecting to %s database...\n", cfg.Database.Type)
	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	fmt.Println("Database connected")

	spatialRepo := persistence.NewSpatialRepository(db)

	// 2. Metrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		spawnCollector := metrics.NewSpawnMetricsCollector()
		if err := spawnCollector.Register(); err != nil {
			return fmt.Errorf("failed to register spawn metrics: %w", err)
		}
		metrics.SetGlobalSpawnCollector(spawnCollector)

		persistenceCollector := metrics.NewPersistenceMetricsCollector()
		if err := persistenceCollector.Register(); err != nil {
			return fmt.Errorf("failed to register persistence metrics: %w", err)
		}
		metrics.SetGlobalPersistenceCollector(persistenceCollector)
		fmt.Println("Metrics collectors registered")
	}

	// 3. Logging: console plus the cycle-log table
	console := logging.New(&cfg.Logging)
	cycleLogRepo := persistence.NewCycleLogRepository(db, nil)
	logger := logging.NewMulti(console, cycleLogRepo.NewCycleLogger("daemon"))

	// 4. Geospatial service: external when configured, embedded otherwise
	var geoSvc common.GeospatialService
	if cfg.Geospatial.URL != "" {
		geoSvc = geospatial.NewClient(cfg.Geospatial.URL)
		fmt.Printf("Geospatial service: %s\n", cfg.Geospatial.URL)
	} else {
		geoSvc = persistence.NewLocalService(spatialRepo,
			cfg.Geospatial.HighwayRadiusMeters, cfg.Geospatial.POIRadiusMeters)
		fmt.Println("Geospatial service: embedded spatial database")
	}

	// 5. Content API adapters
	client := api.NewContentClientWithConfig(
		cfg.Content.BaseURL,
		cfg.Content.Token,
		cfg.Content.Timeout,
		cfg.Content.Retry.MaxAttempts,
		cfg.Content.Retry.BackoffBase,
		nil,
	)
	catalog := api.NewCatalog(client)
	configs := api.NewConfigLoader(client, cfg.Content.ConfigTTL, nil)
	repo := api.NewPassengerRepository(client, nil)

	if err := repo.Connect(ctx); err != nil {
		return fmt.Errorf("content API unreachable: %w", err)
	}
	defer repo.Disconnect()
	fmt.Println("Content API connected")

	// 6. HTTP facade
	server := httpapi.NewServer(httpapi.Options{
		AuthToken:          cfg.Server.AuthToken,
		CORSOrigins:        cfg.Server.CORSOrigins,
		ConfigKey:          cfg.Spawning.ConfigKey,
		GeocodeConcurrency: cfg.Spawning.GeocodeConcurrency,
	}, spatialRepo, repo, geoSvc, catalog, configs, logger, nil)

	httpSrv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: server.Router(),
	}

	// 7. Janitor: expired passengers and stale telemetry
	janitor := httpapi.NewJanitor(repo, server.Devices(),
		cfg.Server.JanitorInterval,
		time.Duration(cfg.Server.StaleAfterSeconds)*time.Second,
		logger)
	go janitor.Run(ctx)

	// 8. Continuous spawning
	var coord *appspawning.Coordinator
	if cfg.Spawning.ContinuousMode {
		coord, err = buildCoordinator(ctx, cfg, repo, geoSvc, catalog, configs)
		if err != nil {
			return fmt.Errorf("failed to build spawn coordinator: %w", err)
		}
		go func() {
			cycleCtx := common.WithLogger(context.Background(), logger)
			if _, err := coord.Start(cycleCtx, time.Now().UTC()); err != nil {
				logger.Log("error", "spawn coordinator stopped", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
		fmt.Printf("Continuous spawning enabled (interval %s)\n", cfg.Spawning.SpawnInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("HTTP server listening on %s\n", cfg.Server.Address)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	fmt.Println("\nShutting down...")
	if coord != nil {
		coord.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	fmt.Println("Shutdown complete")
	return nil
}

// buildCoordinator wires one route spawner per catalog route and one depot
// spawner per depot, all sharing a single reservoir cache.
func buildCoordinator(
	ctx context.Context,
	cfg *config.Config,
	repo common.PassengerRepository,
	geoSvc common.GeospatialService,
	catalog common.TransitCatalog,
	configs common.SpawnConfigSource,
) (*appspawning.Coordinator, error) {
	routes, err := catalog.Routes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	depots, err := catalog.Depots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list depots: %w", err)
	}

	cache := reservoir.NewCache(cfg.Spawning.ReservoirCacheTTL, nil)
	key := cfg.Spawning.ConfigKey

	var spawners []common.Spawner
	for _, route := range routes {
		res := reservoir.NewRouteReservoir(repo, cache, route.ID)
		res.SetPassengerTTL(cfg.Spawning.PassengerTTL)
		spawners = append(spawners, appspawning.NewRouteSpawner(
			route, depotFor(depots, route.ID), key, configs, geoSvc, catalog, res, 0))
	}
	for _, depot := range depots {
		res := reservoir.NewDepotReservoir(repo, cache, depot.ID)
		res.SetPassengerTTL(cfg.Spawning.PassengerTTL)
		spawners = append(spawners, appspawning.NewDepotSpawner(
			depot, key, configs, geoSvc, catalog, res, 0))
	}

	return appspawning.NewCoordinator(spawners, appspawning.CoordinatorConfig{
		EnableFlags:    cfg.Spawning.EnableFlags,
		ContinuousMode: true,
		SpawnInterval:  cfg.Spawning.SpawnInterval,
	}, nil), nil
}

func depotFor(depots []*transit.Depot, routeID string) *transit.Depot {
	for _, depot := range depots {
		for _, id := range depot.RouteIDs {
			if id == routeID {
				return depot
			}
		}
	}
	return nil
}
