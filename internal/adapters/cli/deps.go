package cli

import (
	"fmt"

	"github.com/mtransit/fleetsim/internal/adapters/api"
	"github.com/mtransit/fleetsim/internal/adapters/geospatial"
	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/infrastructure/config"
	"github.com/mtransit/fleetsim/internal/infrastructure/logging"
)

// deps bundles the adapters every CLI command wires against the content and
// geospatial services.
type deps struct {
	cfg     *config.Config
	client  *api.ContentClient
	catalog common.TransitCatalog
	configs common.SpawnConfigSource
	repo    common.PassengerRepository
	geo     common.GeospatialService
	logger  common.CycleLogger
}

// buildDeps loads configuration and wires the shared adapter set. A missing
// geospatial URL degrades to the no-op service, which forces route-only
// spawning.
func buildDeps() (*deps, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	client := api.NewContentClientWithConfig(
		cfg.Content.BaseURL,
		cfg.Content.Token,
		cfg.Content.Timeout,
		cfg.Content.Retry.MaxAttempts,
		cfg.Content.Retry.BackoffBase,
		nil,
	)

	var geoSvc common.GeospatialService
	if cfg.Geospatial.URL != "" {
		geoSvc = geospatial.NewClient(cfg.Geospatial.URL)
	} else {
		geoSvc = geospatial.NewNoop()
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger := logging.New(&config.LoggingConfig{
		Level:  level,
		Format: "text",
		Output: "stderr",
	})

	return &deps{
		cfg:     cfg,
		client:  client,
		catalog: api.NewCatalog(client),
		configs: api.NewConfigLoader(client, cfg.Content.ConfigTTL, nil),
		repo:    api.NewPassengerRepository(client, nil),
		geo:     geoSvc,
		logger:  logger,
	}, nil
}
