package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/infrastructure/config"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		Long: `Inspect fleetsim configuration.

Configuration is loaded from multiple sources with priority:
1. Environment variables (FLEETSIM_* prefix)
2. Config file (config.yaml)
3. Default values

Examples:
  fleetsim config show
  fleetsim config spawn
  fleetsim config spawn --key route-R12`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSpawnCommand())

	return cmd
}

// newConfigShowCommand creates the config show subcommand
func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved local configuration",
		Long: `Display the configuration the daemon and CLI would run with, after
merging environment variables, the config file and defaults.

Example:
  fleetsim config show`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				fmt.Printf("Warning: failed to load config: %v\n", err)
				fmt.Println("Using default configuration.")
				cfg = config.LoadConfigOrDefault(configPath)
			}

			fmt.Println("Fleetsim Configuration")
			fmt.Println("======================")
			fmt.Printf("Environment:        %s\n", cfg.Environment)

			fmt.Println("\nContent API:")
			fmt.Printf("  Base URL:         %s\n", cfg.Content.BaseURL)
			fmt.Printf("  Token:            %s\n", maskSecret(cfg.Content.Token))
			fmt.Printf("  Timeout:          %s\n", cfg.Content.Timeout)
			fmt.Printf("  Retry:            %d attempts, %s backoff base\n",
				cfg.Content.Retry.MaxAttempts, cfg.Content.Retry.BackoffBase)
			fmt.Printf("  Config TTL:       %s\n", cfg.Content.ConfigTTL)

			fmt.Println("\nGeospatial:")
			if cfg.Geospatial.URL != "" {
				fmt.Printf("  Service:          %s\n", cfg.Geospatial.URL)
			} else {
				fmt.Printf("  Service:          (embedded spatial database)\n")
			}
			fmt.Printf("  Highway radius:   %.0fm\n", cfg.Geospatial.HighwayRadiusMeters)
			fmt.Printf("  POI radius:       %.0fm\n", cfg.Geospatial.POIRadiusMeters)

			fmt.Println("\nServer:")
			fmt.Printf("  Address:          %s\n", cfg.Server.Address)
			fmt.Printf("  Auth token:       %s\n", maskSecret(cfg.Server.AuthToken))
			fmt.Printf("  CORS origins:     %v\n", cfg.Server.CORSOrigins)
			fmt.Printf("  Janitor interval: %s\n", cfg.Server.JanitorInterval)
			fmt.Printf("  Stale after:      %ds\n", cfg.Server.StaleAfterSeconds)
			fmt.Printf("  PID file:         %s\n", cfg.Server.PIDFile)

			fmt.Println("\nSpawning:")
			fmt.Printf("  Config key:       %s\n", cfg.Spawning.ConfigKey)
			fmt.Printf("  Continuous mode:  %t\n", cfg.Spawning.ContinuousMode)
			fmt.Printf("  Spawn interval:   %s\n", cfg.Spawning.SpawnInterval)
			fmt.Printf("  Passenger TTL:    %s\n", cfg.Spawning.PassengerTTL)
			for kind, enabled := range cfg.Spawning.EnableFlags {
				fmt.Printf("  %-17s %t\n", kind+":", enabled)
			}

			fmt.Println("\nDatabase:")
			fmt.Printf("  Type:             %s\n", cfg.Database.Type)
			if cfg.Database.Type == "sqlite" {
				fmt.Printf("  Path:             %s\n", cfg.Database.Path)
			} else if cfg.Database.URL != "" {
				fmt.Printf("  URL:              %s\n", maskSecret(cfg.Database.URL))
			} else {
				fmt.Printf("  Host:             %s:%d/%s\n",
					cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
			}

			fmt.Println("\nMetrics:")
			fmt.Printf("  Enabled:          %t\n", cfg.Metrics.Enabled)

			fmt.Println("\nLogging:")
			fmt.Printf("  Level:            %s\n", cfg.Logging.Level)
			fmt.Printf("  Format:           %s\n", cfg.Logging.Format)
			fmt.Printf("  Output:           %s\n", cfg.Logging.Output)

			return nil
		},
	}
}

// newConfigSpawnCommand creates the config spawn subcommand
func newConfigSpawnCommand() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "spawn",
		Short: "Show a spawn-config record from the content API",
		Long: `Fetch and display a spawn-config record, resolving the same defaults
the spawners apply for missing fields.

Without --key the configured default key is used.

Examples:
  fleetsim config spawn
  fleetsim config spawn --key route-R12`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if key == "" {
				key = d.cfg.Spawning.ConfigKey
			}

			ctx := common.WithLogger(context.Background(), d.logger)
			sc, err := d.configs.Get(ctx, key)
			if err != nil {
				return fmt.Errorf("failed to load spawn config %q: %w", key, err)
			}

			fmt.Printf("Spawn Config %q (version %d)\n", sc.Key, sc.Version)
			fmt.Println("==============================")
			fmt.Printf("Spatial base:       %.3f passengers/building/hour\n", sc.SpatialBase)
			fmt.Printf("Spawn radius:       %.0fm\n", sc.SpawnRadius())
			fmt.Printf("Catchment radius:   %.0fm\n", sc.CatchmentRadius())
			fmt.Printf("Min interval:       %ds\n", sc.MinSpawnIntervalSeconds)
			fmt.Printf("Max per cycle:      %d\n", sc.MaxPerCycle())

			fmt.Println("\nHourly rates:")
			hours := make([]int, 0, len(sc.HourlyRates))
			for h := range sc.HourlyRates {
				hours = append(hours, h)
			}
			sort.Ints(hours)
			for _, h := range hours {
				fmt.Printf("  %02d:00   %.2f\n", h, sc.HourlyRates[h])
			}
			if len(hours) == 0 {
				fmt.Println("  (none; all hours default to 1.00)")
			}

			fmt.Println("\nDay multipliers (Monday first):")
			days := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
			for i, name := range days {
				fmt.Printf("  %s   %.2f\n", name, sc.DayMultiplier(i))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Spawn-config key (default: configured key)")

	return cmd
}

// maskSecret hides all but the first four characters of a credential.
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
