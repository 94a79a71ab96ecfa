package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mtransit/fleetsim/internal/application/common"
	appspawning "github.com/mtransit/fleetsim/internal/application/spawning"
)

// NewSpawnCommand creates the spawn command
func NewSpawnCommand() *cobra.Command {
	var (
		routeFlag string
		timeFlag  string
		day       string
		window    int
		seed      int64
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "spawn",
		Short: "Dry-run the spawn model for one route",
		Long: `Spawn runs a single demand cycle for one route without persisting
anything, and prints the passengers the model would create.

The cycle is evaluated at the given wall-clock time on the given weekday;
only the weekday and hour feed the demand model.

Examples:
  fleetsim spawn --route R12
  fleetsim spawn --route route-1 --time 17:30:00 --day friday
  fleetsim spawn --route R12 --window 30 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if routeFlag == "" {
				return fmt.Errorf("--route is required")
			}
			wd, ok := weekdays[strings.ToLower(day)]
			if !ok {
				return fmt.Errorf("invalid day %q: expected monday..sunday", day)
			}
			parsed, err := time.Parse("15:04:05", timeFlag)
			if err != nil {
				return fmt.Errorf("invalid --time %q: expected HH:MM:SS", timeFlag)
			}
			if window <= 0 {
				return fmt.Errorf("--window must be a positive number of minutes")
			}

			d, err := buildDeps()
			if err != nil {
				return err
			}

			ctx := common.WithLogger(context.Background(), d.logger)
			routes, err := selectRoutes(ctx, d.catalog, routeFlag)
			if err != nil {
				return err
			}
			route := routes[0]
			depots, err := d.catalog.Depots(ctx)
			if err != nil {
				return fmt.Errorf("failed to list depots: %w", err)
			}

			date := nextWeekday(time.Now().UTC(), wd)
			at := time.Date(date.Year(), date.Month(), date.Day(),
				parsed.Hour(), parsed.Minute(), parsed.Second(), 0, time.UTC)

			// Nil reservoir keeps this a dry run; only Spawn is called.
			spawner := appspawning.NewRouteSpawner(
				route, depotForRoute(depots, route.ID),
				d.cfg.Spawning.ConfigKey, d.configs, d.geo, d.catalog, nil, seed)

			reqs, err := spawner.Spawn(ctx, at, time.Duration(window)*time.Minute)
			if err != nil {
				return fmt.Errorf("spawn cycle failed: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				for _, req := range reqs {
					if err := enc.Encode(req); err != nil {
						return err
					}
				}
				return nil
			}

			fmt.Printf("Route %s (%s) at %s, %d minute window\n\n",
				route.ShortName, route.ID, at.Format("Mon 15:04:05"), window)
			if len(reqs) == 0 {
				fmt.Println("No passengers spawned for this window.")
				return nil
			}
			fmt.Printf("%-18s %-10s %8s  %-22s %s\n",
				"PASSENGER", "METHOD", "PRIORITY", "SPAWN POINT", "DESTINATION")
			fmt.Println(strings.Repeat("-", 86))
			for _, req := range reqs {
				fmt.Printf("%-18s %-10s %8.2f  %9.5f,%9.5f  %9.5f,%9.5f\n",
					req.PassengerID,
					req.Method,
					req.Priority,
					req.Spawn.Lat, req.Spawn.Lon,
					req.Destination.Lat, req.Destination.Lon)
			}
			fmt.Printf("\n✓ %d passenger(s) would spawn\n", len(reqs))
			return nil
		},
	}

	cmd.Flags().StringVar(&routeFlag, "route", "", "Route short name or identifier (required)")
	cmd.Flags().StringVar(&timeFlag, "time", "08:00:00", "Wall-clock time (HH:MM:SS)")
	cmd.Flags().StringVar(&day, "day", "monday", "Weekday (monday..sunday)")
	cmd.Flags().IntVar(&window, "window", 60, "Cycle window in minutes")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 = time-based)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit NDJSON instead of a table")

	return cmd
}
