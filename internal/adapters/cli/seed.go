package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mtransit/fleetsim/internal/adapters/reservoir"
	"github.com/mtransit/fleetsim/internal/application/common"
	appspawning "github.com/mtransit/fleetsim/internal/application/spawning"
	"github.com/mtransit/fleetsim/internal/domain/shared"
	"github.com/mtransit/fleetsim/internal/domain/transit"
)

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// NewSeedCommand creates the seed command
func NewSeedCommand() *cobra.Command {
	var (
		day           string
		routeFlag     string
		depotSpawning bool
		seed          int64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed a full day of passenger demand",
		Long: `Seed runs the demand model for every hour of the selected weekday and
persists the spawned passengers through the content API.

One spawn cycle runs per hour (00:00 through 23:00), for every selected
route. With --depot-spawning, depot spawners for the depots serving the
selected routes run alongside the route spawners.

Examples:
  fleetsim seed --day monday --route all
  fleetsim seed --day saturday --route R12
  fleetsim seed --day friday --route all --depot-spawning`,
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, ok := weekdays[strings.ToLower(day)]
			if !ok {
				return fmt.Errorf("invalid day %q: expected monday..sunday", day)
			}

			d, err := buildDeps()
			if err != nil {
				return err
			}

			ctx := common.WithLogger(context.Background(), d.logger)
			if err := d.repo.Connect(ctx); err != nil {
				return fmt.Errorf("content API unreachable: %w", err)
			}
			defer d.repo.Disconnect()

			routes, err := selectRoutes(ctx, d.catalog, routeFlag)
			if err != nil {
				return err
			}
			depots, err := d.catalog.Depots(ctx)
			if err != nil {
				return fmt.Errorf("failed to list depots: %w", err)
			}

			spawners, err := buildSpawners(d, routes, depots, depotSpawning, seed)
			if err != nil {
				return err
			}

			coord := appspawning.NewCoordinator(spawners, appspawning.CoordinatorConfig{
				EnableFlags: d.cfg.Spawning.EnableFlags,
				Window:      time.Hour,
			}, nil)

			fmt.Printf("Seeding %s demand for %d route(s), %d spawner(s)\n\n",
				strings.ToLower(day), len(routes), len(coord.Enabled()))
			fmt.Printf("%-6s %10s %8s\n", "HOUR", "SPAWNED", "ERRORS")
			fmt.Println(strings.Repeat("-", 26))

			at := nextWeekday(time.Now().UTC(), wd)
			total, totalErrs := 0, 0
			for hour := 0; hour < 24; hour++ {
				t := time.Date(at.Year(), at.Month(), at.Day(), hour, 0, 0, 0, time.UTC)
				summary, err := coord.Start(ctx, t)
				if err != nil {
					return err
				}
				fmt.Printf("%02d:00  %10d %8d\n", hour, summary.Spawned, summary.Errors)
				total += summary.Spawned
				totalErrs += summary.Errors
				if verbose {
					for _, r := range summary.Results {
						if r.Err != nil {
							fmt.Printf("       %s: %v\n", r.Name, r.Err)
						}
					}
				}
			}

			fmt.Println(strings.Repeat("-", 26))
			fmt.Printf("TOTAL  %10d %8d\n\n", total, totalErrs)
			if totalErrs > 0 {
				fmt.Printf("⚠ Completed with %d cycle error(s)\n", totalErrs)
			} else {
				fmt.Println("✓ Seeding complete")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&day, "day", "monday", "Weekday to seed (monday..sunday)")
	cmd.Flags().StringVar(&routeFlag, "route", "all", "Route short name, or 'all'")
	cmd.Flags().BoolVar(&depotSpawning, "depot-spawning", false,
		"Also run depot spawners for the depots serving the selected routes")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 = time-based)")

	return cmd
}

// selectRoutes resolves --route: "all" loads the whole catalog, anything else
// is matched as a short name first, then as a route identifier.
func selectRoutes(ctx context.Context, catalog common.TransitCatalog, flag string) ([]*transit.Route, error) {
	if strings.EqualFold(flag, "all") {
		routes, err := catalog.Routes(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list routes: %w", err)
		}
		if len(routes) == 0 {
			return nil, fmt.Errorf("no routes found in the content API")
		}
		return routes, nil
	}

	route, err := catalog.RouteByShortName(ctx, flag)
	if err == nil {
		return []*transit.Route{route}, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve route %q: %w", flag, err)
	}
	routes, err := catalog.Routes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	for _, r := range routes {
		if r.ID == flag {
			return []*transit.Route{r}, nil
		}
	}
	return nil, fmt.Errorf("route %q not found", flag)
}

// buildSpawners wires a route spawner per route and, when requested, a depot
// spawner per depot serving at least one selected route. Each scope gets its
// own reservoir sharing one L1 cache.
func buildSpawners(d *deps, routes []*transit.Route, depots []*transit.Depot, depotSpawning bool, seed int64) ([]common.Spawner, error) {
	cache := reservoir.NewCache(d.cfg.Spawning.ReservoirCacheTTL, nil)
	key := d.cfg.Spawning.ConfigKey

	var spawners []common.Spawner
	for _, route := range routes {
		depot := depotForRoute(depots, route.ID)
		res := reservoir.NewRouteReservoir(d.repo, cache, route.ID)
		res.SetPassengerTTL(d.cfg.Spawning.PassengerTTL)
		spawners = append(spawners,
			appspawning.NewRouteSpawner(route, depot, key, d.configs, d.geo, d.catalog, res, seed))
	}

	if depotSpawning {
		selected := make(map[string]bool, len(routes))
		for _, r := range routes {
			selected[r.ID] = true
		}
		for _, depot := range depots {
			if !servesAny(depot, selected) {
				continue
			}
			res := reservoir.NewDepotReservoir(d.repo, cache, depot.ID)
			res.SetPassengerTTL(d.cfg.Spawning.PassengerTTL)
			spawners = append(spawners,
				appspawning.NewDepotSpawner(depot, key, d.configs, d.geo, d.catalog, res, seed))
		}
	}
	return spawners, nil
}

func depotForRoute(depots []*transit.Depot, routeID string) *transit.Depot {
	for _, depot := range depots {
		for _, id := range depot.RouteIDs {
			if id == routeID {
				return depot
			}
		}
	}
	return nil
}

func servesAny(depot *transit.Depot, selected map[string]bool) bool {
	for _, id := range depot.RouteIDs {
		if selected[id] {
			return true
		}
	}
	return false
}

// nextWeekday advances now to the next occurrence of wd, keeping today when
// it already matches. Only the weekday and hour feed the demand model.
func nextWeekday(now time.Time, wd time.Weekday) time.Time {
	for now.Weekday() != wd {
		now = now.Add(24 * time.Hour)
	}
	return now
}
