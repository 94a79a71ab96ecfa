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
	"github.com/mtransit/fleetsim/internal/domain/passenger"
)

// NewPassengersCommand creates the passengers command
func NewPassengersCommand() *cobra.Command {
	var (
		routeID  string
		depotID  string
		status   string
		start    string
		end      string
		limit    int
		sortFlag string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "passengers",
		Short: "List passengers from the content store",
		Long: `List passengers matching the given filters.

Time bounds apply to the spawn time and accept RFC3339 timestamps.
The default listing shows WAITING passengers, newest first.

Examples:
  fleetsim passengers --route route-1 --limit 50
  fleetsim passengers --status BOARDED --depot depot-3
  fleetsim passengers --start 2026-08-24T06:00:00Z --end 2026-08-24T10:00:00Z
  fleetsim passengers --route route-1 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := buildPassengerFilter(routeID, depotID, status, start, end, limit, sortFlag)
			if err != nil {
				return err
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

			rows, err := d.repo.QueryWaiting(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to query passengers: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			printPassengerTable(rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&routeID, "route", "", "Filter by route identifier")
	cmd.Flags().StringVar(&depotID, "depot", "", "Filter by depot identifier")
	cmd.Flags().StringVar(&status, "status", "WAITING",
		"Filter by status (WAITING, BOARDED, ALIGHTED, EXPIRED, CANCELLED)")
	cmd.Flags().StringVar(&start, "start", "", "Spawn time lower bound (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "Spawn time upper bound (RFC3339)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum rows to return")
	cmd.Flags().StringVar(&sortFlag, "sort", "spawn_time:desc",
		"Sort order, e.g. spawn_time:asc")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")

	return cmd
}

func buildPassengerFilter(routeID, depotID, status, start, end string, limit int, sort string) (common.PassengerFilter, error) {
	f := common.PassengerFilter{
		RouteID: routeID,
		DepotID: depotID,
		Limit:   limit,
		Sort:    sort,
	}

	if status != "" {
		st := passenger.Status(strings.ToUpper(status))
		if !st.IsValid() {
			return f, fmt.Errorf("invalid status %q", status)
		}
		f.Status = st
	}
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return f, fmt.Errorf("invalid --start: %w", err)
		}
		f.Start = t
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return f, fmt.Errorf("invalid --end: %w", err)
		}
		f.End = t
	}
	return f, nil
}

func printPassengerTable(rows []*passenger.Passenger) {
	if len(rows) == 0 {
		fmt.Println("No passengers found.")
		return
	}

	fmt.Printf("%-18s %-12s %-10s %-20s %-22s %s\n",
		"PASSENGER", "ROUTE", "STATUS", "SPAWN TIME", "SPAWN POINT", "DESTINATION")
	fmt.Println(strings.Repeat("-", 104))
	for _, p := range rows {
		fmt.Printf("%-18s %-12s %-10s %-20s %9.5f,%9.5f  %9.5f,%9.5f\n",
			p.PassengerID,
			p.RouteID,
			p.Status,
			p.SpawnTime.UTC().Format("2006-01-02 15:04:05"),
			p.Spawn.Lat, p.Spawn.Lon,
			p.Destination.Lat, p.Destination.Lon)
	}
	fmt.Printf("\n%d passenger(s)\n", len(rows))
}
