package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtransit/fleetsim/internal/domain/passenger"
	"github.com/mtransit/fleetsim/internal/domain/transit"
)

func TestBuildPassengerFilterParsesBounds(t *testing.T) {
	f, err := buildPassengerFilter("route-1", "", "waiting",
		"2026-08-24T06:00:00Z", "2026-08-24T10:00:00Z", 50, "spawn_time:asc")

	require.NoError(t, err)
	assert.Equal(t, "route-1", f.RouteID)
	assert.Equal(t, passenger.StatusWaiting, f.Status)
	assert.Equal(t, time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC), f.Start)
	assert.Equal(t, 50, f.Limit)
}

func TestBuildPassengerFilterRejectsUnknownStatus(t *testing.T) {
	_, err := buildPassengerFilter("", "", "TELEPORTED", "", "", 10, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestBuildPassengerFilterRejectsBadTimestamp(t *testing.T) {
	_, err := buildPassengerFilter("", "", "", "yesterday", "", 10, "")

	require.Error(t, err)
}

func TestNextWeekdayKeepsMatchingDay(t *testing.T) {
	// 2026-08-24 is a Monday.
	monday := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, monday, nextWeekday(monday, time.Monday))
	assert.Equal(t, monday.Add(4*24*time.Hour), nextWeekday(monday, time.Friday))
}

func TestDepotForRoute(t *testing.T) {
	depots := []*transit.Depot{
		{ID: "depot-1", RouteIDs: []string{"route-9"}},
		{ID: "depot-2", RouteIDs: []string{"route-1", "route-2"}},
	}

	match := depotForRoute(depots, "route-2")
	require.NotNil(t, match)
	assert.Equal(t, "depot-2", match.ID)

	assert.Nil(t, depotForRoute(depots, "route-404"))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(not set)", maskSecret(""))
	assert.Equal(t, "****", maskSecret("abc"))
	assert.Equal(t, "supe****", maskSecret("supersecrettoken"))
}
