package httpapi_test

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtransit/fleetsim/internal/adapters/httpapi"
	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/passenger"
	"github.com/mtransit/fleetsim/internal/domain/shared"
	"github.com/mtransit/fleetsim/internal/domain/spawning"
	"github.com/mtransit/fleetsim/internal/domain/transit"
)

func refs(n int) []common.BuildingRef {
	out := make([]common.BuildingRef, n)
	for i := range out {
		out[i] = common.BuildingRef{
			ID:       "b",
			Location: geo.Point{Lat: -6.80 + float64(i)*0.0001, Lon: 39.25},
		}
	}
	return out
}

func newSpawnServer() *httpapi.Server {
	line := geo.Polyline{
		{Lat: -6.800, Lon: 39.250},
		{Lat: -6.801, Lon: 39.251},
		{Lat: -6.802, Lon: 39.252},
		{Lat: -6.803, Lon: 39.253},
	}
	catalog := &fakeCatalog{
		routes: []*transit.Route{{ID: "route-1", ShortName: "R1", Geometry: line}},
	}
	configs := &fakeConfigs{cfg: &spawning.SpawnConfig{
		Key:               "default",
		SpatialBase:       2.0,
		HourlyRates:       map[int]float64{8: 2.0},
		DayMultipliers:    map[int]float64{0: 1.3},
		MaxSpawnsPerCycle: 50,
	}}
	geoSvc := &stubGeoSvc{buildings: refs(50)}
	clock := shared.NewMockClock(time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC))
	return httpapi.NewServer(httpapi.Options{ConfigKey: "default"},
		&fakeSpatial{}, nil, geoSvc, catalog, configs, nil, clock)
}

func TestSpawnStreamEmitsNDJSON(t *testing.T) {
	s := newSpawnServer()

	rec := do(t, s, httptest.NewRequest(http.MethodGet,
		"/spawn/route/R1?time=08:00:00&day=Monday&window=60", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var lines int
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var req passenger.SpawnRequest
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &req))
		assert.Equal(t, "route-1", req.RouteID)
		assert.NotEmpty(t, req.PassengerID)
		assert.Equal(t, time.Monday, req.SpawnTime.Weekday())
		assert.Equal(t, 8, req.SpawnTime.UTC().Hour())
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Greater(t, lines, 0, "the configured rates make an empty stream implausible")
	assert.LessOrEqual(t, lines, 50, "capped by max_spawns_per_cycle")
}

func TestSpawnStreamResolvesRouteByID(t *testing.T) {
	s := newSpawnServer()

	rec := do(t, s, httptest.NewRequest(http.MethodGet,
		"/spawn/route/route-1?time=08:00:00&day=Monday", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSpawnStreamUnknownRouteIs404(t *testing.T) {
	s := newSpawnServer()

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/spawn/route/ghost", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSpawnStreamRejectsBadInputs(t *testing.T) {
	s := newSpawnServer()

	badDay := do(t, s, httptest.NewRequest(http.MethodGet, "/spawn/route/R1?day=someday", nil))
	assert.Equal(t, http.StatusBadRequest, badDay.Code)

	badTime := do(t, s, httptest.NewRequest(http.MethodGet, "/spawn/route/R1?time=8am", nil))
	assert.Equal(t, http.StatusBadRequest, badTime.Code)

	badWindow := do(t, s, httptest.NewRequest(http.MethodGet, "/spawn/route/R1?window=-5", nil))
	assert.Equal(t, http.StatusBadRequest, badWindow.Code)
}
