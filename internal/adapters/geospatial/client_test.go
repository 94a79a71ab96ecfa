package geospatial_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtransit/fleetsim/internal/adapters/geospatial"
	"github.com/mtransit/fleetsim/internal/domain/geo"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

func TestClient_RouteGeometry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/spatial/route-geometry/route-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"route_id":    "route-1",
			"coordinates": [][]float64{{39.25, -6.80}, {39.26, -6.81}},
			"length_m":    1834.2,
			"latency_ms":  4.1,
		})
	}))
	defer srv.Close()

	client := geospatial.NewClient(srv.URL)
	g, err := client.RouteGeometry(context.Background(), "route-1")

	require.NoError(t, err)
	assert.Equal(t, "route-1", g.RouteID)
	require.Len(t, g.Coordinates, 2)
	assert.Equal(t, geo.Point{Lat: -6.80, Lon: 39.25}, g.Coordinates[0])
	assert.Equal(t, 1834.2, g.LengthM)
}

func TestClient_RouteGeometryEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"route_id":    "route-x",
			"coordinates": [][]float64{},
		})
	}))
	defer srv.Close()

	_, err := geospatial.NewClient(srv.URL).RouteGeometry(context.Background(), "route-x")

	assert.ErrorIs(t, err, shared.ErrNoGeometry)
}

func TestClient_NearbyBuildings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/spatial/nearby-buildings", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "-6.8", q.Get("lat"))
		assert.Equal(t, "39.25", q.Get("lon"))
		assert.Equal(t, "500", q.Get("radius_meters"))
		assert.Equal(t, "200", q.Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"buildings": []map[string]interface{}{
				{"id": "b1", "lat": -6.801, "lon": 39.251, "distance_m": 120.5},
				{"id": "b2", "lat": -6.802, "lon": 39.252, "distance_m": 340.0},
			},
			"count":      2,
			"latency_ms": 8.3,
		})
	}))
	defer srv.Close()

	refs, err := geospatial.NewClient(srv.URL).NearbyBuildings(
		context.Background(), geo.Point{Lat: -6.80, Lon: 39.25}, 500, 200)

	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "b1", refs[0].ID)
	assert.Equal(t, 120.5, refs[0].DistanceM)
}

func TestClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := geospatial.NewClient(srv.URL).RouteGeometry(context.Background(), "missing")

	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestClient_ReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/geocode/reverse", r.URL.Path)
		var body map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, -6.80, body["latitude"])
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"highway":           "Morogoro Rd",
			"poi":               "Ubungo Terminal",
			"parish":            "Ubungo",
			"formatted_address": "Morogoro Rd, Ubungo",
			"latency_ms":        3.0,
		})
	}))
	defer srv.Close()

	addr, err := geospatial.NewClient(srv.URL).ReverseGeocode(context.Background(), geo.Point{Lat: -6.80, Lon: 39.25})

	require.NoError(t, err)
	assert.Equal(t, "Morogoro Rd", addr.Highway)
	assert.Equal(t, "Morogoro Rd, Ubungo", addr.Formatted)
}

func TestNoop_EmptyResults(t *testing.T) {
	n := geospatial.NewNoop()
	ctx := context.Background()

	refs, err := n.NearbyBuildings(ctx, geo.Point{}, 500, 10)
	require.NoError(t, err)
	assert.Empty(t, refs)

	refs, err = n.DepotCatchment(ctx, geo.Point{}, 1000, 10)
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = n.RouteGeometry(ctx, "route-1")
	assert.ErrorIs(t, err, shared.ErrNoGeometry)
}
