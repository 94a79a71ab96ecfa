package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtransit/fleetsim/internal/adapters/api"
	"github.com/mtransit/fleetsim/internal/domain/shared"
)

func newConfigServer(t *testing.T, fetches *int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/spawn-configs" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		atomic.AddInt64(fetches, 1)
		key := r.URL.Query().Get("filters[key][$eq]")
		if key == "missing" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{
				"id": 1,
				"attributes": map[string]interface{}{
					"key":                 key,
					"version":             3,
					"spatial_base":        0.05,
					"hourly_rates":        []float64{1, 1, 1, 1, 1, 1, 1, 1.8, 2.0, 1.5},
					"day_multipliers":     []float64{1.3, 1, 1, 1, 1, 1.1, 0.7},
					"spawn_radius_meters": 400,
				},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestLoader(t *testing.T, fetches *int64, ttl time.Duration) (*api.ConfigLoader, *shared.MockClock) {
	t.Helper()
	srv := newConfigServer(t, fetches)
	clock := shared.NewMockClock(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC))
	client := api.NewContentClientWithConfig(srv.URL, "tok", 5*time.Second, 1, time.Millisecond, clock)
	return api.NewConfigLoader(client, ttl, clock), clock
}

func TestConfigLoader_CachesWithinTTL(t *testing.T) {
	var fetches int64
	loader, _ := newTestLoader(t, &fetches, 5*time.Minute)
	ctx := context.Background()

	first, err := loader.Get(ctx, "tz")
	require.NoError(t, err)
	second, err := loader.Get(ctx, "tz")
	require.NoError(t, err)

	assert.Same(t, first, second, "a fresh snapshot must be served from cache")
	assert.EqualValues(t, 1, atomic.LoadInt64(&fetches))
}

func TestConfigLoader_RefetchesPastTTL(t *testing.T) {
	var fetches int64
	loader, clock := newTestLoader(t, &fetches, time.Minute)
	ctx := context.Background()

	_, err := loader.Get(ctx, "tz")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = loader.Get(ctx, "tz")
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt64(&fetches))
}

func TestConfigLoader_ClearInvalidates(t *testing.T) {
	var fetches int64
	loader, _ := newTestLoader(t, &fetches, time.Hour)
	ctx := context.Background()

	_, err := loader.Get(ctx, "tz")
	require.NoError(t, err)

	loader.Clear("tz")
	_, err = loader.Get(ctx, "tz")
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt64(&fetches))
}

func TestConfigLoader_ParsesSnapshot(t *testing.T) {
	var fetches int64
	loader, _ := newTestLoader(t, &fetches, time.Hour)

	cfg, err := loader.Get(context.Background(), "tz")

	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.SpatialBase)
	assert.Equal(t, 2.0, cfg.HourlyRate(8))
	assert.Equal(t, 1.0, cfg.HourlyRate(15), "hours past the table default to 1")
	assert.Equal(t, 1.3, cfg.DayMultiplier(0))
	assert.Equal(t, 0.7, cfg.DayMultiplier(6))
	assert.Equal(t, 400.0, cfg.SpawnRadius())
	assert.Equal(t, 3, cfg.Version)
}

func TestConfigLoader_MissingKey(t *testing.T) {
	var fetches int64
	loader, _ := newTestLoader(t, &fetches, time.Hour)

	_, err := loader.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, shared.ErrNotFound)
}
