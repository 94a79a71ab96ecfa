package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mtransit/fleetsim/internal/application/common"
	"github.com/mtransit/fleetsim/internal/domain/shared"
	"github.com/mtransit/fleetsim/internal/domain/spawning"
)

const (
	spawnConfigsResource = "spawn-configs"
	defaultConfigTTL     = 5 * time.Minute
	configFetchTimeout   = 10 * time.Second
)

// ConfigLoader fetches spawn configs from the content API and caches
// immutable snapshots with a TTL. It is the single source of temporal
// multipliers for the spawn kernel.
type ConfigLoader struct {
	client *ContentClient
	ttl    time.Duration
	clock  shared.Clock

	mu    sync.RWMutex
	cache map[string]cachedConfig
}

type cachedConfig struct {
	snapshot  *spawning.SpawnConfig
	fetchedAt time.Time
}

var _ common.SpawnConfigSource = (*ConfigLoader)(nil)

// NewConfigLoader creates a loader with the given TTL. Zero ttl selects the
// 5 minute default; a nil clock selects the real clock.
func NewConfigLoader(client *ContentClient, ttl time.Duration, clock shared.Clock) *ConfigLoader {
	if ttl <= 0 {
		ttl = defaultConfigTTL
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &ConfigLoader{
		client: client,
		ttl:    ttl,
		clock:  clock,
		cache:  make(map[string]cachedConfig),
	}
}

// Get returns the cached snapshot for key while it is fresh, refetching past
// the TTL. Snapshots are immutable once published; callers must not mutate
// them.
func (l *ConfigLoader) Get(ctx context.Context, key string) (*spawning.SpawnConfig, error) {
	l.mu.RLock()
	entry, ok := l.cache[key]
	l.mu.RUnlock()
	if ok && l.clock.Now().Sub(entry.fetchedAt) < l.ttl {
		return entry.snapshot, nil
	}

	snapshot, err := l.fetch(ctx, key)
	if err != nil {
		// Serve a stale snapshot over failing the cycle when we have one.
		if ok {
			return entry.snapshot, nil
		}
		return nil, err
	}

	l.mu.Lock()
	l.cache[key] = cachedConfig{snapshot: snapshot, fetchedAt: l.clock.Now()}
	l.mu.Unlock()
	return snapshot, nil
}

// Clear invalidates one key, or the whole cache when key is empty.
func (l *ConfigLoader) Clear(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if key == "" {
		l.cache = make(map[string]cachedConfig)
		return
	}
	delete(l.cache, key)
}

// spawnConfigAttrs is the content API attribute shape of one spawn config.
// The store carries both the newer `spatial_base` name and the legacy
// `passengers_per_building_per_hour`; `spatial_base` wins when both are set.
type spawnConfigAttrs struct {
	Key                        string    `json:"key"`
	Version                    int       `json:"version"`
	SpatialBase                *float64  `json:"spatial_base"`
	PassengersPerBuildingHour  *float64  `json:"passengers_per_building_per_hour"`
	HourlyRates                []float64 `json:"hourly_rates"`
	DayMultipliers             []float64 `json:"day_multipliers"`
	SpawnRadiusMeters          float64   `json:"spawn_radius_meters"`
	DepotCatchmentRadiusMeters float64   `json:"depot_catchment_radius_meters"`
	MinSpawnIntervalSeconds    int       `json:"min_spawn_interval_seconds"`
	MaxSpawnsPerCycle          int       `json:"max_spawns_per_cycle"`
}

func (l *ConfigLoader) fetch(ctx context.Context, key string) (*spawning.SpawnConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, configFetchTimeout)
	defer cancel()

	q := ListQuery{
		Page:     1,
		PageSize: 1,
		Filters:  []Filter{{Field: "key", Op: "$eq", Value: key}},
		Sort:     "version:desc",
	}
	var out struct {
		Data []struct {
			ID         int              `json:"id"`
			Attributes spawnConfigAttrs `json:"attributes"`
		} `json:"data"`
	}
	if err := l.client.Get(ctx, spawnConfigsResource+"?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("failed to fetch spawn config %q: %w", key, err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("spawn config %q: %w", key, shared.ErrNotFound)
	}
	return toSpawnConfig(key, out.Data[0].Attributes), nil
}

func toSpawnConfig(key string, a spawnConfigAttrs) *spawning.SpawnConfig {
	base := 0.0
	if a.PassengersPerBuildingHour != nil {
		base = *a.PassengersPerBuildingHour
	}
	if a.SpatialBase != nil {
		base = *a.SpatialBase
	}
	cfg := &spawning.SpawnConfig{
		Key:                        key,
		Version:                    a.Version,
		SpatialBase:                base,
		SpawnRadiusMeters:          a.SpawnRadiusMeters,
		DepotCatchmentRadiusMeters: a.DepotCatchmentRadiusMeters,
		MinSpawnIntervalSeconds:    a.MinSpawnIntervalSeconds,
		MaxSpawnsPerCycle:          a.MaxSpawnsPerCycle,
	}
	if len(a.HourlyRates) > 0 {
		cfg.HourlyRates = make(map[int]float64, len(a.HourlyRates))
		for h, v := range a.HourlyRates {
			if h > 23 {
				break
			}
			cfg.HourlyRates[h] = v
		}
	}
	if len(a.DayMultipliers) > 0 {
		cfg.DayMultipliers = make(map[int]float64, len(a.DayMultipliers))
		for d, v := range a.DayMultipliers {
			if d > 6 {
				break
			}
			cfg.DayMultipliers[d] = v
		}
	}
	return cfg
}
