package config

import "time"

// SpawningConfig holds spawn coordinator configuration
type SpawningConfig struct {
	// Key of the spawn-config record to load from the content API
	ConfigKey string `mapstructure:"config_key" validate:"required"`

	// Enable flags per spawner kind: enable_routespawner, enable_depotspawner.
	// A missing flag means enabled.
	EnableFlags map[string]bool `mapstructure:"enable_flags"`

	// Continuous mode loops on the interval instead of one-shot cycles
	ContinuousMode bool `mapstructure:"continuous_mode"`

	// Interval between continuous cycles
	SpawnInterval time.Duration `mapstructure:"spawn_interval"`

	// Passenger TTL applied at materialization
	PassengerTTL time.Duration `mapstructure:"passenger_ttl"`

	// Reservoir L1 cache TTL; 0 disables the cache
	ReservoirCacheTTL time.Duration `mapstructure:"reservoir_cache_ttl"`

	// Bounded concurrency for manifest reverse geocoding
	GeocodeConcurrency int `mapstructure:"geocode_concurrency" validate:"min=1"`
}
