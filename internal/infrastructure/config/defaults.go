package config

import "time"

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// Content API defaults
	if cfg.Content.BaseURL == "" {
		cfg.Content.BaseURL = "http://localhost:1337"
	}
	if cfg.Content.Timeout == 0 {
		cfg.Content.Timeout = 10 * time.Second
	}
	if cfg.Content.RateLimit.Requests == 0 {
		cfg.Content.RateLimit.Requests = 10
	}
	if cfg.Content.RateLimit.Burst == 0 {
		cfg.Content.RateLimit.Burst = 20
	}
	if cfg.Content.Retry.MaxAttempts == 0 {
		cfg.Content.Retry.MaxAttempts = 3
	}
	if cfg.Content.Retry.BackoffBase == 0 {
		cfg.Content.Retry.BackoffBase = 1 * time.Second
	}
	if cfg.Content.ConfigTTL == 0 {
		cfg.Content.ConfigTTL = 5 * time.Minute
	}

	// Geospatial defaults
	if cfg.Geospatial.HighwayRadiusMeters == 0 {
		cfg.Geospatial.HighwayRadiusMeters = 100
	}
	if cfg.Geospatial.POIRadiusMeters == 0 {
		cfg.Geospatial.POIRadiusMeters = 250
	}

	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8090"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.StaleAfterSeconds == 0 {
		cfg.Server.StaleAfterSeconds = 120
	}
	if cfg.Server.JanitorInterval == 0 {
		cfg.Server.JanitorInterval = 30 * time.Second
	}
	if cfg.Server.PIDFile == "" {
		cfg.Server.PIDFile = "/tmp/fleetsim-daemon.pid"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	// Spawning defaults
	if cfg.Spawning.ConfigKey == "" {
		cfg.Spawning.ConfigKey = "default"
	}
	if cfg.Spawning.SpawnInterval == 0 {
		cfg.Spawning.SpawnInterval = 60 * time.Second
	}
	if cfg.Spawning.PassengerTTL == 0 {
		cfg.Spawning.PassengerTTL = 30 * time.Minute
	}
	if cfg.Spawning.GeocodeConcurrency == 0 {
		cfg.Spawning.GeocodeConcurrency = 5
	}

	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "fleetsim"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "fleetsim"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "fleetsim.db"
	}
	if cfg.Database.Pool.MaxOpen == 0 {
		cfg.Database.Pool.MaxOpen = 25
	}
	if cfg.Database.Pool.MaxIdle == 0 {
		cfg.Database.Pool.MaxIdle = 5
	}
	if cfg.Database.Pool.MaxLifetime == 0 {
		cfg.Database.Pool.MaxLifetime = 5 * time.Minute
	}

	// Metrics defaults
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}
