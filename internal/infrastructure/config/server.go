package config

import "time"

// ServerConfig holds the unified HTTP facade configuration
type ServerConfig struct {
	// Listen address (host:port)
	Address string `mapstructure:"address" validate:"required"`

	// Bearer token required on mutating endpoints; mandatory in production
	AuthToken string `mapstructure:"auth_token"`

	// Allowed CORS origins; "*" allows any
	CORSOrigins []string `mapstructure:"cors_origins"`

	// Base URL advertised for the manifest surface
	ManifestURL string `mapstructure:"manifest_url"`

	// Telemetry entries older than this are pruned by the janitor
	StaleAfterSeconds int `mapstructure:"stale_after_seconds" validate:"min=1"`

	// Janitor tick interval
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`

	// PID file location
	PIDFile string `mapstructure:"pid_file"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required"`
}
