package config

import "time"

// ContentConfig holds the content API (passenger store) client configuration
type ContentConfig struct {
	// Base URL of the content API, without the /api suffix
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// Bearer token for authenticated requests
	Token string `mapstructure:"token"`

	// Request timeout
	Timeout time.Duration `mapstructure:"timeout" validate:"required"`

	// Rate limiting settings
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Retry configuration
	Retry RetryConfig `mapstructure:"retry"`

	// Spawn-config cache TTL
	ConfigTTL time.Duration `mapstructure:"config_ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Maximum requests per second
	Requests int `mapstructure:"requests" validate:"min=1"`

	// Burst size for token bucket
	Burst int `mapstructure:"burst" validate:"min=1"`
}

// RetryConfig holds retry configuration for failed requests
type RetryConfig struct {
	// Maximum number of retry attempts
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=0"`

	// Base duration for exponential backoff
	BackoffBase time.Duration `mapstructure:"backoff_base"`
}
