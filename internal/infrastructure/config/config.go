package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the main configuration struct combining all sub-configs
type Config struct {
	Environment string           `mapstructure:"environment" validate:"required,oneof=development production test"`
	Content     ContentConfig    `mapstructure:"content"`
	Geospatial  GeospatialConfig `mapstructure:"geospatial"`
	Server      ServerConfig     `mapstructure:"server"`
	Spawning    SpawningConfig   `mapstructure:"spawning"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	Logging     LoggingConfig    `mapstructure:"logging"`
}

// LoadConfig loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Config file (config.yaml)
// 3. Defaults (lowest priority)
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	v := viper.New()

	// Set config file details
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/fleetsim")
	}

	// Enable environment variable reading
	v.SetEnvPrefix("FLEETSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - don't error if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we'll use env vars and defaults
	}

	// Legacy unprefixed environment variables take precedence over the file,
	// matching how existing deployments are provisioned.
	applyLegacyEnv(v)

	// Create config struct and unmarshal
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	SetDefaults(&cfg)

	// Validate configuration
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Environment == "production" && cfg.Server.AuthToken == "" {
		return nil, fmt.Errorf("AUTH_TOKEN is required in production")
	}

	return &cfg, nil
}

// applyLegacyEnv maps the unprefixed environment variables the deployments
// already use onto viper keys.
func applyLegacyEnv(v *viper.Viper) {
	setIfPresent := func(key, env string) {
		if val := os.Getenv(env); val != "" {
			v.Set(key, val)
		}
	}

	setIfPresent("content.base_url", "STRAPI_URL")
	setIfPresent("content.token", "STRAPI_TOKEN")
	setIfPresent("geospatial.url", "GEO_URL")
	setIfPresent("geospatial.url", "GEOSPATIAL_URL")
	setIfPresent("server.manifest_url", "MANIFEST_URL")
	setIfPresent("server.auth_token", "AUTH_TOKEN")
	setIfPresent("environment", "FLEETSIM_ENV")

	if val := os.Getenv("CORS_ORIGINS"); val != "" {
		v.Set("server.cors_origins", strings.Split(val, ","))
	}
	if val := os.Getenv("STALE_AFTER_SEC"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			v.Set("server.stale_after_seconds", n)
		}
	}
	if val := os.Getenv("GEOCODE_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			v.Set("spawning.geocode_concurrency", n)
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		v.Set("database.url", dbURL)
	}
}

// LoadConfigOrDefault loads configuration or returns a default config on error
func LoadConfigOrDefault(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		// Return default configuration
		defaultCfg := &Config{}
		SetDefaults(defaultCfg)
		return defaultCfg
	}
	return cfg
}

// MustLoadConfig loads configuration and panics on error (for use in main.go)
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
