// Package config loads process configuration via viper: a config file
// (datahub.yaml, searched in /etc/datahub, $HOME/.datahub and the working
// directory), environment variables prefixed DATAHUB_, and documented
// defaults for everything.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the full set of process-level knobs for datahubd.
type Config struct {
	Port               int      `mapstructure:"port"`
	LogLevel           string   `mapstructure:"log_level"`  // debug | info | warn | error
	LogFormat          string   `mapstructure:"log_format"` // json | text
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	RequestTimeoutSec  int      `mapstructure:"request_timeout_sec"`
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec"`

	// DefaultObservationCapacity is the ring-buffer size given to an
	// observation that is configured without an explicit capacity.
	DefaultObservationCapacity int `mapstructure:"default_observation_capacity"`

	// MetricsAuthEnabled gates /metrics behind the same bearer check as the
	// rest of the API; off by default so local Prometheus scraping works
	// out of the box.
	MetricsAuthEnabled bool `mapstructure:"metrics_auth_enabled"`

	// StaticAPIToken, when non-empty, is required as a Bearer token on every
	// REST and WebSocket request. This stands in for the session identity
	// resolution the wire protocol leaves to the transport; empty disables
	// the check for local/desktop use.
	StaticAPIToken string `mapstructure:"static_api_token"`

	// TracingEndpoint, when non-empty, is the OTLP/HTTP collector address
	// traces are exported to; empty leaves tracing a no-op, matching
	// offline/desktop gateway deployments with no collector reachable.
	TracingEndpoint string `mapstructure:"tracing_endpoint"`
}

// Load reads configuration from built-in defaults, the config file and the
// environment, in that order of increasing precedence.
func Load() (*Config, error) {
	viper.SetConfigName("datahub")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/datahub/")
	viper.AddConfigPath("$HOME/.datahub")
	viper.AddConfigPath(".")

	viper.SetDefault("port", 8919)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("request_timeout_sec", 15)
	viper.SetDefault("shutdown_timeout_sec", 10)
	viper.SetDefault("default_observation_capacity", 64)
	viper.SetDefault("metrics_auth_enabled", false)
	viper.SetDefault("static_api_token", "")
	viper.SetDefault("tracing_endpoint", "")

	viper.SetEnvPrefix("DATAHUB")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
