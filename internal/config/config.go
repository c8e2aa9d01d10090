// Package config loads the runtime configuration from a yaml file,
// environment variables, and defaults, in that order of precedence
// (highest last).
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	// APIURL is the base URL of the platform REST API.
	APIURL string `mapstructure:"api_url"`

	// GatewayURL is the websocket event stream endpoint.
	GatewayURL string `mapstructure:"gateway_url"`

	// Token authenticates both the REST client and the gateway
	// subscription.
	Token string `mapstructure:"token"`

	// SelfID is the engine's own account id; its reactions are ignored.
	SelfID string `mapstructure:"self_id"`

	// Database is the path of the sqlite configuration snapshot.
	Database string `mapstructure:"database"`

	// MaxProcessedPerSecond caps worker throughput. 0 disables
	// throttling.
	MaxProcessedPerSecond int `mapstructure:"max_processed_per_second"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

// Load reads the configuration from path (optional; defaults searched
// in . and ./config as reactsync.yaml) with REACTSYNC_* environment
// overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("reactsync")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("REACTSYNC")
	v.AutomaticEnv()

	v.SetDefault("api_url", "https://chat.example.com/api")
	v.SetDefault("gateway_url", "wss://chat.example.com/gateway")
	v.SetDefault("database", "reactsync.db")
	v.SetDefault("max_processed_per_second", 5)
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when no explicit path was given;
		// defaults plus env cover it.
		if path != "" {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MaxProcessedPerSecond < 0 {
		return fmt.Errorf("max_processed_per_second must be >= 0, got %d", c.MaxProcessedPerSecond)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
