// Package config provides configuration management for the Stock Insights service.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "STOCK_INSIGHTS"

// DefaultConfigPath is used when no path is given
const DefaultConfigPath = "config/config.yaml"

// Load reads and parses the configuration from file and environment variables
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return unmarshal(v)
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing file is not an error; defaults and environment variables are used instead.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stock-insights")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("backend.base_url", "http://127.0.0.1:8000")
	v.SetDefault("backend.predictions_path", "/api/predictions/")
	v.SetDefault("backend.api_token", "")
	v.SetDefault("backend.timeout_seconds", 30)
	v.SetDefault("backend.max_retries", 3)
	v.SetDefault("backend.rate_limit", 5.0)
	v.SetDefault("backend.max_pages", 50)
	v.SetDefault("backend.circuit_breaker_max", 5)

	v.SetDefault("aggregation.top_n", 5)
	v.SetDefault("aggregation.feed_size", 5)
	v.SetDefault("aggregation.unit_value", "10")
	v.SetDefault("aggregation.low_stock_threshold", 10.0)
	v.SetDefault("aggregation.high_stock_threshold", 50.0)
	v.SetDefault("aggregation.metrics_scope", "latest")

	v.SetDefault("refresh.schedule", "@every 60s")
	v.SetDefault("refresh.timeout_seconds", 30)
	v.SetDefault("refresh.refresh_on_start", true)
	v.SetDefault("refresh.cache_ttl_seconds", 3600)
	v.SetDefault("refresh.cache_max_size", 16)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 0)
	v.SetDefault("server.read_timeout_seconds", 5)
	v.SetDefault("server.write_timeout_seconds", 10)
	v.SetDefault("server.history_limit", 20)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("features.persistence_enabled", false)
	v.SetDefault("features.stream_enabled", true)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}
