// Package config provides configuration management for the Stock Insights service.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/stock-insights/internal/aggregator"
)

// Config represents the complete application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Backend     BackendConfig     `mapstructure:"backend" validate:"required"`
	Aggregation AggregationConfig `mapstructure:"aggregation" validate:"required"`
	Refresh     RefreshConfig     `mapstructure:"refresh" validate:"required"`
	Server      ServerConfig      `mapstructure:"server" validate:"required"`
	Metrics     MetricsConfig     `mapstructure:"metrics" validate:"required"`
	Features    FeaturesConfig    `mapstructure:"features"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration. It is only required when
// snapshot persistence is enabled.
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"gte=0"`
}

// BackendConfig describes the REST backend that owns prediction events
type BackendConfig struct {
	BaseURL           string  `mapstructure:"base_url" validate:"required,url"`
	PredictionsPath   string  `mapstructure:"predictions_path" validate:"required,startswith=/"`
	APIToken          string  `mapstructure:"api_token"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	MaxRetries        int     `mapstructure:"max_retries" validate:"gte=0"`
	RateLimit         float64 `mapstructure:"rate_limit" validate:"required,gt=0"`
	MaxPages          int     `mapstructure:"max_pages" validate:"required,gt=0"`
	CircuitBreakerMax int     `mapstructure:"circuit_breaker_max" validate:"required,gt=0"`
}

// AggregationConfig tunes the derived dashboard views
type AggregationConfig struct {
	TopN               int     `mapstructure:"top_n" validate:"gte=0"`
	FeedSize           int     `mapstructure:"feed_size" validate:"gte=0"`
	UnitValue          string  `mapstructure:"unit_value" validate:"required,money"`
	LowStockThreshold  float64 `mapstructure:"low_stock_threshold" validate:"gte=0"`
	HighStockThreshold float64 `mapstructure:"high_stock_threshold" validate:"gtfield=LowStockThreshold"`
	MetricsScope       string  `mapstructure:"metrics_scope" validate:"required,metricsscope"`
}

// RefreshConfig controls how often predictions are pulled and how results are memoized
type RefreshConfig struct {
	Schedule        string `mapstructure:"schedule" validate:"required,schedule"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	RefreshOnStart  bool   `mapstructure:"refresh_on_start"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds" validate:"required,gt=0"`
	CacheMaxSize    int    `mapstructure:"cache_max_size" validate:"required,gt=0"`
}

// ServerConfig represents the HTTP and gRPC listeners
type ServerConfig struct {
	Port                int `mapstructure:"port" validate:"required,min=1,max=65535"`
	GRPCPort            int `mapstructure:"grpc_port" validate:"gte=0,lte=65535"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds" validate:"required,gt=0"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds" validate:"required,gt=0"`
	HistoryLimit        int `mapstructure:"history_limit" validate:"required,gt=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required,startswith=/"`
}

// FeaturesConfig represents feature flags
type FeaturesConfig struct {
	PersistenceEnabled bool `mapstructure:"persistence_enabled"`
	StreamEnabled      bool `mapstructure:"stream_enabled"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// PredictionsURL returns the absolute URL of the first predictions page
func (c *BackendConfig) PredictionsURL() string {
	return trimTrailingSlash(c.BaseURL) + c.PredictionsPath
}

// Timeout returns the per-request timeout
func (c *BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns the memoization TTL
func (c *RefreshConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Timeout returns the per-run refresh timeout
func (c *RefreshConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ToOptions converts the aggregation section into aggregator options
func (c *AggregationConfig) ToOptions() (aggregator.Options, error) {
	unitValue, err := decimal.NewFromString(c.UnitValue)
	if err != nil {
		return aggregator.Options{}, fmt.Errorf("invalid unit_value %q: %w", c.UnitValue, err)
	}

	return aggregator.Options{
		TopN:               c.TopN,
		FeedSize:           c.FeedSize,
		UnitValue:          unitValue,
		LowStockThreshold:  c.LowStockThreshold,
		HighStockThreshold: c.HighStockThreshold,
		MetricsScope:       aggregator.MetricsScope(c.MetricsScope),
	}, nil
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
