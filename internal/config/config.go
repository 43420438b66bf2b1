// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Flat koanf keys; the same names work in YAML and as FOLLICLE_* env vars.
// - New() returns defaults; Load(ctx) layers file and env on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory assessment job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of assessment workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps remembered idempotency keys.
	DedupeSize int `koanf:"dedupe_size"`

	// StoreDriver is one of memory, sqlite, postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the sqlite path or postgres connection string.
	StoreDSN string `koanf:"store_dsn"`

	// SignalEndpoint is the base URL of the external predictor. Empty disables it.
	SignalEndpoint string `koanf:"signal_endpoint"`

	// SignalTimeoutMS bounds one predictor call.
	SignalTimeoutMS int `koanf:"signal_timeout_ms"`

	// JWTSecret enables HS256 bearer auth when set.
	JWTSecret string `koanf:"jwt_secret"`

	// CORSOrigin is sent as Access-Control-Allow-Origin.
	CORSOrigin string `koanf:"cors_origin"`

	// RateLimitRPS and RateLimitBurst shape the assessment POST limiter.
	// A non-positive RPS disables limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// MaxHistoryLimit caps GET /profiles/{id}/reports?limit.
	MaxHistoryLimit int `koanf:"max_history_limit"`

	// ShutdownTimeoutMS bounds graceful shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`

	// MetricsNamespace and MetricsSubsystem prefix every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsLabels are constant labels on every metric, as "k=v,k2=v2".
	MetricsLabels string `koanf:"metrics_labels"`

	// MetricsBuckets overrides latency histogram buckets, as "1,5,10".
	MetricsBuckets string `koanf:"metrics_buckets"`

	// MetricsRefreshMS is the runtime sampling interval.
	MetricsRefreshMS int `koanf:"metrics_refresh_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         10_000,
		WorkerCount:       runtime.NumCPU() * 2,
		DedupeSize:        100_000,
		StoreDriver:       StoreMemory,
		SignalTimeoutMS:   5_000,
		CORSOrigin:        "*",
		RateLimitRPS:      20,
		RateLimitBurst:    40,
		MaxHistoryLimit:   50,
		ShutdownTimeoutMS: 30_000,
		MetricsNamespace:  "follicle",
		MetricsSubsystem:  "assessment",
		MetricsRefreshMS:  10_000,
	}
}

// SignalTimeout returns SignalTimeoutMS as a duration.
func (c *Config) SignalTimeout() time.Duration {
	return time.Duration(c.SignalTimeoutMS) * time.Millisecond
}

// ShutdownTimeout returns ShutdownTimeoutMS as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// MetricsRefresh returns MetricsRefreshMS as a duration.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshMS) * time.Millisecond
}

// MetricsLabelMap parses MetricsLabels. Empty input yields nil.
func (c *Config) MetricsLabelMap() (map[string]string, error) {
	if strings.TrimSpace(c.MetricsLabels) == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(c.MetricsLabels, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: metrics_labels entry %q is not k=v", ErrInvalidConfig, pair)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

// MetricsBucketList parses MetricsBuckets. Empty input yields nil.
func (c *Config) MetricsBucketList() ([]float64, error) {
	if strings.TrimSpace(c.MetricsBuckets) == "" {
		return nil, nil
	}
	parts := strings.Split(c.MetricsBuckets, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: metrics_buckets: %w", ErrInvalidConfig, err)
		}
		if len(out) > 0 && f <= out[len(out)-1] {
			return nil, fmt.Errorf("%w: metrics_buckets must be increasing", ErrInvalidConfig)
		}
		out = append(out, f)
	}
	return out, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn is required for %s", ErrInvalidConfig, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	}
	if c.SignalTimeoutMS <= 0 {
		return fmt.Errorf("%w: signal_timeout_ms must be positive", ErrInvalidConfig)
	}
	if _, err := c.MetricsLabelMap(); err != nil {
		return err
	}
	if _, err := c.MetricsBucketList(); err != nil {
		return err
	}
	return nil
}
