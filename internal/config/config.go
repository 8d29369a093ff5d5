// Package config defines service configuration and its layered loading.
//
// Keys are flat snake_case so every field maps 1:1 onto a FIXTURECAST_ env var.
package config

import (
	"runtime"
	"strings"
	"time"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// CORSOrigins is a comma-separated allow list; "*" allows any origin.
	CORSOrigins string `koanf:"cors_origins"`

	// Production disables synthetic fallback data.
	Production bool `koanf:"production"`

	// Upstream data API.
	APIKey          string `koanf:"api_key"`
	APIBaseURL      string `koanf:"api_base_url"`
	APITimeoutMS    int    `koanf:"api_timeout_ms"`
	HealthTimeoutMS int    `koanf:"health_timeout_ms"`

	// Circuit breaker.
	BreakerMaxFailures    int `koanf:"breaker_max_failures"`
	BreakerOpenTimeoutMS  int `koanf:"breaker_open_timeout_ms"`
	BreakerHalfOpenProbes int `koanf:"breaker_half_open_probes"`

	// Retry policy shared by the upstream and model clients.
	RetryMax        int `koanf:"retry_max"`
	RetryBaseMS     int `koanf:"retry_base_ms"`
	RetryMaxDelayMS int `koanf:"retry_max_delay_ms"`
	RetryJitterMS   int `koanf:"retry_jitter_ms"`

	// In-process response cache.
	CacheMaxEntries       int `koanf:"cache_max_entries"`
	CacheStaleRetentionMS int `koanf:"cache_stale_retention_ms"`
	CacheSweepIntervalMS  int `koanf:"cache_sweep_interval_ms"`

	// Optional Redis second cache layer; empty address disables it.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisTLS      bool   `koanf:"redis_tls"`
	RedisPrefix   string `koanf:"redis_prefix"`

	// Model service; empty URL means rule-based predictions only.
	ModelURL             string `koanf:"model_url"`
	ModelTimeoutMS       int    `koanf:"model_timeout_ms"`
	ModelHealthTimeoutMS int    `koanf:"model_health_timeout_ms"`

	// Prediction engine.
	MaxKeyFactors    int `koanf:"max_key_factors"`
	BatchConcurrency int `koanf:"batch_concurrency"`
	MaxBatchSize     int `koanf:"max_batch_size"`

	// Storage.
	DBDriver string `koanf:"db_driver"`
	DBDSN    string `koanf:"db_dsn"`

	// AMQP fan-out of terminal ingestion events; empty URL disables it.
	AMQPURL      string `koanf:"amqp_url"`
	AMQPExchange string `koanf:"amqp_exchange"`

	// Sync job queue and workers.
	QueueSize    int `koanf:"queue_size"`
	WorkerCount  int `koanf:"worker_count"`
	JobTimeoutMS int `koanf:"job_timeout_ms"`

	// SummaryLimit is the default number of events in GET /ingestion/summary.
	SummaryLimit int `koanf:"summary_limit"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		CORSOrigins:           "*",
		APIBaseURL:            "https://v3.football.api-sports.io",
		APITimeoutMS:          10_000,
		HealthTimeoutMS:       2_000,
		BreakerMaxFailures:    5,
		BreakerOpenTimeoutMS:  60_000,
		BreakerHalfOpenProbes: 1,
		RetryMax:              3,
		RetryBaseMS:           500,
		RetryMaxDelayMS:       10_000,
		RetryJitterMS:         250,
		CacheMaxEntries:       1_000,
		CacheSweepIntervalMS:  300_000,
		ModelTimeoutMS:        10_000,
		ModelHealthTimeoutMS:  2_000,
		MaxKeyFactors:         5,
		BatchConcurrency:      8,
		MaxBatchSize:          100,
		DBDriver:              DriverMemory,
		AMQPExchange:          "fixturecast.ingestion",
		QueueSize:             1_024,
		WorkerCount:           runtime.NumCPU(),
		JobTimeoutMS:          120_000,
		SummaryLimit:          50,
	}
}

// Ms converts a millisecond setting to a duration.
func Ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// Origins splits CORSOrigins.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
