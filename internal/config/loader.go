package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Env names.
const (
	EnvPrefix = "FIXTURECAST_"
	EnvFile   = "FIXTURECAST_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FIXTURECAST_CONFIG is set
//  3. env (prefix FIXTURECAST_)
func Load(_ context.Context) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path := os.Getenv(EnvFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// FIXTURECAST_QUEUE_SIZE -> queue_size
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	// the file path itself is not a setting
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	case c.DBDriver != DriverMemory && c.DBDriver != DriverPostgres && c.DBDriver != DriverSQLite:
		return fmt.Errorf("%w: unknown db_driver %q", ErrInvalidConfig, c.DBDriver)
	case c.DBDriver != DriverMemory && c.DBDSN == "":
		return fmt.Errorf("%w: db_dsn is required for %s", ErrInvalidConfig, c.DBDriver)
	case c.BreakerMaxFailures < 1 || c.BreakerHalfOpenProbes < 1:
		return fmt.Errorf("%w: breaker thresholds must be positive", ErrInvalidConfig)
	case c.RetryMax < 0:
		return fmt.Errorf("%w: retry_max must not be negative", ErrInvalidConfig)
	case c.HealthTimeoutMS >= c.APITimeoutMS:
		return fmt.Errorf("%w: health_timeout_ms must be below api_timeout_ms", ErrInvalidConfig)
	case c.ModelHealthTimeoutMS >= c.ModelTimeoutMS:
		return fmt.Errorf("%w: model_health_timeout_ms must be below model_timeout_ms", ErrInvalidConfig)
	case c.QueueSize < 1 || c.MaxBatchSize < 1:
		return fmt.Errorf("%w: queue_size and max_batch_size must be positive", ErrInvalidConfig)
	}
	return nil
}
