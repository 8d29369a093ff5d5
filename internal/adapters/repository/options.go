package repository

import "github.com/okian/fixturecast/pkg/logger"

// Default store configuration.
const (
	DefaultEventCapacity = 10_000
	defaultMaxOpenConns  = 10
	defaultMaxIdleConns  = 5
)

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithEventCapacity bounds the number of retained ingestion events; the
// oldest are dropped first.
func WithEventCapacity(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.eventCapacity = n
		}
	}
}

// SQLOption applies a configuration option to the SQLStore.
type SQLOption func(*SQLStore)

// WithPool sets connection pool limits. SQLite always uses one connection.
func WithPool(maxOpen, maxIdle int) SQLOption {
	return func(s *SQLStore) {
		if maxOpen > 0 {
			s.maxOpen = maxOpen
		}
		if maxIdle > 0 {
			s.maxIdle = maxIdle
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) SQLOption {
	return func(s *SQLStore) {
		if l != nil {
			s.logger = l
		}
	}
}
