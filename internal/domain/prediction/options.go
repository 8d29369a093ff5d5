package prediction

import (
	"time"

	"github.com/okian/fixturecast/pkg/logger"
)

// Default engine configuration.
const (
	DefaultMaxFactors       = 5
	DefaultBatchConcurrency = 8
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithModel enables the model-served path.
func WithModel(m ModelClient) Option {
	return func(e *Engine) {
		e.model = m
	}
}

// WithMaxFactors caps the number of reported key factors.
func WithMaxFactors(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxFactors = n
		}
	}
}

// WithBatchConcurrency bounds concurrent feature retrieval in PredictBatch.
func WithBatchConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
