package service

import (
	"io"
	"runtime"
	"time"

	"github.com/okian/fixturecast/internal/adapters/modelsvc"
	"github.com/okian/fixturecast/internal/adapters/repository"
	"github.com/okian/fixturecast/internal/domain/ingestion"
	"github.com/okian/fixturecast/pkg/logger"
)

// Defaults applied when no option overrides them.
const (
	DefaultQueueSize  = 1024
	DefaultJobTimeout = 2 * time.Minute
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the storage backend. The default is an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithModel enables model-served predictions and remote features.
func WithModel(client *modelsvc.Client) Option {
	return func(s *Service) {
		s.model = client
	}
}

// WithNotifier fans terminal ingestion events out.
func WithNotifier(n ingestion.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithWorkerCount sets the number of sync workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending sync jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithJobTimeout bounds a single queued sync job.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithMaxFactors caps the key factors of each prediction.
func WithMaxFactors(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxFactors = n
		}
	}
}

// WithBatchConcurrency bounds concurrent feature loads in a batch.
func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

// WithSummaryLimit sets the default number of recent events in a summary.
func WithSummaryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.summaryLimit = n
		}
	}
}

// WithCloser registers a resource released by Stop, after the store.
func WithCloser(c io.Closer) Option {
	return func(s *Service) {
		if c != nil {
			s.closers = append(s.closers, c)
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func defaultWorkerCount() int { return runtime.NumCPU() }
