// Package service wires the upstream client, prediction engine, ingestion
// tracker and storage into the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/okian/fixturecast/internal/adapters/modelsvc"
	"github.com/okian/fixturecast/internal/adapters/mq/queue"
	"github.com/okian/fixturecast/internal/adapters/mq/worker"
	"github.com/okian/fixturecast/internal/adapters/repository"
	"github.com/okian/fixturecast/internal/adapters/upstream"
	"github.com/okian/fixturecast/internal/domain/ingestion"
	"github.com/okian/fixturecast/internal/domain/model"
	"github.com/okian/fixturecast/internal/domain/prediction"
	"github.com/okian/fixturecast/pkg/logger"
	"github.com/okian/fixturecast/pkg/metrics"
)

// Upstream is the slice of the remote data client the service needs.
type Upstream interface {
	Fetch(ctx context.Context, endpoint string) (*upstream.Response, error)
	Health(ctx context.Context) error
	Stats() upstream.Stats
	Start(ctx context.Context) error
	Stop()
}

// syncProcessor adapts Service.Sync to worker.Processor.
type syncProcessor struct {
	svc *Service
}

func (p *syncProcessor) Sync(ctx context.Context, job model.SyncJob) error {
	_, err := p.svc.Sync(ctx, job)
	return err
}

// Service implements the API dependencies for fixturecast.
type Service struct {
	mu sync.RWMutex

	// Core components
	client   Upstream
	store    repository.Store
	model    *modelsvc.Client
	notifier ingestion.Notifier
	engine   *prediction.Engine
	tracker  *ingestion.Tracker
	jobs     *queue.InMemoryQueue
	pool     *worker.Pool
	closers  []io.Closer

	// Configuration
	workerCount      int
	queueSize        int
	jobTimeout       time.Duration
	maxFactors       int
	batchConcurrency int
	summaryLimit     int

	// State
	started bool

	logger logger.Logger
}

// New constructs a Service over the upstream client.
func New(client Upstream, opts ...Option) (*Service, error) {
	if client == nil {
		return nil, ErrNoUpstream
	}
	s := &Service{
		client:           client,
		workerCount:      defaultWorkerCount(),
		queueSize:        DefaultQueueSize,
		jobTimeout:       DefaultJobTimeout,
		maxFactors:       prediction.DefaultMaxFactors,
		batchConcurrency: prediction.DefaultBatchConcurrency,
		summaryLimit:     ingestion.DefaultSummaryLimit,
		logger:           logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}

	var features prediction.FeatureSource = newStandingsFeatures(s.store)
	engineOpts := []prediction.Option{
		prediction.WithMaxFactors(s.maxFactors),
		prediction.WithBatchConcurrency(s.batchConcurrency),
	}
	if s.model != nil {
		features = modelsvc.NewFeatureProvider(s.model, s.store)
		engineOpts = append(engineOpts, prediction.WithModel(s.model))
	}
	engine, err := prediction.New(features, engineOpts...)
	if err != nil {
		return nil, err
	}
	s.engine = engine

	var trackerOpts []ingestion.Option
	if s.notifier != nil {
		trackerOpts = append(trackerOpts, ingestion.WithNotifier(s.notifier))
	}
	tracker, err := ingestion.New(s.store, trackerOpts...)
	if err != nil {
		return nil, err
	}
	s.tracker = tracker
	return s, nil
}

// Start starts the client sweep loop and the sync worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting fixturecast service...")

	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("start upstream client: %w", err)
	}

	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.jobs, &syncProcessor{svc: s},
		worker.WithJobTimeout(s.jobTimeout),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "fixturecast service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("model", s.model != nil),
	)
	return nil
}

// Stop drains the worker pool, stops the client and releases resources.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping fixturecast service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
	}
	s.client.Stop()

	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "failed to close store", logger.Error(err))
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn(ctx, "failed to close resource", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "fixturecast service stopped")
}

// Predict builds and stores the prediction for one fixture.
func (s *Service) Predict(ctx context.Context, fixtureID int64) (*model.EnhancedPrediction, error) {
	p, err := s.engine.Predict(ctx, fixtureID)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, p)
	return p, nil
}

// PredictBatch predicts and stores many fixtures; failures stay per fixture.
func (s *Service) PredictBatch(ctx context.Context, ids []int64) prediction.BatchResult {
	res := s.engine.PredictBatch(ctx, ids)
	for _, p := range res.Predictions {
		s.persist(ctx, p)
	}
	return res
}

func (s *Service) persist(ctx context.Context, p *model.EnhancedPrediction) {
	if err := s.store.UpdatePrediction(ctx, *p); err != nil {
		metrics.RecordErrorByComponent("repository", "prediction_write")
		s.logger.Warn(ctx, "failed to store prediction",
			logger.Int64("fixture", p.FixtureID),
			logger.Error(err),
		)
	}
}

// Enqueue hands a validated job to the worker pool.
func (s *Service) Enqueue(ctx context.Context, job model.SyncJob) error {
	if err := job.Validate(); err != nil {
		return err
	}

	s.mu.RLock()
	jobs := s.jobs
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	if err := jobs.Enqueue(ctx, job); err != nil {
		return err
	}
	s.logger.Debug(ctx, "sync job queued",
		logger.String("kind", string(job.Kind)),
		logger.String("scope", job.Scope()),
	)
	return nil
}

// IngestionSummary reports recent ingestion activity. A non-positive limit
// uses the configured default.
func (s *Service) IngestionSummary(ctx context.Context, limit int) (*ingestion.Summary, error) {
	if limit <= 0 {
		limit = s.summaryLimit
	}
	return s.tracker.Summary(ctx, limit)
}

// Health reports the state of the remote dependencies.
func (s *Service) Health(ctx context.Context) map[string]string {
	out := map[string]string{"upstream": "ok"}
	if err := s.client.Health(ctx); err != nil {
		out["upstream"] = "unavailable"
	}
	if s.model != nil {
		out["model"] = "ok"
		if err := s.model.Health(ctx); err != nil {
			out["model"] = "unavailable"
		}
	}
	return out
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"model":       s.model != nil,
		"upstream":    s.client.Stats(),
	}

	open := len(s.tracker.Open())
	stats["openIngestions"] = open
	metrics.UpdateIngestionOpen(open)

	if counts, err := s.store.Counts(ctx); err == nil {
		stats["records"] = counts
	}

	if s.started {
		queueLen := s.jobs.Len()
		stats["queueLength"] = queueLen
		stats["activeWorkers"] = s.pool.Active()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}

	return stats
}

// IsNotFound reports whether err means the fixture is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, modelsvc.ErrUnknownFixture)
}
