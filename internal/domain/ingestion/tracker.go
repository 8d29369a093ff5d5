// Package ingestion records provenance for every unit of work that writes
// derived data.
package ingestion

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/fixturecast/internal/domain/model"
	"github.com/okian/fixturecast/pkg/logger"
	"github.com/okian/fixturecast/pkg/metrics"
)

// Store persists ingestion events.
type Store interface {
	InsertIngestionEvent(ctx context.Context, e model.IngestionEvent) error
	FinishIngestionEvent(ctx context.Context, e model.IngestionEvent) error
	GetRecentIngestionEvents(ctx context.Context, limit int) ([]model.IngestionEvent, error)
}

// Notifier receives every terminal event.
type Notifier interface {
	Notify(ctx context.Context, e model.IngestionEvent) error
}

// DefaultNotifyTimeout bounds each notifier call.
const DefaultNotifyTimeout = 5 * time.Second

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithNotifier publishes terminal events.
func WithNotifier(n Notifier) Option {
	return func(t *Tracker) {
		t.notifier = n
	}
}

// WithNotifyTimeout bounds how long a terminal call waits on the notifier.
func WithNotifyTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.notifyTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// Handle identifies a running ingestion event.
type Handle struct {
	event    model.IngestionEvent
	finished bool
}

// ID returns the event id.
func (h *Handle) ID() string { return h.event.ID }

// Tracker drives the ingestion state machine.
type Tracker struct {
	store         Store
	notifier      Notifier
	notifyTimeout time.Duration
	now           func() time.Time
	logger        logger.Logger

	mu   sync.Mutex
	open map[string]*Handle
}

// New constructs a Tracker over store.
func New(store Store, opts ...Option) (*Tracker, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	t := &Tracker{
		store:         store,
		notifyTimeout: DefaultNotifyTimeout,
		now:           time.Now,
		logger:        logger.Get().Named("ingestion"),
		open:          make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// CompleteOptions describe a successful run.
type CompleteOptions struct {
	RecordsWritten int
	Metadata       map[string]any
	Checksum       string
	RetryCount     int
}

// FailOptions describe a failed run.
type FailOptions struct {
	RecordsWritten int
	Metadata       map[string]any
	RetryCount     int
}

// DegradeOptions describe a run that succeeded through a fallback path.
type DegradeOptions struct {
	RecordsWritten int
	Metadata       map[string]any
	Checksum       string
	RetryCount     int
}

// Begin records a running event and returns its handle.
func (t *Tracker) Begin(ctx context.Context, source, scope string, metadata map[string]any) (*Handle, error) {
	if source == "" {
		return nil, ErrEmptySource
	}
	e := model.IngestionEvent{
		ID:        uuid.NewString(),
		Source:    source,
		Scope:     scope,
		Status:    model.StatusRunning,
		StartedAt: t.now().UTC(),
		Metadata:  maps.Clone(metadata),
	}
	if err := t.store.InsertIngestionEvent(ctx, e); err != nil {
		metrics.RecordErrorByComponent("ingestion", "insert")
		return nil, err
	}

	h := &Handle{event: e}
	t.mu.Lock()
	t.open[e.ID] = h
	metrics.UpdateIngestionOpen(len(t.open))
	t.mu.Unlock()

	t.logger.Debug(ctx, "ingestion started",
		logger.String("id", e.ID),
		logger.String("ingest_source", source),
		logger.String("scope", scope),
	)
	return h, nil
}

// Complete ends the event as completed.
func (t *Tracker) Complete(ctx context.Context, h *Handle, opts CompleteOptions) (*model.IngestionEvent, error) {
	return t.finish(ctx, h, func(e *model.IngestionEvent) {
		e.Status = model.StatusCompleted
		e.RecordsWritten = intPtr(opts.RecordsWritten)
		e.Checksum = opts.Checksum
		e.RetryCount = opts.RetryCount
		e.Metadata = merge(e.Metadata, opts.Metadata)
	})
}

// Fail ends the event as failed, keeping err's message.
func (t *Tracker) Fail(ctx context.Context, h *Handle, err error, opts FailOptions) (*model.IngestionEvent, error) {
	return t.finish(ctx, h, func(e *model.IngestionEvent) {
		e.Status = model.StatusFailed
		e.RecordsWritten = intPtr(opts.RecordsWritten)
		e.RetryCount = opts.RetryCount
		e.Metadata = merge(e.Metadata, opts.Metadata)
		if err != nil {
			e.Error = err.Error()
		}
	})
}

// Degrade ends the event as degraded. FallbackUsed is always recorded.
func (t *Tracker) Degrade(ctx context.Context, h *Handle, opts DegradeOptions) (*model.IngestionEvent, error) {
	return t.finish(ctx, h, func(e *model.IngestionEvent) {
		e.Status = model.StatusDegraded
		e.FallbackUsed = true
		e.RecordsWritten = intPtr(opts.RecordsWritten)
		e.Checksum = opts.Checksum
		e.RetryCount = opts.RetryCount
		e.Metadata = merge(e.Metadata, opts.Metadata)
	})
}

func (t *Tracker) finish(ctx context.Context, h *Handle, apply func(*model.IngestionEvent)) (*model.IngestionEvent, error) {
	if h == nil {
		return nil, ErrNilHandle
	}

	t.mu.Lock()
	if h.finished {
		t.mu.Unlock()
		return nil, ErrAlreadyFinished
	}
	h.finished = true
	delete(t.open, h.event.ID)
	open := len(t.open)

	e := h.event
	e.Metadata = maps.Clone(e.Metadata)
	apply(&e)
	finished := t.now().UTC()
	d := finished.Sub(e.StartedAt).Milliseconds()
	if d < 0 {
		d = 0
	}
	e.FinishedAt = &finished
	e.DurationMs = &d
	h.event = e
	t.mu.Unlock()

	metrics.UpdateIngestionOpen(open)
	metrics.RecordIngestionEvent(e.Source, string(e.Status), float64(d), *e.RecordsWritten)

	if err := t.store.FinishIngestionEvent(ctx, e); err != nil {
		metrics.RecordErrorByComponent("ingestion", "finish")
		t.logger.Error(ctx, "failed to persist ingestion event",
			logger.String("id", e.ID),
			logger.Error(err),
		)
		return &e, err
	}

	fields := []logger.Field{
		logger.String("id", e.ID),
		logger.String("ingest_source", e.Source),
		logger.String("scope", e.Scope),
		logger.String("status", string(e.Status)),
		logger.Int64("duration_ms", d),
		logger.Int("records", *e.RecordsWritten),
	}
	switch e.Status {
	case model.StatusFailed:
		t.logger.Warn(ctx, "ingestion failed", append(fields, logger.String("error", e.Error))...)
	case model.StatusDegraded:
		t.logger.Warn(ctx, "ingestion degraded", fields...)
	default:
		t.logger.Info(ctx, "ingestion completed", fields...)
	}

	if t.notifier != nil {
		nctx, cancel := context.WithTimeout(ctx, t.notifyTimeout)
		err := t.notifier.Notify(nctx, e)
		cancel()
		if err != nil {
			t.logger.Warn(ctx, "failed to publish ingestion event",
				logger.String("id", e.ID),
				logger.Error(err),
			)
		}
	}
	return &e, nil
}

// Open returns the events that were begun but never finished, oldest first.
func (t *Tracker) Open() []model.IngestionEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.IngestionEvent, 0, len(t.open))
	for _, h := range t.open {
		out = append(out, h.event)
	}
	slices.SortFunc(out, func(a, b model.IngestionEvent) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return out
}

// Outcome is what a tracked unit of work reports back.
type Outcome struct {
	RecordsWritten int
	Checksum       string
	FallbackUsed   bool
	RetryCount     int
	Metadata       map[string]any
}

// Track runs fn inside an ingestion event. An error fails the event and is
// returned as is; a fallback outcome degrades it; anything else completes it.
func (t *Tracker) Track(ctx context.Context, source, scope string, metadata map[string]any, fn func(ctx context.Context) (Outcome, error)) (*model.IngestionEvent, error) {
	h, err := t.Begin(ctx, source, scope, metadata)
	if err != nil {
		return nil, err
	}

	out, runErr := fn(ctx)
	if runErr != nil {
		e, _ := t.Fail(ctx, h, runErr, FailOptions{
			RecordsWritten: out.RecordsWritten,
			Metadata:       out.Metadata,
			RetryCount:     out.RetryCount,
		})
		return e, runErr
	}
	if out.FallbackUsed {
		return t.Degrade(ctx, h, DegradeOptions{
			RecordsWritten: out.RecordsWritten,
			Metadata:       out.Metadata,
			Checksum:       out.Checksum,
			RetryCount:     out.RetryCount,
		})
	}
	return t.Complete(ctx, h, CompleteOptions{
		RecordsWritten: out.RecordsWritten,
		Metadata:       out.Metadata,
		Checksum:       out.Checksum,
		RetryCount:     out.RetryCount,
	})
}

func merge(base, extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]any, len(extra))
	}
	maps.Copy(base, extra)
	return base
}

func intPtr(n int) *int { return &n }
