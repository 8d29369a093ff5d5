package ingestion

import (
	"context"
	"time"

	"github.com/okian/fixturecast/internal/domain/model"
)

// Summary limits.
const (
	DefaultSummaryLimit = 50
	MaxSummaryLimit     = 500
)

// Summary aggregates the most recent ingestion events.
type Summary struct {
	GeneratedAt  time.Time              `json:"generatedAt"`
	Totals       Totals                 `json:"totals"`
	Averages     Averages               `json:"averages"`
	RecentEvents []model.IngestionEvent `json:"recentEvents"`
}

// Totals counts events.
type Totals struct {
	TotalEvents    int            `json:"totalEvents"`
	ByStatus       map[string]int `json:"byStatus"`
	FallbackEvents int            `json:"fallbackEvents"`
	Retries        int            `json:"retries"`
}

// Averages are computed over the events that carry the field.
type Averages struct {
	DurationMs     float64 `json:"durationMs"`
	RecordsWritten float64 `json:"recordsWritten"`
}

// Summary reads the limit most recent events and aggregates them.
func (t *Tracker) Summary(ctx context.Context, limit int) (*Summary, error) {
	switch {
	case limit <= 0:
		limit = DefaultSummaryLimit
	case limit > MaxSummaryLimit:
		limit = MaxSummaryLimit
	}
	events, err := t.store.GetRecentIngestionEvents(ctx, limit)
	if err != nil {
		return nil, err
	}
	s := Summarize(events)
	s.GeneratedAt = t.now().UTC()
	return s, nil
}

// Summarize aggregates events, skipping missing optional fields.
func Summarize(events []model.IngestionEvent) *Summary {
	s := &Summary{
		Totals:       Totals{TotalEvents: len(events), ByStatus: make(map[string]int)},
		RecentEvents: events,
	}
	if s.RecentEvents == nil {
		s.RecentEvents = []model.IngestionEvent{}
	}

	var durations, records int64
	var nDur, nRec int
	for _, e := range events {
		status := string(e.Status)
		if status == "" {
			status = "unknown"
		}
		s.Totals.ByStatus[status]++
		if e.FallbackUsed {
			s.Totals.FallbackEvents++
		}
		s.Totals.Retries += e.RetryCount
		if e.DurationMs != nil {
			durations += *e.DurationMs
			nDur++
		}
		if e.RecordsWritten != nil {
			records += int64(*e.RecordsWritten)
			nRec++
		}
	}
	if nDur > 0 {
		s.Averages.DurationMs = float64(durations) / float64(nDur)
	}
	if nRec > 0 {
		s.Averages.RecordsWritten = float64(records) / float64(nRec)
	}
	return s
}
