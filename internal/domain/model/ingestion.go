package model

import "time"

// IngestionStatus is the state of an ingestion event.
type IngestionStatus string

// Ingestion states. Completed, failed and degraded are terminal.
const (
	StatusPending   IngestionStatus = "pending"
	StatusRunning   IngestionStatus = "running"
	StatusCompleted IngestionStatus = "completed"
	StatusFailed    IngestionStatus = "failed"
	StatusDegraded  IngestionStatus = "degraded"
)

// Terminal reports whether no further transition is allowed.
func (s IngestionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusDegraded:
		return true
	default:
		return false
	}
}

// IngestionEvent is the provenance record of one pull-and-persist attempt.
// Optional fields are nil until the terminal transition sets them.
type IngestionEvent struct {
	ID             string          `json:"id"`
	Source         string          `json:"source"`
	Scope          string          `json:"scope"`
	Status         IngestionStatus `json:"status"`
	StartedAt      time.Time       `json:"startedAt"`
	FinishedAt     *time.Time      `json:"finishedAt,omitempty"`
	DurationMs     *int64          `json:"durationMs,omitempty"`
	RecordsWritten *int            `json:"recordsWritten,omitempty"`
	FallbackUsed   bool            `json:"fallbackUsed"`
	Checksum       string          `json:"checksum,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	Error          string          `json:"error,omitempty"`
	RetryCount     int             `json:"retryCount"`
}
