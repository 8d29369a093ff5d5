package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/fixturecast/internal/adapters/mq/queue"
	"github.com/okian/fixturecast/internal/domain/model"
)

// SyncDependencies defines the ingestion entry points.
type SyncDependencies interface {
	Sync(ctx context.Context, job model.SyncJob) (*model.IngestionEvent, error)
	Enqueue(ctx context.Context, job model.SyncJob) error
}

// SyncHandler accepts ingestion jobs.
type SyncHandler struct {
	deps SyncDependencies
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(deps SyncDependencies) *SyncHandler {
	return &SyncHandler{deps: deps}
}

// syncRequest is a job plus whether to wait for its terminal event.
type syncRequest struct {
	model.SyncJob
	Wait bool `json:"wait"`
}

type syncResponse struct {
	Status string                `json:"status"`
	Scope  string                `json:"scope"`
	Event  *model.IngestionEvent `json:"event,omitempty"`
}

// HandleSync handles POST /sync. By default the job is queued and 202 is
// returned; with "wait": true it runs inline and the terminal event is
// returned, with 502 when the ingestion failed.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	job := req.SyncJob
	if err := job.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	if !req.Wait {
		if err := h.deps.Enqueue(r.Context(), job); err != nil {
			switch {
			case errors.Is(err, queue.ErrFull):
				writeError(w, http.StatusTooManyRequests, "backpressure", fmt.Errorf("%w: %w", ErrBackpressure, err))
			case errors.Is(err, model.ErrInvalidJob):
				writeError(w, http.StatusBadRequest, "bad_request", err)
			default:
				writeError(w, http.StatusServiceUnavailable, "unavailable", err)
			}
			return
		}
		writeJSON(w, http.StatusAccepted, syncResponse{Status: "queued", Scope: job.Scope()})
		return
	}

	e, err := h.deps.Sync(r.Context(), job)
	if e == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	status := http.StatusOK
	if e.Status == model.StatusFailed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, syncResponse{Status: string(e.Status), Scope: e.Scope, Event: e})
}
