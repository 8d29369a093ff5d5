package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/fixturecast/internal/domain/ingestion"
)

// SummaryDependencies defines the ingestion summary read.
type SummaryDependencies interface {
	IngestionSummary(ctx context.Context, limit int) (*ingestion.Summary, error)
}

// IngestionHandler serves ingestion provenance.
type IngestionHandler struct {
	deps SummaryDependencies
}

// NewIngestionHandler creates a new ingestion handler.
func NewIngestionHandler(deps SummaryDependencies) *IngestionHandler {
	return &IngestionHandler{deps: deps}
}

// HandleSummary handles GET /ingestion/summary?limit=N. A missing limit uses
// the service default; limits above the maximum are capped.
func (h *IngestionHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		limit = n
	}

	s, err := h.deps.IngestionSummary(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
