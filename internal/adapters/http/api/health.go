package api

import (
	"context"
	"net/http"
)

// HealthChecker reports per-component state, "ok" when healthy.
type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// HandleHealth handles GET /healthz. The process is live whenever it
// answers; unhealthy dependencies only turn the status to "degraded".
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	components := h.checker.Health(r.Context())
	status := "ok"
	for _, v := range components {
		if v != "ok" {
			status = "degraded"
			break
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: status, Components: components})
}
