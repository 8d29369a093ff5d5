// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/okian/fixturecast/internal/adapters/modelsvc"
	"github.com/okian/fixturecast/internal/adapters/repository"
	"github.com/okian/fixturecast/internal/domain/ingestion"
	"github.com/okian/fixturecast/internal/domain/model"
	"github.com/okian/fixturecast/internal/domain/prediction"
	"github.com/okian/fixturecast/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// DefaultMaxBatchSize bounds POST /predictions/batch.
const DefaultMaxBatchSize = 100

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	HealthChecker

	Predict(ctx context.Context, fixtureID int64) (*model.EnhancedPrediction, error)
	PredictBatch(ctx context.Context, ids []int64) prediction.BatchResult

	// Sync runs a job inline; Enqueue hands it to the worker pool.
	Sync(ctx context.Context, job model.SyncJob) (*model.IngestionEvent, error)
	Enqueue(ctx context.Context, job model.SyncJob) error

	IngestionSummary(ctx context.Context, limit int) (*ingestion.Summary, error)
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxBatchSize bounds the number of fixtures per batch request.
func WithMaxBatchSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.predictionsHandler.maxBatch = n
		}
	}
}

// WithCORSOrigins sets the allowed origins; "*" allows any.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// Server wires HTTP routes for the ops API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	predictionsHandler *PredictionsHandler
	syncHandler        *SyncHandler
	ingestionHandler   *IngestionHandler
	origins            []string
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(statsProvider),
		predictionsHandler: NewPredictionsHandler(deps),
		syncHandler:        NewSyncHandler(deps),
		ingestionHandler:   NewIngestionHandler(deps),
		origins:            []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)
	r.HandleFunc("/predictions/batch", MetricsMiddleware(s.predictionsHandler.HandleBatch, "predictions_batch")).Methods(http.MethodPost)
	r.HandleFunc("/predictions/{fixtureId}", MetricsMiddleware(s.predictionsHandler.HandleGet, "predictions")).Methods(http.MethodGet)
	r.HandleFunc("/sync", MetricsMiddleware(s.syncHandler.HandleSync, "sync")).Methods(http.MethodPost)
	r.HandleFunc("/ingestion/summary", MetricsMiddleware(s.ingestionHandler.HandleSummary, "ingestion_summary")).Methods(http.MethodGet)
}

// Handler returns the routed API behind the CORS policy.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := mux.NewRouter()
	s.Register(ctx, r)
	return s.CORS(r)
}

// CORS wraps h with the configured origin policy.
func (s *Server) CORS(h http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept"},
	})
	return c.Handler(h)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound reports whether a prediction failed on an unknown fixture.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, modelsvc.ErrUnknownFixture)
}
