package api

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/okian/fixturecast/internal/domain/model"
	"github.com/okian/fixturecast/internal/domain/prediction"
)

// PredictionDependencies defines the prediction operations.
type PredictionDependencies interface {
	Predict(ctx context.Context, fixtureID int64) (*model.EnhancedPrediction, error)
	PredictBatch(ctx context.Context, ids []int64) prediction.BatchResult
}

// PredictionsHandler serves single and batch predictions.
type PredictionsHandler struct {
	deps     PredictionDependencies
	maxBatch int
}

// NewPredictionsHandler creates a new predictions handler.
func NewPredictionsHandler(deps PredictionDependencies) *PredictionsHandler {
	return &PredictionsHandler{deps: deps, maxBatch: DefaultMaxBatchSize}
}

// HandleGet handles GET /predictions/{fixtureId}.
func (h *PredictionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["fixtureId"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: fixtureId must be a positive integer", ErrBadRequest))
		return
	}

	p, err := h.deps.Predict(r.Context(), id)
	if err != nil {
		switch {
		case isNotFound(err):
			writeError(w, http.StatusNotFound, "not_found", err)
		case errors.Is(err, prediction.ErrFeatures):
			writeError(w, http.StatusBadGateway, "features_unavailable", err)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type batchRequest struct {
	FixtureIDs []int64 `json:"fixtureIds"`
}

type batchError struct {
	FixtureID int64  `json:"fixtureId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type batchResponse struct {
	Predictions []*model.EnhancedPrediction `json:"predictions"`
	Errors      []batchError                `json:"errors"`
}

func (b batchRequest) validate(limit int) error {
	switch {
	case len(b.FixtureIDs) == 0:
		return fmt.Errorf("%w: fixtureIds must not be empty", ErrBadRequest)
	case len(b.FixtureIDs) > limit:
		return fmt.Errorf("%w: at most %d fixtures", ErrBatchTooBig, limit)
	}
	for _, id := range b.FixtureIDs {
		if id <= 0 {
			return fmt.Errorf("%w: invalid fixture id %d", ErrBadRequest, id)
		}
	}
	return nil
}

// HandleBatch handles POST /predictions/batch. Per-fixture failures are
// listed next to the successful predictions.
func (h *PredictionsHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := req.validate(h.maxBatch); err != nil {
		code := "bad_request"
		if errors.Is(err, ErrBatchTooBig) {
			code = "batch_too_large"
		}
		writeError(w, http.StatusBadRequest, code, err)
		return
	}

	res := h.deps.PredictBatch(r.Context(), req.FixtureIDs)

	out := batchResponse{
		Predictions: make([]*model.EnhancedPrediction, 0, len(res.Predictions)),
		Errors:      make([]batchError, 0, len(res.Errors)),
	}
	for _, p := range res.Predictions {
		out.Predictions = append(out.Predictions, p)
	}
	slices.SortFunc(out.Predictions, func(a, b *model.EnhancedPrediction) int {
		return cmp.Compare(a.FixtureID, b.FixtureID)
	})
	for id, err := range res.Errors {
		code := "features_unavailable"
		if isNotFound(err) {
			code = "not_found"
		}
		out.Errors = append(out.Errors, batchError{FixtureID: id, Code: code, Message: err.Error()})
	}
	slices.SortFunc(out.Errors, func(a, b batchError) int {
		return cmp.Compare(a.FixtureID, b.FixtureID)
	})
	writeJSON(w, http.StatusOK, out)
}
