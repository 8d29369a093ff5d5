// Package prediction turns a fixture's feature bundle into a normalized,
// explained outcome distribution. A model-served triple is preferred; a
// weighted rule set takes over when the model is unavailable.
package prediction

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/fixturecast/internal/domain/model"
	"github.com/okian/fixturecast/pkg/logger"
	"github.com/okian/fixturecast/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// FeatureSource produces the feature bundle for a fixture.
type FeatureSource interface {
	Features(ctx context.Context, fixtureID int64) (*model.MatchFeatures, error)
}

// ModelClient serves probability triples.
type ModelClient interface {
	PredictOutcome(ctx context.Context, f model.MatchFeatures) (*model.ModelOutput, error)
	PredictOutcomes(ctx context.Context, features []model.MatchFeatures) (map[int64]model.ModelOutput, error)
}

// Engine is the hybrid prediction engine.
type Engine struct {
	features    FeatureSource
	model       ModelClient
	maxFactors  int
	concurrency int
	now         func() time.Time
	logger      logger.Logger
}

// New constructs an Engine.
func New(features FeatureSource, opts ...Option) (*Engine, error) {
	if features == nil {
		return nil, ErrNoFeatureSource
	}
	e := &Engine{
		features:    features,
		maxFactors:  DefaultMaxFactors,
		concurrency: DefaultBatchConcurrency,
		now:         time.Now,
		logger:      logger.Get().Named("prediction"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Predict builds the prediction for one fixture. It fails only when the
// feature bundle cannot be obtained.
func (e *Engine) Predict(ctx context.Context, fixtureID int64) (*model.EnhancedPrediction, error) {
	f, err := e.loadFeatures(ctx, fixtureID)
	if err != nil {
		return nil, err
	}
	return e.predictFeatures(ctx, *f), nil
}

// BatchResult holds per-fixture outcomes of PredictBatch.
type BatchResult struct {
	Predictions map[int64]*model.EnhancedPrediction
	Errors      map[int64]error
}

// PredictBatch predicts many fixtures. Feature retrieval runs concurrently,
// fixtures with resolved teams share one model call, and fixtures the batch
// did not answer go through the single-fixture path. A failing fixture only
// lands in Errors.
func (e *Engine) PredictBatch(ctx context.Context, ids []int64) BatchResult {
	res := BatchResult{
		Predictions: make(map[int64]*model.EnhancedPrediction, len(ids)),
		Errors:      make(map[int64]error),
	}
	ids = uniqueIDs(ids)
	bundles := make([]*model.MatchFeatures, len(ids))
	failures := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			bundles[i], failures[i] = e.loadFeatures(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	var resolved []model.MatchFeatures
	for i, id := range ids {
		if failures[i] != nil {
			res.Errors[id] = failures[i]
			continue
		}
		if bundles[i].HasTeams() {
			resolved = append(resolved, *bundles[i])
		}
	}

	var served map[int64]model.ModelOutput
	if e.model != nil && len(resolved) > 0 {
		out, err := e.model.PredictOutcomes(ctx, resolved)
		if err != nil {
			metrics.RecordModelError()
			e.logger.Warn(ctx, "batched model call failed",
				logger.Int("fixtures", len(resolved)),
				logger.Error(err),
			)
		}
		served = out
	}

	for i, id := range ids {
		if bundles[i] == nil {
			continue
		}
		if mo, ok := served[id]; ok {
			start := time.Now()
			res.Predictions[id] = e.build(*bundles[i], &mo, start)
			continue
		}
		res.Predictions[id] = e.predictFeatures(ctx, *bundles[i])
	}

	e.logger.Info(ctx, "batch prediction finished",
		logger.Int("requested", len(ids)),
		logger.Int("predicted", len(res.Predictions)),
		logger.Int("failed", len(res.Errors)),
		logger.Int("model_served", len(served)),
	)
	return res
}

func (e *Engine) loadFeatures(ctx context.Context, fixtureID int64) (*model.MatchFeatures, error) {
	f, err := e.features.Features(ctx, fixtureID)
	if err != nil {
		metrics.RecordFeatureError()
		return nil, fmt.Errorf("%w: fixture %d: %w", ErrFeatures, fixtureID, err)
	}
	if f == nil {
		metrics.RecordFeatureError()
		return nil, fmt.Errorf("%w: fixture %d: empty bundle", ErrFeatures, fixtureID)
	}
	out := *f
	if out.FixtureID == 0 {
		out.FixtureID = fixtureID
	}
	return &out, nil
}

// predictFeatures is the single-fixture path: model first, rules on failure.
func (e *Engine) predictFeatures(ctx context.Context, f model.MatchFeatures) *model.EnhancedPrediction {
	start := time.Now()
	if e.model != nil && f.HasTeams() {
		mo, err := e.model.PredictOutcome(ctx, f)
		if err == nil && mo != nil {
			return e.build(f, mo, start)
		}
		metrics.RecordModelError()
		e.logger.Warn(ctx, "model unavailable, using rules",
			logger.Int64("fixture", f.FixtureID),
			logger.Error(err),
		)
	}
	return e.build(f, nil, start)
}

func (e *Engine) build(f model.MatchFeatures, mo *model.ModelOutput, start time.Time) *model.EnhancedPrediction {
	s := deriveSignals(f)

	source := model.SourceRules
	var home, draw, away float64
	xg := model.ExpectedGoals{Home: round2(s.homeXG), Away: round2(s.awayXG)}
	var version, explanation string
	if mo != nil {
		source = model.SourceModel
		home, draw, away = nudge(mo.Home, mo.Draw, mo.Away, f.Market)
		if mo.ExpectedGoals != nil {
			xg = *mo.ExpectedGoals
		}
		version, explanation = mo.ModelVersion, mo.Explanation
	} else {
		home, draw, away = ruleTriple(s)
	}

	p := model.Probabilities{}
	p.Home, p.Draw, p.Away = Normalize(home, draw, away)

	mc := 0.0
	if mo != nil && mo.Confidence > 0 {
		mc = mo.Confidence
	} else {
		_, share := leader(p)
		mc = share / 100
	}
	p.Confidence = confidenceLevel(mc, f.Quality.Completeness)

	factors := keyFactors(f, s, e.maxFactors)
	markets := goalMarkets(xg)
	if explanation == "" {
		explanation = explain(p, factors, xg)
	}

	metrics.RecordPrediction(string(source), float64(time.Since(start).Milliseconds()))

	return &model.EnhancedPrediction{
		FixtureID:     f.FixtureID,
		Probabilities: p,
		Insights: model.Insights{
			Source:          source,
			ModelVersion:    version,
			ModelConfidence: round3(mc),
			ExpectedGoals:   xg,
			DataQuality:     f.Quality,
			Explanation:     explanation,
		},
		TopFactors:        factors,
		SuggestedBets:     suggestBets(p, xg, markets),
		AdditionalMarkets: markets,
		GeneratedAt:       e.now().UTC(),
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
