package modelsvc

import (
	"context"
	"fmt"

	"github.com/okian/fixturecast/internal/domain/model"
	"github.com/okian/fixturecast/pkg/logger"
)

// PredictOutcome asks the model for one fixture's probability triple.
func (c *Client) PredictOutcome(ctx context.Context, f model.MatchFeatures) (*model.ModelOutput, error) {
	p, err := c.Predict(ctx, requestFor(f))
	if err != nil {
		return nil, err
	}
	out, err := toOutput(f.FixtureID, *p)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PredictOutcomes asks the model for many fixtures in one call and returns
// the answers keyed by fixture id. Answers without a usable id are dropped.
func (c *Client) PredictOutcomes(ctx context.Context, features []model.MatchFeatures) (map[int64]model.ModelOutput, error) {
	reqs := make([]PredictRequest, len(features))
	for i, f := range features {
		reqs[i] = requestFor(f)
	}
	preds, err := c.PredictBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}
	if len(preds) == 0 {
		return nil, ErrEmptyBatch
	}

	out := make(map[int64]model.ModelOutput, len(preds))
	for i, p := range preds {
		id := int64(0)
		switch {
		case p.FixtureID != nil:
			id = *p.FixtureID
		case len(preds) == len(features):
			// positional answer without ids
			id = features[i].FixtureID
		}
		if id == 0 {
			continue
		}
		o, err := toOutput(id, p)
		if err != nil {
			c.logger.Warn(ctx, "dropping unusable batch prediction", logger.Int64("fixture", id), logger.Error(err))
			continue
		}
		out[id] = o
	}
	return out, nil
}

func requestFor(f model.MatchFeatures) PredictRequest {
	return PredictRequest{FixtureID: f.FixtureID, HomeTeamID: f.HomeTeamID, AwayTeamID: f.AwayTeamID}
}

func toOutput(fixtureID int64, p Prediction) (model.ModelOutput, error) {
	home, okH := p.Probabilities["home"]
	draw, okD := p.Probabilities["draw"]
	away, okA := p.Probabilities["away"]
	if !okH || !okD || !okA {
		return model.ModelOutput{}, fmt.Errorf("prediction for fixture %d lacks a probability triple", fixtureID)
	}
	out := model.ModelOutput{
		FixtureID:    fixtureID,
		Home:         home,
		Draw:         draw,
		Away:         away,
		Confidence:   p.Confidence,
		ModelVersion: p.ModelVersion,
		Explanation:  p.Explanation,
	}
	if h, ok := p.ExpectedGoals["home"]; ok {
		out.ExpectedGoals = &model.ExpectedGoals{Home: h, Away: p.ExpectedGoals["away"]}
	}
	return out, nil
}
