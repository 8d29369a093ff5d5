package modelsvc

import "encoding/json"

// PredictRequest is the body of POST /predict and one item of a batch.
type PredictRequest struct {
	FixtureID    int64  `json:"fixture_id,omitempty"`
	HomeTeamID   int64  `json:"home_team_id"`
	AwayTeamID   int64  `json:"away_team_id"`
	HomeTeamName string `json:"home_team_name,omitempty"`
	AwayTeamName string `json:"away_team_name,omitempty"`
}

// Feature is one explained model input.
type Feature struct {
	Name        string  `json:"name"`
	Importance  float64 `json:"importance"`
	Impact      string  `json:"impact"`
	Description string  `json:"description"`
}

// Prediction is the model service answer for one fixture.
type Prediction struct {
	FixtureID         *int64             `json:"fixture_id"`
	PredictedOutcome  string             `json:"predicted_outcome"`
	Probabilities     map[string]float64 `json:"probabilities"`
	Confidence        float64            `json:"confidence"`
	ExpectedGoals     map[string]float64 `json:"expected_goals"`
	AdditionalMarkets map[string]float64 `json:"additional_markets"`
	KeyFeatures       []Feature          `json:"key_features"`
	ModelVersion      string             `json:"model_version"`
	LatencyMs         *float64           `json:"latency_ms,omitempty"`
	Explanation       string             `json:"explanation,omitempty"`
}

// batchResponse accepts both a bare array and {"predictions": [...]}.
type batchResponse []Prediction

func (b *batchResponse) UnmarshalJSON(data []byte) error {
	var arr []Prediction
	if err := json.Unmarshal(data, &arr); err == nil {
		*b = arr
		return nil
	}
	var wrapped struct {
		Predictions []Prediction `json:"predictions"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*b = wrapped.Predictions
	return nil
}

// Status is the answer of GET /model/status.
type Status struct {
	Status        string         `json:"status"`
	Message       string         `json:"message,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	FeaturesCount int            `json:"features_count,omitempty"`
}

// Ready reports whether a trained model is loaded.
func (s Status) Ready() bool { return s.Status == "ready" }

// TrainRequest is the body of POST /train.
type TrainRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Retrain   bool   `json:"retrain"`
}

// TrainResponse is the answer of POST /train.
type TrainResponse struct {
	Message     string `json:"message"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	ModelStatus string `json:"model_status,omitempty"`
}
