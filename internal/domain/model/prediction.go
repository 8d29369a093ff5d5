package model

import "time"

// ConfidenceLevel labels how much a prediction can be trusted.
type ConfidenceLevel string

// Confidence levels.
const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Outcome is a match result.
type Outcome string

// Outcomes.
const (
	OutcomeHome Outcome = "home"
	OutcomeDraw Outcome = "draw"
	OutcomeAway Outcome = "away"
)

// ProbabilitySource says which path produced the triple.
type ProbabilitySource string

// Probability sources.
const (
	SourceModel ProbabilitySource = "model"
	SourceRules ProbabilitySource = "rules"
)

// Probabilities is a normalized outcome distribution in percent.
type Probabilities struct {
	Home       float64         `json:"home"`
	Draw       float64         `json:"draw"`
	Away       float64         `json:"away"`
	Confidence ConfidenceLevel `json:"confidence"`
}

// Sum returns home+draw+away.
func (p Probabilities) Sum() float64 { return p.Home + p.Draw + p.Away }

// KeyFactor explains one driver of the prediction.
// Impact is in [-1, 1]; positive favours the home side.
type KeyFactor struct {
	Name      string  `json:"name"`
	Impact    float64 `json:"impact"`
	Rationale string  `json:"rationale"`
}

// Bet is a suggested market selection.
type Bet struct {
	Market     string  `json:"market"`
	Selection  string  `json:"selection"`
	Confidence float64 `json:"confidence"` // 0..1
	Rationale  string  `json:"rationale"`
}

// ExpectedGoals per side.
type ExpectedGoals struct {
	Home float64 `json:"home"`
	Away float64 `json:"away"`
}

// Insights carry the context behind a prediction.
type Insights struct {
	Source          ProbabilitySource `json:"source"`
	ModelVersion    string            `json:"modelVersion,omitempty"`
	ModelConfidence float64           `json:"modelConfidence"`
	ExpectedGoals   ExpectedGoals     `json:"expectedGoals"`
	DataQuality     DataQuality       `json:"dataQuality"`
	Explanation     string            `json:"explanation"`
}

// AdditionalMarkets are goal-market probabilities in [0, 1].
type AdditionalMarkets struct {
	Over25  float64 `json:"over25"`
	Under25 float64 `json:"under25"`
	BTTS    float64 `json:"btts"`
}

// EnhancedPrediction is the engine's output for one fixture.
type EnhancedPrediction struct {
	FixtureID         int64             `json:"fixtureId"`
	Probabilities     Probabilities     `json:"probabilities"`
	Insights          Insights          `json:"insights"`
	TopFactors        []KeyFactor       `json:"topFactors"`
	SuggestedBets     []Bet             `json:"suggestedBets"`
	AdditionalMarkets AdditionalMarkets `json:"additionalMarkets"`
	GeneratedAt       time.Time         `json:"generatedAt"`
}

// ModelOutput is a probability triple served by the external model, with
// probabilities as fractions in [0, 1].
type ModelOutput struct {
	FixtureID     int64
	Home          float64
	Draw          float64
	Away          float64
	Confidence    float64 // 0..1
	ExpectedGoals *ExpectedGoals
	ModelVersion  string
	Explanation   string
}
