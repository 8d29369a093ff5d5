package prediction

import (
	"fmt"
	"math"

	"github.com/okian/fixturecast/internal/domain/model"
)

const (
	goalLine   = 2.5
	bttsXG     = 1.0
	maxGoalsPG = 10
)

// Market names used in suggestions.
const (
	MarketMatchResult = "match_result"
	MarketTotalGoals  = "over_under_2_5"
	MarketBTTS        = "both_teams_to_score"
)

// poisson returns P(X = k) for a Poisson variable with mean lambda.
func poisson(k int, lambda float64) float64 {
	return math.Exp(float64(k)*math.Log(lambda) - lambda - lgammaInt(k+1))
}

func lgammaInt(n int) float64 {
	v, _ := math.Lgamma(float64(n))
	return v
}

// goalMarkets treats each side's goals as independent Poisson variables.
func goalMarkets(xg model.ExpectedGoals) model.AdditionalMarkets {
	h, a := math.Max(xg.Home, minXG), math.Max(xg.Away, minXG)

	var under float64
	for i := 0; i <= 2; i++ {
		for j := 0; i+j <= 2; j++ {
			under += poisson(i, h) * poisson(j, a)
		}
	}
	btts := (1 - math.Exp(-h)) * (1 - math.Exp(-a))

	return model.AdditionalMarkets{
		Over25:  round3(1 - under),
		Under25: round3(under),
		BTTS:    round3(btts),
	}
}

func suggestBets(p model.Probabilities, xg model.ExpectedGoals, m model.AdditionalMarkets) []model.Bet {
	outcome, share := leader(p)
	bets := []model.Bet{{
		Market:     MarketMatchResult,
		Selection:  selectionFor(outcome),
		Confidence: round3(share / 100),
		Rationale:  fmt.Sprintf("%s carries %.1f%% of the probability.", labelFor(outcome), share),
	}}

	total := xg.Home + xg.Away
	totals := model.Bet{Market: MarketTotalGoals, Selection: "over", Confidence: m.Over25}
	if total <= goalLine {
		totals.Selection, totals.Confidence = "under", m.Under25
	}
	totals.Rationale = fmt.Sprintf("Combined expected goals %.2f against a %.1f line.", total, goalLine)
	bets = append(bets, totals)

	btts := model.Bet{Market: MarketBTTS, Selection: "yes", Confidence: m.BTTS}
	if xg.Home < bttsXG || xg.Away < bttsXG {
		btts.Selection, btts.Confidence = "no", round3(1-m.BTTS)
	}
	btts.Rationale = fmt.Sprintf("Expected goals %.2f for the home side and %.2f for the away side.", xg.Home, xg.Away)
	return append(bets, btts)
}

// leader returns the most likely outcome; home wins ties, then draw.
func leader(p model.Probabilities) (model.Outcome, float64) {
	v := [3]float64{p.Home, p.Draw, p.Away}
	switch largest(v) {
	case 1:
		return model.OutcomeDraw, p.Draw
	case 2:
		return model.OutcomeAway, p.Away
	default:
		return model.OutcomeHome, p.Home
	}
}

func selectionFor(o model.Outcome) string {
	switch o {
	case model.OutcomeDraw:
		return "draw"
	case model.OutcomeAway:
		return "away_win"
	default:
		return "home_win"
	}
}

func labelFor(o model.Outcome) string {
	switch o {
	case model.OutcomeDraw:
		return "A draw"
	case model.OutcomeAway:
		return "An away win"
	default:
		return "A home win"
	}
}

func round3(x float64) float64 { return math.Round(x*1000) / 1000 }
