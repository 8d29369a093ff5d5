package prediction

import (
	"math"

	"github.com/okian/fixturecast/internal/domain/model"
)

// Rule weights for the fallback triple.
const (
	formWeight  = 0.40
	xgWeight    = 0.30
	h2hWeight   = 0.15
	venueWeight = 0.15

	maxFormPoints   = 15
	trendBonus      = 0.1
	weatherXGScale  = 0.15
	baseDraw        = 0.18
	balanceDraw     = 0.10
	drawBoost       = 0.08
	balancedWindow  = 0.2
	maxMarketNudge  = 0.02
	defaultLeagueXG = 1.4
	minXG           = 0.05
)

// signals are the normalized [-1, 1] inputs shared by the rule triple and
// the key-factor analysis. Positive favours the home side.
type signals struct {
	form   float64
	xg     float64
	h2h    float64
	venue  float64
	injury float64
	homeXG float64
	awayXG float64
}

func deriveSignals(f model.MatchFeatures) signals {
	s := signals{
		form:  clampUnit(float64(f.HomeForm.Points-f.AwayForm.Points)/maxFormPoints + trendValue(f.HomeForm.Trend) - trendValue(f.AwayForm.Trend)),
		venue: clampUnit(f.VenueAdvantage),
		// away injuries help the home side
		injury: clampUnit(f.AwayInjury - f.HomeInjury),
	}
	s.homeXG, s.awayXG = adjustedXG(f)
	if total := s.homeXG + s.awayXG; total > 0 {
		s.xg = clampUnit((s.homeXG - s.awayXG) / total)
	}
	if n := f.HeadToHead.Total(); n > 0 {
		s.h2h = float64(f.HeadToHead.HomeWins-f.HeadToHead.AwayWins) / float64(n)
	}
	return s
}

// adjustedXG applies the weather modifier to both sides. Missing figures
// fall back to a league-average value.
func adjustedXG(f model.MatchFeatures) (float64, float64) {
	home, away := f.HomeXG, f.AwayXG
	if home <= 0 && away <= 0 {
		home, away = defaultLeagueXG, defaultLeagueXG
	}
	if f.Weather != nil {
		m := 1 + clampUnit(*f.Weather)*weatherXGScale
		home *= m
		away *= m
	}
	return math.Max(home, 0), math.Max(away, 0)
}

// ruleTriple computes home/draw/away fractions from the weighted signals.
func ruleTriple(s signals) (float64, float64, float64) {
	score := formWeight*s.form + xgWeight*s.xg + h2hWeight*s.h2h + venueWeight*s.venue

	draw := baseDraw + balanceDraw*(1-math.Abs(score))
	if imbalance := math.Max(math.Abs(s.form), math.Abs(s.xg)); imbalance < balancedWindow {
		draw += drawBoost * (1 - imbalance/balancedWindow)
	}
	rest := 1 - draw
	return rest * (0.5 + score/2), draw, rest * (0.5 - score/2)
}

// nudge shifts at most two points between home and away in the direction
// the market is moving.
func nudge(home, draw, away float64, m *model.MarketDrift) (float64, float64, float64) {
	if m == nil {
		return home, draw, away
	}
	shift := maxMarketNudge * clampUnit(m.Velocity)
	return math.Max(home+shift, 0), draw, math.Max(away-shift, 0)
}

func trendValue(t model.Trend) float64 {
	switch t {
	case model.TrendImproving:
		return trendBonus
	case model.TrendDeclining:
		return -trendBonus
	default:
		return 0
	}
}

func clampUnit(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(-1, math.Min(1, x))
}
