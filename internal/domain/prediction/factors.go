package prediction

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/fixturecast/internal/domain/model"
)

// Thresholds below which optional factors are not reported.
const (
	marketThreshold  = 0.08
	weatherThreshold = 0.1
	injuryThreshold  = 0.15
)

// Factor names.
const (
	FactorForm          = "form"
	FactorExpectedGoals = "expected_goals"
	FactorVenue         = "venue"
	FactorHeadToHead    = "head_to_head"
	FactorMarket        = "market_drift"
	FactorWeather       = "weather"
	FactorInjuries      = "injuries"
)

func keyFactors(f model.MatchFeatures, s signals, limit int) []model.KeyFactor {
	out := []model.KeyFactor{
		{
			Name:   FactorForm,
			Impact: s.form,
			Rationale: fmt.Sprintf("Home side took %d points from the last five (%s) against %d (%s).",
				f.HomeForm.Points, trendOrStable(f.HomeForm.Trend), f.AwayForm.Points, trendOrStable(f.AwayForm.Trend)),
		},
		{
			Name:      FactorExpectedGoals,
			Impact:    s.xg,
			Rationale: fmt.Sprintf("Expected goals %.2f vs %.2f.", s.homeXG, s.awayXG),
		},
		{
			Name:      FactorVenue,
			Impact:    s.venue,
			Rationale: fmt.Sprintf("Venue advantage rated %.2f for the home side.", s.venue),
		},
	}

	if h := f.HeadToHead; h.Total() > 0 {
		out = append(out, model.KeyFactor{
			Name:      FactorHeadToHead,
			Impact:    s.h2h,
			Rationale: fmt.Sprintf("Home side won %d of %d previous meetings, %d drawn.", h.HomeWins, h.Total(), h.Draws),
		})
	}
	if m := f.Market; m != nil && math.Abs(m.Velocity) > marketThreshold {
		side := "home"
		if m.Velocity < 0 {
			side = "away"
		}
		out = append(out, model.KeyFactor{
			Name:      FactorMarket,
			Impact:    clampUnit(m.Velocity),
			Rationale: fmt.Sprintf("Market money is moving towards the %s side (velocity %.2f).", side, m.Velocity),
		})
	}
	if w := f.Weather; w != nil && math.Abs(*w) > weatherThreshold {
		effect := "suppress"
		if *w > 0 {
			effect = "favour"
		}
		out = append(out, model.KeyFactor{
			Name:      FactorWeather,
			Impact:    clampUnit(*w),
			Rationale: fmt.Sprintf("Conditions expected to %s scoring (modifier %.2f).", effect, *w),
		})
	}
	if math.Abs(s.injury) > injuryThreshold {
		out = append(out, model.KeyFactor{
			Name:      FactorInjuries,
			Impact:    s.injury,
			Rationale: fmt.Sprintf("Injury impact %.2f at home vs %.2f away.", f.HomeInjury, f.AwayInjury),
		})
	}

	return rank(out, limit)
}

// rank drops zero-impact factors, orders by |impact| descending (name breaks
// ties) and keeps at most limit entries.
func rank(factors []model.KeyFactor, limit int) []model.KeyFactor {
	kept := factors[:0]
	for _, k := range factors {
		k.Impact = math.Round(k.Impact*1000) / 1000
		if k.Impact != 0 {
			kept = append(kept, k)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		ai, aj := math.Abs(kept[i].Impact), math.Abs(kept[j].Impact)
		if ai != aj {
			return ai > aj
		}
		return kept[i].Name < kept[j].Name
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

func trendOrStable(t model.Trend) model.Trend {
	if t == "" {
		return model.TrendStable
	}
	return t
}
