package prediction

import (
	"fmt"
	"strings"

	"github.com/okian/fixturecast/internal/domain/model"
)

const (
	highThreshold   = 0.75
	mediumThreshold = 0.55
	xgGap           = 0.5
)

// confidenceLevel blends model confidence (0..1) with feature completeness
// (0..100) at 60/40.
func confidenceLevel(modelConfidence, completeness float64) model.ConfidenceLevel {
	c := 0.6*clamp01(modelConfidence) + 0.4*clamp01(completeness/100)
	switch {
	case c >= highThreshold:
		return model.ConfidenceHigh
	case c >= mediumThreshold:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func explain(p model.Probabilities, factors []model.KeyFactor, xg model.ExpectedGoals) string {
	outcome, share := leader(p)
	var b strings.Builder
	fmt.Fprintf(&b, "%s is the most likely result at %.0f%%.", labelFor(outcome), share)

	if len(factors) > 0 {
		top := factors[0]
		fmt.Fprintf(&b, " The most influential factor is %s, which has a %s impact on the home team's chances.",
			strings.ReplaceAll(top.Name, "_", " "), direction(top.Impact))
	}
	if len(factors) > 1 {
		fmt.Fprintf(&b, " %s also plays a significant role.", capitalize(strings.ReplaceAll(factors[1].Name, "_", " ")))
	}

	switch {
	case xg.Home > xg.Away+xgGap:
		fmt.Fprintf(&b, " The home team is expected to create significantly more chances (%.1f vs %.1f xG).", xg.Home, xg.Away)
	case xg.Away > xg.Home+xgGap:
		fmt.Fprintf(&b, " The away team is expected to create more scoring opportunities (%.1f vs %.1f xG).", xg.Away, xg.Home)
	default:
		fmt.Fprintf(&b, " Both teams are expected to create similar amounts of chances (%.1f vs %.1f xG).", xg.Home, xg.Away)
	}
	return b.String()
}

func direction(impact float64) string {
	if impact < 0 {
		return "negative"
	}
	return "positive"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
