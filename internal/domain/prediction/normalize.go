package prediction

import "math"

const (
	acceptTolerance = 0.1
	spreadThreshold = 0.2
	floatSlack      = 1e-9
)

// Normalize turns a probability triple in [0, 1] into percentages that sum
// to 100 within 0.1 after rounding to one decimal.
//
// Stages: scale and clamp to [0, 100], round; if the total is off by more
// than 0.1 the whole shortfall goes to the largest bucket (ties favour home,
// then draw); if it is still off by more than 0.2 a third of the shortfall
// goes to every bucket. Clamping can leave the total outside the tolerance
// after those stages, in which case the triple is rescaled proportionally.
func Normalize(home, draw, away float64) (float64, float64, float64) {
	v := [3]float64{pct(home), pct(draw), pct(away)}
	if v[0] == 0 && v[1] == 0 && v[2] == 0 {
		return 33.4, 33.3, 33.3
	}

	shortfall := round1(100 - sum(v))
	if math.Abs(shortfall) <= acceptTolerance+floatSlack {
		return v[0], v[1], v[2]
	}

	i := largest(v)
	v[i] = clampRound(v[i] + shortfall)

	shortfall = 100 - sum(v)
	if math.Abs(shortfall) > spreadThreshold+floatSlack {
		for j := range v {
			v[j] = clampRound(v[j] + shortfall/3)
		}
	}

	if math.Abs(100-sum(v)) > acceptTolerance+floatSlack {
		v = rescale(v)
	}
	return v[0], v[1], v[2]
}

func rescale(v [3]float64) [3]float64 {
	total := sum(v)
	if total <= 0 {
		return [3]float64{33.4, 33.3, 33.3}
	}
	for j := range v {
		v[j] = clampRound(v[j] * 100 / total)
	}
	i := largest(v)
	v[i] = clampRound(v[i] + 100 - sum(v))
	return v
}

func pct(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return clampRound(p * 100)
}

func clampRound(x float64) float64 {
	return round1(math.Max(0, math.Min(100, x)))
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }

func sum(v [3]float64) float64 { return v[0] + v[1] + v[2] }

// largest returns the index of the biggest bucket; earlier buckets win ties.
func largest(v [3]float64) int {
	i := 0
	for j := 1; j < len(v); j++ {
		if v[j] > v[i] {
			i = j
		}
	}
	return i
}
