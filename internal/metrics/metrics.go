package metrics

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/nef-optimizer/internal/health"
	"github.com/danielpatrickdp/nef-optimizer/internal/history"
	"github.com/danielpatrickdp/nef-optimizer/internal/objective"
)

// #region compute
// Compute evaluates all five calculators for the current iteration. params is
// the point the latest loss was measured at. probe may be nil.
func Compute(view history.View, objectives objective.Set, params []float64, probe *Probe, cfg Config) (health.Values, error) {
	balance, err := Balance(objectives, params, view.Params, cfg.BalanceWindow)
	if err != nil {
		return health.Values{}, err
	}
	return health.Values{
		Stability:   Stability(view.Params, cfg.StabilityWindow),
		Diversity:   Diversity(view.Grads, cfg.DiversityWindow),
		Resilience:  Resilience(view.Losses, probe, cfg.ResilienceWindow),
		Balance:     balance,
		Integration: Integration(params, view.Params, cfg.IntegrationWindow),
	}, nil
}

// #endregion compute

// #region stability
// Stability scores how little the parameters moved over the window:
// 1/(1+10*mean per-coordinate variance).
func Stability(params [][]float64, window int) float64 {
	if window < 1 || len(params) < window {
		return healthyDefault
	}
	recent := history.Tail(params, window)
	dim := len(recent[0])
	if dim == 0 {
		return healthyDefault
	}
	var sumVar float64
	for i := 0; i < dim; i++ {
		sumVar += variance(column(recent, i))
	}
	return clamp(1.0 / (1.0 + stabilityScale*sumVar/float64(dim)))
}

// #endregion stability

// #region diversity
// Diversity is 1 minus the magnitude of the mean unit gradient. Aligned
// gradients score near 0; gradients that cancel score near 1.
func Diversity(grads [][]float64, window int) float64 {
	if window < 1 || len(grads) < window {
		return healthyDefault
	}
	recent := history.Tail(grads, window)
	avg := make([]float64, len(recent[0]))
	for _, g := range recent {
		if len(g) != len(avg) {
			continue
		}
		n := norm(g)
		for i := range avg {
			if n > normFloor {
				avg[i] += g[i] / n
			} else {
				avg[i] += g[i]
			}
		}
	}
	for i := range avg {
		avg[i] /= float64(len(recent))
	}
	mag := math.Max(norm(avg), normFloor)
	return 1.0 - math.Min(mag, 1.0)
}

// #endregion diversity

// #region resilience
// Resilience averages recovery ratios of spike-then-recovery triples in the
// trailing window, capped at 1. With no triple it returns 0.8. A non-nil
// probe takes precedence over the history estimate.
func Resilience(losses []float64, probe *Probe, window int) float64 {
	if probe != nil {
		return clamp(probe.RecoveryScore)
	}
	n := len(losses)
	if n < window {
		return healthyDefault
	}
	var sum float64
	var count int
	for i := n - window; i < n-1; i++ {
		if i < 1 {
			continue
		}
		rise := losses[i] - losses[i-1]
		if rise > 0 && losses[i+1] < losses[i] {
			sum += (losses[i] - losses[i+1]) / rise
			count++
		}
	}
	if count == 0 {
		return noRecoveryScore
	}
	return math.Min(1.0, sum/float64(count))
}

// #endregion resilience

// #region balance
// Balance compares each objective's relative change over the window and
// returns 1/(1+5*stddev). A set of zero or one objectives is trivially balanced.
func Balance(objectives objective.Set, params []float64, paramsHistory [][]float64, window int) (float64, error) {
	if len(objectives) <= 1 {
		return 1.0, nil
	}
	if len(paramsHistory) < window || window <= 0 {
		return neutralDefault, nil
	}
	past := paramsHistory[len(paramsHistory)-window]
	changes := make([]float64, 0, len(objectives))
	for _, name := range objectives.Names() {
		fn := objectives[name]
		now, err := fn(params)
		if err != nil {
			return 0, fmt.Errorf("objective %s: %w", name, err)
		}
		before, err := fn(past)
		if err != nil {
			return 0, fmt.Errorf("objective %s: %w", name, err)
		}
		changes = append(changes, (now-before)/math.Max(math.Abs(before), normFloor))
	}
	return 1.0 / (1.0 + balanceScale*math.Sqrt(variance(changes))), nil
}

// #endregion balance

// #region integration
// Integration scores trajectory smoothness: per coordinate,
// 1/(1+10*mean |second difference|), averaged across coordinates.
func Integration(params []float64, paramsHistory [][]float64, window int) float64 {
	if len(paramsHistory) < window || window < 3 {
		return neutralDefault
	}
	recent := history.Tail(paramsHistory, window)
	if len(params) == 0 {
		return neutralDefault
	}
	var total float64
	for i := range params {
		values := column(recent, i)
		var curv float64
		for j := 0; j+2 < len(values); j++ {
			curv += math.Abs(values[j+2] - 2*values[j+1] + values[j])
		}
		curv /= float64(len(values) - 2)
		total += 1.0 / (1.0 + integrationScale*curv)
	}
	return clamp(total / float64(len(params)))
}

// #endregion integration

// #region helpers
func column(rows [][]float64, i int) []float64 {
	out := make([]float64, len(rows))
	for j, r := range rows {
		out[j] = r[i]
	}
	return out
}

// variance is the population variance.
func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return ss / float64(len(xs))
}

func norm(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

// clamp restricts v to [0, 1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
