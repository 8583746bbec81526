package integrate

import (
	"fmt"

	"github.com/danielpatrickdp/nef-optimizer/internal/detect"
	"github.com/danielpatrickdp/nef-optimizer/internal/health"
	"github.com/danielpatrickdp/nef-optimizer/internal/history"
)

// #region select
// Select picks the correction for a paused iteration. Rules are checked in
// order and the first match wins: anomalies, plateau with oscillation,
// plateau, oscillation, then a small default perturbation.
func Select(v detect.Verdict) Plan {
	if worst, ok := detect.Worst(v.Anomalies); ok {
		return anomalyPlan(worst)
	}
	switch {
	case v.Plateau && v.Oscillation:
		return Plan{
			Strategy: StrategyInjectDiversity,
			Trigger:  TriggerSaddle,
			Scale:    SaddleScale,
			Reason:   "plateau with oscillation: saddle-point escape",
		}
	case v.Plateau:
		return Plan{
			Strategy: StrategyInjectDiversity,
			Trigger:  TriggerPlateau,
			Scale:    PlateauScale,
			Reason:   "plateau: local-minimum escape",
		}
	case v.Oscillation:
		return Plan{
			Strategy: StrategyAverageHistory,
			Trigger:  TriggerOscillation,
			Depth:    AverageHistoryDepth,
			Reason:   "oscillation: average recent parameters",
		}
	}
	return Plan{
		Strategy: StrategyInjectDiversity,
		Trigger:  TriggerLowHealth,
		Scale:    LowHealthScale,
		Reason:   "low overall health",
	}
}

func anomalyPlan(a health.Anomaly) Plan {
	p := Plan{Trigger: TriggerAnomaly, Anomaly: &a}
	switch a.Metric {
	case health.Stability:
		p.Strategy = StrategyDamp
		p.Reason = fmt.Sprintf("stability anomaly (severity %.3f): damp parameters", a.Severity)
	case health.Diversity:
		p.Strategy = StrategyInjectDiversity
		p.Scale = AnomalyDiversity
		p.Reason = fmt.Sprintf("diversity anomaly (severity %.3f): inject diversity", a.Severity)
	default:
		// TODO: resilience could pull toward the recent-history mean once that
		// correction is specified; until then it shares the small fallback.
		p.Strategy = StrategyInjectDiversity
		p.Scale = AnomalyFallback
		p.Reason = fmt.Sprintf("%s anomaly (severity %.3f): small perturbation", a.Metric, a.Severity)
	}
	return p
}

// #endregion select

// #region apply
// Apply executes a plan against params and returns a new vector. Neither
// params nor paramsHistory is modified.
func Apply(p Plan, params []float64, paramsHistory [][]float64, src Source) []float64 {
	switch p.Strategy {
	case StrategyDamp:
		return Damp(params, DampFactor)
	case StrategyAverageHistory:
		return AverageHistory(params, paramsHistory, p.Depth)
	default:
		return InjectDiversity(params, p.Scale, src)
	}
}

// Damp scales every coordinate by factor.
func Damp(params []float64, factor float64) []float64 {
	out := make([]float64, len(params))
	for i, p := range params {
		out[i] = p * factor
	}
	return out
}

// InjectDiversity adds an independent offset in [-scale/2, scale/2) to each
// coordinate. A zero scale returns an unchanged copy without drawing samples.
func InjectDiversity(params []float64, scale float64, src Source) []float64 {
	out := history.Clone(params)
	if scale == 0 {
		return out
	}
	for i := range out {
		out[i] += scale * (src.Float64() - 0.5)
	}
	return out
}

// AverageHistory returns the coordinate-wise mean of the last min(depth,
// len(paramsHistory)) vectors. With no history it returns a copy of params.
func AverageHistory(params []float64, paramsHistory [][]float64, depth int) []float64 {
	recent := history.Tail(paramsHistory, depth)
	if len(recent) == 0 {
		return history.Clone(params)
	}
	out := make([]float64, len(params))
	for _, p := range recent {
		for i := range out {
			out[i] += p[i]
		}
	}
	for i := range out {
		out[i] /= float64(len(recent))
	}
	return out
}

// #endregion apply
