package detect

import (
	"fmt"
	"math"
	"strings"

	"github.com/danielpatrickdp/nef-optimizer/internal/health"
	"github.com/danielpatrickdp/nef-optimizer/internal/history"
)

const meanFloor = 1e-10

// #region plateau
// Plateau reports whether the trailing losses span a relative range below
// threshold: (max-min)/(mean+1e-10) < threshold.
func Plateau(losses []float64, window int, threshold float64) bool {
	if len(losses) < window || window <= 0 {
		return false
	}
	recent := history.Tail(losses, window)
	lo, hi := math.Inf(1), math.Inf(-1)
	var sum float64
	for _, l := range recent {
		lo = math.Min(lo, l)
		hi = math.Max(hi, l)
		sum += l
	}
	mean := sum / float64(len(recent))
	return (hi-lo)/(mean+meanFloor) < threshold
}

// #endregion plateau

// #region oscillation
// FlipRatio counts sign flips between consecutive gradients, per coordinate,
// over the trailing window and divides by the number of comparisons.
func FlipRatio(grads [][]float64, window int) float64 {
	if len(grads) < window || window < 2 {
		return 0
	}
	recent := history.Tail(grads, window)
	var flips, total int
	for i := range recent[0] {
		for j := 1; j < len(recent); j++ {
			if len(recent[j]) <= i || len(recent[j-1]) <= i {
				continue
			}
			if recent[j][i]*recent[j-1][i] < 0 {
				flips++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(flips) / float64(total)
}

// Oscillation reports whether the flip ratio exceeds threshold.
func Oscillation(grads [][]float64, window int, threshold float64) bool {
	if len(grads) < window {
		return false
	}
	return FlipRatio(grads, window) > threshold
}

// #endregion oscillation

// #region anomalies
// Anomalies returns one entry per metric whose value is below threshold,
// in canonical metric order, with severity 1 - value.
func Anomalies(rec health.Record, threshold float64) []health.Anomaly {
	var out []health.Anomaly
	for _, m := range health.Metrics {
		e, ok := rec.Entries[m]
		if !ok {
			continue
		}
		if e.Value < threshold {
			out = append(out, health.Anomaly{
				Metric:   m,
				Value:    e.Value,
				Severity: 1.0 - e.Value,
			})
		}
	}
	return out
}

// Worst returns the anomaly with the highest severity; ties go to the earliest.
func Worst(anomalies []health.Anomaly) (health.Anomaly, bool) {
	if len(anomalies) == 0 {
		return health.Anomaly{}, false
	}
	worst := anomalies[0]
	for _, a := range anomalies[1:] {
		if a.Severity > worst.Severity {
			worst = a
		}
	}
	return worst, true
}

// #endregion anomalies

// #region pause
// ShouldPause is the pure disjunction: plateau, oscillation, or overall
// health strictly below the threshold.
func ShouldPause(losses []float64, grads [][]float64, overall float64, cfg Config) bool {
	return Plateau(losses, cfg.PlateauWindow, cfg.PlateauThreshold) ||
		Oscillation(grads, cfg.OscillationWindow, cfg.OscillationThreshold) ||
		overall < cfg.HealthThreshold
}

// Evaluate runs every detector against the histories and the iteration's
// health record and returns a single verdict.
func Evaluate(view history.View, rec health.Record, cfg Config) Verdict {
	v := Verdict{
		Plateau:     Plateau(view.Losses, cfg.PlateauWindow, cfg.PlateauThreshold),
		Oscillation: Oscillation(view.Grads, cfg.OscillationWindow, cfg.OscillationThreshold),
		LowHealth:   rec.Overall < cfg.HealthThreshold,
		Anomalies:   Anomalies(rec, cfg.AnomalyThreshold),
	}
	v.Pause = v.Plateau || v.Oscillation || v.LowHealth

	var reasons []string
	if v.Plateau {
		reasons = append(reasons, "plateau")
	}
	if v.Oscillation {
		reasons = append(reasons, "oscillation")
	}
	if v.LowHealth {
		reasons = append(reasons, fmt.Sprintf("overall health %.4f below %.2f", rec.Overall, cfg.HealthThreshold))
	}
	if v.Pause {
		v.Reason = "pause: " + strings.Join(reasons, ", ")
	} else {
		v.Reason = fmt.Sprintf("healthy: overall=%.4f", rec.Overall)
	}
	return v
}

// #endregion pause
