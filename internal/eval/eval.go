package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/nef-optimizer/internal/health"
	"github.com/danielpatrickdp/nef-optimizer/internal/history"
)

// #region eval-harness
// EvalHarness validates a finished run's histories against the run invariants.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks history alignment, health record validity, event ordering and
// (informationally, unless configured) loss progress.
func (h *EvalHarness) Run(snap history.Snapshot) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass && reason != "" {
			failReasons = append(failReasons, reason)
		}
	}

	iterations := len(snap.Losses)

	// 1. Index alignment
	check("param_history_len", float64(len(snap.Params)), len(snap.Params) == iterations+1,
		fmt.Sprintf("param history has %d entries, want %d", len(snap.Params), iterations+1))
	check("grad_history_len", float64(len(snap.Grads)), len(snap.Grads) == iterations,
		fmt.Sprintf("grad history has %d entries, want %d", len(snap.Grads), iterations))
	check("health_history_len", float64(len(snap.Health)), len(snap.Health) == iterations,
		fmt.Sprintf("health history has %d entries, want %d", len(snap.Health), iterations))

	// 2. Health records: worst weight drift and count of invalid records
	var invalid int
	var worstDrift float64
	var firstInvalid string
	for i, rec := range snap.Health {
		drift := math.Abs(sumWeights(rec.Entries) - 1)
		worstDrift = math.Max(worstDrift, drift)
		if err := rec.Validate(); err != nil || drift > h.config.WeightTolerance {
			invalid++
			if firstInvalid == "" {
				firstInvalid = fmt.Sprintf("health record %d invalid", i)
				if err != nil {
					firstInvalid = fmt.Sprintf("health record %d: %v", i, err)
				}
			}
		}
	}
	check("weight_drift", worstDrift, worstDrift <= h.config.WeightTolerance, "")
	check("invalid_health_records", float64(invalid), invalid == 0, firstInvalid)

	// 3. Events strictly increasing, in range, anomalies a subset of pauses
	check("pause_events", float64(len(snap.Pauses)), ordered(snap.Pauses, iterations),
		"pause events out of order or out of range")
	check("anomaly_events", float64(len(snap.Anomalies)), ordered(snap.Anomalies, iterations) && subset(snap.Anomalies, snap.Pauses),
		"anomaly events out of order or not paired with a pause")

	// 4. Progress: informational unless RequireProgress
	if iterations > 0 {
		delta := snap.Losses[iterations-1] - snap.Losses[0]
		progress := delta < 0
		metrics = append(metrics, EvalMetric{Name: "loss_delta", Value: delta, Pass: progress})
		if !progress && h.config.RequireProgress {
			failReasons = append(failReasons, fmt.Sprintf("final loss did not improve (delta %.6g)", delta))
		}
	}

	passed := len(failReasons) == 0
	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func sumWeights(entries map[health.Metric]health.Entry) float64 {
	var s float64
	for _, m := range health.Metrics {
		s += entries[m].Weight
	}
	return s
}

func ordered(events []int, iterations int) bool {
	for i, e := range events {
		if e < 0 || e >= iterations {
			return false
		}
		if i > 0 && e <= events[i-1] {
			return false
		}
	}
	return true
}

func subset(sub, super []int) bool {
	set := make(map[int]struct{}, len(super))
	for _, s := range super {
		set[s] = struct{}{}
	}
	for _, s := range sub {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

// #endregion helpers
