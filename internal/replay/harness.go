package replay

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/nef-optimizer/internal/detect"
	"github.com/danielpatrickdp/nef-optimizer/internal/health"
	"github.com/danielpatrickdp/nef-optimizer/internal/history"
	"github.com/danielpatrickdp/nef-optimizer/internal/metrics"
	"github.com/danielpatrickdp/nef-optimizer/internal/objective"
	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
)

// overallTolerance bounds the acceptable drift between a recorded and a
// recomputed overall health score.
const overallTolerance = 1e-9

// #region types
// IterationResult compares one recorded iteration against its recomputation.
type IterationResult struct {
	Iteration int

	RecordedOverall   float64
	RecomputedOverall float64

	RecordedPause   bool
	Pause           bool
	RecordedAnomaly bool
	Anomalous       bool

	Verdict detect.Verdict
	Match   bool
	Reason  string
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalIterations int
	Matches         int
	Mismatches      int
	Pauses          int
	Anomalies       int
	FirstMismatch   int // -1 when every iteration matched
}

// #endregion types

// #region replay
// Replay recomputes every iteration's health record and pause verdict from the
// recorded loss, gradient and parameter histories, and reports where the
// recomputation disagrees with what was recorded. Runs that used a
// perturbation probe cannot be reproduced exactly: the probe result is not
// part of the history.
func Replay(snap history.Snapshot, objectives objective.Set, config optimizer.Config) ([]IterationResult, error) {
	n := len(snap.Losses)
	if len(snap.Params) < n || len(snap.Grads) < n || len(snap.Health) < n {
		return nil, fmt.Errorf("replay: histories not aligned (params=%d losses=%d grads=%d health=%d)",
			len(snap.Params), n, len(snap.Grads), len(snap.Health))
	}

	pauses := toSet(snap.Pauses)
	anomalies := toSet(snap.Anomalies)
	results := make([]IterationResult, 0, n)

	for i := 0; i < n; i++ {
		// The view the controller saw at iteration i: evaluation appended,
		// step not yet taken.
		view := history.View{
			Params: snap.Params[:i+1],
			Losses: snap.Losses[:i+1],
			Grads:  snap.Grads[:i+1],
		}
		values, err := metrics.Compute(view, objectives, snap.Params[i], nil, config.Metrics)
		if err != nil {
			return results, fmt.Errorf("replay iteration %d: %w", i, err)
		}
		rec := health.AggregateAt(values, config.Schedule, i)
		verdict := detect.Evaluate(view, rec, config.Detect)

		r := IterationResult{
			Iteration:         i,
			RecordedOverall:   snap.Health[i].Overall,
			RecomputedOverall: rec.Overall,
			RecordedPause:     pauses[i],
			Pause:             verdict.Pause,
			RecordedAnomaly:   anomalies[i],
			Anomalous:         verdict.Pause && len(verdict.Anomalies) > 0,
			Verdict:           verdict,
		}
		r.Match, r.Reason = compare(r)
		results = append(results, r)
	}

	return results, nil
}

func compare(r IterationResult) (bool, string) {
	if math.Abs(r.RecordedOverall-r.RecomputedOverall) > overallTolerance {
		return false, fmt.Sprintf("overall drift: recorded %.6f, recomputed %.6f", r.RecordedOverall, r.RecomputedOverall)
	}
	if r.RecordedPause != r.Pause {
		return false, fmt.Sprintf("pause mismatch: recorded %t, recomputed %t (%s)", r.RecordedPause, r.Pause, r.Verdict.Reason)
	}
	if r.RecordedAnomaly != r.Anomalous {
		return false, fmt.Sprintf("anomaly mismatch: recorded %t, recomputed %t", r.RecordedAnomaly, r.Anomalous)
	}
	return true, r.Verdict.Reason
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []IterationResult) ReplaySummary {
	s := ReplaySummary{
		TotalIterations: len(results),
		FirstMismatch:   -1,
	}
	for _, r := range results {
		if r.Match {
			s.Matches++
		} else {
			s.Mismatches++
			if s.FirstMismatch < 0 {
				s.FirstMismatch = r.Iteration
			}
		}
		if r.Pause {
			s.Pauses++
		}
		if r.Anomalous {
			s.Anomalies++
		}
	}
	return s
}

// #endregion replay

// #region helpers
func toSet(xs []int) map[int]bool {
	set := make(map[int]bool, len(xs))
	for _, x := range xs {
		set[x] = true
	}
	return set
}

// #endregion helpers
