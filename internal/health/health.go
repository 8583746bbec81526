package health

import (
	"fmt"
	"math"
)

// sumTolerance bounds how far a weight table may drift from 1.
const sumTolerance = 1e-9

// #region aggregate
// Aggregate combines raw metric values with weights into a Record.
// Pure and idempotent: identical inputs produce an identical Record.
func Aggregate(values Values, weights Weights) Record {
	rec := Record{Entries: make(map[Metric]Entry, len(Metrics))}
	for _, m := range Metrics {
		v := values.Get(m)
		w := weights[m]
		rec.Entries[m] = Entry{Value: v, Weight: w}
		rec.Overall += w * v
	}
	return rec
}

// AggregateAt aggregates using the schedule's weights for the given iteration.
func AggregateAt(values Values, schedule Schedule, iteration int) Record {
	return Aggregate(values, schedule.WeightsAt(iteration))
}

// #endregion aggregate

// #region validate
// Validate checks the record invariants: non-negative weights summing to 1,
// and every value (including Overall) in [0,1].
func (r Record) Validate() error {
	var sum float64
	for _, m := range Metrics {
		e, ok := r.Entries[m]
		if !ok {
			return fmt.Errorf("missing metric %s", m)
		}
		if e.Weight < 0 {
			return fmt.Errorf("%s weight %.6f is negative", m, e.Weight)
		}
		if e.Value < 0 || e.Value > 1 || math.IsNaN(e.Value) {
			return fmt.Errorf("%s value %.6f outside [0,1]", m, e.Value)
		}
		sum += e.Weight
	}
	if math.Abs(sum-1) > sumTolerance {
		return fmt.Errorf("weights sum to %.12f, want 1", sum)
	}
	if r.Overall < 0 || r.Overall > 1+sumTolerance || math.IsNaN(r.Overall) {
		return fmt.Errorf("overall %.6f outside [0,1]", r.Overall)
	}
	return nil
}

// Validate checks the table is well-formed: it starts at 0, From is strictly
// increasing, and each stage's weights are non-negative and sum to 1.
func (s Schedule) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schedule is empty")
	}
	if s[0].From != 0 {
		return fmt.Errorf("first stage starts at %d, want 0", s[0].From)
	}
	for i, st := range s {
		if i > 0 && st.From <= s[i-1].From {
			return fmt.Errorf("stage %d starts at %d, not after %d", i, st.From, s[i-1].From)
		}
		for _, m := range Metrics {
			if st.Weights[m] < 0 {
				return fmt.Errorf("stage %d: %s weight is negative", i, m)
			}
		}
		if sum := st.Weights.Sum(); math.Abs(sum-1) > sumTolerance {
			return fmt.Errorf("stage %d: weights sum to %.12f, want 1", i, sum)
		}
	}
	return nil
}

// #endregion validate
