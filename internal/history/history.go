package history

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/nef-optimizer/internal/health"
)

// ErrDimensionMismatch is returned when a vector's length differs from the run's dimensionality.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// #region view
// View is a read-only window onto a run's histories. Consumers must not
// mutate the slices it exposes; only History appends.
type View struct {
	Params [][]float64
	Losses []float64
	Grads  [][]float64
}

// LastGrad returns the most recent gradient, or nil if none was recorded or
// the latest one was unavailable.
func (v View) LastGrad() []float64 {
	if len(v.Grads) == 0 {
		return nil
	}
	return v.Grads[len(v.Grads)-1]
}

// #endregion view

// #region history
// History owns the append-only sequences of a single run. Params carries the
// initial point at index 0, so len(Params) == Iterations()+1 after each
// completed iteration.
type History struct {
	dim       int
	params    [][]float64
	losses    []float64
	grads     [][]float64
	health    []health.Record
	pauses    []int
	anomalies []int
}

// New starts a history at the initial point. The vector is copied.
func New(initial []float64) *History {
	return &History{
		dim:    len(initial),
		params: [][]float64{Clone(initial)},
	}
}

// Dim returns the run's dimensionality.
func (h *History) Dim() int { return h.dim }

// Iterations returns the number of recorded losses.
func (h *History) Iterations() int { return len(h.losses) }

// AppendEvaluation records the loss and gradient observed at the current point.
// A nil grad marks the gradient as unavailable for this iteration.
func (h *History) AppendEvaluation(loss float64, grad []float64) error {
	if grad == nil {
		h.losses = append(h.losses, loss)
		h.grads = append(h.grads, nil)
		return nil
	}
	if len(grad) != h.dim {
		return fmt.Errorf("gradient has %d components, want %d: %w", len(grad), h.dim, ErrDimensionMismatch)
	}
	h.losses = append(h.losses, loss)
	h.grads = append(h.grads, Clone(grad))
	return nil
}

// AppendHealth records the iteration's health breakdown.
func (h *History) AppendHealth(rec health.Record) {
	h.health = append(h.health, rec)
}

// AppendParams records the point produced by a step.
func (h *History) AppendParams(params []float64) error {
	if len(params) != h.dim {
		return fmt.Errorf("params have %d components, want %d: %w", len(params), h.dim, ErrDimensionMismatch)
	}
	h.params = append(h.params, Clone(params))
	return nil
}

// MarkPause records a pause at iteration i; anomalous marks it as an anomaly event too.
func (h *History) MarkPause(i int, anomalous bool) {
	h.pauses = append(h.pauses, i)
	if anomalous {
		h.anomalies = append(h.anomalies, i)
	}
}

// View exposes the histories without copying.
func (h *History) View() View {
	return View{Params: h.params, Losses: h.losses, Grads: h.grads}
}

// Current returns the latest point.
func (h *History) Current() []float64 {
	return h.params[len(h.params)-1]
}

// Snapshot returns the accumulated sequences for hand-off to callers.
func (h *History) Snapshot() Snapshot {
	return Snapshot{
		Params:    h.params,
		Losses:    h.losses,
		Grads:     h.grads,
		Health:    h.health,
		Pauses:    h.pauses,
		Anomalies: h.anomalies,
	}
}

// #endregion history

// #region snapshot
// Snapshot is the externally visible shape of a run's histories, index-aligned
// with the iteration number.
type Snapshot struct {
	Params    [][]float64     `json:"param_history"`
	Losses    []float64       `json:"loss_history"`
	Grads     [][]float64     `json:"grad_history"`
	Health    []health.Record `json:"health_history"`
	Pauses    []int           `json:"pause_points"`
	Anomalies []int           `json:"anomaly_points"`
}

// #endregion snapshot

// #region helpers
// Clone copies a vector.
func Clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// Tail returns the last n elements of s, or all of s when shorter.
func Tail[T any](s []T, n int) []T {
	if n >= len(s) {
		return s
	}
	if n <= 0 {
		return s[:0]
	}
	return s[len(s)-n:]
}

// #endregion helpers
