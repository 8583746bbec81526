package optimizer

import (
	"math"

	"github.com/danielpatrickdp/nef-optimizer/internal/detect"
	"github.com/danielpatrickdp/nef-optimizer/internal/health"
	"github.com/danielpatrickdp/nef-optimizer/internal/history"
	"github.com/danielpatrickdp/nef-optimizer/internal/integrate"
	"github.com/danielpatrickdp/nef-optimizer/internal/metrics"
	"github.com/danielpatrickdp/nef-optimizer/internal/step"
)

// #region config
// Config holds the run-level knobs.
type Config struct {
	LearningRate         float64         `yaml:"learning_rate" json:"learning_rate"`
	MaxIterations        int             `yaml:"max_iterations" json:"max_iterations"`
	ConvergenceThreshold float64         `yaml:"convergence_threshold" json:"convergence_threshold"`
	Seed                 int64           `yaml:"seed" json:"seed"`
	Metrics              metrics.Config  `yaml:"metrics" json:"metrics"`
	Detect               detect.Config   `yaml:"detect" json:"detect"`
	Schedule             health.Schedule `yaml:"schedule" json:"schedule"`
}

// DefaultConfig returns lr 0.01, 1000 iterations, convergence below 1e-6.
func DefaultConfig() Config {
	return Config{
		LearningRate:         0.01,
		MaxIterations:        1000,
		ConvergenceThreshold: 1e-6,
		Seed:                 1,
		Metrics:              metrics.DefaultConfig(),
		Detect:               detect.DefaultConfig(),
		Schedule:             health.DefaultSchedule(),
	}
}

// #endregion config

// #region probe
// ProbeFunc optionally runs a perturbation test at the given iteration. A nil
// probe result leaves resilience to the loss-history estimate.
type ProbeFunc func(iteration int, params []float64) (*metrics.Probe, error)

// #endregion probe

// #region decision-event
// DecisionEvent describes one iteration's outcome for provenance sinks.
type DecisionEvent struct {
	RunID      string
	Iteration  int
	Loss       float64
	Record     health.Record
	State      step.State
	Decision   step.Decision
	Plan       *integrate.Plan
	Pause      bool
	Anomalous  bool
	AdjustedLR float64
}

// DecisionSink receives every iteration's decision. Implementations must not
// retain or mutate Record beyond the call.
type DecisionSink interface {
	Record(ev DecisionEvent) error
}

// #endregion decision-event

// #region result
// Result is everything a run exposes to collaborators.
type Result struct {
	RunID      string
	Final      []float64
	Iterations int
	Converged  bool
	History    history.Snapshot
	Decisions  []step.Decision
}

// FinalLoss returns the last recorded loss, or NaN for an empty run.
func (r Result) FinalLoss() float64 {
	if len(r.History.Losses) == 0 {
		return math.NaN()
	}
	return r.History.Losses[len(r.History.Losses)-1]
}

// #endregion result
