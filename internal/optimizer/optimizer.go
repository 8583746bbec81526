package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/nef-optimizer/internal/health"
	"github.com/danielpatrickdp/nef-optimizer/internal/history"
	"github.com/danielpatrickdp/nef-optimizer/internal/integrate"
	"github.com/danielpatrickdp/nef-optimizer/internal/metrics"
	"github.com/danielpatrickdp/nef-optimizer/internal/objective"
	"github.com/danielpatrickdp/nef-optimizer/internal/step"
	"github.com/google/uuid"
)

var (
	// ErrEmptyParams is returned when the initial point has no coordinates.
	ErrEmptyParams = errors.New("initial params are empty")
	// ErrNoLoss is returned when a problem has no loss function.
	ErrNoLoss = errors.New("problem has no loss function")
	// ErrNonFiniteLoss is returned when the loss evaluates to NaN or ±Inf.
	ErrNonFiniteLoss = errors.New("loss is not finite")
)

// #region optimizer
// Optimizer runs the health-modulated descent loop. An Optimizer owns its
// random source; it is not safe for concurrent Minimize calls.
type Optimizer struct {
	config Config
	source integrate.Source
	sink   DecisionSink
	probe  ProbeFunc
}

// Option customizes an Optimizer.
type Option func(*Optimizer)

// WithSource replaces the seeded random source.
func WithSource(src integrate.Source) Option {
	return func(o *Optimizer) { o.source = src }
}

// WithSink forwards every iteration's decision to sink.
func WithSink(sink DecisionSink) Option {
	return func(o *Optimizer) { o.sink = sink }
}

// WithProbe installs a perturbation-test callback for the resilience metric.
func WithProbe(p ProbeFunc) Option {
	return func(o *Optimizer) { o.probe = p }
}

// New creates an optimizer. Without WithSource it seeds its own generator
// from config.Seed.
func New(config Config, opts ...Option) *Optimizer {
	o := &Optimizer{config: config}
	for _, opt := range opts {
		opt(o)
	}
	if o.source == nil {
		o.source = integrate.NewSource(config.Seed)
	}
	return o
}

// Config returns the optimizer's configuration.
func (o *Optimizer) Config() Config { return o.config }

// #endregion optimizer

// #region minimize
// Minimize runs until MaxIterations or until the loss falls below the
// convergence threshold. Loss and gradient errors abort the run; the partial
// result is returned alongside the error. ctx is checked once per iteration.
func (o *Optimizer) Minimize(ctx context.Context, p objective.Problem) (Result, error) {
	if len(p.Initial) == 0 {
		return Result{}, ErrEmptyParams
	}
	if p.Loss == nil {
		return Result{}, ErrNoLoss
	}
	objectives := p.ObjectiveSet()

	runID := uuid.New().String()
	hist := history.New(p.Initial)
	params := history.Clone(p.Initial)
	var decisions []step.Decision
	converged := false

	result := func() Result {
		return Result{
			RunID:      runID,
			Final:      params,
			Iterations: hist.Iterations(),
			Converged:  converged,
			History:    hist.Snapshot(),
			Decisions:  decisions,
		}
	}

	for i := 0; i < o.config.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return result(), err
		}

		// 1. Evaluate at the current point
		loss, err := p.Loss(params)
		if err != nil {
			return result(), fmt.Errorf("iteration %d: evaluate loss: %w", i, err)
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return result(), fmt.Errorf("iteration %d: loss %v: %w", i, loss, ErrNonFiniteLoss)
		}
		grad, err := o.evaluateGrad(p, params)
		if err != nil {
			return result(), fmt.Errorf("iteration %d: %w", i, err)
		}
		if err := hist.AppendEvaluation(loss, grad); err != nil {
			return result(), fmt.Errorf("iteration %d: %w", i, err)
		}

		// 2. Health
		var probe *metrics.Probe
		if o.probe != nil {
			if probe, err = o.probe(i, params); err != nil {
				return result(), fmt.Errorf("iteration %d: probe: %w", i, err)
			}
		}
		values, err := metrics.Compute(hist.View(), objectives, params, probe, o.config.Metrics)
		if err != nil {
			return result(), fmt.Errorf("iteration %d: metrics: %w", i, err)
		}
		rec := health.AggregateAt(values, o.config.Schedule, i)
		hist.AppendHealth(rec)

		// 3. Decide and move
		res, err := step.Step(step.Input{
			Params:       params,
			View:         hist.View(),
			Record:       rec,
			LearningRate: o.config.LearningRate,
			Grad:         p.Grad,
			Detect:       o.config.Detect,
			Source:       o.source,
		})
		if err != nil {
			return result(), fmt.Errorf("iteration %d: step: %w", i, err)
		}
		anomalous := res.Verdict.Pause && len(res.Verdict.Anomalies) > 0
		if res.Verdict.Pause {
			hist.MarkPause(i, anomalous)
		}
		decisions = append(decisions, res.Decision)

		if o.sink != nil {
			err := o.sink.Record(DecisionEvent{
				RunID:      runID,
				Iteration:  i,
				Loss:       loss,
				Record:     rec,
				State:      res.State,
				Decision:   res.Decision,
				Plan:       res.Plan,
				Pause:      res.Verdict.Pause,
				Anomalous:  anomalous,
				AdjustedLR: res.AdjustedLR,
			})
			if err != nil {
				return result(), fmt.Errorf("iteration %d: record decision: %w", i, err)
			}
		}

		params = res.Params
		if err := hist.AppendParams(params); err != nil {
			return result(), fmt.Errorf("iteration %d: %w", i, err)
		}

		// 4. Convergence
		if loss < o.config.ConvergenceThreshold {
			converged = true
			break
		}
	}

	return result(), nil
}

// #endregion minimize

// #region helpers
// evaluateGrad returns the gradient at params for the history. Problems
// without a gradient function record nil so the histories stay index-aligned
// and the step controller sees no usable gradient.
func (o *Optimizer) evaluateGrad(p objective.Problem, params []float64) ([]float64, error) {
	if p.Grad == nil {
		return nil, nil
	}
	g, err := p.Grad(params)
	if err != nil {
		return nil, fmt.Errorf("evaluate gradient: %w", err)
	}
	return g, nil
}

// #endregion helpers
