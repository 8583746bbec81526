package compare

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/nef-optimizer/internal/history"
	"github.com/danielpatrickdp/nef-optimizer/internal/objective"
	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
)

// ErrNoGradient is returned when the baseline is asked to run without a gradient function.
var ErrNoGradient = errors.New("gradient descent needs a gradient function")

// Verdict is the three-way summary of a comparison.
type Verdict string

const (
	VerdictOutperformed   Verdict = "outperformed"    // lower loss in fewer iterations
	VerdictBetterCostlier Verdict = "better_costlier" // lower loss, more iterations
	VerdictMixed          Verdict = "mixed"
)

// #region baseline
// Baseline is the outcome of a plain gradient-descent run.
type Baseline struct {
	Final      []float64
	Losses     []float64
	Params     [][]float64
	Grads      [][]float64
	Iterations int
	Converged  bool
}

// GradientDescent runs x ← x − lr·∇f(x) with the same stopping rule as the
// optimizer: at most maxIter iterations, stopping once the loss evaluated at
// the start of an iteration falls below threshold.
func GradientDescent(ctx context.Context, p objective.Problem, lr float64, maxIter int, threshold float64) (Baseline, error) {
	if len(p.Initial) == 0 {
		return Baseline{}, optimizer.ErrEmptyParams
	}
	if p.Loss == nil {
		return Baseline{}, optimizer.ErrNoLoss
	}
	if p.Grad == nil {
		return Baseline{}, ErrNoGradient
	}

	params := history.Clone(p.Initial)
	b := Baseline{Params: [][]float64{history.Clone(params)}}

	for i := 0; i < maxIter; i++ {
		if err := ctx.Err(); err != nil {
			return b, err
		}
		loss, err := p.Loss(params)
		if err != nil {
			return b, fmt.Errorf("gd iteration %d: evaluate loss: %w", i, err)
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return b, fmt.Errorf("gd iteration %d: loss %v: %w", i, loss, optimizer.ErrNonFiniteLoss)
		}
		grad, err := p.Grad(params)
		if err != nil {
			return b, fmt.Errorf("gd iteration %d: evaluate gradient: %w", i, err)
		}
		if len(grad) != len(params) {
			return b, fmt.Errorf("gd iteration %d: gradient has %d components, want %d: %w",
				i, len(grad), len(params), history.ErrDimensionMismatch)
		}
		b.Losses = append(b.Losses, loss)
		b.Grads = append(b.Grads, history.Clone(grad))

		next := make([]float64, len(params))
		for j := range params {
			next[j] = params[j] - lr*grad[j]
		}
		params = next
		b.Params = append(b.Params, history.Clone(params))
		b.Iterations++

		if loss < threshold {
			b.Converged = true
			break
		}
	}

	b.Final = params
	return b, nil
}

// FinalLoss returns the last recorded loss, or NaN for an empty run.
func (b Baseline) FinalLoss() float64 {
	if len(b.Losses) == 0 {
		return math.NaN()
	}
	return b.Losses[len(b.Losses)-1]
}

// #endregion baseline

// #region comparison
// Comparison pairs a framework run with a gradient-descent baseline on the
// same problem, learning rate, iteration cap and convergence threshold.
// Ratios are GD over framework, so values above 1 favor the framework.
type Comparison struct {
	GD        Baseline
	Framework optimizer.Result

	GDTime        time.Duration
	FrameworkTime time.Duration

	LossRatio      float64
	IterationRatio float64
	TimeRatio      float64

	// A side whose loss stopped being finite keeps its partial history and
	// its error here; its final loss counts as +Inf in LossRatio.
	GDErr        error
	FrameworkErr error
}

// Compare runs the framework, then the baseline, and computes the ratios.
// Divergence (ErrNonFiniteLoss) on either side is recorded in the comparison;
// any other error aborts it.
func Compare(ctx context.Context, config optimizer.Config, p objective.Problem, opts ...optimizer.Option) (Comparison, error) {
	var c Comparison

	start := time.Now()
	fw, err := optimizer.New(config, opts...).Minimize(ctx, p)
	c.FrameworkTime = time.Since(start)
	if err != nil && !errors.Is(err, optimizer.ErrNonFiniteLoss) {
		return Comparison{}, fmt.Errorf("framework run: %w", err)
	}
	c.Framework, c.FrameworkErr = fw, err

	start = time.Now()
	gd, err := GradientDescent(ctx, p, config.LearningRate, config.MaxIterations, config.ConvergenceThreshold)
	c.GDTime = time.Since(start)
	if err != nil && !errors.Is(err, optimizer.ErrNonFiniteLoss) {
		return Comparison{}, fmt.Errorf("gradient descent run: %w", err)
	}
	c.GD, c.GDErr = gd, err

	c.LossRatio = lossRatio(finalOrInf(gd.FinalLoss(), c.GDErr), finalOrInf(fw.FinalLoss(), c.FrameworkErr))
	c.IterationRatio = ratio(float64(gd.Iterations), float64(fw.Iterations))
	c.TimeRatio = ratio(c.GDTime.Seconds(), c.FrameworkTime.Seconds())
	return c, nil
}

// Verdict summarizes the comparison: the framework outperformed when it
// reached a lower loss in fewer iterations, was better but costlier when it
// only reached a lower loss, and mixed otherwise.
func (c Comparison) Verdict() Verdict {
	switch {
	case c.LossRatio > 1 && c.IterationRatio > 1:
		return VerdictOutperformed
	case c.LossRatio > 1:
		return VerdictBetterCostlier
	default:
		return VerdictMixed
	}
}

// #endregion comparison

// #region helpers
// lossRatio is gd/fw, or +Inf when the framework reached exactly zero loss.
// Two failed runs compare as equal.
func lossRatio(gd, fw float64) float64 {
	if math.IsInf(gd, 1) && math.IsInf(fw, 1) {
		return 1
	}
	if fw > 0 {
		return gd / fw
	}
	return math.Inf(1)
}

func finalOrInf(loss float64, err error) float64 {
	if err != nil || math.IsNaN(loss) {
		return math.Inf(1)
	}
	return loss
}

func ratio(num, den float64) float64 {
	switch {
	case den > 0:
		return num / den
	case num > 0:
		return math.Inf(1)
	default:
		return 1
	}
}

// #endregion helpers
