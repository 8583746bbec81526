package compare

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/danielpatrickdp/nef-optimizer/internal/objective"
	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradientDescentSphereStep(t *testing.T) {
	p := objective.SphereProblem()

	b, err := GradientDescent(context.Background(), p, 0.1, 1, 1e-6)
	require.NoError(t, err)

	// x ← x − 0.1·2x = 0.8x
	require.Len(t, b.Params, 2)
	for i, x := range p.Initial {
		assert.InDelta(t, 0.8*x, b.Final[i], 1e-12)
	}
	assert.Equal(t, 1, b.Iterations)
	assert.False(t, b.Converged)
	assert.Equal(t, 6.5, b.FinalLoss())
}

func TestGradientDescentConverges(t *testing.T) {
	b, err := GradientDescent(context.Background(), objective.SphereProblem(), 0.01, 1000, 1e-6)
	require.NoError(t, err)

	assert.True(t, b.Converged)
	assert.Less(t, b.FinalLoss(), 1e-6)
	assert.Len(t, b.Losses, b.Iterations)
	assert.Len(t, b.Params, b.Iterations+1)
	for i := 1; i < len(b.Losses); i++ {
		assert.Less(t, b.Losses[i], b.Losses[i-1], "sphere descent is monotone at this rate")
	}
}

func TestGradientDescentNeedsGradient(t *testing.T) {
	p := objective.SphereProblem()
	p.Grad = nil

	_, err := GradientDescent(context.Background(), p, 0.01, 10, 1e-6)
	assert.ErrorIs(t, err, ErrNoGradient)
}

func TestGradientDescentDiverges(t *testing.T) {
	_, err := GradientDescent(context.Background(), objective.RosenbrockProblem(), 0.01, 500, 1e-6)
	assert.ErrorIs(t, err, optimizer.ErrNonFiniteLoss)
}

func TestCompareSphere(t *testing.T) {
	config := optimizer.DefaultConfig()

	c, err := Compare(context.Background(), config, objective.SphereProblem())
	require.NoError(t, err)

	assert.True(t, c.GD.Converged)
	assert.True(t, c.Framework.Converged)
	assert.Equal(t, float64(c.GD.Iterations)/float64(c.Framework.Iterations), c.IterationRatio)
	assert.Equal(t, c.GD.FinalLoss()/c.Framework.FinalLoss(), c.LossRatio)
	assert.False(t, math.IsNaN(c.TimeRatio))
	assert.Contains(t, []Verdict{VerdictOutperformed, VerdictBetterCostlier, VerdictMixed}, c.Verdict())
}

func TestCompareRosenbrockSmallRate(t *testing.T) {
	config := optimizer.DefaultConfig()
	config.LearningRate = 0.001
	config.MaxIterations = 500

	c, err := Compare(context.Background(), config, objective.RosenbrockProblem())
	require.NoError(t, err)

	assert.Equal(t, 500, c.GD.Iterations)
	assert.Equal(t, 500, c.Framework.Iterations)
	assert.Equal(t, 1.0, c.IterationRatio)
	assert.Less(t, c.Framework.FinalLoss(), 4.0)
	assert.Less(t, c.GD.FinalLoss(), 4.0)
}

func TestCompareRecordsDivergence(t *testing.T) {
	// Rosenbrock from (-1, 1) at lr 0.01 overflows for both optimizers.
	config := optimizer.DefaultConfig()
	config.MaxIterations = 500

	c, err := Compare(context.Background(), config, objective.RosenbrockProblem())
	require.NoError(t, err)
	assert.ErrorIs(t, c.FrameworkErr, optimizer.ErrNonFiniteLoss)
	assert.ErrorIs(t, c.GDErr, optimizer.ErrNonFiniteLoss)
	assert.NotEmpty(t, c.Framework.History.Losses, "partial framework history is kept")
	assert.NotEmpty(t, c.GD.Losses, "partial baseline history is kept")
	assert.Equal(t, 1.0, c.LossRatio)
	assert.Equal(t, VerdictMixed, c.Verdict())
}

// cliff is x² for x ≥ 0.42 and NaN below it. From x = 1 at lr 0.3, plain GD
// lands on 0.4 after one step; the health-scaled step (0.95·lr) lands on 0.43.
func cliff() objective.Problem {
	return objective.Problem{
		Name: "cliff",
		Loss: func(p []float64) (float64, error) {
			if p[0] < 0.42 {
				return math.NaN(), nil
			}
			return p[0] * p[0], nil
		},
		Grad:    objective.SphereGrad,
		Initial: []float64{1},
	}
}

func TestCompareBaselineDivergesAlone(t *testing.T) {
	config := optimizer.DefaultConfig()
	config.LearningRate = 0.3
	config.MaxIterations = 2

	c, err := Compare(context.Background(), config, cliff())
	require.NoError(t, err)
	assert.NoError(t, c.FrameworkErr)
	assert.ErrorIs(t, c.GDErr, optimizer.ErrNonFiniteLoss)
	assert.Equal(t, 2, c.Framework.Iterations)
	assert.Equal(t, 1, c.GD.Iterations)
	assert.True(t, math.IsInf(c.LossRatio, 1), "a failed baseline loses on loss")
}

func TestCompareAbortsOnObjectiveError(t *testing.T) {
	boom := errors.New("boom")
	p := objective.SphereProblem()
	p.Loss = func([]float64) (float64, error) { return 0, boom }

	_, err := Compare(context.Background(), optimizer.DefaultConfig(), p)
	assert.ErrorIs(t, err, boom)
}

func TestVerdict(t *testing.T) {
	tests := []struct {
		loss, iter float64
		want       Verdict
	}{
		{2, 2, VerdictOutperformed},
		{2, 0.5, VerdictBetterCostlier},
		{2, 1, VerdictBetterCostlier},
		{0.5, 2, VerdictMixed},
		{1, 1, VerdictMixed},
		{math.Inf(1), 2, VerdictOutperformed},
	}
	for _, tt := range tests {
		c := Comparison{LossRatio: tt.loss, IterationRatio: tt.iter}
		assert.Equal(t, tt.want, c.Verdict(), "loss=%v iter=%v", tt.loss, tt.iter)
	}
}

func TestRatios(t *testing.T) {
	assert.True(t, math.IsInf(lossRatio(1, 0), 1))
	assert.Equal(t, 2.0, lossRatio(4, 2))
	assert.Equal(t, 1.0, lossRatio(math.Inf(1), math.Inf(1)))
	assert.Equal(t, 0.0, lossRatio(2, math.Inf(1)))
	assert.True(t, math.IsInf(finalOrInf(3, optimizer.ErrNonFiniteLoss), 1))
	assert.Equal(t, 3.0, finalOrInf(3, nil))
	assert.Equal(t, 1.0, ratio(0, 0))
	assert.True(t, math.IsInf(ratio(3, 0), 1))
}
