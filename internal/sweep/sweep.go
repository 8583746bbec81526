package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/danielpatrickdp/nef-optimizer/internal/objective"
	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
	"golang.org/x/sync/errgroup"
)

// #region types
// Grid is the set of learning rates and seeds to try. Every combination runs once.
type Grid struct {
	LearningRates []float64
	Seeds         []int64
	Parallelism   int // 0 means GOMAXPROCS
}

// RunResult is one grid cell. Err holds a run's own failure (for example a
// divergent learning rate); it does not stop the sweep.
type RunResult struct {
	LearningRate float64
	Seed         int64
	Result       optimizer.Result
	Err          error
}

// FinalLoss returns the run's last loss, or +Inf when the run failed.
func (r RunResult) FinalLoss() float64 {
	if r.Err != nil || len(r.Result.History.Losses) == 0 {
		return math.Inf(1)
	}
	return r.Result.FinalLoss()
}

// #endregion types

// #region run
// Run executes every grid cell on its own Optimizer. The problem's functions
// are called from several goroutines and must be safe for concurrent use.
// Results are returned in grid order: learning rates outer, seeds inner.
// Only cancellation of ctx aborts the sweep.
func Run(ctx context.Context, base optimizer.Config, problem objective.Problem, grid Grid) ([]RunResult, error) {
	if len(grid.LearningRates) == 0 || len(grid.Seeds) == 0 {
		return nil, fmt.Errorf("sweep: grid needs at least one learning rate and one seed")
	}

	results := make([]RunResult, 0, len(grid.LearningRates)*len(grid.Seeds))
	for _, lr := range grid.LearningRates {
		for _, seed := range grid.Seeds {
			results = append(results, RunResult{LearningRate: lr, Seed: seed})
		}
	}

	limit := grid.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := range results {
		cell := &results[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			config := base
			config.LearningRate = cell.LearningRate
			config.Seed = cell.Seed
			cell.Result, cell.Err = optimizer.New(config).Minimize(gctx, problem)
			if errors.Is(cell.Err, context.Canceled) || errors.Is(cell.Err, context.DeadlineExceeded) {
				return cell.Err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("sweep: %w", err)
	}
	return results, nil
}

// #endregion run

// #region best
// Best returns the successful run with the lowest final loss. Ties keep the
// earlier grid cell. ok is false when every run failed.
func Best(results []RunResult) (best RunResult, ok bool) {
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if !ok || r.FinalLoss() < best.FinalLoss() {
			best, ok = r, true
		}
	}
	return best, ok
}

// #endregion best
