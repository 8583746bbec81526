package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
	"github.com/danielpatrickdp/nef-optimizer/internal/store"
	"github.com/danielpatrickdp/nef-optimizer/internal/sweep"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the optimizer over a grid of learning rates and seeds",
	Long: `Run one optimizer per (learning rate, seed) pair in parallel and report the
final loss of each. Divergent runs are reported, not fatal.

Examples:
  nef sweep --lrs 0.0005,0.001,0.002 --seeds 42,7
  nef sweep --objective sphere --lrs 0.01,0.05 --parallel 2 --save`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lrs, _ := cmd.Flags().GetFloat64Slice("lrs")
		seeds, _ := cmd.Flags().GetInt64Slice("seeds")
		parallel, _ := cmd.Flags().GetInt("parallel")
		save, _ := cmd.Flags().GetBool("save")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(seeds) == 0 {
			seeds = []int64{cfg.Optimizer.Seed}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		problem, closeProblem, err := resolveProblem(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeProblem()

		results, err := sweep.Run(ctx, cfg.RunConfig(), problem, sweep.Grid{
			LearningRates: lrs,
			Seeds:         seeds,
			Parallelism:   parallel,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-10s %-8s %-12s %-6s %-7s %s\n", "LR", "SEED", "FINAL LOSS", "ITERS", "PAUSES", "STATUS")
		for _, r := range results {
			status := yellow("max iterations")
			switch {
			case r.Err != nil:
				status = red(r.Err.Error())
			case r.Result.Converged:
				status = green("converged")
			}
			fmt.Fprintf(out, "%-10g %-8d %-12.6g %-6d %-7d %s\n",
				r.LearningRate, r.Seed, r.FinalLoss(), len(r.Result.History.Losses), len(r.Result.History.Pauses), status)
		}
		if best, ok := sweep.Best(results); ok {
			fmt.Fprintf(out, "\nBest: lr=%g seed=%d loss=%s\n", best.LearningRate, best.Seed, bold(fmt.Sprintf("%.6g", best.FinalLoss())))
		} else {
			fmt.Fprintln(out, red("\nNo run finished."))
		}

		if save {
			return saveSweep(cfg.Store.Path, cfg.Objective.Name, cfg.RunConfig(), results)
		}
		return nil
	},
}

func saveSweep(path, objectiveName string, base optimizer.Config, results []sweep.RunResult) error {
	st, err := store.NewStore(path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	var errs []error
	saved := 0
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		c := base
		c.LearningRate = r.LearningRate
		c.Seed = r.Seed
		if _, err := st.SaveRun(objectiveName, c, r.Result); err != nil {
			errs = append(errs, fmt.Errorf("save run %s: %w", r.Result.RunID, err))
			continue
		}
		saved++
	}
	log.Printf("saved %d of %d runs to %s", saved, len(results), path)
	return errors.Join(errs...)
}

func init() {
	sweepCmd.Flags().Float64Slice("lrs", []float64{0.0005, 0.001, 0.002}, "learning rates to try")
	sweepCmd.Flags().Int64Slice("seeds", nil, "seeds to try (default: the configured seed)")
	sweepCmd.Flags().Int("parallel", 0, "maximum concurrent runs (0 = GOMAXPROCS)")
	sweepCmd.Flags().Bool("save", false, "persist successful runs to the store")
	rootCmd.AddCommand(sweepCmd)
}
