package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/danielpatrickdp/nef-optimizer/internal/compare"
	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the optimizer with plain gradient descent",
	Long: `Run the health-modulated optimizer and plain gradient descent on the same
objective, learning rate, iteration cap and convergence threshold, and report
loss, iteration and time ratios (GD over framework; above 1 favors the framework).

Examples:
  nef compare --objective rosenbrock --lr 0.001 --iterations 500
  nef compare --objective sphere`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		problem, closeProblem, err := resolveProblem(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeProblem()

		c, err := compare.Compare(ctx, cfg.RunConfig(), problem)
		if err != nil {
			return err
		}
		printComparison(cmd.OutOrStdout(), c)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
}
