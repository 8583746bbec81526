package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/danielpatrickdp/nef-optimizer/internal/eval"
	"github.com/danielpatrickdp/nef-optimizer/internal/logging"
	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
	"github.com/danielpatrickdp/nef-optimizer/internal/replay"
	"github.com/danielpatrickdp/nef-optimizer/internal/store"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Minimize the configured objective and store the run",
	Long: `Run the health-modulated optimizer on the configured objective.

Every iteration's decision is written to the decision_log table and the
finished run (histories, pauses, anomalies) to the run store. The run is then
checked by the eval harness.

Examples:
  # Rosenbrock from (-1, 1) at a stable learning rate
  nef run --objective rosenbrock --lr 0.001 --iterations 500

  # Use a remote objective and export the run for plotting
  NEF_OBJECTIVE_ADDR=localhost:7070 nef run --objective sphere --export run.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		noStore, _ := cmd.Flags().GetBool("no-store")
		exportPath, _ := cmd.Flags().GetString("export")

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

		var st *store.Store
		var opts []optimizer.Option
		if !noStore {
			st, err = store.NewStore(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close()
			opts = append(opts, optimizer.WithSink(logging.NewSink(st.DB())))
		}

		runCfg := cfg.RunConfig()
		res, err := optimizer.New(runCfg, opts...).Minimize(ctx, problem)
		if err != nil {
			if st != nil {
				dropDecisions(st, res.RunID)
			}
			return fmt.Errorf("run %s stopped after %d iterations: %w", res.RunID, len(res.History.Losses), err)
		}

		out := cmd.OutOrStdout()
		printRunSummary(out, cfg.Objective.Name, res.RunID, res.History, res.Final, res.Converged)
		printEval(out, eval.NewEvalHarness(eval.DefaultEvalConfig()).Run(res.History))

		if st != nil {
			if _, err := st.SaveRun(cfg.Objective.Name, runCfg, res); err != nil {
				dropDecisions(st, res.RunID)
				return fmt.Errorf("save run: %w", err)
			}
			log.Printf("saved run %s to %s", res.RunID, cfg.Store.Path)
		}
		if exportPath != "" {
			fixture := replay.NewFixture(cfg.Objective.Name, "nef run", runCfg, res)
			if err := replay.ExportFixture(exportPath, fixture); err != nil {
				return err
			}
			log.Printf("exported run %s to %s", res.RunID, exportPath)
		}
		return nil
	},
}

// dropDecisions removes the decision_log rows of a run that was not stored.
func dropDecisions(st *store.Store, runID string) {
	n, err := logging.DeleteDecisions(st.DB(), runID)
	if err != nil {
		log.Printf("warning: %v", err)
		return
	}
	log.Printf("discarded %d decision rows of unsaved run %s", n, runID)
}

func init() {
	runCmd.Flags().Bool("no-store", false, "do not persist the run or its decisions")
	runCmd.Flags().String("export", "", "also write the run as a JSON fixture to this path")
	rootCmd.AddCommand(runCmd)
}
