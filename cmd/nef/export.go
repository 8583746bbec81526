package main

import (
	"fmt"
	"log"

	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
	"github.com/danielpatrickdp/nef-optimizer/internal/replay"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Write a stored run as a JSON fixture",
	Long: `Export a stored run, with its config and full histories, as a JSON fixture
that "nef replay --fixture" and external plotting tools can read.

Example:
  nef export 3f2a9c1e-... --out testdata/rosenbrock.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("out")
		description, _ := cmd.Flags().GetString("description")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		rec, runCfg, err := loadStoredRun(cfg.Store.Path, args[0])
		if err != nil {
			return err
		}
		if outPath == "" {
			outPath = fmt.Sprintf("run-%s.json", shortID(rec.RunID))
		}

		res := optimizer.Result{
			RunID:      rec.RunID,
			Final:      rec.Final,
			Iterations: rec.Iterations,
			Converged:  rec.Converged,
			History:    rec.History,
		}
		fixture := replay.NewFixture(rec.Objective, description, runCfg, res)
		fixture.CreatedAt = rec.CreatedAt
		if err := replay.ExportFixture(outPath, fixture); err != nil {
			return err
		}
		log.Printf("exported run %s (%d iterations) to %s", rec.RunID, rec.Iterations, outPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "output path (default run-<id>.json)")
	exportCmd.Flags().String("description", "exported from run store", "fixture description")
	rootCmd.AddCommand(exportCmd)
}
