package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/danielpatrickdp/nef-optimizer/internal/history"
	"github.com/danielpatrickdp/nef-optimizer/internal/objective"
	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
	"github.com/danielpatrickdp/nef-optimizer/internal/replay"
	"github.com/danielpatrickdp/nef-optimizer/internal/store"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay [run-id]",
	Short: "Recompute a recorded run's health and pause decisions",
	Long: `Replay recomputes every iteration's health record and pause verdict from a
recorded run and reports any iteration where the result differs. The run comes
from the store (by run ID) or from a JSON fixture.

Examples:
  nef replay --fixture internal/replay/testdata/sphere_short.json
  nef replay 3f2a9c1e-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fixturePath, _ := cmd.Flags().GetString("fixture")
		verbose, _ := cmd.Flags().GetBool("verbose")

		var (
			name   string
			snap   history.Snapshot
			runCfg optimizer.Config
		)
		switch {
		case fixturePath != "":
			f, err := replay.LoadFixture(fixturePath)
			if err != nil {
				return err
			}
			name, snap, runCfg = f.Objective, f.History, f.Config
		case len(args) == 1:
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rec, c, err := loadStoredRun(cfg.Store.Path, args[0])
			if err != nil {
				return err
			}
			name, snap, runCfg = rec.Objective, rec.History, c
		default:
			return fmt.Errorf("need a run ID or --fixture")
		}

		p, err := objective.Lookup(name)
		if err != nil {
			return err
		}
		results, err := replay.Replay(snap, p.ObjectiveSet(), runCfg)
		if err != nil {
			return err
		}
		summary := replay.Summarize(results)
		printReplay(cmd.OutOrStdout(), results, summary, verbose)
		if summary.Mismatches > 0 {
			return fmt.Errorf("replay: %d of %d iterations differ (first at %d)",
				summary.Mismatches, summary.TotalIterations, summary.FirstMismatch)
		}
		return nil
	},
}

// loadStoredRun reads a run and the optimizer config it was recorded with.
func loadStoredRun(path, runID string) (store.RunRecord, optimizer.Config, error) {
	st, err := store.NewStore(path)
	if err != nil {
		return store.RunRecord{}, optimizer.Config{}, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	rec, err := st.GetRun(runID)
	if err != nil {
		return store.RunRecord{}, optimizer.Config{}, err
	}
	var c optimizer.Config
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &c); err != nil {
		return store.RunRecord{}, optimizer.Config{}, fmt.Errorf("decode config of run %s: %w", runID, err)
	}
	return rec, c, nil
}

func printReplay(w io.Writer, results []replay.IterationResult, s replay.ReplaySummary, verbose bool) {
	fmt.Fprintf(w, "Iterations: %d  Matches: %s  Mismatches: %s\n",
		s.TotalIterations, green(s.Matches), countColor(s.Mismatches, red))
	fmt.Fprintf(w, "Pauses: %d  Anomalies: %d\n", s.Pauses, s.Anomalies)
	for _, r := range results {
		if r.Match && !verbose {
			continue
		}
		mark := green("=")
		if !r.Match {
			mark = red("!")
		}
		fmt.Fprintf(w, "  %s #%-5d health %.4f/%.4f pause %v/%v", mark, r.Iteration,
			r.RecordedOverall, r.RecomputedOverall, r.RecordedPause, r.Pause)
		if r.Reason != "" {
			fmt.Fprintf(w, "  %s", r.Reason)
		}
		fmt.Fprintln(w)
	}
}

func init() {
	replayCmd.Flags().String("fixture", "", "replay a JSON fixture instead of a stored run")
	replayCmd.Flags().BoolP("verbose", "v", false, "print matching iterations too")
	rootCmd.AddCommand(replayCmd)
}
