package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/danielpatrickdp/nef-optimizer/internal/logging"
	"github.com/danielpatrickdp/nef-optimizer/internal/store"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [run-id]",
	Short: "List stored runs or show one run's decisions",
	Long: `Without arguments, list the most recent runs in the store. With a run ID,
show that run's summary and the pause decisions from its decision log.

Examples:
  nef inspect --last 5
  nef inspect 3f2a9c1e-... --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		last, _ := cmd.Flags().GetInt("last")
		asJSON, _ := cmd.Flags().GetBool("json")
		all, _ := cmd.Flags().GetBool("all")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := store.NewStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()

		out := cmd.OutOrStdout()
		if len(args) == 0 {
			runs, err := st.ListRuns(last)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, runs)
			}
			printRunList(out, runs)
			return nil
		}

		rec, err := st.GetRun(args[0])
		if errors.Is(err, store.ErrRunNotFound) {
			return fmt.Errorf("no run %q in %s", args[0], cfg.Store.Path)
		}
		if err != nil {
			return err
		}
		decisions, err := logging.ReadDecisions(st.DB(), rec.RunID)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, struct {
				Run       store.RunRecord         `json:"run"`
				Decisions []logging.DecisionEntry `json:"decisions"`
			}{rec, decisions})
		}

		printRunSummary(out, rec.Objective, rec.RunID, rec.History, rec.Final, rec.Converged)
		printDecisions(out, decisions, all)
		return nil
	},
}

func printRunList(w io.Writer, runs []store.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return
	}
	fmt.Fprintf(w, "%-10s %-12s %-6s %-12s %-7s %-9s %s\n", "RUN", "OBJECTIVE", "ITERS", "FINAL LOSS", "PAUSES", "ANOMALIES", "CREATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%-10s %-12s %-6d %-12.6g %-7d %-9d %s\n",
			shortID(r.RunID), r.Objective, r.Iterations, r.FinalLoss, r.Pauses, r.Anomalies,
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

// printDecisions shows integrate decisions, or every decision when all is set.
func printDecisions(w io.Writer, decisions []logging.DecisionEntry, all bool) {
	if len(decisions) == 0 {
		fmt.Fprintln(w, "  No decisions logged for this run.")
		return
	}
	fmt.Fprintln(w, "  Decisions:")
	shown := 0
	for _, d := range decisions {
		if !all && d.Action != "integrate" {
			continue
		}
		shown++
		if d.Action == "integrate" {
			fmt.Fprintf(w, "    #%-5d %s %s (%s) health=%.3f\n", d.Iteration, yellow("integrate"), d.Strategy, d.TriggerType, d.Overall)
			continue
		}
		fmt.Fprintf(w, "    #%-5d %s lr=%.3g health=%.3f\n", d.Iteration, green("step"), d.AdjustedLR, d.Overall)
	}
	if shown == 0 {
		fmt.Fprintf(w, "    %s\n", green("no pauses"))
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	inspectCmd.Flags().Int("last", 10, "number of runs to list")
	inspectCmd.Flags().Bool("json", false, "print JSON instead of a table")
	inspectCmd.Flags().Bool("all", false, "show step decisions as well as pauses")
	rootCmd.AddCommand(inspectCmd)
}
