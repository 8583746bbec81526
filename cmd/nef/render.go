package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/danielpatrickdp/nef-optimizer/internal/compare"
	"github.com/danielpatrickdp/nef-optimizer/internal/eval"
	"github.com/danielpatrickdp/nef-optimizer/internal/health"
	"github.com/danielpatrickdp/nef-optimizer/internal/history"
	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// #region run-summary
func printRunSummary(w io.Writer, name, runID string, snap history.Snapshot, final []float64, converged bool) {
	fmt.Fprintf(w, "%s %s\n", bold(name), cyan(runID))
	status := yellow("max iterations reached")
	if converged {
		status = green("converged")
	}
	fmt.Fprintf(w, "  Iterations: %d (%s)\n", len(snap.Losses), status)
	if n := len(snap.Losses); n > 0 {
		fmt.Fprintf(w, "  Loss: %.6g -> %.6g\n", snap.Losses[0], snap.Losses[n-1])
	}
	fmt.Fprintf(w, "  Final params: %s\n", formatVector(final))
	fmt.Fprintf(w, "  Pauses: %s  Anomalies: %s\n", countColor(len(snap.Pauses), yellow), countColor(len(snap.Anomalies), red))
	if n := len(snap.Health); n > 0 {
		printHealth(w, snap.Health[n-1])
	}
	if len(snap.Pauses) > 0 {
		fmt.Fprintf(w, "  Pause points: %s\n", formatIndices(snap.Pauses, 5))
	}
	if len(snap.Anomalies) > 0 {
		fmt.Fprintf(w, "  Anomaly points: %s\n", formatIndices(snap.Anomalies, 5))
	}
}

func printHealth(w io.Writer, rec health.Record) {
	fmt.Fprintf(w, "  Final health: %.3f\n", rec.Overall)
	for _, m := range health.Metrics {
		e := rec.Entries[m]
		fmt.Fprintf(w, "    %-12s %.3f (w=%.2f)\n", m, e.Value, e.Weight)
	}
}

func printEval(w io.Writer, res eval.EvalResult) {
	if res.Passed {
		fmt.Fprintf(w, "%s %s\n", green("✓"), res.Reason)
		return
	}
	fmt.Fprintf(w, "%s %s\n", red("✗"), res.Reason)
	for _, m := range res.Metrics {
		if !m.Pass {
			fmt.Fprintf(w, "    %-24s %g\n", m.Name, m.Value)
		}
	}
}

// #endregion run-summary

// #region comparison
func printComparison(w io.Writer, c compare.Comparison) {
	fmt.Fprintf(w, "%-10s  %12s  %10s  %10s\n", "Optimizer", "Final Loss", "Iterations", "Time")
	fmt.Fprintf(w, "%-10s  %12.6g  %10d  %10s\n", "GD", c.GD.FinalLoss(), c.GD.Iterations, c.GDTime.Round(time.Microsecond))
	fmt.Fprintf(w, "%-10s  %12.6g  %10d  %10s\n", "Framework", c.Framework.FinalLoss(), c.Framework.Iterations, c.FrameworkTime.Round(time.Microsecond))
	fmt.Fprintf(w, "Pauses: %d, Anomalies: %d\n", len(c.Framework.History.Pauses), len(c.Framework.History.Anomalies))
	if c.GDErr != nil {
		fmt.Fprintf(w, "GD stopped: %s\n", red(c.GDErr.Error()))
	}
	if c.FrameworkErr != nil {
		fmt.Fprintf(w, "Framework stopped: %s\n", red(c.FrameworkErr.Error()))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Loss improvement:     %.2fx\n", c.LossRatio)
	fmt.Fprintf(w, "Iteration efficiency: %.2fx %s\n", c.IterationRatio, moreOrFewer(c.IterationRatio, "fewer", "more"))
	fmt.Fprintf(w, "Time efficiency:      %.2fx %s\n\n", c.TimeRatio, moreOrFewer(c.TimeRatio, "faster", "slower"))
	fmt.Fprintf(w, "Verdict: %s\n", verdictText(c.Verdict()))
}

func verdictText(v compare.Verdict) string {
	switch v {
	case compare.VerdictOutperformed:
		return green("framework significantly outperformed gradient descent")
	case compare.VerdictBetterCostlier:
		return yellow("framework reached a lower loss but took more iterations")
	default:
		return red("mixed results, gradient descent matched or beat the framework")
	}
}

func moreOrFewer(ratio float64, above, below string) string {
	if ratio > 1 {
		return above
	}
	return below
}

// #endregion comparison

// #region helpers
func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.6g", x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatIndices lists the first limit indices, with an ellipsis when truncated.
func formatIndices(idx []int, limit int) string {
	n := len(idx)
	if n > limit {
		n = limit
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprint(idx[i])
	}
	s := strings.Join(parts, ", ")
	if len(idx) > limit {
		s += "..."
	}
	return s
}

func countColor(n int, paint func(a ...interface{}) string) string {
	if n == 0 {
		return green("0")
	}
	return paint(fmt.Sprint(n))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion helpers
