package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielpatrickdp/nef-optimizer/internal/compare"
	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
	"github.com/danielpatrickdp/nef-optimizer/internal/store"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestFormatIndices(t *testing.T) {
	assert.Equal(t, "", formatIndices(nil, 5))
	assert.Equal(t, "1, 2, 3", formatIndices([]int{1, 2, 3}, 5))
	assert.Equal(t, "1, 2...", formatIndices([]int{1, 2, 3}, 2))
}

func TestFormatVector(t *testing.T) {
	assert.Equal(t, "[1, -0.5, 2]", formatVector([]float64{1, -0.5, 2}))
	assert.Equal(t, "[]", formatVector(nil))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abcdefgh", shortID("abcdefgh-1234"))
	assert.Equal(t, "abc", shortID("abc"))
}

func TestVerdictText(t *testing.T) {
	assert.Contains(t, verdictText(compare.VerdictOutperformed), "outperformed")
	assert.Contains(t, verdictText(compare.VerdictBetterCostlier), "more iterations")
	assert.Contains(t, verdictText(compare.VerdictMixed), "mixed")
}

func TestRunThenInspect(t *testing.T) {
	db := filepath.Join(t.TempDir(), "nef.db")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", "--db", db, "--objective", "sphere", "--lr", "0.01", "--iterations", "40"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "sphere")
	assert.Contains(t, out.String(), "Iterations: 40")

	out.Reset()
	rootCmd.SetArgs([]string{"inspect", "--db", db, "--json"})
	require.NoError(t, rootCmd.Execute())

	var runs []store.RunRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "sphere", runs[0].Objective)
	assert.Equal(t, 40, runs[0].Iterations)

	out.Reset()
	rootCmd.SetArgs([]string{"replay", runs[0].RunID, "--db", db})
	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.Contains(out.String(), "Mismatches: 0"), out.String())
}

func TestPrintComparisonReportsStoppedRun(t *testing.T) {
	c := compare.Comparison{
		GDErr:          fmt.Errorf("gd iteration 3: %w", optimizer.ErrNonFiniteLoss),
		LossRatio:      1,
		IterationRatio: 1,
		TimeRatio:      1,
	}
	var out bytes.Buffer
	printComparison(&out, c)
	assert.Contains(t, out.String(), "GD stopped: gd iteration 3: loss is not finite")
	assert.NotContains(t, out.String(), "Framework stopped")
}

func TestRunDivergedLeavesNoDecisions(t *testing.T) {
	db := filepath.Join(t.TempDir(), "nef.db")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", "--db", db, "--objective", "rosenbrock", "--lr", "0.01", "--iterations", "500"})
	err := rootCmd.Execute()
	require.ErrorIs(t, err, optimizer.ErrNonFiniteLoss)

	st, err := store.NewStore(db)
	require.NoError(t, err)
	defer st.Close()

	var rows int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM decision_log`).Scan(&rows))
	assert.Equal(t, 0, rows)
	runs, err := st.ListRuns(10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
