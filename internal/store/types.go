package store

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/nef-optimizer/internal/history"
)

// ErrRunNotFound is returned when a run ID has no row in the runs table.
var ErrRunNotFound = errors.New("run not found")

// #region run-record
// RunRecord is a persisted optimizer run. History is populated by GetRun only;
// ListRuns returns summaries with an empty History.
type RunRecord struct {
	RunID      string
	Objective  string
	ConfigJSON string
	Iterations int
	Converged  bool
	FinalLoss  float64
	Final      []float64
	Pauses     int
	Anomalies  int
	CreatedAt  time.Time
	History    history.Snapshot
}

// #endregion run-record

// #region event-kinds
// Event kinds stored in the events table.
const (
	EventPause   = "pause"
	EventAnomaly = "anomaly"
)

// #endregion event-kinds
