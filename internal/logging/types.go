package logging

import "time"

// #region decision-entry
// DecisionEntry is a single row in the decision_log table.
type DecisionEntry struct {
	RunID       string
	Iteration   int
	State       string // "NORMAL" | "INTEGRATING"
	Action      string // "step" | "integrate"
	Strategy    string
	TriggerType string
	Reason      string
	Overall     float64
	AdjustedLR  float64
	HealthJSON  string
	CreatedAt   time.Time
}

// #endregion decision-entry
