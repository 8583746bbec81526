package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
)

// #region log-decision
// LogDecision writes a provenance entry to the decision_log table.
func LogDecision(db *sql.DB, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var adjusted interface{}
	if entry.Action == "step" {
		adjusted = entry.AdjustedLR
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (run_id, iteration, state, action, strategy, trigger_type, reason, overall, adjusted_lr, health_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Iteration,
		entry.State,
		entry.Action,
		nullIfEmpty(entry.Strategy),
		nullIfEmpty(entry.TriggerType),
		nullIfEmpty(entry.Reason),
		entry.Overall,
		adjusted,
		nullIfEmpty(entry.HealthJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region read-decisions
// ReadDecisions returns a run's logged decisions in iteration order.
func ReadDecisions(db *sql.DB, runID string) ([]DecisionEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, iteration, state, action, strategy, trigger_type, reason, overall, adjusted_lr, health_json, created_at
		 FROM decision_log WHERE run_id = ? ORDER BY iteration, id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("read decisions: %w", err)
	}
	defer rows.Close()

	var entries []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var strategy, trigger, reason, healthJSON sql.NullString
		var adjusted sql.NullFloat64
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Iteration, &e.State, &e.Action, &strategy, &trigger,
			&reason, &e.Overall, &adjusted, &healthJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.Strategy = strategy.String
		e.TriggerType = trigger.String
		e.Reason = reason.String
		e.AdjustedLR = adjusted.Float64
		e.HealthJSON = healthJSON.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion read-decisions

// #region delete-decisions
// DeleteDecisions removes a run's logged decisions and returns how many rows
// were deleted. Used when a run stops before it can be stored.
func DeleteDecisions(db *sql.DB, runID string) (int64, error) {
	res, err := db.Exec(`DELETE FROM decision_log WHERE run_id = ?`, runID)
	if err != nil {
		return 0, fmt.Errorf("delete decisions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete decisions: %w", err)
	}
	return n, nil
}

// #endregion delete-decisions

// #region sink
// Sink writes every optimizer decision to decision_log.
type Sink struct {
	db *sql.DB
}

// NewSink returns a DecisionSink backed by db. The decision_log table must exist.
func NewSink(db *sql.DB) *Sink {
	return &Sink{db: db}
}

// Record implements optimizer.DecisionSink.
func (s *Sink) Record(ev optimizer.DecisionEvent) error {
	healthJSON, err := json.Marshal(ev.Record)
	if err != nil {
		return fmt.Errorf("marshal health: %w", err)
	}
	entry := DecisionEntry{
		RunID:      ev.RunID,
		Iteration:  ev.Iteration,
		State:      string(ev.State),
		Action:     ev.Decision.Action,
		Reason:     ev.Decision.Reason,
		Overall:    ev.Record.Overall,
		AdjustedLR: ev.AdjustedLR,
		HealthJSON: string(healthJSON),
	}
	if ev.Plan != nil {
		entry.Strategy = string(ev.Plan.Strategy)
		entry.TriggerType = string(ev.Plan.Trigger)
	}
	return LogDecision(s.db, entry)
}

var _ optimizer.DecisionSink = (*Sink)(nil)

// #endregion sink

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
