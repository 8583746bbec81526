package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/danielpatrickdp/nef-optimizer/internal/health"
	"github.com/danielpatrickdp/nef-optimizer/internal/objective"
	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE decision_log (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id       TEXT NOT NULL,
		iteration    INTEGER NOT NULL,
		state        TEXT NOT NULL,
		action       TEXT NOT NULL,
		strategy     TEXT,
		trigger_type TEXT,
		reason       TEXT,
		overall      REAL NOT NULL,
		adjusted_lr  REAL,
		health_json  TEXT,
		created_at   TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := DecisionEntry{
		RunID:       "r1",
		Iteration:   12,
		State:       "INTEGRATING",
		Action:      "integrate",
		Strategy:    "damp",
		TriggerType: "anomaly",
		Reason:      "pause: low_health",
		Overall:     0.31,
		HealthJSON:  `{"overall":0.31}`,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	err := LogDecision(db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM decision_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var runID, strategy string
	var adjusted sql.NullFloat64
	db.QueryRow("SELECT run_id, strategy, adjusted_lr FROM decision_log").Scan(&runID, &strategy, &adjusted)
	if runID != "r1" {
		t.Errorf("expected run_id 'r1', got %q", runID)
	}
	if strategy != "damp" {
		t.Errorf("expected strategy 'damp', got %q", strategy)
	}
	if adjusted.Valid {
		t.Error("expected NULL adjusted_lr for an integrate decision")
	}
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := DecisionEntry{
		RunID:      "r2",
		State:      "NORMAL",
		Action:     "step",
		AdjustedLR: 0.005,
	}

	before := time.Now().UTC()
	err := LogDecision(db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM decision_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before.Add(-time.Second)) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogDecision_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := DecisionEntry{
		RunID:     "r3",
		State:     "NORMAL",
		Action:    "step",
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	err := LogDecision(db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var strategy, trigger, reason, healthJSON sql.NullString
	db.QueryRow("SELECT strategy, trigger_type, reason, health_json FROM decision_log").Scan(
		&strategy, &trigger, &reason, &healthJSON,
	)
	if strategy.Valid {
		t.Error("expected NULL strategy for empty string")
	}
	if trigger.Valid {
		t.Error("expected NULL trigger_type for empty string")
	}
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}
	if healthJSON.Valid {
		t.Error("expected NULL health_json for empty string")
	}
}

func TestLogDecision_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	entry := DecisionEntry{RunID: "r4", State: "NORMAL", Action: "step"}

	err := LogDecision(db, entry)
	if err == nil {
		t.Fatal("expected error on closed db")
	}
}

func TestReadDecisions_Order(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	for _, i := range []int{2, 0, 1} {
		if err := LogDecision(db, DecisionEntry{RunID: "r5", Iteration: i, State: "NORMAL", Action: "step"}); err != nil {
			t.Fatalf("LogDecision: %v", err)
		}
	}
	LogDecision(db, DecisionEntry{RunID: "other", State: "NORMAL", Action: "step"})

	entries, err := ReadDecisions(db, "r5")
	if err != nil {
		t.Fatalf("ReadDecisions: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Iteration != i {
			t.Fatalf("entry %d has iteration %d", i, e.Iteration)
		}
	}
}

func TestDeleteDecisions_OnlyTargetRun(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := LogDecision(db, DecisionEntry{RunID: "stopped", Iteration: i, State: "NORMAL", Action: "step"}); err != nil {
			t.Fatalf("LogDecision: %v", err)
		}
	}
	if err := LogDecision(db, DecisionEntry{RunID: "kept", State: "NORMAL", Action: "step"}); err != nil {
		t.Fatalf("LogDecision: %v", err)
	}

	n, err := DeleteDecisions(db, "stopped")
	if err != nil {
		t.Fatalf("DeleteDecisions: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted rows, got %d", n)
	}
	if left, _ := ReadDecisions(db, "stopped"); len(left) != 0 {
		t.Fatalf("expected no rows left, got %d", len(left))
	}
	if kept, _ := ReadDecisions(db, "kept"); len(kept) != 1 {
		t.Fatalf("other run lost rows: %d left", len(kept))
	}
}

func TestSink_DivergedRunCleanup(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	config := optimizer.DefaultConfig()
	config.MaxIterations = 500
	res, err := optimizer.New(config, optimizer.WithSink(NewSink(db))).Minimize(context.Background(), objective.RosenbrockProblem())
	if !errors.Is(err, optimizer.ErrNonFiniteLoss) {
		t.Fatalf("expected ErrNonFiniteLoss, got %v", err)
	}

	logged, err := ReadDecisions(db, res.RunID)
	if err != nil {
		t.Fatalf("ReadDecisions: %v", err)
	}
	if len(logged) == 0 || len(logged) != len(res.History.Losses) {
		t.Fatalf("expected one row per finished iteration, got %d rows for %d losses", len(logged), len(res.History.Losses))
	}

	n, err := DeleteDecisions(db, res.RunID)
	if err != nil {
		t.Fatalf("DeleteDecisions: %v", err)
	}
	if int(n) != len(logged) {
		t.Fatalf("expected %d deleted rows, got %d", len(logged), n)
	}
}

func TestDeleteDecisions_Error(t *testing.T) {
	db := setupDB(t)
	db.Close()
	if _, err := DeleteDecisions(db, "r"); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-decision-tests

// #region sink-tests
func TestSink_RecordsEveryIteration(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	config := optimizer.DefaultConfig()
	config.LearningRate = 0.002
	config.MaxIterations = 60
	res, err := optimizer.New(config, optimizer.WithSink(NewSink(db))).
		Minimize(context.Background(), objective.RosenbrockProblem())
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}

	entries, err := ReadDecisions(db, res.RunID)
	if err != nil {
		t.Fatalf("ReadDecisions: %v", err)
	}
	if len(entries) != res.Iterations {
		t.Fatalf("expected %d entries, got %d", res.Iterations, len(entries))
	}
	for i, e := range entries {
		if e.Action != res.Decisions[i].Action {
			t.Fatalf("entry %d: expected action %q, got %q", i, res.Decisions[i].Action, e.Action)
		}
		if (e.Action == "integrate") != (e.Strategy != "") {
			t.Fatalf("entry %d: strategy %q inconsistent with action %q", i, e.Strategy, e.Action)
		}
		var rec health.Record
		if err := json.Unmarshal([]byte(e.HealthJSON), &rec); err != nil {
			t.Fatalf("entry %d: unmarshal health: %v", i, err)
		}
		if rec.Overall != e.Overall {
			t.Fatalf("entry %d: overall %v != %v", i, rec.Overall, e.Overall)
		}
	}
}

// #endregion sink-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	result := nullIfEmpty("")
	if result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	result := nullIfEmpty("hello")
	if result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests
