package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/nef-optimizer/internal/health"
	"github.com/danielpatrickdp/nef-optimizer/internal/history"
	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	objective     TEXT NOT NULL,
	config_json   TEXT NOT NULL,
	iterations    INTEGER NOT NULL,
	converged     INTEGER NOT NULL,
	final_loss    REAL,
	final_params  BLOB NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS iterations (
	run_id        TEXT NOT NULL,
	iteration     INTEGER NOT NULL,
	loss          REAL NOT NULL,
	params        BLOB NOT NULL,
	grad          BLOB,
	health_json   TEXT NOT NULL,
	PRIMARY KEY (run_id, iteration),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS events (
	run_id        TEXT NOT NULL,
	iteration     INTEGER NOT NULL,
	kind          TEXT NOT NULL,
	PRIMARY KEY (run_id, iteration, kind),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	iteration     INTEGER NOT NULL,
	state         TEXT NOT NULL,
	action        TEXT NOT NULL,
	strategy      TEXT,
	trigger_type  TEXT,
	reason        TEXT,
	overall       REAL NOT NULL,
	adjusted_lr   REAL,
	health_json   TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region store-struct
// Store persists optimizer runs in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region save-run
// SaveRun writes a completed run and its per-iteration histories in one
// transaction. The result's histories must be index-aligned: one more param
// vector than losses, and one health record per loss.
func (s *Store) SaveRun(objectiveName string, config optimizer.Config, res optimizer.Result) (RunRecord, error) {
	snap := res.History
	n := len(snap.Losses)
	if len(snap.Params) != n+1 || len(snap.Grads) != n || len(snap.Health) != n {
		return RunRecord{}, fmt.Errorf("save run %s: histories not aligned (params=%d losses=%d grads=%d health=%d)",
			res.RunID, len(snap.Params), n, len(snap.Grads), len(snap.Health))
	}

	cfgJSON, err := json.Marshal(config)
	if err != nil {
		return RunRecord{}, fmt.Errorf("marshal config: %w", err)
	}

	now := time.Now().UTC()
	rec := RunRecord{
		RunID:      res.RunID,
		Objective:  objectiveName,
		ConfigJSON: string(cfgJSON),
		Iterations: n,
		Converged:  res.Converged,
		FinalLoss:  res.FinalLoss(),
		Final:      history.Clone(snap.Params[n]),
		Pauses:     len(snap.Pauses),
		Anomalies:  len(snap.Anomalies),
		CreatedAt:  now,
		History:    snap,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return RunRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, objective, config_json, iterations, converged, final_loss, final_params, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Objective, rec.ConfigJSON, n, boolToInt(rec.Converged),
		finiteOrNull(rec.FinalLoss), encodeVector(rec.Final), now.Format(timeLayout),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}

	for i := 0; i < n; i++ {
		healthJSON, err := json.Marshal(snap.Health[i])
		if err != nil {
			return RunRecord{}, fmt.Errorf("marshal health %d: %w", i, err)
		}
		var gradBlob interface{}
		if snap.Grads[i] != nil {
			gradBlob = encodeVector(snap.Grads[i])
		}
		_, err = tx.Exec(
			`INSERT INTO iterations (run_id, iteration, loss, params, grad, health_json)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.RunID, i, snap.Losses[i], encodeVector(snap.Params[i]), gradBlob, string(healthJSON),
		)
		if err != nil {
			return RunRecord{}, fmt.Errorf("insert iteration %d: %w", i, err)
		}
	}

	if err := insertEvents(tx, rec.RunID, EventPause, snap.Pauses); err != nil {
		return RunRecord{}, err
	}
	if err := insertEvents(tx, rec.RunID, EventAnomaly, snap.Anomalies); err != nil {
		return RunRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return RunRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func insertEvents(tx *sql.Tx, runID, kind string, iterations []int) error {
	for _, i := range iterations {
		if _, err := tx.Exec(
			`INSERT INTO events (run_id, iteration, kind) VALUES (?, ?, ?)`, runID, i, kind,
		); err != nil {
			return fmt.Errorf("insert %s event %d: %w", kind, i, err)
		}
	}
	return nil
}

// #endregion save-run

// #region get-run
// GetRun loads a run with its full histories.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	rec, err := scanRun(s.db.QueryRow(
		`SELECT run_id, objective, config_json, iterations, converged, final_loss, final_params, created_at,
		        (SELECT COUNT(*) FROM events e WHERE e.run_id = r.run_id AND e.kind = 'pause'),
		        (SELECT COUNT(*) FROM events e WHERE e.run_id = r.run_id AND e.kind = 'anomaly')
		 FROM runs r WHERE run_id = ?`, runID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}

	rows, err := s.db.Query(
		`SELECT loss, params, grad, health_json FROM iterations WHERE run_id = ? ORDER BY iteration`, runID,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get iterations: %w", err)
	}
	defer rows.Close()

	snap := history.Snapshot{}
	for rows.Next() {
		var loss float64
		var paramsBlob, gradBlob []byte
		var healthJSON string
		if err := rows.Scan(&loss, &paramsBlob, &gradBlob, &healthJSON); err != nil {
			return RunRecord{}, fmt.Errorf("scan iteration: %w", err)
		}
		var h health.Record
		if err := json.Unmarshal([]byte(healthJSON), &h); err != nil {
			return RunRecord{}, fmt.Errorf("unmarshal health: %w", err)
		}
		snap.Losses = append(snap.Losses, loss)
		snap.Params = append(snap.Params, decodeVector(paramsBlob))
		snap.Grads = append(snap.Grads, decodeVector(gradBlob))
		snap.Health = append(snap.Health, h)
	}
	if err := rows.Err(); err != nil {
		return RunRecord{}, fmt.Errorf("iterate rows: %w", err)
	}
	snap.Params = append(snap.Params, history.Clone(rec.Final))

	if snap.Pauses, err = s.events(runID, EventPause); err != nil {
		return RunRecord{}, err
	}
	if snap.Anomalies, err = s.events(runID, EventAnomaly); err != nil {
		return RunRecord{}, err
	}
	rec.History = snap
	return rec, nil
}

func (s *Store) events(runID, kind string) ([]int, error) {
	rows, err := s.db.Query(
		`SELECT iteration FROM events WHERE run_id = ? AND kind = ? ORDER BY iteration`, runID, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("get %s events: %w", kind, err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var i int
		if err := rows.Scan(&i); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// #endregion get-run

// #region list-runs
// ListRuns returns the most recent runs without their histories.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, objective, config_json, iterations, converged, final_loss, final_params, created_at,
		        (SELECT COUNT(*) FROM events e WHERE e.run_id = r.run_id AND e.kind = 'pause'),
		        (SELECT COUNT(*) FROM events e WHERE e.run_id = r.run_id AND e.kind = 'anomaly')
		 FROM runs r ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list-runs

// #region scan
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var converged int
	var finalLoss sql.NullFloat64
	var finalBlob []byte
	var createdStr string
	if err := row.Scan(&rec.RunID, &rec.Objective, &rec.ConfigJSON, &rec.Iterations, &converged,
		&finalLoss, &finalBlob, &createdStr, &rec.Pauses, &rec.Anomalies); err != nil {
		return RunRecord{}, err
	}
	rec.Converged = converged != 0
	rec.FinalLoss = math.NaN()
	if finalLoss.Valid {
		rec.FinalLoss = finalLoss.Float64
	}
	rec.Final = decodeVector(finalBlob)
	rec.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return rec, nil
}

// #endregion scan

// #region vector-encoding
func encodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

// decodeVector returns nil for a NULL blob.
func decodeVector(b []byte) []float64 {
	if b == nil {
		return nil
	}
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}

// #endregion vector-encoding

// #region helpers
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func finiteOrNull(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// #endregion helpers
