package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/nef-optimizer/internal/objective"
	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func shortRun(t *testing.T, iterations int) (optimizer.Config, optimizer.Result) {
	t.Helper()
	config := optimizer.DefaultConfig()
	config.LearningRate = 0.001
	config.MaxIterations = iterations
	res, err := optimizer.New(config).Minimize(context.Background(), objective.RosenbrockProblem())
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	return config, res
}

func TestSaveAndGetRun(t *testing.T) {
	s := tempDB(t)
	config, res := shortRun(t, 8)

	saved, err := s.SaveRun("rosenbrock", config, res)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if saved.RunID != res.RunID {
		t.Fatalf("expected run ID %s, got %s", res.RunID, saved.RunID)
	}

	got, err := s.GetRun(res.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Objective != "rosenbrock" || got.Iterations != 8 {
		t.Fatalf("unexpected run header: %+v", got)
	}
	if got.FinalLoss != res.FinalLoss() {
		t.Fatalf("final loss: expected %v, got %v", res.FinalLoss(), got.FinalLoss)
	}

	snap := got.History
	if len(snap.Losses) != 8 || len(snap.Params) != 9 || len(snap.Grads) != 8 || len(snap.Health) != 8 {
		t.Fatalf("unexpected history lengths: losses=%d params=%d grads=%d health=%d",
			len(snap.Losses), len(snap.Params), len(snap.Grads), len(snap.Health))
	}
	for i := range snap.Params {
		for j := range snap.Params[i] {
			if snap.Params[i][j] != res.History.Params[i][j] {
				t.Fatalf("param %d[%d]: expected %v, got %v", i, j, res.History.Params[i][j], snap.Params[i][j])
			}
		}
	}
	for i, rec := range snap.Health {
		if rec.Overall != res.History.Health[i].Overall {
			t.Fatalf("health %d: expected overall %v, got %v", i, res.History.Health[i].Overall, rec.Overall)
		}
	}
}

func TestSaveRunPreservesEvents(t *testing.T) {
	s := tempDB(t)
	config, res := shortRun(t, 3)
	res.History.Pauses = []int{0, 2}
	res.History.Anomalies = []int{2}

	if _, err := s.SaveRun("rosenbrock", config, res); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	got, err := s.GetRun(res.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Pauses != 2 || got.Anomalies != 1 {
		t.Fatalf("expected 2 pauses and 1 anomaly, got %d and %d", got.Pauses, got.Anomalies)
	}
	if len(got.History.Pauses) != 2 || got.History.Pauses[1] != 2 {
		t.Fatalf("unexpected pauses %v", got.History.Pauses)
	}
	if len(got.History.Anomalies) != 1 || got.History.Anomalies[0] != 2 {
		t.Fatalf("unexpected anomalies %v", got.History.Anomalies)
	}
}

func TestSaveRunNilGradientsRoundTrip(t *testing.T) {
	s := tempDB(t)
	p := objective.SphereProblem()
	p.Grad = nil
	config := optimizer.DefaultConfig()
	config.MaxIterations = 4
	res, err := optimizer.New(config).Minimize(context.Background(), p)
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}

	if _, err := s.SaveRun("sphere", config, res); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	got, err := s.GetRun(res.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	for i, g := range got.History.Grads {
		if g != nil {
			t.Fatalf("grad %d: expected nil, got %v", i, g)
		}
	}
}

func TestSaveRunRejectsMisalignedHistory(t *testing.T) {
	s := tempDB(t)
	config, res := shortRun(t, 3)
	res.History.Params = res.History.Params[:3]

	if _, err := s.SaveRun("rosenbrock", config, res); err == nil {
		t.Fatal("expected error for misaligned history")
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetRun("missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	s := tempDB(t)
	var ids []string
	for i := 0; i < 3; i++ {
		config, res := shortRun(t, 2)
		if _, err := s.SaveRun("rosenbrock", config, res); err != nil {
			t.Fatalf("SaveRun %d: %v", i, err)
		}
		ids = append(ids, res.RunID)
	}

	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != ids[2] {
		t.Fatalf("expected newest run %s first, got %s", ids[2], runs[0].RunID)
	}
	if len(runs[0].History.Losses) != 0 {
		t.Fatal("ListRuns should not load histories")
	}
	if len(runs[0].Final) != 2 {
		t.Fatalf("expected 2-d final point, got %v", runs[0].Final)
	}
}

func TestVectorEncodingRoundTrip(t *testing.T) {
	v := []float64{1.5, -2.25, 0, 1e-300}
	got := decodeVector(encodeVector(v))
	if len(got) != len(v) {
		t.Fatalf("expected %d values, got %d", len(v), len(got))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("index %d: expected %v, got %v", i, v[i], got[i])
		}
	}
	if decodeVector(nil) != nil {
		t.Fatal("expected nil for NULL blob")
	}
}
