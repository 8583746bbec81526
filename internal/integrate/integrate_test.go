package integrate

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/nef-optimizer/internal/detect"
	"github.com/danielpatrickdp/nef-optimizer/internal/health"
)

// scripted replays fixed samples so perturbations are predictable.
type scripted struct {
	samples []float64
	i       int
}

func (s *scripted) Float64() float64 {
	v := s.samples[s.i%len(s.samples)]
	s.i++
	return v
}

func anomaly(m health.Metric, v float64) health.Anomaly {
	return health.Anomaly{Metric: m, Value: v, Severity: 1 - v}
}

// #region select-tests
func TestSelectAnomalyBeatsSaddle(t *testing.T) {
	v := detect.Verdict{
		Plateau:     true,
		Oscillation: true,
		Anomalies:   []health.Anomaly{anomaly(health.Stability, 0.2)},
		Pause:       true,
	}
	p := Select(v)
	if p.Trigger != TriggerAnomaly || p.Strategy != StrategyDamp {
		t.Fatalf("expected anomaly damping, got %+v", p)
	}
}

func TestSelectAnomalyByMetric(t *testing.T) {
	cases := []struct {
		metric   health.Metric
		strategy Strategy
		scale    float64
	}{
		{health.Stability, StrategyDamp, 0},
		{health.Diversity, StrategyInjectDiversity, 0.10},
		{health.Resilience, StrategyInjectDiversity, 0.02},
		{health.Balance, StrategyInjectDiversity, 0.02},
		{health.Integration, StrategyInjectDiversity, 0.02},
	}
	for _, c := range cases {
		p := Select(detect.Verdict{Anomalies: []health.Anomaly{anomaly(c.metric, 0.1)}})
		if p.Strategy != c.strategy || p.Scale != c.scale {
			t.Errorf("%s: got %s scale %.2f", c.metric, p.Strategy, p.Scale)
		}
	}
}

func TestSelectWorstAnomalyWins(t *testing.T) {
	v := detect.Verdict{Anomalies: []health.Anomaly{
		anomaly(health.Stability, 0.25),
		anomaly(health.Diversity, 0.05),
	}}
	p := Select(v)
	if p.Anomaly == nil || p.Anomaly.Metric != health.Diversity {
		t.Fatalf("expected diversity anomaly to win, got %+v", p)
	}
}

func TestSelectDetectorOrder(t *testing.T) {
	cases := []struct {
		name    string
		verdict detect.Verdict
		trigger Trigger
		scale   float64
	}{
		{"saddle", detect.Verdict{Plateau: true, Oscillation: true}, TriggerSaddle, 0.10},
		{"plateau", detect.Verdict{Plateau: true}, TriggerPlateau, 0.05},
		{"oscillation", detect.Verdict{Oscillation: true}, TriggerOscillation, 0},
		{"low health", detect.Verdict{LowHealth: true}, TriggerLowHealth, 0.01},
	}
	for _, c := range cases {
		p := Select(c.verdict)
		if p.Trigger != c.trigger || p.Scale != c.scale {
			t.Errorf("%s: got trigger %s scale %.2f", c.name, p.Trigger, p.Scale)
		}
	}
}

// #endregion select-tests

// #region apply-tests
func TestInjectDiversityZeroScaleIsIdentity(t *testing.T) {
	params := []float64{1.5, -2, 0}
	out := InjectDiversity(params, 0, NewSource(1))
	for i := range params {
		if out[i] != params[i] {
			t.Fatalf("coordinate %d changed: %f -> %f", i, params[i], out[i])
		}
	}
	out[0] = 42
	if params[0] != 1.5 {
		t.Fatal("InjectDiversity must return a copy")
	}
}

func TestInjectDiversityBounds(t *testing.T) {
	src := NewSource(7)
	params := []float64{0, 0, 0, 0}
	for n := 0; n < 200; n++ {
		out := InjectDiversity(params, 0.1, src)
		for _, v := range out {
			if v < -0.05 || v >= 0.05 {
				t.Fatalf("offset %f outside [-0.05, 0.05)", v)
			}
		}
	}
}

func TestInjectDiversityScripted(t *testing.T) {
	out := InjectDiversity([]float64{1, 1}, 0.1, &scripted{samples: []float64{0, 1}})
	if math.Abs(out[0]-0.95) > 1e-12 || math.Abs(out[1]-1.05) > 1e-12 {
		t.Fatalf("unexpected perturbation: %v", out)
	}
}

func TestInjectDiversitySeededReproducible(t *testing.T) {
	a := InjectDiversity([]float64{1, 2, 3}, 0.05, NewSource(99))
	b := InjectDiversity([]float64{1, 2, 3}, 0.05, NewSource(99))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at %d", i)
		}
	}
}

func TestDamp(t *testing.T) {
	out := Apply(Plan{Strategy: StrategyDamp}, []float64{2, -4}, nil, nil)
	if out[0] != 1.9 || out[1] != -3.8 {
		t.Fatalf("unexpected damped params: %v", out)
	}
}

func TestAverageHistory(t *testing.T) {
	hist := [][]float64{{100, 100}, {1, 2}, {3, 4}, {5, 6}, {7, 8}, {9, 10}}
	out := Apply(Plan{Strategy: StrategyAverageHistory, Depth: 5}, []float64{0, 0}, hist, nil)
	if out[0] != 5 || out[1] != 6 {
		t.Fatalf("expected mean of last five (5,6), got %v", out)
	}

	short := [][]float64{{1, 1}, {3, 3}}
	out = AverageHistory([]float64{0, 0}, short, 5)
	if out[0] != 2 || out[1] != 2 {
		t.Fatalf("expected mean of available history (2,2), got %v", out)
	}
}

// #endregion apply-tests
