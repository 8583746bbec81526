package objective

import (
	"errors"
	"math"
	"testing"
)

func TestRosenbrockMinimum(t *testing.T) {
	v, err := Rosenbrock([]float64{1, 1})
	if err != nil {
		t.Fatalf("Rosenbrock: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected 0 at (1,1), got %f", v)
	}
	g, _ := RosenbrockGrad([]float64{1, 1})
	if g[0] != 0 || g[1] != 0 {
		t.Fatalf("expected zero gradient at minimum, got %v", g)
	}
}

func TestRosenbrockStartingPoint(t *testing.T) {
	v, _ := Rosenbrock([]float64{-1, 1})
	if v != 4 {
		t.Fatalf("expected 4 at (-1,1), got %f", v)
	}
	g, _ := RosenbrockGrad([]float64{-1, 1})
	if g[0] != -4 || g[1] != 0 {
		t.Fatalf("expected (-4, 0), got %v", g)
	}
}

func TestRosenbrockGradMatchesFiniteDifference(t *testing.T) {
	p := []float64{0.3, -0.7}
	g, _ := RosenbrockGrad(p)
	const h = 1e-6
	for i := range p {
		up := append([]float64(nil), p...)
		dn := append([]float64(nil), p...)
		up[i] += h
		dn[i] -= h
		fu, _ := Rosenbrock(up)
		fd, _ := Rosenbrock(dn)
		fd1 := (fu - fd) / (2 * h)
		if math.Abs(fd1-g[i]) > 1e-4 {
			t.Fatalf("component %d: analytic %f, numeric %f", i, g[i], fd1)
		}
	}
}

func TestRosenbrockWrongDimension(t *testing.T) {
	if _, err := Rosenbrock([]float64{1}); err == nil {
		t.Fatal("expected error for 1-d input")
	}
}

func TestLookup(t *testing.T) {
	p, err := Lookup("tradeoff")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(p.Objectives) != 2 {
		t.Fatalf("expected 2 objectives, got %d", len(p.Objectives))
	}
	if names := p.Objectives.Names(); names[0] != "toward_a" {
		t.Fatalf("expected sorted names, got %v", names)
	}
	if _, err := Lookup("nope"); !errors.Is(err, ErrUnknownObjective) {
		t.Fatalf("expected ErrUnknownObjective, got %v", err)
	}
	if len(Registered()) != 3 {
		t.Fatalf("expected 3 registered problems, got %v", Registered())
	}
}
