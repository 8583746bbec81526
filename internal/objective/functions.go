package objective

import "fmt"

// #region rosenbrock
// Rosenbrock is the banana-shaped valley (1-x)^2 + 100(y-x^2)^2.
func Rosenbrock(p []float64) (float64, error) {
	if len(p) != 2 {
		return 0, fmt.Errorf("rosenbrock: want 2 params, got %d", len(p))
	}
	x, y := p[0], p[1]
	return (1-x)*(1-x) + 100*(y-x*x)*(y-x*x), nil
}

// RosenbrockGrad is the closed-form gradient of Rosenbrock.
func RosenbrockGrad(p []float64) ([]float64, error) {
	if len(p) != 2 {
		return nil, fmt.Errorf("rosenbrock grad: want 2 params, got %d", len(p))
	}
	x, y := p[0], p[1]
	dx := -2*(1-x) - 400*x*(y-x*x)
	dy := 200 * (y - x*x)
	return []float64{dx, dy}, nil
}

// RosenbrockProblem starts at (-1, 1).
func RosenbrockProblem() Problem {
	return Problem{
		Name:    "rosenbrock",
		Loss:    Rosenbrock,
		Grad:    RosenbrockGrad,
		Initial: []float64{-1.0, 1.0},
	}
}

// #endregion rosenbrock

// #region sphere
// Sphere is the sum of squares.
func Sphere(p []float64) (float64, error) {
	var s float64
	for _, v := range p {
		s += v * v
	}
	return s, nil
}

// SphereGrad is 2p.
func SphereGrad(p []float64) ([]float64, error) {
	g := make([]float64, len(p))
	for i, v := range p {
		g[i] = 2 * v
	}
	return g, nil
}

// SphereProblem starts at (1.5, -0.5, 2).
func SphereProblem() Problem {
	return Problem{
		Name:    "sphere",
		Loss:    Sphere,
		Grad:    SphereGrad,
		Initial: []float64{1.5, -0.5, 2.0},
	}
}

// #endregion sphere

// #region tradeoff
// Two competing quadratics pulling toward (1,0) and (0,1). The loss is their
// sum; the balance metric sees each one separately.
func towardA(p []float64) (float64, error) {
	if len(p) != 2 {
		return 0, fmt.Errorf("tradeoff: want 2 params, got %d", len(p))
	}
	return (p[0]-1)*(p[0]-1) + p[1]*p[1], nil
}

func towardB(p []float64) (float64, error) {
	if len(p) != 2 {
		return 0, fmt.Errorf("tradeoff: want 2 params, got %d", len(p))
	}
	return p[0]*p[0] + (p[1]-1)*(p[1]-1), nil
}

func tradeoffLoss(p []float64) (float64, error) {
	a, err := towardA(p)
	if err != nil {
		return 0, err
	}
	b, err := towardB(p)
	if err != nil {
		return 0, err
	}
	return a + b, nil
}

func tradeoffGrad(p []float64) ([]float64, error) {
	if len(p) != 2 {
		return nil, fmt.Errorf("tradeoff grad: want 2 params, got %d", len(p))
	}
	return []float64{2*(p[0]-1) + 2*p[0], 2*p[1] + 2*(p[1]-1)}, nil
}

// TradeoffProblem is a two-objective problem used to exercise balance scoring.
func TradeoffProblem() Problem {
	return Problem{
		Name:       "tradeoff",
		Loss:       tradeoffLoss,
		Grad:       tradeoffGrad,
		Objectives: Set{"toward_a": towardA, "toward_b": towardB},
		Initial:    []float64{2.0, -1.0},
	}
}

// #endregion tradeoff
