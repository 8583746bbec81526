package objective

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownObjective is returned by Lookup for unregistered names.
var ErrUnknownObjective = errors.New("unknown objective")

// #region types
// Func evaluates a scalar objective at a point.
type Func func(params []float64) (float64, error)

// GradFunc evaluates the gradient at a point. The result must have the same
// dimensionality as params.
type GradFunc func(params []float64) ([]float64, error)

// Set maps objective names to functions. Only the balance metric consumes it.
type Set map[string]Func

// Names returns the set's keys in sorted order so evaluation order is stable.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Problem bundles everything a run needs about the function being minimized.
type Problem struct {
	Name       string
	Loss       Func
	Grad       GradFunc // may be nil
	Objectives Set      // nil means a single objective equal to Loss
	Initial    []float64
}

// ObjectiveSet returns the objectives the balance metric evaluates.
func (p Problem) ObjectiveSet() Set {
	if p.Objectives != nil {
		return p.Objectives
	}
	return Set{"main": p.Loss}
}

// #endregion types

// #region registry
var registry = map[string]func() Problem{
	"rosenbrock": RosenbrockProblem,
	"sphere":     SphereProblem,
	"tradeoff":   TradeoffProblem,
}

// Lookup returns a fresh copy of a built-in problem.
func Lookup(name string) (Problem, error) {
	ctor, ok := registry[name]
	if !ok {
		return Problem{}, fmt.Errorf("%q: %w", name, ErrUnknownObjective)
	}
	return ctor(), nil
}

// Registered lists built-in problem names.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// #endregion registry
