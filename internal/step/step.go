package step

import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/nef-optimizer/internal/detect"
	"github.com/danielpatrickdp/nef-optimizer/internal/history"
	"github.com/danielpatrickdp/nef-optimizer/internal/integrate"
)

// ErrNoSource is returned when a perturbation is required but Input.Source is nil.
var ErrNoSource = errors.New("no random source")

// #region step
// Step decides between a health-modulated gradient step and an integration
// strategy. It is a pure function of its input apart from draws on
// in.Source, and never mutates in.Params or the histories.
func Step(in Input) (Result, error) {
	verdict := detect.Evaluate(in.View, in.Record, in.Detect)

	if verdict.Pause {
		plan := integrate.Select(verdict)
		if needsSource(plan) && in.Source == nil {
			return Result{}, ErrNoSource
		}
		return Result{
			Params:   integrate.Apply(plan, in.Params, in.View.Params, in.Source),
			State:    StateIntegrating,
			Decision: Decision{Action: "integrate", Reason: fmt.Sprintf("%s; %s", verdict.Reason, plan.Reason)},
			Verdict:  verdict,
			Plan:     &plan,
		}, nil
	}

	grad, src, err := gradient(in)
	if err != nil {
		return Result{}, err
	}

	if src == GradNone {
		if in.Source == nil {
			return Result{}, ErrNoSource
		}
		plan := integrate.Plan{
			Strategy: integrate.StrategyInjectDiversity,
			Trigger:  integrate.TriggerNoGradient,
			Scale:    integrate.NoGradientScale,
			Reason:   "no gradient available",
		}
		return Result{
			Params:     integrate.Apply(plan, in.Params, in.View.Params, in.Source),
			State:      StateNormal,
			Decision:   Decision{Action: "step", Reason: "no gradient available: small random step"},
			Verdict:    verdict,
			Plan:       &plan,
			GradSource: src,
		}, nil
	}

	adjusted := in.LearningRate * math.Max(in.Record.Overall, MinHealthScale)
	next := make([]float64, len(in.Params))
	for i, p := range in.Params {
		next[i] = p - adjusted*grad[i]
	}

	return Result{
		Params:     next,
		State:      StateNormal,
		Decision:   Decision{Action: "step", Reason: fmt.Sprintf("%s; lr=%.6g (%s gradient)", verdict.Reason, adjusted, src)},
		Verdict:    verdict,
		AdjustedLR: adjusted,
		GradSource: src,
	}, nil
}

// #endregion step

// #region helpers
// gradient prefers a fresh evaluation, then the latest recorded gradient.
func gradient(in Input) ([]float64, GradSource, error) {
	if in.Grad != nil {
		g, err := in.Grad(in.Params)
		if err != nil {
			return nil, "", fmt.Errorf("evaluate gradient: %w", err)
		}
		if len(g) != len(in.Params) {
			return nil, "", fmt.Errorf("gradient has %d components, want %d: %w", len(g), len(in.Params), history.ErrDimensionMismatch)
		}
		return g, GradFresh, nil
	}
	if g := in.View.LastGrad(); g != nil {
		if len(g) != len(in.Params) {
			return nil, "", fmt.Errorf("recorded gradient has %d components, want %d: %w", len(g), len(in.Params), history.ErrDimensionMismatch)
		}
		return g, GradHistory, nil
	}
	return nil, GradNone, nil
}

func needsSource(p integrate.Plan) bool {
	return p.Strategy == integrate.StrategyInjectDiversity && p.Scale != 0
}

// #endregion helpers
