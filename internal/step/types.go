package step

import (
	"github.com/danielpatrickdp/nef-optimizer/internal/detect"
	"github.com/danielpatrickdp/nef-optimizer/internal/health"
	"github.com/danielpatrickdp/nef-optimizer/internal/history"
	"github.com/danielpatrickdp/nef-optimizer/internal/integrate"
	"github.com/danielpatrickdp/nef-optimizer/internal/objective"
)

// #region state
// State is the controller mode chosen for an iteration. It is recomputed on
// every call and never carried between iterations.
type State string

const (
	StateNormal      State = "NORMAL"
	StateIntegrating State = "INTEGRATING"
)

// GradSource records where the gradient for a normal step came from.
type GradSource string

const (
	GradFresh   GradSource = "fresh"
	GradHistory GradSource = "history"
	GradNone    GradSource = "none"
)

// MinHealthScale is the floor on the health factor applied to the learning rate.
const MinHealthScale = 0.1

// #endregion state

// #region input
// Input carries everything one step decision needs. Params and View are read-only.
type Input struct {
	Params       []float64
	View         history.View
	Record       health.Record
	LearningRate float64
	Grad         objective.GradFunc // optional
	Detect       detect.Config
	Source       integrate.Source
}

// #endregion input

// #region decision
// Decision records what the controller did.
type Decision struct {
	Action string `json:"action"` // "step" | "integrate"
	Reason string `json:"reason"`
}

// #endregion decision

// #region result
// Result bundles the outcome of one Step call.
type Result struct {
	Params     []float64
	State      State
	Decision   Decision
	Verdict    detect.Verdict
	Plan       *integrate.Plan // set when integrating or when no gradient was available
	AdjustedLR float64
	GradSource GradSource
}

// #endregion result
