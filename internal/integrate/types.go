package integrate

import "github.com/danielpatrickdp/nef-optimizer/internal/health"

// #region strategy
// Strategy enumerates the corrective updates available during a pause.
type Strategy string

const (
	StrategyDamp            Strategy = "damp"
	StrategyInjectDiversity Strategy = "inject_diversity"
	StrategyAverageHistory  Strategy = "average_history"
)

// Trigger names the rule that selected a plan.
type Trigger string

const (
	TriggerAnomaly     Trigger = "anomaly"
	TriggerSaddle      Trigger = "saddle"
	TriggerPlateau     Trigger = "plateau"
	TriggerOscillation Trigger = "oscillation"
	TriggerLowHealth   Trigger = "low_health"
	TriggerNoGradient  Trigger = "no_gradient"
)

// #endregion strategy

// #region constants
const (
	DampFactor          = 0.95
	AnomalyDiversity    = 0.10 // diversity anomaly
	AnomalyFallback     = 0.02 // resilience, balance, integration anomalies
	SaddleScale         = 0.10
	PlateauScale        = 0.05
	LowHealthScale      = 0.01
	NoGradientScale     = 0.01
	AverageHistoryDepth = 5
)

// #endregion constants

// #region plan
// Plan is the selected correction. Scale is meaningful only for
// StrategyInjectDiversity; Depth only for StrategyAverageHistory.
type Plan struct {
	Strategy Strategy        `json:"strategy"`
	Trigger  Trigger         `json:"trigger"`
	Scale    float64         `json:"scale,omitempty"`
	Depth    int             `json:"depth,omitempty"`
	Anomaly  *health.Anomaly `json:"anomaly,omitempty"`
	Reason   string          `json:"reason"`
}

// #endregion plan
