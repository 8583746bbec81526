package metrics

// #region config
// Config holds the trailing window of each calculator.
type Config struct {
	StabilityWindow   int `yaml:"stability_window" json:"stability_window"`
	DiversityWindow   int `yaml:"diversity_window" json:"diversity_window"`
	ResilienceWindow  int `yaml:"resilience_window" json:"resilience_window"`
	BalanceWindow     int `yaml:"balance_window" json:"balance_window"`
	IntegrationWindow int `yaml:"integration_window" json:"integration_window"`
}

// DefaultConfig returns windows of 10, with 20 for integration.
func DefaultConfig() Config {
	return Config{
		StabilityWindow:   10,
		DiversityWindow:   10,
		ResilienceWindow:  10,
		BalanceWindow:     10,
		IntegrationWindow: 20,
	}
}

// #endregion config

// #region probe
// Probe is the result of an explicit perturbation test. When present it
// replaces the loss-history estimate of resilience.
type Probe struct {
	RecoveryScore float64
}

// #endregion probe

// #region defaults
// Neutral scores returned while a window is not yet full.
const (
	healthyDefault   = 1.0 // stability, diversity, resilience
	neutralDefault   = 0.5 // balance, integration
	noRecoveryScore  = 0.8 // resilience with no spike-then-recovery in the window
	normFloor        = 1e-10
	stabilityScale   = 10.0
	balanceScale     = 5.0
	integrationScale = 10.0
)

// #endregion defaults
