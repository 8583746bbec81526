package detect

import "github.com/danielpatrickdp/nef-optimizer/internal/health"

// #region config
// Config holds detector windows and thresholds.
type Config struct {
	PlateauWindow        int     `yaml:"plateau_window" json:"plateau_window"`
	PlateauThreshold     float64 `yaml:"plateau_threshold" json:"plateau_threshold"` // relative loss range below this → plateau
	OscillationWindow    int     `yaml:"oscillation_window" json:"oscillation_window"`
	OscillationThreshold float64 `yaml:"oscillation_threshold" json:"oscillation_threshold"` // sign-flip ratio above this → oscillation
	HealthThreshold      float64 `yaml:"health_threshold" json:"health_threshold"`           // overall health strictly below this → pause
	AnomalyThreshold     float64 `yaml:"anomaly_threshold" json:"anomaly_threshold"`         // metric value strictly below this → anomaly
}

// DefaultConfig returns the stock detector settings.
func DefaultConfig() Config {
	return Config{
		PlateauWindow:        10,
		PlateauThreshold:     0.001,
		OscillationWindow:    10,
		OscillationThreshold: 0.15,
		HealthThreshold:      0.45,
		AnomalyThreshold:     0.3,
	}
}

// #endregion config

// #region verdict
// Verdict is everything the detectors concluded about one iteration.
type Verdict struct {
	Plateau     bool             `json:"plateau"`
	Oscillation bool             `json:"oscillation"`
	LowHealth   bool             `json:"low_health"`
	Anomalies   []health.Anomaly `json:"anomalies,omitempty"`
	Pause       bool             `json:"pause"`
	Reason      string           `json:"reason"`
}

// #endregion verdict
