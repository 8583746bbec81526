package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/danielpatrickdp/nef-optimizer/internal/detect"
	"github.com/danielpatrickdp/nef-optimizer/internal/health"
	"github.com/danielpatrickdp/nef-optimizer/internal/metrics"
	"github.com/danielpatrickdp/nef-optimizer/internal/optimizer"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvDB            = "NEF_DB"
	EnvObjectiveAddr = "NEF_OBJECTIVE_ADDR"
	EnvSeed          = "NEF_SEED"
)

// #region types
// Config is the full run configuration loaded from YAML.
type Config struct {
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Metrics   metrics.Config  `yaml:"metrics"`
	Detect    detect.Config   `yaml:"detect"`
	Schedule  health.Schedule `yaml:"schedule"`
	Store     StoreConfig     `yaml:"store"`
	Objective ObjectiveConfig `yaml:"objective"`
}

// OptimizerConfig holds the run-level knobs.
type OptimizerConfig struct {
	LearningRate         float64 `yaml:"learning_rate"`
	MaxIterations        int     `yaml:"max_iterations"`
	ConvergenceThreshold float64 `yaml:"convergence_threshold"`
	Seed                 int64   `yaml:"seed"`
}

// StoreConfig locates the SQLite run store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ObjectiveConfig selects the problem to minimize. When Addr is set the
// problem is fetched from a remote objective server.
type ObjectiveConfig struct {
	Name      string  `yaml:"name"`
	Addr      string  `yaml:"addr,omitempty"`
	RateLimit float64 `yaml:"rate_limit,omitempty"` // RPCs per second, 0 = unlimited
	Burst     int     `yaml:"burst,omitempty"`
}

// #endregion types

// #region defaults
// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	oc := optimizer.DefaultConfig()
	return &Config{
		Optimizer: OptimizerConfig{
			LearningRate:         oc.LearningRate,
			MaxIterations:        oc.MaxIterations,
			ConvergenceThreshold: oc.ConvergenceThreshold,
			Seed:                 oc.Seed,
		},
		Metrics:  oc.Metrics,
		Detect:   oc.Detect,
		Schedule: oc.Schedule,
		Store:    StoreConfig{Path: "nef.db"},
		Objective: ObjectiveConfig{
			Name:  "rosenbrock",
			Burst: 1,
		},
	}
}

// #endregion defaults

// #region load
// LoadConfig loads a YAML file over the defaults, then applies environment
// overrides and validates the result. Keys absent from the file keep their
// default values; a schedule in the file replaces the default table.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// ApplyEnv overrides the store path, remote objective address and seed from
// NEF_DB, NEF_OBJECTIVE_ADDR and NEF_SEED.
func (c *Config) ApplyEnv() error {
	c.Store.Path = envOr(EnvDB, c.Store.Path)
	c.Objective.Addr = envOr(EnvObjectiveAddr, c.Objective.Addr)
	if val := os.Getenv(EnvSeed); val != "" {
		seed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvSeed, val, err)
		}
		c.Optimizer.Seed = seed
	}
	return nil
}

// #endregion load

// #region validate
// Validate rejects configurations the optimizer cannot run with.
func (c *Config) Validate() error {
	if c.Optimizer.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %g", c.Optimizer.LearningRate)
	}
	if c.Optimizer.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.Optimizer.MaxIterations)
	}
	if c.Optimizer.ConvergenceThreshold < 0 {
		return fmt.Errorf("convergence_threshold must be non-negative, got %g", c.Optimizer.ConvergenceThreshold)
	}

	windows := map[string]int{
		"stability_window":   c.Metrics.StabilityWindow,
		"diversity_window":   c.Metrics.DiversityWindow,
		"resilience_window":  c.Metrics.ResilienceWindow,
		"balance_window":     c.Metrics.BalanceWindow,
		"plateau_window":     c.Detect.PlateauWindow,
		"oscillation_window": c.Detect.OscillationWindow,
	}
	for name, w := range windows {
		if w < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, w)
		}
	}
	if c.Metrics.IntegrationWindow < 3 {
		return fmt.Errorf("integration_window must be at least 3, got %d", c.Metrics.IntegrationWindow)
	}

	for name, v := range map[string]float64{
		"health_threshold":      c.Detect.HealthThreshold,
		"anomaly_threshold":     c.Detect.AnomalyThreshold,
		"oscillation_threshold": c.Detect.OscillationThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %g", name, v)
		}
	}
	if c.Detect.PlateauThreshold < 0 {
		return fmt.Errorf("plateau_threshold must be non-negative, got %g", c.Detect.PlateauThreshold)
	}

	if err := c.Schedule.Validate(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	if c.Objective.Name == "" {
		return fmt.Errorf("objective name is required")
	}
	if c.Objective.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be non-negative, got %g", c.Objective.RateLimit)
	}
	if c.Objective.RateLimit > 0 && c.Objective.Burst < 1 {
		return fmt.Errorf("burst must be at least 1 when rate_limit is set, got %d", c.Objective.Burst)
	}
	return nil
}

// #endregion validate

// #region convert
// RunConfig assembles the optimizer's configuration.
func (c *Config) RunConfig() optimizer.Config {
	return optimizer.Config{
		LearningRate:         c.Optimizer.LearningRate,
		MaxIterations:        c.Optimizer.MaxIterations,
		ConvergenceThreshold: c.Optimizer.ConvergenceThreshold,
		Seed:                 c.Optimizer.Seed,
		Metrics:              c.Metrics,
		Detect:               c.Detect,
		Schedule:             c.Schedule,
	}
}

// #endregion convert

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
