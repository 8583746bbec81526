package eval

// #region eval-config
// EvalConfig holds tolerances for post-run validation.
type EvalConfig struct {
	WeightTolerance float64 // max |Σweights - 1| per record
	RequireProgress bool    // fail when the final loss is not below the initial loss
}

// DefaultEvalConfig returns the stock tolerances. Progress is informational by default.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		WeightTolerance: 1e-9,
		RequireProgress: false,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-run validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
