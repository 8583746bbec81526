package health

// #region metric
// Metric names one of the five health signals.
type Metric string

const (
	Stability   Metric = "stability"
	Diversity   Metric = "diversity"
	Resilience  Metric = "resilience"
	Balance     Metric = "balance"
	Integration Metric = "integration"
)

// Metrics lists the health signals in their canonical order. Aggregation,
// anomaly emission and serialization all traverse this order.
var Metrics = [...]Metric{Stability, Diversity, Resilience, Balance, Integration}

// #endregion metric

// #region values
// Values holds one raw score per metric, each in [0,1].
type Values struct {
	Stability   float64 `json:"stability"`
	Diversity   float64 `json:"diversity"`
	Resilience  float64 `json:"resilience"`
	Balance     float64 `json:"balance"`
	Integration float64 `json:"integration"`
}

// Get returns the score for m.
func (v Values) Get(m Metric) float64 {
	switch m {
	case Stability:
		return v.Stability
	case Diversity:
		return v.Diversity
	case Resilience:
		return v.Resilience
	case Balance:
		return v.Balance
	case Integration:
		return v.Integration
	}
	return 0
}

// #endregion values

// #region weights
// Weights maps each metric to its share of the overall score.
type Weights map[Metric]float64

// EqualWeights returns 0.2 for every metric. Used when no iteration context is available.
func EqualWeights() Weights {
	return Weights{
		Stability:   0.2,
		Diversity:   0.2,
		Resilience:  0.2,
		Balance:     0.2,
		Integration: 0.2,
	}
}

// Sum adds the weights in canonical metric order.
func (w Weights) Sum() float64 {
	var s float64
	for _, m := range Metrics {
		s += w[m]
	}
	return s
}

// #endregion weights

// #region record
// Entry is one metric's value and the weight it carried.
type Entry struct {
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// Record is the per-iteration health breakdown. Built once by Aggregate and
// never mutated afterward.
type Record struct {
	Entries map[Metric]Entry `json:"entries"`
	Overall float64          `json:"overall"`
}

// Value returns the raw score recorded for m.
func (r Record) Value(m Metric) float64 {
	return r.Entries[m].Value
}

// Anomaly flags a metric whose value fell below the anomaly threshold.
type Anomaly struct {
	Metric   Metric  `json:"metric"`
	Value    float64 `json:"value"`
	Severity float64 `json:"severity"`
}

// #endregion record
