package health

// #region schedule
// Stage is one row of the weight schedule: Weights apply from iteration From
// until the next stage begins.
type Stage struct {
	From    int     `yaml:"from" json:"from"`
	Weights Weights `yaml:"weights" json:"weights"`
}

// Schedule is an ordered table of stages sorted by From. The first stage must
// start at 0. It holds no learnable state.
type Schedule []Stage

// DefaultSchedule returns the three-stage table: early iterations favor
// stability and diversity, the middle shifts toward balance, and late
// iterations prioritize integration and balance.
func DefaultSchedule() Schedule {
	return Schedule{
		{From: 0, Weights: Weights{
			Stability: 0.35, Diversity: 0.25, Resilience: 0.15, Balance: 0.15, Integration: 0.10,
		}},
		{From: 100, Weights: Weights{
			Stability: 0.20, Diversity: 0.20, Resilience: 0.20, Balance: 0.30, Integration: 0.10,
		}},
		{From: 500, Weights: Weights{
			Stability: 0.15, Diversity: 0.15, Resilience: 0.20, Balance: 0.25, Integration: 0.25,
		}},
	}
}

// WeightsAt returns the weights of the last stage whose From <= iteration.
// An empty schedule (or a negative iteration) yields equal weights.
func (s Schedule) WeightsAt(iteration int) Weights {
	var selected Weights
	for _, st := range s {
		if st.From > iteration {
			break
		}
		selected = st.Weights
	}
	if selected == nil {
		return EqualWeights()
	}
	return selected
}

// #endregion schedule
