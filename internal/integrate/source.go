package integrate

import "math/rand"

// #region source
// Source supplies uniform samples in [0,1). It is the only randomness the
// optimizer uses, so injecting a seeded Source makes a run reproducible.
type Source interface {
	Float64() float64
}

// NewSource returns a Source backed by its own math/rand generator.
// Sources are not safe for concurrent use; give each run its own.
func NewSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// #endregion source
