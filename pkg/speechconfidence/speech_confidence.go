// Package speechconfidence defines the external speech hint consumed by
// the suppressors: a per-sample scalar in [0, 1], where low values mean
// confirmed silence.
package speechconfidence

// Estimator is a single-channel speech confidence tracker.
//
// It is not safe for concurrent use.
type Estimator interface {
	// Process consumes one sample and returns the current confidence.
	Process(sample float64) float64
	Reset()
}

// Constant always reports the same confidence.
type Constant float64

var _ Estimator = Constant(0)

func (c Constant) Process(float64) float64 {
	return float64(c)
}

func (Constant) Reset() {}
