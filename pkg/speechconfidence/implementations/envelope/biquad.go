package envelope

import (
	"math"
)

// biquad is a direct form I second-order section with the RBJ cookbook
// low-pass and high-pass designs.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	x1, x2     float64
	y1, y2     float64
}

func newHighPass(freq, sampleRate, q float64) biquad {
	omega, alpha := biquadAngles(freq, sampleRate, q)
	cosOmega := math.Cos(omega)
	return normalizedBiquad(
		(1+cosOmega)/2, -(1 + cosOmega), (1+cosOmega)/2,
		1+alpha, -2*cosOmega, 1-alpha,
	)
}

func newLowPass(freq, sampleRate, q float64) biquad {
	omega, alpha := biquadAngles(freq, sampleRate, q)
	cosOmega := math.Cos(omega)
	return normalizedBiquad(
		(1-cosOmega)/2, 1-cosOmega, (1-cosOmega)/2,
		1+alpha, -2*cosOmega, 1-alpha,
	)
}

func biquadAngles(freq, sampleRate, q float64) (float64, float64) {
	// keep the corner below Nyquist for low sample rates
	freq = min(freq, 0.45*sampleRate)
	omega := 2 * math.Pi * freq / sampleRate
	return omega, math.Sin(omega) / (2 * max(q, 1e-6))
}

func normalizedBiquad(b0, b1, b2, a0, a1, a2 float64) biquad {
	return biquad{
		b0: b0 / a0, b1: b1 / a0, b2: b2 / a0,
		a1: a1 / a0, a2: a2 / a0,
	}
}

func (f *biquad) Process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

func (f *biquad) Reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}
