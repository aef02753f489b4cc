package spectral

import (
	"math"
)

const (
	eulerGamma = 0.5772156649015329

	expintSeriesLimit = 10
	expintSeriesTerms = 64
)

// lerp interpolates between a and b; t is clamped to [0, 1].
func lerp(a, b, t float64) float64 {
	t = min(max(t, 0), 1)
	return a + (b-a)*t
}

func smoothstep(edge0, edge1, x float64) float64 {
	if edge1 == edge0 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := min(max((x-edge0)/(edge1-edge0), 0), 1)
	return t * t * (3 - 2*t)
}

// bell is a gaussian bump with the peak value 1 at "center".
func bell(x, center, width float64) float64 {
	d := (x - center) / max(width, 1e-6)
	return min(max(math.Exp(-0.5*d*d), 0), 1)
}

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

func frameRMS(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v * v
	}
	return math.Sqrt(s / float64(max(len(x), 1)))
}

// expint approximates the exponential integral E1(x) for x > 0.
//
// Small arguments use the convergent series, large ones the asymptotic
// expansion. Both branches are bounded in work.
func expint(x float64) float64 {
	if x <= 0 {
		return math.Inf(1)
	}
	if x < expintSeriesLimit {
		sum := 0.0
		term := 1.0
		for k := 1; k <= expintSeriesTerms; k++ {
			term *= -x / float64(k)
			contribution := term / float64(k)
			sum += contribution
			if math.Abs(contribution) < 1e-16*math.Abs(sum) {
				break
			}
		}
		return -eulerGamma - math.Log(x) - sum
	}
	inv := 1 / x
	return math.Exp(-x) * inv * (1 - inv + 2*inv*inv - 6*inv*inv*inv)
}

// fillSqrtHann fills w with the periodic square-root Hann window.
//
// The squared window sums to a constant for hops of W/2, W/4, ...,
// which is what the overlap-add normalization relies on.
func fillSqrtHann(w []float64) {
	n := float64(len(w))
	for i := range w {
		w[i] = math.Sqrt(0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/n))
	}
}

func largestPowerOfTwo(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
