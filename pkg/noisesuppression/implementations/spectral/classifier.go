package spectral

import (
	"math"
)

// classification is the per-hop verdict of the speech classifier.
type classification struct {
	Probability float64
	Voiced      bool
	F0          float64
	Periodicity float64
	Flatness    float64
	HFRatio     float64
	RMS         float64
}

type classifier struct {
	params *Params
	pre    []float64
	corr   []float64
}

func newClassifier(params *Params, windowSize int) classifier {
	return classifier{
		params: params,
		pre:    make([]float64, windowSize),
		corr:   make([]float64, windowSize/2+2),
	}
}

// Classify estimates speech presence from the time-domain frame, the main
// magnitudes and the coarse magnitudes.
func (c *classifier) Classify(
	frame []float64,
	mag []float64,
	coarseMag []float64,
	sampleRate float64,
) classification {
	p := c.params
	var result classification

	result.Periodicity, result.F0 = c.estimatePitch(frame, sampleRate)
	result.Voiced = result.Periodicity > p.VoicedPeriodicity &&
		result.F0 >= p.VoicedF0MinHz && result.F0 <= p.VoicedF0MaxHz
	voicedProb := smoothstep(p.PeriodicityMin, p.PeriodicityMax, result.Periodicity)

	result.Flatness = spectralFlatness(mag, p.MagFloor)
	tonalProb := 1 - smoothstep(p.FlatnessMin, p.FlatnessMax, result.Flatness)

	result.HFRatio = hfRatio(coarseMag, p.HFSplitFraction, p.MagFloor)
	unvoicedProb := smoothstep(p.HFRatioMin, p.HFRatioMax, result.HFRatio)

	result.RMS = frameRMS(frame)
	energyGate := smoothstep(p.EnergyGateMin, p.EnergyGateMax, result.RMS)

	// The weights intentionally do not sum to 1.
	prob := p.WeightVoiced*voicedProb + p.WeightTonal*tonalProb + p.WeightUnvoiced*unvoicedProb
	result.Probability = clamp01(prob * energyGate)
	return result
}

// estimatePitch returns the normalized autocorrelation peak and the
// corresponding fundamental frequency, or zeros if the frame is silent.
func (c *classifier) estimatePitch(frame []float64, sampleRate float64) (float64, float64) {
	p := c.params
	n := len(frame)

	var mean float64
	for _, v := range frame {
		mean += v
	}
	mean /= float64(n)

	var prev, energy float64
	for i, v := range frame {
		d := v - mean
		y := d - p.PreEmphasis*prev
		prev = d
		c.pre[i] = y
		energy += y * y
	}
	if energy < 1e-6 {
		return 0, 0
	}

	lagMin := min(max(int(math.Floor(sampleRate/p.PitchMaxHz)), p.PitchMinLag), n/2)
	lagMax := min(max(int(math.Ceil(sampleRate/p.PitchMinHz)), lagMin+1), n/2)
	if lagMax <= lagMin {
		return 0, 0
	}

	best := 0.0
	from, to := max(lagMin-1, 1), min(lagMax+1, n-1)
	for lag := from; lag <= to; lag++ {
		r := c.normalizedAutocorrelation(lag)
		c.corr[lag-from] = r
		if lag >= lagMin && lag <= lagMax && r > best {
			best = r
		}
	}
	if best <= 0 {
		return 0, 0
	}
	at := func(lag int) float64 {
		return c.corr[lag-from]
	}

	// The first local maximum close enough to the global one wins, so that
	// multiples of the true period do not produce octave errors.
	bestLag := 0
	for lag := lagMin; lag <= lagMax; lag++ {
		r := at(lag)
		if r < p.OctaveGuard*best {
			continue
		}
		isPeak := (lag == from || r >= at(lag-1)) && (lag == to || r >= at(lag+1))
		if isPeak {
			bestLag = lag
			break
		}
	}
	if bestLag == 0 {
		return 0, 0
	}

	lag := float64(bestLag)
	if bestLag > from && bestLag < to {
		y1, y2, y3 := at(bestLag-1), at(bestLag), at(bestLag+1)
		denom := y1 - 2*y2 + y3
		if math.Abs(denom) > 1e-12 {
			delta := (y1 - y3) / (2 * denom)
			lag += min(max(delta, -0.5), 0.5)
		}
	}

	return clamp01(at(bestLag)), sampleRate / lag
}

func (c *classifier) normalizedAutocorrelation(lag int) float64 {
	x := c.pre
	var s, e1, e2 float64
	for i := 0; i < len(x)-lag; i++ {
		a := x[i]
		b := x[i+lag]
		s += a * b
		e1 += a * a
		e2 += b * b
	}
	r := s / max(math.Sqrt(e1*e2), 1e-12)
	return min(max(r, -1), 1)
}

// spectralFlatness is the ratio of the geometric to the arithmetic mean
// of the magnitudes, DC and Nyquist excluded. Degenerate spectra count as
// flat.
func spectralFlatness(mag []float64, magFloor float64) float64 {
	n := len(mag) - 2
	if n <= 0 {
		return 1
	}
	var sumLog, sum float64
	for _, m := range mag[1 : len(mag)-1] {
		m = max(m, magFloor)
		sumLog += math.Log(m)
		sum += m
	}
	if sum <= magFloor*float64(n)*(1+1e-9) {
		return 1
	}
	arith := sum / float64(n)
	return min(math.Exp(sumLog/float64(n))/arith, 1)
}

// hfRatio returns the energy above splitFraction of Nyquist divided by the
// energy below it.
func hfRatio(mag []float64, splitFraction float64, magFloor float64) float64 {
	nyq := len(mag) - 1
	split := max(int(float64(nyq)*splitFraction), 2)
	var lf, hf float64
	for i := 1; i < split && i < nyq; i++ {
		lf += mag[i] * mag[i]
	}
	for i := split; i < nyq; i++ {
		hf += mag[i] * mag[i]
	}
	if lf <= magFloor*magFloor {
		return 0
	}
	return hf / lf
}
