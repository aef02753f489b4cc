package spectral

import (
	"math"
	"math/cmplx"
)

// gainInput is everything the gain curve of one hop depends on.
type gainInput struct {
	mag        []float64
	spectrum   []complex128
	noiseFloor []float64
	masker     []float64
	class      classification

	effectiveAmount float64
	sensitivity     float64
	tone            float64
	sampleRate      float64
	speechHint      float64
	transientHold   bool
}

// gainCurve owns the per-bin gain and the one-hop history the
// decision-directed estimate depends on.
type gainCurve struct {
	params       *Params
	windowSize   int
	gains        []float64
	guard        []float64
	prevGains    []float64
	prevMag      []float64
	prevSpectrum []complex128
}

func newGainCurve(params *Params, windowSize int) gainCurve {
	bins := windowSize/2 + 1
	c := gainCurve{
		params:       params,
		windowSize:   windowSize,
		gains:        make([]float64, bins),
		guard:        make([]float64, bins),
		prevGains:    make([]float64, bins),
		prevMag:      make([]float64, bins),
		prevSpectrum: make([]complex128, bins),
	}
	c.Reset()
	return c
}

func (c *gainCurve) Reset() {
	for i := range c.gains {
		c.gains[i] = 1
		c.prevGains[i] = 1
	}
	clear(c.guard)
	clear(c.prevMag)
	clear(c.prevSpectrum)
}

// Bypass sets unity gains; the following Commit restarts the
// decision-directed history from the current frame.
func (c *gainCurve) Bypass() {
	for i := range c.gains {
		c.gains[i] = 1
	}
	clear(c.guard)
}

// Commit stores the current hop as the history of the next one.
func (c *gainCurve) Commit(mag []float64, spectrum []complex128) {
	copy(c.prevGains, c.gains)
	copy(c.prevMag, mag)
	copy(c.prevSpectrum, spectrum[:len(c.prevSpectrum)])
}

// Build computes the raw gain curve including its floors. Guard floors that
// must survive the smoothing are recorded in c.guard.
func (c *gainCurve) Build(in *gainInput) {
	p := c.params
	nyq := len(c.gains) - 1
	binWidth := in.sampleRate / float64(c.windowSize)
	silenceConfirmed := in.speechHint < p.SilenceHintThreshold
	engaged := in.effectiveAmount > p.BypassEps

	clear(c.guard)
	for k := 0; k <= nyq; k++ {
		mag := in.mag[k]
		nf := in.noiseFloor[k]
		freq := float64(k) * binWidth
		freqFraction := float64(k) / float64(max(nyq, 1))

		lsa := c.lsaGain(k, mag, nf)

		bias := c.toneBias(in.tone, freqFraction)
		bandWeight := c.bandWeight(in.class.Voiced, freqFraction)
		sppBin := clamp01(in.class.Probability * bandWeight)

		threshold := nf * (1 + in.sensitivity*p.ThreshSensScale) * bias * (1 + p.SpeechThreshScale*sppBin)
		depth := 1.0
		if mag <= threshold {
			d := math.Pow(mag/(threshold+p.MagFloor), p.DepthPower)
			depth = clamp01(1 - in.effectiveAmount*(1-d))
		}

		raw := lsa * depth
		exponent := 1 + in.effectiveAmount*p.CoherencePower*(1-c.coherence(k, in.spectrum))
		raw = math.Pow(raw, exponent)

		var floor float64
		if engaged {
			masker := max(in.masker[k], p.MagFloor)
			maskRatio := clamp01(masker / (masker + nf))
			psycho := min(max(p.PsychoFloorBase+p.PsychoFloorRange*(1-maskRatio), p.PsychoFloorMin), p.PsychoFloorMax) *
				lerp(1, p.FloorScaleMin, in.effectiveAmount)
			speech := min(max(p.SpeechFloorBase+p.SpeechFloorRange*sppBin, p.SpeechFloorMin), p.SpeechFloorMax) *
				lerp(1, p.SpeechFloorScaleMin, in.effectiveAmount)
			floor = lerp(psycho, speech, sppBin)
			if silenceConfirmed && freq >= p.SilenceHFMinHz {
				floor = p.SilenceHFFloor
			}
		}

		if in.transientHold && freqFraction >= p.TransientFraction {
			c.guard[k] = max(c.guard[k], p.TransientFloor)
		}
		if in.class.Voiced && freq < p.LowHarmonicMaxHz {
			c.guard[k] = max(c.guard[k], p.LowHarmonicFloor)
		}

		c.gains[k] = clamp01(max(raw, floor, c.guard[k]))
	}
}

// lsaGain is the MMSE log-spectral amplitude gain driven by the
// decision-directed a-priori SNR.
func (c *gainCurve) lsaGain(k int, mag, nf float64) float64 {
	p := c.params
	noisePower := nf*nf + p.SNREpsilon
	gamma := mag * mag / noisePower

	pg, pm := c.prevGains[k], c.prevMag[k]
	xiHistory := pg * pg * pm * pm / noisePower
	xi := p.DDAlpha*xiHistory + (1-p.DDAlpha)*max(gamma-1, 0)
	xi = max(xi, p.XiMin)

	v := max(xi*gamma/(1+xi), 1e-8)
	return min(xi/(1+xi)*math.Exp(0.5*expint(v)), 1)
}

// toneBias tilts the threshold by up to ±ToneBiasDB towards one end of the
// band; the middle tone position is neutral.
func (c *gainCurve) toneBias(tone, freqFraction float64) float64 {
	p := c.params
	if tone < p.ToneSplit {
		t := clamp01(tone * p.ToneScale)
		return dbToGain(p.ToneBiasDB * (1 - t) * (1 - freqFraction))
	}
	t := clamp01((tone - p.ToneSplit) * p.ToneScale)
	return dbToGain(p.ToneBiasDB * t * freqFraction)
}

func (c *gainCurve) bandWeight(voiced bool, freqFraction float64) float64 {
	p := c.params
	if voiced {
		return p.VoicedSpeechBase + p.VoicedSpeechRange*bell(freqFraction, p.VoicedMidCenter, p.VoicedMidWidth)
	}
	return p.UnvoicedSpeechBase + p.UnvoicedSpeechRange*smoothstep(p.UnvoicedHFMin, p.UnvoicedHFMax, freqFraction)
}

// coherence is the normalized inter-frame cross-spectrum magnitude around
// bin k: 1 for a stationary partial, close to 0 for noise. Without history
// it reports full coherence.
func (c *gainCurve) coherence(k int, spectrum []complex128) float64 {
	span := c.params.CoherenceSpan
	from, to := max(k-span, 0), min(k+span, len(c.prevSpectrum)-1)
	var cross complex128
	var curEnergy, prevEnergy float64
	for j := from; j <= to; j++ {
		cur, prev := spectrum[j], c.prevSpectrum[j]
		cross += cur * cmplx.Conj(prev)
		curEnergy += real(cur)*real(cur) + imag(cur)*imag(cur)
		prevEnergy += real(prev)*real(prev) + imag(prev)*imag(prev)
	}
	denom := math.Sqrt(curEnergy * prevEnergy)
	if denom <= c.params.SNREpsilon {
		return 1
	}
	return clamp01(cmplx.Abs(cross) / denom)
}
