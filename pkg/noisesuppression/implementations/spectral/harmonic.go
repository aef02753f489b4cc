package spectral

import (
	"math"
)

// protectHarmonics raises the gain around every harmonic of f0 up to a
// floor that grows with the speech probability and shrinks with the
// effective amount. It returns the applied floor and the amount of
// protected harmonics, or zeros if the frame does not qualify.
func (c *gainCurve) protectHarmonics(
	class classification,
	effectiveAmount float64,
	sampleRate float64,
) (float64, int) {
	p := c.params
	f0 := class.F0
	if effectiveAmount <= p.BypassEps || !class.Voiced || f0 < p.HarmonicF0MinHz || f0 > p.HarmonicF0MaxHz {
		return 0, 0
	}

	nyq := len(c.gains) - 1
	binWidth := sampleRate / float64(c.windowSize)
	base := lerp(p.HarmonicWeakGain, p.HarmonicStrongGain, effectiveAmount)
	floor := lerp(base, p.HarmonicMinGainHi, p.HarmonicAllowScale*class.Probability)
	floor = min(max(floor, p.HarmonicMinGainLo), p.HarmonicMinGainHi)

	maxFreq := min(p.HarmonicMaxHz, sampleRate/2)
	count := 0
	for h := 1; h <= p.HarmonicMaxCount; h++ {
		freq := f0 * float64(h)
		if freq > maxFreq {
			break
		}
		center := int(math.Round(freq / binWidth))
		if center > nyq {
			break
		}
		width := max(lerp(p.HarmonicWidthLow, p.HarmonicWidthHigh, freq/p.HarmonicMaxHz), 1)
		span := int(math.Ceil(width))
		for k := max(center-span, 0); k <= min(center+span, nyq); k++ {
			if math.Abs(float64(k-center)) > width {
				continue
			}
			c.gains[k] = max(c.gains[k], floor)
			c.guard[k] = max(c.guard[k], floor)
		}
		count++
	}
	return floor, count
}
