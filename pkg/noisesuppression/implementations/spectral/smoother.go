package spectral

// smooth blurs the gain curve across neighbor bins and limits how fast
// every bin may close relative to the previous hop. Guard floors are
// re-applied last, so neither step can undo them.
func (c *gainCurve) smooth(
	class classification,
	speechHint float64,
	sampleRate float64,
) {
	p := c.params
	nyq := len(c.gains) - 1
	binWidth := sampleRate / float64(c.windowSize)

	strength := p.SmoothUnvoiced
	if class.Voiced {
		strength = p.SmoothVoiced
	}

	// prev carries the unsmoothed left neighbor.
	prev := c.gains[0]
	for k := 0; k <= nyq; k++ {
		cur := c.gains[k]
		next := cur
		if k < nyq {
			next = c.gains[k+1]
		}
		left := cur
		if k > 0 {
			left = prev
		}
		blurred := (left + cur + next) / 3
		c.gains[k] = cur + (blurred-cur)*strength
		prev = cur
	}

	releaseLimit := lerp(p.ReleaseLimitMin, p.ReleaseLimitMax, class.Probability)
	silenceConfirmed := speechHint < p.SilenceHintThreshold
	for k := 0; k <= nyq; k++ {
		if silenceConfirmed && float64(k)*binWidth >= p.SilenceHFMinHz {
			continue
		}
		c.gains[k] = max(c.gains[k], c.prevGains[k]*releaseLimit)
	}

	for k := range c.gains {
		c.gains[k] = clamp01(max(c.gains[k], c.guard[k]))
	}
}
