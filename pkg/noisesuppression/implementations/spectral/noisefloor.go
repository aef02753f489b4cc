package spectral

import (
	"math"
)

// noiseTracker follows the per-bin noise magnitude with asymmetric,
// speech-gated ballistics and keeps a confidence in its own stability.
type noiseTracker struct {
	params     *Params
	floor      []float64
	confidence float64
	converged  bool

	// startupHops counts the hops spent in the startup mode.
	startupHops int
}

func newNoiseTracker(params *Params, bins int) noiseTracker {
	t := noiseTracker{
		params: params,
		floor:  make([]float64, bins),
	}
	t.Reset()
	return t
}

func (t *noiseTracker) Reset() {
	for i := range t.floor {
		t.floor[i] = t.params.NoiseFloorInit
	}
	t.confidence = 1
	t.converged = false
	t.startupHops = 0
}

// StartupMode reports whether the tracker still uses its fast startup
// ballistics.
func (t *noiseTracker) StartupMode() bool {
	return !t.converged
}

// checkConverged latches the end of the startup mode: the bin next to
// Nyquist has risen above the startup threshold and the startup lasted
// at least minHops.
func (t *noiseTracker) checkConverged(minHops int) {
	if t.converged {
		return
	}
	watched := max(len(t.floor)-2, 0)
	if t.floor[watched] >= t.params.NoiseStartupThresh && t.startupHops >= minHops {
		t.converged = true
	}
}

// Update moves the floor towards mag and returns the refreshed confidence.
// minStartupHops is the minimal length of the startup mode.
func (t *noiseTracker) Update(mag []float64, speechProb float64, minStartupHops int) float64 {
	p := t.params
	t.checkConverged(minStartupHops)
	var attack, release float64
	if !t.converged {
		t.startupHops++
		attack, release = p.NoiseStartupAttack, p.NoiseStartupRelease
	} else {
		protect := p.NoiseProtectBase + p.NoiseProtectRange*speechProb
		attack = lerp(p.NoiseAttackBase, p.NoiseAttackMax, protect)
		release = lerp(p.NoiseReleaseBase, p.NoiseReleaseMax, protect)
	}

	var change float64
	for i, m := range mag {
		prev := t.floor[i]
		var nf float64
		if m < prev {
			nf = prev*attack + m*(1-attack)
		} else {
			nf = prev*release + m*(1-release)
		}
		nf = max(nf, p.MagFloor)
		t.floor[i] = nf
		if prev > p.MagFloor {
			change += math.Abs(nf-prev) / prev
		}
	}

	avgChange := change / float64(max(len(mag), 1))
	instant := clamp01(1 - avgChange*p.ConfidenceChangeScale)
	t.confidence = lerp(t.confidence, instant, p.ConfidenceSmoothing)
	return t.confidence
}

// EffectiveAmount throttles amount by the confidence in the noise model.
func (t *noiseTracker) EffectiveAmount(amount float64) float64 {
	p := t.params
	return amount * (p.ConfidenceAmountMin + (1-p.ConfidenceAmountMin)*t.confidence)
}
