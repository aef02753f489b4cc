package spectral

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func convergedTracker(params *Params, bins int, floor float64) noiseTracker {
	t := newNoiseTracker(params, bins)
	t.converged = true
	copy(t.floor, filled(bins, floor))
	return t
}

func TestNoiseTrackerBallistics(t *testing.T) {
	const bins = 9
	params := DefaultParams()

	type result struct{ drop, rise float64 }
	results := map[float64]result{}
	for _, speechProb := range []float64{0, 0.5, 1} {
		t.Run(fmt.Sprintf("speech_%v", speechProb), func(t *testing.T) {
			protect := params.NoiseProtectBase + params.NoiseProtectRange*speechProb
			attack := lerp(params.NoiseAttackBase, params.NoiseAttackMax, protect)
			release := lerp(params.NoiseReleaseBase, params.NoiseReleaseMax, protect)

			down := convergedTracker(&params, bins, 1)
			down.Update(filled(bins, 0.5), speechProb, 0)
			require.InDelta(t, attack+0.5*(1-attack), down.floor[3], 1e-12)

			up := convergedTracker(&params, bins, 1)
			up.Update(filled(bins, 2), speechProb, 0)
			require.InDelta(t, release+2*(1-release), up.floor[3], 1e-12)

			r := result{drop: 1 - down.floor[3], rise: up.floor[3] - 1}
			assert.Greater(t, r.drop, 10*r.rise)
			results[speechProb] = r
		})
	}

	// speech protects the floor: both directions slow down
	assert.Greater(t, results[0].drop, results[0.5].drop)
	assert.Greater(t, results[0.5].drop, results[1].drop)
	assert.Greater(t, results[0].rise, results[0.5].rise)
	assert.Greater(t, results[0.5].rise, results[1].rise)
}

func TestNoiseTrackerStartup(t *testing.T) {
	const bins = 17
	params := DefaultParams()
	const minHops = 10

	t.Run("latches after the minimal duration", func(t *testing.T) {
		tracker := newNoiseTracker(&params, bins)
		mag := make([]float64, bins)
		mag[bins-2] = 1e-2
		for hop := 0; hop < minHops; hop++ {
			tracker.Update(mag, 0, minHops)
			require.True(t, tracker.StartupMode(), "hop:%d", hop)
		}
		require.Greater(t, tracker.floor[bins-2], params.NoiseStartupThresh)
		tracker.Update(mag, 0, minHops)
		require.False(t, tracker.StartupMode())

		// the floor falling back does not re-enter the startup mode
		silence := make([]float64, bins)
		for range 500 {
			tracker.Update(silence, 0, minHops)
		}
		require.Less(t, tracker.floor[bins-2], params.NoiseStartupThresh)
		assert.False(t, tracker.StartupMode())

		tracker.Reset()
		assert.True(t, tracker.StartupMode())
		assert.Equal(t, params.NoiseFloorInit, tracker.floor[0])
	})

	t.Run("only the bin next to Nyquist counts", func(t *testing.T) {
		tracker := newNoiseTracker(&params, bins)
		mag := filled(bins, 1)
		mag[bins-2] = 1e-6
		for range 100 {
			tracker.Update(mag, 0, minHops)
		}
		assert.True(t, tracker.StartupMode())
	})

	t.Run("startup ballistics are fast", func(t *testing.T) {
		tracker := newNoiseTracker(&params, bins)
		tracker.Update(filled(bins, 1), 0, minHops)
		assert.InDelta(t, params.NoiseFloorInit*params.NoiseStartupRelease+(1-params.NoiseStartupRelease), tracker.floor[1], 1e-12)
	})
}

func TestNoiseTrackerConfidence(t *testing.T) {
	const bins = 9
	params := DefaultParams()
	tracker := convergedTracker(&params, bins, 1)

	assert.InDelta(t, 1, tracker.EffectiveAmount(1), 1e-12)
	assert.InDelta(t, 0.5, tracker.EffectiveAmount(0.5), 1e-12)

	// the floor moving fast means the noise model is not trusted
	mag := filled(bins, 0.01)
	for range 40 {
		tracker.Update(mag, 0, 0)
	}
	require.Less(t, tracker.confidence, 0.2)
	throttled := tracker.EffectiveAmount(1)
	assert.Less(t, throttled, params.ConfidenceAmountMin+(1-params.ConfidenceAmountMin)*0.2)
	assert.GreaterOrEqual(t, throttled, params.ConfidenceAmountMin)

	// a settled floor earns the trust back
	for range 500 {
		tracker.Update(mag, 0, 0)
	}
	assert.Greater(t, tracker.confidence, 0.9)
	assert.Greater(t, tracker.EffectiveAmount(1), 0.9)

	tracker.confidence = 0
	assert.Equal(t, params.ConfidenceAmountMin, tracker.EffectiveAmount(1))
}
