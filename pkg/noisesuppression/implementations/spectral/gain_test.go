package spectral

import (
	"fmt"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToneBias(t *testing.T) {
	params := DefaultParams()
	c := newGainCurve(&params, 64)
	edge := dbToGain(params.ToneBiasDB)

	for _, tc := range []struct {
		tone, freqFraction, expected float64
	}{
		{0.5, 0, 1},
		{0.5, 1, 1},
		{0, 0, edge},
		{0, 1, 1},
		{1, 1, edge},
		{1, 0, 1},
		{0.25, 0, dbToGain(params.ToneBiasDB / 2)},
		{0.75, 1, dbToGain(params.ToneBiasDB / 2)},
		{1, 0.5, dbToGain(params.ToneBiasDB / 2)},
	} {
		t.Run(fmt.Sprintf("tone_%v_at_%v", tc.tone, tc.freqFraction), func(t *testing.T) {
			assert.InDelta(t, tc.expected, c.toneBias(tc.tone, tc.freqFraction), 1e-12)
		})
	}
	assert.InDelta(t, 6, 20*math.Log10(edge), 1e-9)
}

func TestBandWeight(t *testing.T) {
	params := DefaultParams()
	c := newGainCurve(&params, 64)

	t.Run("voiced bell", func(t *testing.T) {
		peak := c.bandWeight(true, params.VoicedMidCenter)
		assert.InDelta(t, params.VoicedSpeechBase+params.VoicedSpeechRange, peak, 1e-12)
		assert.Less(t, c.bandWeight(true, 0.6), peak)
		assert.InDelta(t, params.VoicedSpeechBase, c.bandWeight(true, 1), 0.01)
		assert.InDelta(t,
			c.bandWeight(true, params.VoicedMidCenter-0.1),
			c.bandWeight(true, params.VoicedMidCenter+0.1),
			1e-12,
		)
	})

	t.Run("unvoiced ramp", func(t *testing.T) {
		assert.Equal(t, params.UnvoicedSpeechBase, c.bandWeight(false, 0))
		assert.Equal(t, params.UnvoicedSpeechBase, c.bandWeight(false, params.UnvoicedHFMin))
		assert.InDelta(t, params.UnvoicedSpeechBase+params.UnvoicedSpeechRange, c.bandWeight(false, params.UnvoicedHFMax), 1e-12)
		prev := 0.0
		for f := 0.0; f <= 1; f += 0.01 {
			w := c.bandWeight(false, f)
			require.GreaterOrEqual(t, w, prev, "f:%v", f)
			prev = w
		}
	})
}

// rotatedSpectrum turns every bin by a third of a turn more than its left
// neighbor, so any three adjacent bins cancel out in the cross-spectrum.
func rotatedSpectrum(n int, magnitude float64) []complex128 {
	s := make([]complex128, n)
	for j := range s {
		s[j] = cmplx.Rect(magnitude, 2*math.Pi*float64(j)/3)
	}
	return s
}

func steadyGainInput(bins int) gainInput {
	spectrum := make([]complex128, bins)
	for i := range spectrum {
		spectrum[i] = 3
	}
	return gainInput{
		mag:             filled(bins, 3),
		spectrum:        spectrum,
		noiseFloor:      filled(bins, 1),
		masker:          filled(bins, 1e3),
		effectiveAmount: 1,
		tone:            0.5,
		sampleRate:      16000,
		speechHint:      1,
	}
}

func TestCoherenceExponent(t *testing.T) {
	const windowSize = 64
	const bins = windowSize/2 + 1
	params := DefaultParams()
	in := steadyGainInput(bins)

	coherent := newGainCurve(&params, windowSize)
	coherent.Commit(in.mag, in.spectrum)
	assert.InDelta(t, 1, coherent.coherence(10, in.spectrum), 1e-12)
	coherent.Build(&in)

	incoherent := newGainCurve(&params, windowSize)
	incoherent.Commit(in.mag, in.spectrum)
	copy(incoherent.prevSpectrum, rotatedSpectrum(bins, 3))
	assert.InDelta(t, 0, incoherent.coherence(10, in.spectrum), 1e-9)
	incoherent.Build(&in)

	for k := 1; k < bins-1; k++ {
		g := coherent.gains[k]
		require.Greater(t, g, 0.5, "k:%d", k)
		require.Less(t, g, 1.0, "k:%d", k)
		// exponent 1 + amount*(1 - coherence) = 2
		require.InDelta(t, g*g, incoherent.gains[k], 1e-9, "k:%d", k)
	}

	// without history every bin counts as coherent
	fresh := newGainCurve(&params, windowSize)
	assert.Equal(t, 1.0, fresh.coherence(10, in.spectrum))
}

func TestGainFloors(t *testing.T) {
	const windowSize = 64
	const bins = windowSize/2 + 1
	params := DefaultParams()
	binWidth := 16000.0 / windowSize

	quiet := func() gainInput {
		in := steadyGainInput(bins)
		in.mag = filled(bins, 1e-3)
		return in
	}

	t.Run("voiced low frequencies", func(t *testing.T) {
		in := quiet()
		in.class = classification{Voiced: true, Probability: 1, F0: 150}
		c := newGainCurve(&params, windowSize)
		c.Build(&in)
		for k, g := range c.gains {
			freq := float64(k) * binWidth
			if freq < params.LowHarmonicMaxHz {
				require.Equal(t, params.LowHarmonicFloor, c.guard[k], "k:%d", k)
				require.GreaterOrEqual(t, g, params.LowHarmonicFloor, "k:%d", k)
				continue
			}
			require.Zero(t, c.guard[k], "k:%d", k)
		}

		in.class = classification{}
		c.Build(&in)
		for k := range c.guard {
			require.Zero(t, c.guard[k], "k:%d", k)
		}
	})

	t.Run("confirmed silence", func(t *testing.T) {
		in := quiet()
		in.speechHint = 0
		silent := newGainCurve(&params, windowSize)
		silent.Build(&in)

		in.speechHint = 1
		unsure := newGainCurve(&params, windowSize)
		unsure.Build(&in)

		for k := range silent.gains {
			if float64(k)*binWidth < params.SilenceHFMinHz {
				require.Equal(t, unsure.gains[k], silent.gains[k], "k:%d", k)
				continue
			}
			require.InDelta(t, params.SilenceHFFloor, silent.gains[k], 1e-9, "k:%d", k)
			require.Greater(t, unsure.gains[k], silent.gains[k], "k:%d", k)
		}
	})

	t.Run("transient hold", func(t *testing.T) {
		in := quiet()
		in.transientHold = true
		c := newGainCurve(&params, windowSize)
		c.Build(&in)
		nyq := bins - 1
		for k := range c.gains {
			if float64(k)/float64(nyq) >= params.TransientFraction {
				require.GreaterOrEqual(t, c.gains[k], params.TransientFloor, "k:%d", k)
				require.Equal(t, params.TransientFloor, c.guard[k], "k:%d", k)
			}
		}
	})

	t.Run("bypassed amount has no floors", func(t *testing.T) {
		in := quiet()
		in.effectiveAmount = 0
		c := newGainCurve(&params, windowSize)
		c.Build(&in)
		for k, g := range c.gains {
			require.LessOrEqual(t, g, 1.0, "k:%d", k)
			require.GreaterOrEqual(t, g, 0.0, "k:%d", k)
		}
	})
}
