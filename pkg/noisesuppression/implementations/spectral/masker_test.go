package spectral

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMasker(t *testing.T) {
	params := DefaultParams()
	const windowSize = 512
	mag := make([]float64, windowSize/2+1)
	for i := range mag {
		mag[i] = 1e-3
	}
	mag[40] = 1
	mag[41] = 0.5
	mag[100] = 0.25

	m := newMasker(&params, len(mag))
	curve := m.Build(mag, 16000, windowSize)

	assert.Len(t, m.peaks, 2)
	assert.Equal(t, 40, m.peaks[0].bin)
	assert.Equal(t, 1.0, curve[40])
	assert.Equal(t, 0.25, curve[100])
	assert.Less(t, curve[45], curve[42])
	assert.Less(t, curve[35], curve[38])

	// the curve is the maximum of the skirts, not their sum
	radius := lerp(params.MaskerRadiusLow, params.MaskerRadiusHi, 100*16000.0/windowSize/params.MaskerSpanHz)
	decay := lerp(params.MaskerDecayLow, params.MaskerDecayHi, 100*16000.0/windowSize/params.MaskerSpanHz)
	assert.InDelta(t, 0.25*math.Exp(-decay/radius), curve[101], 1e-12)

	for i := 180; i < len(curve); i++ {
		assert.Zero(t, curve[i])
	}

	t.Run("rebuilt from scratch", func(t *testing.T) {
		flat := make([]float64, len(mag))
		curve := m.Build(flat, 16000, windowSize)
		for _, v := range curve {
			assert.Zero(t, v)
		}
	})

	t.Run("top peaks only", func(t *testing.T) {
		comb := make([]float64, len(mag))
		for i := 2; i < len(comb)-2; i += 3 {
			comb[i] = float64(i)
		}
		m.Build(comb, 16000, windowSize)
		assert.Len(t, m.peaks, params.MaskerMaxPeaks)
		assert.Greater(t, m.peaks[0].mag, m.peaks[len(m.peaks)-1].mag)
	})
}
