package spectral

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleRing(t *testing.T) {
	r := newSampleRing(4)
	_, ok := r.Pop()
	assert.False(t, ok)

	for i := 1; i <= 4; i++ {
		require.True(t, r.Push(float64(i)))
	}
	assert.False(t, r.Push(5))
	assert.Equal(t, 4, r.Len())

	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	require.True(t, r.Push(5))

	t.Run("peek across the wrap", func(t *testing.T) {
		dst := make([]float64, 6)
		n := r.Peek(dst)
		assert.Equal(t, 4, n)
		assert.Equal(t, []float64{2, 3, 4, 5, 0, 0}, dst)
		assert.Equal(t, 4, r.Len())
	})

	r.Discard(3)
	assert.Equal(t, 1, r.Len())
	v, _ = r.Pop()
	assert.Equal(t, 5.0, v)

	r.Push(7)
	r.Clear()
	assert.Zero(t, r.Len())
}

func TestOverlapAdderReconstruction(t *testing.T) {
	const windowSize, hopSize = 64, 16
	window := make([]float64, windowSize)
	fillSqrtHann(window)

	input := make([]float64, 400)
	for i := range input {
		input[i] = float64(i%13) - 6
	}

	o := newOverlapAdder(window, hopSize, 1e-6)
	out := newSampleRing(len(input) + windowSize)
	frame := make([]float64, windowSize)
	for pos := 0; pos+windowSize <= len(input); pos += hopSize {
		for i := range frame {
			frame[i] = input[pos+i] * window[i]
		}
		o.Add(frame, window)
		o.Emit(&out)
	}

	// the first samples are covered by fewer frames and fade in; after
	// that the reconstruction is exact
	for i := 0; out.Len() > 0; i++ {
		v, _ := out.Pop()
		if i < windowSize-hopSize {
			require.LessOrEqual(t, math.Abs(v), math.Abs(input[i])+1e-9, "i:%d", i)
			continue
		}
		require.InDelta(t, input[i], v, 1e-9, "i:%d", i)
	}

	assert.Panics(t, func() { o.Add(frame[:10], window) })
}

func TestOverlapAdderWarmUpIsBounded(t *testing.T) {
	for _, geometry := range [][2]int{{64, 16}, {512, 128}, {300, 7}} {
		windowSize, hopSize := geometry[0], geometry[1]
		t.Run(fmt.Sprintf("%d_%d", windowSize, hopSize), func(t *testing.T) {
			window := make([]float64, windowSize)
			fillSqrtHann(window)

			// a resynthesized frame that lost the window taper
			frame := make([]float64, windowSize)
			for i := range frame {
				frame[i] = 1
			}

			o := newOverlapAdder(window, hopSize, 1e-6)
			out := newSampleRing(8 * windowSize)
			for range 8 * windowSize / hopSize / 2 {
				o.Add(frame, window)
				o.Emit(&out)
			}
			for i := 0; out.Len() > 0; i++ {
				v, _ := out.Pop()
				require.LessOrEqual(t, math.Abs(v), 2.0, "i:%d", i)
			}
		})
	}
}
