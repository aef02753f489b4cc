package noisesuppressionstream

import (
	"bytes"
	"context"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/voicerestore/pkg/audio"
	"github.com/xaionaro-go/voicerestore/pkg/audio/pcm"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression/implementations/spectral"
)

func TestStreamDummy(t *testing.T) {
	input := make([]byte, 10001*2)
	for i := range input {
		input[i] = byte(i * 7)
	}

	for _, tc := range []struct {
		name       string
		reader     func() io.Reader
		inputSize  uint
		outputSize uint
	}{
		{"HalfReader", func() io.Reader { return iotest.HalfReader(bytes.NewReader(input)) }, 1024, 512},
		{"WholeReader", func() io.Reader { return bytes.NewReader(input) }, 1024, 512},
		{"OneByteReader", func() io.Reader { return iotest.OneByteReader(bytes.NewReader(input)) }, 1024, 512},
		{"TinyBuffers", func() io.Reader { return bytes.NewReader(input) }, 6, 6},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			ns := noisesuppression.NewDummy(audio.EncodingPCM{PCMFormat: audio.PCMFormatS16LE, SampleRate: 16000}, 1)
			s, err := NewNoiseSuppressionStream(ctx, tc.reader(), ns, tc.inputSize, tc.outputSize)
			require.NoError(t, err)

			output, err := io.ReadAll(s)
			require.NoError(t, err)
			require.Len(t, output, len(input))
			assert.Equal(t, input, output)
		})
	}
}

func TestStreamSpectralBypass(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const (
		windowSize = 256
		hopSize    = 64
		frames     = 5000
	)
	ns, err := spectral.NewSuppressor(1, 16000, windowSize, hopSize, spectral.DefaultParams(), noisesuppression.Config{Amount: 0}, nil)
	require.NoError(t, err)
	defer ns.Close()

	samples := make([]float64, frames)
	for i := range samples {
		samples[i] = float64(i%101-50) / 64
	}
	format := pcm.NativeFloat32()
	input := make([]byte, frames*4)
	require.NoError(t, pcm.Encode(format, input, samples))

	s, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(input), ns, 4096, 1024)
	require.NoError(t, err)
	output, err := io.ReadAll(s)
	require.NoError(t, err)
	require.Len(t, output, len(input))

	assert.Equal(t, make([]byte, windowSize*4), output[:windowSize*4])
	assert.Equal(t, input[:len(input)-windowSize*4], output[windowSize*4:])
}

func TestStreamErrors(t *testing.T) {
	ctx := context.Background()
	ns := noisesuppression.NewDummy(audio.EncodingPCM{PCMFormat: audio.PCMFormatS16LE, SampleRate: 16000}, 2)
	_, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(nil), ns, 2, 1024)
	assert.Error(t, err)

	s, err := NewNoiseSuppressionStream(ctx, iotest.ErrReader(io.ErrUnexpectedEOF), ns, 1024, 1024)
	require.NoError(t, err)
	_, err = io.ReadAll(s)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
