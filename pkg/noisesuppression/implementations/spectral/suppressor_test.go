package spectral

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/voicerestore/pkg/audio"
	"github.com/xaionaro-go/voicerestore/pkg/audio/pcm"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression/registry"
	"github.com/xaionaro-go/voicerestore/pkg/speechconfidence"
)

type hopCounter struct {
	locker sync.Mutex
	hops   map[audio.Channel]int
}

func (c *hopCounter) ObserveHop(ch audio.Channel, analysis Analysis, gains []float64) {
	c.locker.Lock()
	defer c.locker.Unlock()
	if c.hops == nil {
		c.hops = map[audio.Channel]int{}
	}
	c.hops[ch]++
}

func TestSuppressorBypassDelaysEveryChannel(t *testing.T) {
	ctx := context.Background()
	const (
		channels   = 2
		windowSize = 64
		hopSize    = 16
	)
	s, err := NewSuppressor(channels, 16000, windowSize, hopSize, DefaultParams(), noisesuppression.Config{}, nil)
	require.NoError(t, err)
	defer s.Close()
	counter := &hopCounter{}
	s.Observer = counter

	enc, err := s.Encoding(ctx)
	require.NoError(t, err)
	format := enc.(audio.EncodingPCM).PCMFormat
	assert.Equal(t, pcm.NativeFloat32(), format)
	assert.Equal(t, uint(hopSize*channels*4), s.ChunkSize())

	const frames = 1000
	left := gaussianNoise(20, 0.2, frames)
	right := gaussianNoise(21, 0.2, frames)
	interleaved := make([]float64, 0, 2*frames)
	for i := range left {
		interleaved = append(interleaved, left[i], right[i])
	}
	input := make([]byte, len(interleaved)*4)
	require.NoError(t, pcm.Encode(format, input, interleaved))
	require.NoError(t, pcm.Decode(format, interleaved, input))

	// odd chunking must not matter
	output := make([]byte, len(input))
	for pos, step := 0, 0; pos < len(input); step++ {
		size := min((step%5+1)*8*7, len(input)-pos)
		_, err := s.SuppressNoise(ctx, input[pos:pos+size], output[pos:pos+size])
		require.NoError(t, err)
		pos += size
	}

	decoded := make([]float64, len(interleaved))
	require.NoError(t, pcm.Decode(format, decoded, output))
	for i := range decoded {
		frame := i / channels
		if frame < windowSize {
			require.Zero(t, decoded[i], "i:%d", i)
			continue
		}
		require.Equal(t, interleaved[i-windowSize*channels], decoded[i], "i:%d", i)
	}

	assert.Equal(t, (frames-windowSize)/hopSize+1, counter.hops[0])
	assert.Equal(t, counter.hops[0], counter.hops[1])
}

func TestSuppressorMatchesEngine(t *testing.T) {
	ctx := context.Background()
	const (
		windowSize = 256
		hopSize    = 64
		frames     = 4000
	)
	cfg := noisesuppression.DefaultConfig(16000)
	cfg.Amount = 1
	s, err := NewSuppressor(1, 16000, windowSize, hopSize, DefaultParams(), cfg, nil)
	require.NoError(t, err)
	defer s.Close()
	format := pcm.NativeFloat32()

	samples := gaussianNoise(30, 0.1, frames)
	input := make([]byte, frames*4)
	require.NoError(t, pcm.Encode(format, input, samples))
	require.NoError(t, pcm.Decode(format, samples, input))

	output := make([]byte, len(input))
	_, err = s.SuppressNoise(ctx, input, output)
	require.NoError(t, err)

	e := NewWithParams(windowSize, hopSize, DefaultParams())
	expected := make([]float64, frames)
	for i, x := range samples {
		expected[i] = e.ProcessSample(x, cfg)
	}
	expectedBytes := make([]byte, len(input))
	require.NoError(t, pcm.Encode(format, expectedBytes, expected))
	assert.Equal(t, expectedBytes, output)
}

func TestSuppressorErrors(t *testing.T) {
	ctx := context.Background()
	_, err := NewSuppressor(0, 16000, 256, 64, DefaultParams(), noisesuppression.Config{}, nil)
	assert.Error(t, err)
	_, err = NewSuppressor(1, 4000, 256, 64, DefaultParams(), noisesuppression.Config{}, nil)
	assert.Error(t, err)
	_, err = NewSuppressor(1, 16000, 256, 512, DefaultParams(), noisesuppression.Config{}, nil)
	assert.Error(t, err)

	s, err := NewSuppressor(1, 16000, 256, 64, DefaultParams(), noisesuppression.DefaultConfig(16000), func(audio.SampleRate) (speechconfidence.Estimator, error) {
		return speechconfidence.Constant(1), nil
	})
	require.NoError(t, err)

	_, err = s.SuppressNoise(ctx, make([]byte, 8), make([]byte, 4))
	assert.Error(t, err)
	_, err = s.SuppressNoise(ctx, make([]byte, 6), make([]byte, 6))
	assert.Error(t, err)

	require.NoError(t, s.Close())
	assert.Error(t, s.Close())
	_, err = s.SuppressNoise(ctx, make([]byte, 8), make([]byte, 8))
	assert.Error(t, err)
}

func TestSuppressorSpeechProbability(t *testing.T) {
	ctx := context.Background()
	const sampleRate = 16000
	s, err := NewSuppressor(1, sampleRate, 1024, 256, DefaultParams(), noisesuppression.DefaultConfig(sampleRate), nil)
	require.NoError(t, err)
	defer s.Close()

	signal := voicedSignal(sampleRate, 200, 0.1, sampleRate)
	input := make([]byte, len(signal)*4)
	require.NoError(t, pcm.Encode(pcm.NativeFloat32(), input, signal))
	prob, err := s.SuppressNoise(ctx, input, make([]byte, len(input)))
	require.NoError(t, err)
	assert.Greater(t, prob, 0.5)
	assert.Equal(t, 1024, s.Latency())

	s.Reset()
	for _, engine := range s.Engines {
		assert.Zero(t, engine.Hops())
	}
}

func TestRegistered(t *testing.T) {
	ctx := context.Background()
	assert.Contains(t, registry.Names(), Name)
	assert.Contains(t, registry.Names(), ReverbReductionName)

	ns, name, err := registry.NewAuto(ctx, registry.Params{Channels: 1, SampleRate: 48000})
	require.NoError(t, err)
	defer ns.Close()
	assert.Equal(t, Name, name)
	assert.Equal(t, uint(DefaultHopSize*4), ns.ChunkSize())

	sp, err := registry.NewSampleProcessor(ctx, ReverbReductionName, registry.Params{WindowSize: 512})
	require.NoError(t, err)
	assert.Equal(t, 512, sp.Latency())
	engine := sp.(*Engine)
	assert.Equal(t, 128, engine.HopSize())
	assert.Equal(t, 320.0, engine.Params().VoicedF0MaxHz)

	_, err = registry.NewSampleProcessor(ctx, Name, registry.Params{WindowSize: 16})
	assert.Error(t, err)
}
