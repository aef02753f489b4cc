package noisesuppression

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/voicerestore/pkg/audio"
)

func TestDummy(t *testing.T) {
	d := NewDummy(audio.EncodingPCM{PCMFormat: audio.PCMFormatS16LE, SampleRate: 16000}, 2)

	in := []byte{1, 2, 3, 4}
	out := make([]byte, len(in))
	prob, err := d.SuppressNoise(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 1.0, prob)
	assert.Equal(t, in, out)

	_, err = d.SuppressNoise(context.Background(), in, out[:2])
	assert.Error(t, err)

	assert.Equal(t, 0.25, d.ProcessSample(0.25, Config{}))
	assert.Zero(t, d.Latency())
	assert.Equal(t, uint(4), d.ChunkSize())
}

func TestConfigClamped(t *testing.T) {
	cfg := Config{
		Amount:           -1,
		Sensitivity:      2,
		Tone:             -3,
		SampleRate:       100,
		SpeechConfidence: 1.5,
	}.Clamped()
	assert.Equal(t, Config{
		Amount:           0,
		Sensitivity:      1,
		Tone:             0,
		SampleRate:       MinSampleRate,
		SpeechConfidence: 1,
	}, cfg)

	assert.Equal(t, 1.0, Config{Amount: 5, SampleRate: 48000}.Clamped().Amount)
	assert.Equal(t, 0.5, DefaultConfig(48000).Clamped().Tone)
}

func TestDefaultConfigDoesNotClaimSilence(t *testing.T) {
	cfg := DefaultConfig(16000)
	assert.Equal(t, 1.0, cfg.SpeechConfidence)
	assert.Equal(t, cfg, cfg.Clamped())
}
