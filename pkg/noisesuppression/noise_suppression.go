package noisesuppression

import (
	"context"
	"io"

	"github.com/xaionaro-go/voicerestore/pkg/audio"
)

// NoiseSuppression processes interleaved PCM chunks.
//
// SuppressNoise returns the highest speech probability observed within
// the chunk.
type NoiseSuppression interface {
	io.Closer

	Encoding(context.Context) (audio.Encoding, error)
	Channels(context.Context) (audio.Channel, error)
	ChunkSize() uint

	SuppressNoise(ctx context.Context, input []byte, outputVoice []byte) (float64, error)
}

// SampleProcessor is a single-channel streaming suppressor: one sample in,
// one sample out, with a fixed latency of Latency() samples.
//
// It is not safe for concurrent use; run one instance per channel.
type SampleProcessor interface {
	ProcessSample(x float64, cfg Config) float64
	Reset()
	Latency() int
}
