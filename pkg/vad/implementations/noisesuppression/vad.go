package noisesuppression

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/voicerestore/pkg/audio"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression"
	"github.com/xaionaro-go/voicerestore/pkg/vad"
)

// VAD uses the speech probability reported by a suppressor as the voice
// confidence of every chunk.
type VAD struct {
	noisesuppression.NoiseSuppression
	ChunkSize     uint64
	ChunkDuration time.Duration
	Buffer        []byte
}

var _ vad.VAD = (*VAD)(nil)

func NewVAD(
	ctx context.Context,
	noiseSuppression noisesuppression.NoiseSuppression,
	preferredGranularity time.Duration,
) (*VAD, error) {
	channels, err := noiseSuppression.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the amount of channels: %w", err)
	}
	encoding, err := noiseSuppression.Encoding(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the encoding: %w", err)
	}
	encodingPCM, ok := encoding.(audio.EncodingPCM)
	if !ok {
		return nil, fmt.Errorf("noise suppression encoding is not PCM: %T", encoding)
	}
	if encodingPCM.SampleRate == 0 || channels == 0 {
		return nil, fmt.Errorf("the sample rate (%d) and the amount of channels (%d) must be positive", encodingPCM.SampleRate, channels)
	}
	chunkSize := uint64(noiseSuppression.ChunkSize())
	if chunkSize == 0 {
		chunkSize = uint64(encoding.BytesPerSample()) * uint64(channels)
	}

	preferredChunkSize := encoding.BytesForDuration(preferredGranularity) * uint64(channels)
	subChunks := max((preferredChunkSize+chunkSize/2)/chunkSize, 1)
	chosenChunkSize := subChunks * chunkSize
	chosenChunkSamples := chosenChunkSize / uint64(encoding.BytesPerSample()) / uint64(channels)
	chosenChunkDurationNS := uint64(1_000_000_000) * chosenChunkSamples / uint64(encodingPCM.SampleRate)
	chosenChunkDuration := time.Nanosecond * time.Duration(chosenChunkDurationNS)
	logger.Debugf(ctx, "resulting chunkSize:%d and chunkDuration:%v", chosenChunkSize, chosenChunkDuration)

	return &VAD{
		NoiseSuppression: noiseSuppression,
		ChunkSize:        chosenChunkSize,
		ChunkDuration:    chosenChunkDuration,
		Buffer:           make([]byte, chosenChunkSize),
	}, nil
}

func (v *VAD) FindNextVoice(
	ctx context.Context,
	samples []byte,
	confidenceThreshold float64,
	minDuration time.Duration,
) (_maxConfidence float64, _offset time.Duration, _err error) {
	logger.Tracef(ctx, "FindNextVoice, len:%d", len(samples))
	defer func() {
		logger.Tracef(ctx, "/FindNextVoice, len:%d: %v %v %v", len(samples), _maxConfidence, _offset, _err)
	}()

	var maxConfidence float64
	var foundVoiceFor time.Duration
	voiceStart := time.Duration(-1)

	for pos := 0; len(samples) >= int(v.ChunkSize); pos++ {
		frame := samples[:v.ChunkSize]
		samples = samples[len(frame):]
		voiceConfidence, err := v.NoiseSuppression.SuppressNoise(ctx, frame, v.Buffer)
		if err != nil {
			return maxConfidence, -1, err
		}
		maxConfidence = max(maxConfidence, voiceConfidence)

		if voiceConfidence < confidenceThreshold {
			foundVoiceFor, voiceStart = 0, -1
			continue
		}
		if voiceStart < 0 {
			voiceStart = v.ChunkDuration * time.Duration(pos)
		}
		foundVoiceFor += v.ChunkDuration
		if foundVoiceFor >= minDuration {
			return maxConfidence, voiceStart, nil
		}
	}
	return maxConfidence, -1, nil
}
