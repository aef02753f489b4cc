// Package vad finds voiced regions in PCM data.
package vad

import (
	"context"
	"time"

	"github.com/xaionaro-go/voicerestore/pkg/audio"
)

type VAD interface {
	audio.AbstractAnalyzer

	// FindNextVoice returns the highest voice confidence seen and the offset
	// of the first run of at least minDuration with confidence at or above
	// confidenceThreshold, or -1 if there is no such run in samples.
	FindNextVoice(
		_ context.Context,
		samples []byte,
		confidenceThreshold float64,
		minDuration time.Duration,
	) (float64, time.Duration, error)
}
