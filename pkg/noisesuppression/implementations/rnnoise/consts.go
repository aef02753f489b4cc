package rnnoise

import "github.com/xaionaro-go/voicerestore/pkg/audio"

const (
	Name = "rnnoise"

	// SampleRate is the only sample rate the model is trained for.
	SampleRate = audio.SampleRate(48_000)

	// BypassAmount is the amount at or below which the dry signal is
	// emitted.
	BypassAmount = 1e-4
)
