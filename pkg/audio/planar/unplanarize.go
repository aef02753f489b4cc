package planar

import "github.com/xaionaro-go/voicerestore/pkg/audio"

// Unplanarize reshapes planar raw PCM bytes into interleaved ones.
func Unplanarize(channels audio.Channel, sampleSize uint, output, input []byte) error {
	return reshape(channels, int(sampleSize), output, input, false)
}

// UnplanarizeSamples is Unplanarize for already decoded samples.
func UnplanarizeSamples[T any](channels audio.Channel, output, input []T) error {
	return reshape(channels, 1, output, input, false)
}
