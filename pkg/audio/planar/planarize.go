// Package planar converts between interleaved (LRLRLR) and planar (LLLRRR)
// sample layouts.
package planar

import (
	"fmt"

	"github.com/xaionaro-go/voicerestore/pkg/audio"
)

// Planarize reshapes interleaved raw PCM bytes into planar ones.
func Planarize(channels audio.Channel, sampleSize uint, output, input []byte) error {
	return reshape(channels, int(sampleSize), output, input, true)
}

// PlanarizeSamples is Planarize for already decoded samples.
func PlanarizeSamples[T any](channels audio.Channel, output, input []T) error {
	return reshape(channels, 1, output, input, true)
}

func reshape[T any](
	channels audio.Channel,
	stride int,
	output, input []T,
	toPlanar bool,
) error {
	if channels == 0 || stride <= 0 {
		return fmt.Errorf("invalid layout: channels:%d stride:%d", channels, stride)
	}
	shortestMessageSize := int(channels) * stride
	if len(input) < shortestMessageSize {
		return fmt.Errorf("the provided input buffer is too short: %d < %d", len(input), shortestMessageSize)
	}
	if len(input)%shortestMessageSize != 0 {
		return fmt.Errorf("expected a message length that is a multiple of %d, but received %d", shortestMessageSize, len(input))
	}
	if len(input) != len(output) {
		return fmt.Errorf("the lengths of input and output are not equal: %d != %d", len(input), len(output))
	}

	samplesPerChan := len(input) / shortestMessageSize
	for ch := 0; ch < int(channels); ch++ {
		interleavedOffset := stride * ch
		planarOffset := ch * samplesPerChan * stride
		for samplePos := 0; samplePos < samplesPerChan; samplePos++ {
			interleavedIdx := interleavedOffset + samplePos*shortestMessageSize
			planarIdx := planarOffset + samplePos*stride
			if toPlanar {
				copy(output[planarIdx:planarIdx+stride], input[interleavedIdx:interleavedIdx+stride])
			} else {
				copy(output[interleavedIdx:interleavedIdx+stride], input[planarIdx:planarIdx+stride])
			}
		}
	}

	return nil
}
