// Package resampler converts a PCM stream between sample formats, channel
// layouts and sample rates. The rate conversion is a sample-and-hold one:
// it is meant for feeding backends that require a fixed rate, not for
// mastering.
package resampler

import (
	"fmt"
	"io"
	"sync"

	"github.com/xaionaro-go/voicerestore/pkg/audio"
	"github.com/xaionaro-go/voicerestore/pkg/audio/pcm"
)

const (
	distanceStep = 10000
)

type Format struct {
	Channels   audio.Channel
	SampleRate audio.SampleRate
	PCMFormat  audio.PCMFormat
}

func (f Format) frameSize() uint {
	return f.PCMFormat.Size() * uint(f.Channels)
}

type Resampler struct {
	inReader        io.Reader
	inFormat        Format
	outFormat       Format
	inDistance      uint64
	outDistance     uint64
	outDistanceStep uint64
	locker          sync.Mutex
	buffer          []byte
	pending         int
	inSamples       []float64
	outSamples      []float64
}

var _ io.Reader = (*Resampler)(nil)

func NewResampler(
	inFormat Format,
	inReader io.Reader,
	outFormat Format,
) (*Resampler, error) {
	r := &Resampler{
		inReader:  inReader,
		inFormat:  inFormat,
		outFormat: outFormat,
	}
	err := r.init()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a resampler from %#+v to %#+v: %w", inFormat, outFormat, err)
	}
	return r, nil
}

func (r *Resampler) init() error {
	for _, f := range []Format{r.inFormat, r.outFormat} {
		if f.PCMFormat.Size() == 0 {
			return fmt.Errorf("unknown PCM format: %v", f.PCMFormat)
		}
		if f.Channels == 0 || f.SampleRate == 0 {
			return fmt.Errorf("the amount of channels and the sample rate must be positive")
		}
	}
	if r.inFormat.Channels != r.outFormat.Channels && r.inFormat.Channels != 1 && r.outFormat.Channels != 1 {
		return fmt.Errorf("do not know how to convert %d channels to %d", r.inFormat.Channels, r.outFormat.Channels)
	}

	sampleRateAdjust := float64(r.outFormat.SampleRate) / float64(r.inFormat.SampleRate)
	r.outDistanceStep = uint64(float64(distanceStep) / sampleRateAdjust)
	r.inDistance = 0
	r.outDistance = 0
	return nil
}

// mapFrame writes one output frame derived from one input frame.
func (r *Resampler) mapFrame(out, in []float64) {
	switch {
	case len(in) == len(out):
		copy(out, in)
	case len(in) == 1:
		for ch := range out {
			out[ch] = in[0]
		}
	default:
		var sum float64
		for _, v := range in {
			sum += v
		}
		out[0] = sum / float64(len(in))
	}
}

func (r *Resampler) Read(p []byte) (int, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	inFrameSize := int(r.inFormat.frameSize())
	outFrameSize := int(r.outFormat.frameSize())
	inChannels, outChannels := int(r.inFormat.Channels), int(r.outFormat.Channels)

	maxOutFrames := len(p) / outFrameSize
	if maxOutFrames == 0 {
		return 0, nil
	}
	framesToRead := max(int(float64(maxOutFrames)*float64(r.inFormat.SampleRate)/float64(r.outFormat.SampleRate)), 1)
	bytesToRead := framesToRead * inFrameSize
	if cap(r.buffer) < r.pending+bytesToRead {
		buffer := make([]byte, r.pending+bytesToRead)
		copy(buffer, r.buffer[:r.pending])
		r.buffer = buffer
	}
	r.buffer = r.buffer[:cap(r.buffer)]
	n, err := r.inReader.Read(r.buffer[r.pending : r.pending+bytesToRead])
	total := r.pending + n
	framesRead := total / inFrameSize

	if cap(r.inSamples) < framesRead*inChannels {
		r.inSamples = make([]float64, framesRead*inChannels)
	}
	inSamples := r.inSamples[:framesRead*inChannels]
	if decodeErr := pcm.Decode(r.inFormat.PCMFormat, inSamples, r.buffer[:framesRead*inFrameSize]); decodeErr != nil {
		return 0, fmt.Errorf("unable to decode: %w", decodeErr)
	}
	if cap(r.outSamples) < maxOutFrames*outChannels {
		r.outSamples = make([]float64, maxOutFrames*outChannels)
	}
	outSamples := r.outSamples[:maxOutFrames*outChannels]

	srcFrameIdx, dstFrameIdx := 0, 0
	for srcFrameIdx < framesRead && dstFrameIdx < maxOutFrames {
		// the output is past this input frame
		if r.inDistance+distanceStep <= r.outDistance {
			srcFrameIdx++
			r.inDistance += distanceStep
			continue
		}
		r.mapFrame(
			outSamples[dstFrameIdx*outChannels:(dstFrameIdx+1)*outChannels],
			inSamples[srcFrameIdx*inChannels:(srcFrameIdx+1)*inChannels],
		)
		dstFrameIdx++
		r.outDistance += r.outDistanceStep
	}

	// keep what was not consumed, including a partial frame
	r.pending = copy(r.buffer, r.buffer[srcFrameIdx*inFrameSize:total])

	if encodeErr := pcm.Encode(r.outFormat.PCMFormat, p[:dstFrameIdx*outFrameSize], outSamples[:dstFrameIdx*outChannels]); encodeErr != nil {
		return 0, fmt.Errorf("unable to encode: %w", encodeErr)
	}
	return dstFrameIdx * outFrameSize, err
}
