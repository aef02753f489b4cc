//go:build rnnoise
// +build rnnoise

package rnnoise

import (
	"context"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/voicerestore/pkg/audio"
	"github.com/xaionaro-go/voicerestore/pkg/audio/pcm"
	"github.com/xaionaro-go/voicerestore/pkg/audio/planar"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression"
)

/*
#cgo pkg-config: rnnoise
#cgo CFLAGS: -march=native
#include <rnnoise.h>
*/
import "C"

type RNNoise struct {
	Locker        sync.Mutex
	DenoiseStates []*C.DenoiseState
	ChannelCount  audio.Channel
	Buffer        []byte
}

var _ noisesuppression.NoiseSuppression = (*RNNoise)(nil)

var frameSize = int(C.rnnoise_get_frame_size())

func New(
	channels audio.Channel,
) (*RNNoise, error) {
	if channels == 0 {
		return nil, fmt.Errorf("the amount of channels must be positive")
	}
	if pcm.NativeFloat32() == audio.PCMFormatUndefined {
		return nil, fmt.Errorf("unable to detect endianness of this computer")
	}
	var denoiseStates []*C.DenoiseState
	for ch := 0; ch < int(channels); ch++ {
		denoiseStates = append(denoiseStates, C.rnnoise_create(nil))
	}
	return &RNNoise{
		DenoiseStates: denoiseStates,
		ChannelCount:  channels,
	}, nil
}

func (s *RNNoise) Close() error {
	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.DenoiseStates == nil {
		return fmt.Errorf("double-free attempt")
	}
	for _, denoiseState := range s.DenoiseStates {
		C.rnnoise_destroy(denoiseState)
	}
	s.DenoiseStates = nil
	return nil
}

func (s *RNNoise) Encoding(ctx context.Context) (audio.Encoding, error) {
	return audio.EncodingPCM{
		PCMFormat:  pcm.NativeFloat32(),
		SampleRate: SampleRate,
	}, nil
}

func (s *RNNoise) Channels(ctx context.Context) (audio.Channel, error) {
	return s.ChannelCount, nil
}

var floatSize = unsafe.Sizeof(float32(0))

func chunkSize(channel audio.Channel) uint {
	return uint(channel) * uint(frameSize) * uint(floatSize)
}

func (s *RNNoise) ChunkSize() uint {
	return chunkSize(s.ChannelCount)
}

func (s *RNNoise) SuppressNoise(ctx context.Context, input []byte, outputVoice []byte) (_ret float64, _err error) {
	logger.Tracef(ctx, "SuppressNoise, len:%d", len(input))
	defer func() { logger.Tracef(ctx, "/SuppressNoise, len:%d: %v %v", len(input), _ret, _err) }()

	if len(input) != len(outputVoice) {
		return 0, fmt.Errorf("lengths of input and output slices are not equal: %d != %d", len(input), len(outputVoice))
	}
	if len(input) == 0 || len(input)%int(s.ChunkSize()) != 0 {
		return 0, fmt.Errorf("the size of the input is not a positive multiple of ChunkSize: %d %% %d != 0", len(input), int(s.ChunkSize()))
	}

	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.DenoiseStates == nil {
		return 0, fmt.Errorf("the suppressor is closed")
	}
	if len(s.Buffer) < len(input) {
		s.Buffer = make([]byte, len(input))
	}
	buffer := s.Buffer[:len(input)]

	if s.ChannelCount == 1 {
		gain(buffer, input)
		v := noiseSuppressOneChannel(ctx, s.DenoiseStates[0], buffer, outputVoice)
		ungain(outputVoice)
		return v, nil
	}

	if err := planar.Planarize(s.ChannelCount, uint(floatSize), buffer, input); err != nil {
		return 0, fmt.Errorf("unable to planarize: %w", err)
	}
	v := noiseSuppressMultipleChannels(ctx, s.DenoiseStates, buffer)
	if err := planar.Unplanarize(s.ChannelCount, uint(floatSize), outputVoice, buffer); err != nil {
		return 0, fmt.Errorf("unable to unplanarize: %w", err)
	}
	return v, nil
}

func processFrame(denoiseState *C.DenoiseState, output, input []float32) float64 {
	return float64(C.rnnoise_process_frame(
		denoiseState,
		(*C.float)(unsafe.Pointer(unsafe.SliceData(output))),
		(*C.float)(unsafe.Pointer(unsafe.SliceData(input))),
	))
}

func noiseSuppressOneChannel(ctx context.Context, denoiseState *C.DenoiseState, input []byte, outputVoice []byte) float64 {
	logger.Tracef(ctx, "noiseSuppressOneChannel, len:%d", len(input))
	in, out := float32s(input), float32s(outputVoice)
	var maxVADProb float64
	for len(in) > 0 {
		maxVADProb = max(maxVADProb, processFrame(denoiseState, out[:frameSize], in[:frameSize]))
		in, out = in[frameSize:], out[frameSize:]
	}
	return maxVADProb
}

// noiseSuppressMultipleChannels denoises the planar buffer in place.
func noiseSuppressMultipleChannels(
	ctx context.Context,
	denoiseStates []*C.DenoiseState,
	buffer []byte,
) float64 {
	gain(buffer, buffer)
	channels := len(denoiseStates)
	oneChanSize := len(buffer) / channels

	var locker sync.Mutex
	var maxVADProb float64
	var wg sync.WaitGroup
	for ch := 0; ch < channels; ch++ {
		denoiseState := denoiseStates[ch]
		data := buffer[ch*oneChanSize : (ch+1)*oneChanSize]
		wg.Add(1)
		observability.Go(ctx, func(ctx context.Context) {
			defer wg.Done()
			vadProb := noiseSuppressOneChannel(ctx, denoiseState, data, data)
			locker.Lock()
			defer locker.Unlock()
			maxVADProb = max(maxVADProb, vadProb)
		})
	}
	wg.Wait()
	ungain(buffer)
	return maxVADProb
}

func float32s(b []byte) []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(b))), len(b)/int(floatSize))
}

// rnnoise works on the int16 scale
func gain(dstBytes, srcBytes []byte) {
	src, dst := float32s(srcBytes), float32s(dstBytes)
	for idx := range src {
		dst[idx] = src[idx] * math.MaxInt16
	}
}

func ungain(buf []byte) {
	s := float32s(buf)
	for idx := range s {
		s[idx] /= math.MaxInt16
	}
}

// Processor is a single-channel SampleProcessor with a latency of one
// rnnoise frame.
type Processor struct {
	denoiseState *C.DenoiseState
	in, out      []float32
	dryIn        []float64
	dryOut       []float64
	pos          int

	// VADProbability is the voice probability of the last frame.
	VADProbability float64
}

var _ noisesuppression.SampleProcessor = (*Processor)(nil)

func NewProcessor() *Processor {
	p := &Processor{
		denoiseState: C.rnnoise_create(nil),
		in:           make([]float32, frameSize),
		out:          make([]float32, frameSize),
		dryIn:        make([]float64, frameSize),
		dryOut:       make([]float64, frameSize),
	}
	return p
}

func (p *Processor) ProcessSample(x float64, cfg noisesuppression.Config) float64 {
	var y float64
	if cfg.Clamped().Amount <= BypassAmount {
		y = p.dryOut[p.pos]
	} else {
		y = float64(p.out[p.pos]) / math.MaxInt16
	}
	p.dryIn[p.pos] = x
	p.in[p.pos] = float32(x * math.MaxInt16)
	p.pos++
	if p.pos == frameSize {
		p.VADProbability = processFrame(p.denoiseState, p.out, p.in)
		p.dryIn, p.dryOut = p.dryOut, p.dryIn
		p.pos = 0
	}
	return y
}

func (p *Processor) Reset() {
	C.rnnoise_destroy(p.denoiseState)
	p.denoiseState = C.rnnoise_create(nil)
	clear(p.out)
	clear(p.dryOut)
	p.pos = 0
	p.VADProbability = 0
}

func (p *Processor) Latency() int {
	return frameSize
}

// Close releases the native state; the Processor is unusable afterwards.
func (p *Processor) Close() error {
	if p.denoiseState == nil {
		return fmt.Errorf("double-free attempt")
	}
	C.rnnoise_destroy(p.denoiseState)
	p.denoiseState = nil
	return nil
}
