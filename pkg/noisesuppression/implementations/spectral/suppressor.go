package spectral

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/voicerestore/pkg/audio"
	"github.com/xaionaro-go/voicerestore/pkg/audio/pcm"
	"github.com/xaionaro-go/voicerestore/pkg/audio/planar"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression"
	"github.com/xaionaro-go/voicerestore/pkg/speechconfidence"
)

const (
	DefaultWindowSize = 1024
	DefaultHopSize    = 256
)

// HopObserver receives the diagnostics of every analysis cycle. It is
// called from the per-channel goroutines concurrently.
type HopObserver interface {
	ObserveHop(channel audio.Channel, analysis Analysis, gains []float64)
}

// Suppressor runs one Engine per channel over interleaved host-endian
// float32 PCM.
type Suppressor struct {
	Locker   sync.Mutex
	Engines  []*Engine
	Hints    []speechconfidence.Estimator
	Config   noisesuppression.Config
	Observer HopObserver

	encoding audio.EncodingPCM
	channels audio.Channel
	samples  []float64
	planar   []float64
}

var _ noisesuppression.NoiseSuppression = (*Suppressor)(nil)

// NewSuppressor creates the engines. Every channel gets its own hint
// estimator from newHint unless newHint is nil.
func NewSuppressor(
	channels audio.Channel,
	sampleRate audio.SampleRate,
	windowSize, hopSize int,
	params Params,
	cfg noisesuppression.Config,
	newHint func(audio.SampleRate) (speechconfidence.Estimator, error),
) (*Suppressor, error) {
	if channels == 0 {
		return nil, fmt.Errorf("the amount of channels must be positive")
	}
	if sampleRate < noisesuppression.MinSampleRate {
		return nil, fmt.Errorf("the sample rate %d is lower than %d", sampleRate, noisesuppression.MinSampleRate)
	}
	if windowSize < MinWindowSize {
		return nil, fmt.Errorf("the window size must be at least %d, got %d", MinWindowSize, windowSize)
	}
	if hopSize < 1 || hopSize > windowSize {
		return nil, fmt.Errorf("the hop size must be within [1, %d], got %d", windowSize, hopSize)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	format := pcm.NativeFloat32()
	if format == audio.PCMFormatUndefined {
		return nil, fmt.Errorf("unable to detect endianness of this computer")
	}

	cfg.SampleRate = float64(sampleRate)
	s := &Suppressor{
		Config:   cfg,
		encoding: audio.EncodingPCM{PCMFormat: format, SampleRate: sampleRate},
		channels: channels,
	}
	for ch := audio.Channel(0); ch < channels; ch++ {
		s.Engines = append(s.Engines, NewWithParams(windowSize, hopSize, params))
		if newHint == nil {
			s.Hints = append(s.Hints, nil)
			continue
		}
		hint, err := newHint(sampleRate)
		if err != nil {
			return nil, fmt.Errorf("unable to create the speech confidence estimator for channel %d: %w", ch, err)
		}
		s.Hints = append(s.Hints, hint)
	}
	return s, nil
}

func (s *Suppressor) Close() error {
	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.Engines == nil {
		return fmt.Errorf("double-close attempt")
	}
	s.Engines = nil
	s.Hints = nil
	return nil
}

func (s *Suppressor) Encoding(context.Context) (audio.Encoding, error) {
	return s.encoding, nil
}

func (s *Suppressor) Channels(context.Context) (audio.Channel, error) {
	return s.channels, nil
}

// ChunkSize is one hop of every channel.
func (s *Suppressor) ChunkSize() uint {
	return uint(s.hopSize()) * uint(s.channels) * s.encoding.BytesPerSample()
}

func (s *Suppressor) hopSize() int {
	if len(s.Engines) == 0 {
		return 1
	}
	return s.Engines[0].HopSize()
}

// Latency is the delay of the output in samples per channel.
func (s *Suppressor) Latency() int {
	if len(s.Engines) == 0 {
		return 0
	}
	return s.Engines[0].Latency()
}

// SetConfig replaces the runtime configuration; the sample rate stays the
// one of the stream.
func (s *Suppressor) SetConfig(cfg noisesuppression.Config) {
	s.Locker.Lock()
	defer s.Locker.Unlock()
	cfg.SampleRate = float64(s.encoding.SampleRate)
	s.Config = cfg
}

func (s *Suppressor) Reset() {
	s.Locker.Lock()
	defer s.Locker.Unlock()
	for ch, engine := range s.Engines {
		engine.Reset()
		if hint := s.Hints[ch]; hint != nil {
			hint.Reset()
		}
	}
}

func (s *Suppressor) SuppressNoise(ctx context.Context, input []byte, outputVoice []byte) (_ret float64, _err error) {
	logger.Tracef(ctx, "SuppressNoise, len:%d", len(input))
	defer func() { logger.Tracef(ctx, "/SuppressNoise, len:%d: %v %v", len(input), _ret, _err) }()

	if len(input) != len(outputVoice) {
		return 0, fmt.Errorf("lengths of input and output slices are not equal: %d != %d", len(input), len(outputVoice))
	}
	frameSize := int(s.encoding.BytesPerSample()) * int(s.channels)
	if len(input)%frameSize != 0 {
		return 0, fmt.Errorf("the size of the input is not a multiple of %d: %d", frameSize, len(input))
	}

	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.Engines == nil {
		return 0, fmt.Errorf("the suppressor is closed")
	}

	count := len(input) / int(s.encoding.BytesPerSample())
	if cap(s.samples) < count {
		s.samples = make([]float64, count)
		s.planar = make([]float64, count)
	}
	samples, planarSamples := s.samples[:count], s.planar[:count]

	if err := pcm.Decode(s.encoding.PCMFormat, samples, input); err != nil {
		return 0, fmt.Errorf("unable to decode the input: %w", err)
	}

	var maxSpeechProb float64
	if s.channels == 1 {
		maxSpeechProb = s.processChannel(0, samples)
	} else {
		if err := planar.PlanarizeSamples(s.channels, planarSamples, samples); err != nil {
			return 0, fmt.Errorf("unable to planarize: %w", err)
		}
		maxSpeechProb = s.processChannels(ctx, planarSamples)
		if err := planar.UnplanarizeSamples(s.channels, samples, planarSamples); err != nil {
			return 0, fmt.Errorf("unable to unplanarize: %w", err)
		}
	}

	if err := pcm.Encode(s.encoding.PCMFormat, outputVoice, samples); err != nil {
		return 0, fmt.Errorf("unable to encode the output: %w", err)
	}
	return maxSpeechProb, nil
}

func (s *Suppressor) processChannels(ctx context.Context, planarSamples []float64) float64 {
	perChannel := len(planarSamples) / int(s.channels)

	var locker sync.Mutex
	var maxSpeechProb float64
	var wg sync.WaitGroup
	for ch := range s.Engines {
		data := planarSamples[ch*perChannel : (ch+1)*perChannel]
		wg.Add(1)
		observability.Go(ctx, func(ctx context.Context) {
			defer wg.Done()
			speechProb := s.processChannel(ch, data)
			locker.Lock()
			defer locker.Unlock()
			maxSpeechProb = max(maxSpeechProb, speechProb)
		})
	}
	wg.Wait()
	return maxSpeechProb
}

// processChannel denoises data in place and returns the highest speech
// probability of the hops it completed.
func (s *Suppressor) processChannel(ch int, data []float64) float64 {
	engine := s.Engines[ch]
	hint := s.Hints[ch]
	cfg := s.Config

	maxSpeechProb := engine.LastAnalysis().SpeechProbability
	hops := engine.Hops()
	for i, x := range data {
		if hint != nil {
			cfg.SpeechConfidence = hint.Process(x)
		}
		data[i] = engine.ProcessSample(x, cfg)
		if engine.Hops() == hops {
			continue
		}
		hops = engine.Hops()
		analysis := engine.LastAnalysis()
		maxSpeechProb = max(maxSpeechProb, analysis.SpeechProbability)
		if s.Observer != nil {
			s.Observer.ObserveHop(audio.Channel(ch), analysis, engine.Gains())
		}
	}
	return maxSpeechProb
}
