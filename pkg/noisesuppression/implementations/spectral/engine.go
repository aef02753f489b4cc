package spectral

import (
	"fmt"
	"math"

	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression"
)

const (
	// MinWindowSize is the smallest supported analysis window.
	MinWindowSize = 64
)

// Analysis is the diagnostic snapshot of the latest hop.
type Analysis struct {
	SpeechProbability  float64
	Voiced             bool
	F0                 float64
	Periodicity        float64
	Flatness           float64
	HFRatio            float64
	RMS                float64
	NoiseConfidence    float64
	EffectiveAmount    float64
	HarmonicFloor      float64
	HarmonicsProtected int
	CoarseSNR          float64
	TransientHold      bool
	Startup            bool
	Bypass             bool
}

// Engine is a single-channel streaming spectral noise suppressor.
//
// Samples are pushed one at a time; every HopSize samples (once a full
// window is queued) the engine analyzes the window, builds the gain curve and
// overlap-adds the resynthesized frame. The output lags the input by exactly
// WindowSize samples. All buffers are allocated by the constructor.
//
// Engine is not safe for concurrent use.
type Engine struct {
	params     Params
	windowSize int
	hopSize    int

	input   sampleRing
	output  sampleRing
	overlap overlapAdder

	frame []float64
	synth []float64

	transform  mainTransform
	coarse     coarseTransform
	classifier classifier
	noise      noiseTracker
	masker     masker
	gain       gainCurve

	prevRMS       float64
	transientLeft int
	hops          uint64
	analysis      Analysis
}

var _ noisesuppression.SampleProcessor = (*Engine)(nil)

// New returns an engine with DefaultParams.
//
// It panics if windowSize < MinWindowSize or hopSize is not within
// [1, windowSize].
func New(windowSize, hopSize int) *Engine {
	return NewWithParams(windowSize, hopSize, DefaultParams())
}

// NewWithParams is New with a custom tuning; it panics if the params do
// not validate.
func NewWithParams(windowSize, hopSize int, params Params) *Engine {
	if windowSize < MinWindowSize {
		panic(fmt.Errorf("window size must be at least %d, got %d", MinWindowSize, windowSize))
	}
	if hopSize < 1 || hopSize > windowSize {
		panic(fmt.Errorf("hop size must be within [1, %d], got %d", windowSize, hopSize))
	}
	if err := params.Validate(); err != nil {
		panic(fmt.Errorf("invalid params: %w", err))
	}
	params.HumFrequencies = append([]float64(nil), params.HumFrequencies...)

	bins := windowSize/2 + 1
	e := &Engine{
		params:     params,
		windowSize: windowSize,
		hopSize:    hopSize,
		input:      newSampleRing(2 * windowSize),
		output:     newSampleRing(4 * windowSize),
		frame:      make([]float64, windowSize),
		synth:      make([]float64, windowSize),
		transform:  newMainTransform(windowSize, params.MagFloor),
		coarse:     newCoarseTransform(coarseSize(windowSize, params.CoarseMinSize)),
	}
	e.overlap = newOverlapAdder(e.transform.window, hopSize, params.OLAEpsilon)
	e.classifier = newClassifier(&e.params, windowSize)
	e.noise = newNoiseTracker(&e.params, bins)
	e.masker = newMasker(&e.params, bins)
	e.gain = newGainCurve(&e.params, windowSize)
	e.Reset()
	return e
}

// Reset drops every queued sample and all the history; the next outputs
// are the same WindowSize zeros a fresh engine produces.
func (e *Engine) Reset() {
	e.input.Clear()
	e.output.Clear()
	for range e.windowSize {
		e.output.Push(0)
	}
	e.overlap.Clear()
	clear(e.frame)
	clear(e.synth)
	clear(e.transform.spectrum)
	clear(e.transform.mag)
	e.coarse.Reset(e.params.NoiseFloorInit)
	e.noise.Reset()
	e.gain.Reset()
	e.prevRMS = 0
	e.transientLeft = 0
	e.hops = 0
	e.analysis = Analysis{NoiseConfidence: 1, Startup: true}
}

// ProcessSample pushes x and pops one output sample.
func (e *Engine) ProcessSample(x float64, cfg noisesuppression.Config) float64 {
	e.Push(x, cfg)
	return e.Pop()
}

// Push queues x and runs an analysis cycle with cfg if a full window is
// queued.
func (e *Engine) Push(x float64, cfg noisesuppression.Config) {
	if !e.input.Push(x) {
		panic("input queue overflow")
	}
	for e.input.Len() >= e.windowSize {
		e.processHop(cfg.Clamped())
	}
}

// Pop returns the oldest output sample, or 0 if there is none.
func (e *Engine) Pop() float64 {
	v, _ := e.output.Pop()
	return v
}

// Latency is the fixed delay between input and output in samples.
func (e *Engine) Latency() int {
	return e.windowSize
}

func (e *Engine) WindowSize() int {
	return e.windowSize
}

func (e *Engine) HopSize() int {
	return e.hopSize
}

// Hops returns the amount of analysis cycles since the last reset.
func (e *Engine) Hops() uint64 {
	return e.hops
}

// Params returns a copy of the tuning.
func (e *Engine) Params() Params {
	p := e.params
	p.HumFrequencies = append([]float64(nil), p.HumFrequencies...)
	return p
}

// Gains returns the gain curve of the latest hop (WindowSize/2+1 bins).
// The slice is owned by the engine and is overwritten by the next hop.
func (e *Engine) Gains() []float64 {
	return e.gain.gains
}

// NoiseFloor returns the per-bin noise magnitude estimate. The slice is
// owned by the engine.
func (e *Engine) NoiseFloor() []float64 {
	return e.noise.floor
}

// Spectrum returns the full gained spectrum of the latest hop as it was
// passed to the inverse transform. The slice is owned by the engine.
func (e *Engine) Spectrum() []complex128 {
	return e.transform.spectrum
}

func (e *Engine) LastAnalysis() Analysis {
	return e.analysis
}

func (e *Engine) processHop(cfg noisesuppression.Config) {
	p := &e.params
	sampleRate := cfg.SampleRate
	bypass := cfg.Amount <= p.BypassEps

	e.input.Peek(e.frame)

	e.transform.Forward(e.frame)
	if !bypass && cfg.Amount > p.HumAmountThreshold {
		e.transform.RemoveHum(p, sampleRate)
	}
	mag := e.transform.mag

	e.coarse.Update(e.frame, p)
	class := e.classifier.Classify(e.frame, mag, e.coarse.mag, sampleRate)

	minStartupHops := int(math.Round(p.NoiseStartupSeconds * sampleRate / float64(e.hopSize)))
	confidence := e.noise.Update(mag, class.Probability, minStartupHops)
	effectiveAmount := e.noise.EffectiveAmount(cfg.Amount)

	if class.RMS > p.TransientRise*e.prevRMS && !class.Voiced && class.RMS > p.EnergyGateMin {
		e.transientLeft = p.TransientHops
	}
	transientHold := e.transientLeft > 0
	if transientHold {
		e.transientLeft--
	}
	e.prevRMS = class.RMS

	var harmonicFloor float64
	var harmonics int
	if bypass {
		e.gain.Bypass()
	} else {
		in := gainInput{
			mag:             mag,
			spectrum:        e.transform.spectrum,
			noiseFloor:      e.noise.floor,
			masker:          e.masker.Build(mag, sampleRate, e.windowSize),
			class:           class,
			effectiveAmount: effectiveAmount,
			sensitivity:     cfg.Sensitivity,
			tone:            cfg.Tone,
			sampleRate:      sampleRate,
			speechHint:      cfg.SpeechConfidence,
			transientHold:   transientHold,
		}
		e.gain.Build(&in)
		harmonicFloor, harmonics = e.gain.protectHarmonics(class, effectiveAmount, sampleRate)
		if effectiveAmount > p.BypassEps {
			e.gain.smooth(class, cfg.SpeechConfidence, sampleRate)
		}
	}
	e.gain.Commit(mag, e.transform.spectrum)

	e.transform.Inverse(e.gain.gains, e.synth)
	e.overlap.Add(e.synth, e.transform.window)
	if bypass {
		for _, v := range e.frame[:e.hopSize] {
			e.output.Push(v)
		}
		e.overlap.Shift()
	} else {
		e.overlap.Emit(&e.output)
	}

	e.input.Discard(e.hopSize)
	e.hops++

	e.analysis = Analysis{
		SpeechProbability:  class.Probability,
		Voiced:             class.Voiced,
		F0:                 class.F0,
		Periodicity:        class.Periodicity,
		Flatness:           class.Flatness,
		HFRatio:            class.HFRatio,
		RMS:                class.RMS,
		NoiseConfidence:    confidence,
		EffectiveAmount:    effectiveAmount,
		HarmonicFloor:      harmonicFloor,
		HarmonicsProtected: harmonics,
		CoarseSNR:          e.coarse.SNR(),
		TransientHold:      transientHold,
		Startup:            e.noise.StartupMode(),
		Bypass:             bypass,
	}
}
