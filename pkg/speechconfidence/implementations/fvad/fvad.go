// Package fvad implements a speech confidence hint on top of the WebRTC
// voice activity detector.
package fvad

import (
	"fmt"
	"math"
	"time"

	"github.com/josharian/fvad"
	"github.com/xaionaro-go/voicerestore/pkg/speechconfidence"
)

const (
	FrameDuration = 10 * time.Millisecond

	// DefaultMode is the aggressiveness of the detector, 0..3.
	DefaultMode = 2

	attack  = 0.5
	release = 0.1
)

// SupportedSampleRates are the rates the detector accepts.
var SupportedSampleRates = []int{8000, 16000, 32000, 48000}

// FVAD feeds 10ms int16 frames into the detector and smooths the binary
// decisions into a confidence.
type FVAD struct {
	detector   *fvad.Detector
	mode       int
	sampleRate int
	frame      []int16
	confidence float64
}

var _ speechconfidence.Estimator = (*FVAD)(nil)

func New(sampleRate int, mode int) (*FVAD, error) {
	supported := false
	for _, sr := range SupportedSampleRates {
		if sr == sampleRate {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("sample rate %d is not supported, expected one of %v", sampleRate, SupportedSampleRates)
	}
	v := &FVAD{
		mode:       mode,
		sampleRate: sampleRate,
		frame:      make([]int16, 0, int(FrameDuration.Seconds()*float64(sampleRate))),
	}
	if err := v.init(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *FVAD) init() error {
	v.detector = fvad.NewDetector()
	return v.configure()
}

func (v *FVAD) configure() error {
	if err := v.detector.SetMode(v.mode); err != nil {
		return fmt.Errorf("unable to set mode %d: %w", v.mode, err)
	}
	if err := v.detector.SetSampleRate(v.sampleRate); err != nil {
		return fmt.Errorf("unable to set sample rate %d: %w", v.sampleRate, err)
	}
	return nil
}

// Reset clears the detector; the detector forgets its mode and sample rate
// on reset, so both are set again.
func (v *FVAD) Reset() {
	v.detector.Reset()
	if err := v.configure(); err != nil {
		panic(err)
	}
	v.frame = v.frame[:0]
	v.confidence = 0
}

func (v *FVAD) Process(sample float64) float64 {
	v.frame = append(v.frame, int16(min(max(math.Round(sample*math.MaxInt16), math.MinInt16), math.MaxInt16)))
	if len(v.frame) < cap(v.frame) {
		return v.confidence
	}

	active, err := v.detector.Process(v.frame)
	v.frame = v.frame[:0]
	if err != nil {
		panic(fmt.Errorf("unable to process the frame: %w", err))
	}
	target := 0.0
	if active {
		target = 1
	}
	coeff := release
	if target > v.confidence {
		coeff = attack
	}
	v.confidence += (target - v.confidence) * coeff
	return v.confidence
}
