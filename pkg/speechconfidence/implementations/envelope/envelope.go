// Package envelope implements a speech confidence hint from the level of
// the speech band relative to a slowly tracked noise floor.
package envelope

import (
	"fmt"
	"math"
	"time"

	"github.com/xaionaro-go/voicerestore/pkg/speechconfidence"
)

const (
	FrameDuration = 20 * time.Millisecond
	HopDuration   = 10 * time.Millisecond

	SpeechBandLowHz  = 250
	SpeechBandHighHz = 4000

	ConfidenceAttack  = 15 * time.Millisecond
	ConfidenceRelease = 120 * time.Millisecond
	HangDuration      = 80 * time.Millisecond

	NoiseFloorAttack  = 500 * time.Millisecond
	NoiseFloorRelease = 50 * time.Millisecond

	// MinRMS is the level below which a frame is never speech.
	MinRMS = 0.001

	minSpeechRatio    = 0.3
	flatnessThreshold = 0.4
	dbEpsilon         = 1e-10
)

// Envelope is a speech confidence Estimator; see the package description.
type Envelope struct {
	sampleRate float64
	hopSize    int
	hangHops   int

	highPass biquad
	lowPass  biquad

	energyTotal  float64
	energySpeech float64
	sampleCount  int

	// the previous hop, so a frame spans FrameDuration
	lastHopTotal  float64
	lastHopSpeech float64
	lastHopCount  int

	prevEnergy   float64
	noiseFloorSq float64
	confidence   float64
	hangLeft     int

	attackCoeff       float64
	releaseCoeff      float64
	noiseAttackCoeff  float64
	noiseReleaseCoeff float64
}

var _ speechconfidence.Estimator = (*Envelope)(nil)

func New(sampleRate float64) (*Envelope, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("invalid sample rate: %v", sampleRate)
	}
	hopSize := max(int(HopDuration.Seconds()*sampleRate), 1)
	hopPeriod := float64(hopSize) / sampleRate
	e := &Envelope{
		sampleRate: sampleRate,
		hopSize:    hopSize,
		hangHops:   max(int(math.Round(HangDuration.Seconds()/hopPeriod)), 1),
		highPass:   newHighPass(SpeechBandLowHz, sampleRate, math.Sqrt2/2),
		lowPass:    newLowPass(SpeechBandHighHz, sampleRate, math.Sqrt2/2),

		attackCoeff:       timeConstantCoeff(ConfidenceAttack, hopPeriod),
		releaseCoeff:      timeConstantCoeff(ConfidenceRelease, hopPeriod),
		noiseAttackCoeff:  timeConstantCoeff(NoiseFloorAttack, hopPeriod),
		noiseReleaseCoeff: timeConstantCoeff(NoiseFloorRelease, hopPeriod),
	}
	e.Reset()
	return e, nil
}

// timeConstantCoeff is the one-pole coefficient for a time constant when
// updated every period seconds.
func timeConstantCoeff(tc time.Duration, period float64) float64 {
	return math.Exp(-period / tc.Seconds())
}

func (e *Envelope) Reset() {
	e.highPass.Reset()
	e.lowPass.Reset()
	e.energyTotal = 0
	e.energySpeech = 0
	e.sampleCount = 0
	e.lastHopTotal = 0
	e.lastHopSpeech = 0
	e.lastHopCount = 0
	e.prevEnergy = 0
	e.noiseFloorSq = 1e-8
	e.confidence = 0
	e.hangLeft = 0
}

// Confidence returns the latest value without consuming a sample.
func (e *Envelope) Confidence() float64 {
	return e.confidence
}

// NoiseFloorDB returns the tracked noise level in dBFS.
func (e *Envelope) NoiseFloorDB() float64 {
	return 10 * math.Log10(max(e.noiseFloorSq, dbEpsilon))
}

func (e *Envelope) Process(sample float64) float64 {
	speech := e.lowPass.Process(e.highPass.Process(sample))
	e.energyTotal += sample * sample
	e.energySpeech += speech * speech
	e.sampleCount++
	if e.sampleCount >= e.hopSize {
		e.analyze()
	}
	return e.confidence
}

func (e *Envelope) analyze() {
	n := float64(e.sampleCount + e.lastHopCount)
	frameTotal := e.energyTotal + e.lastHopTotal
	meanSq := frameTotal / n
	rmsTotal := math.Sqrt(meanSq)
	rmsSpeech := math.Sqrt((e.energySpeech + e.lastHopSpeech) / n)

	var speechRatio float64
	if rmsTotal > dbEpsilon {
		speechRatio = min(rmsSpeech/rmsTotal, 1)
	}

	var flux float64
	if e.prevEnergy > dbEpsilon {
		ratio := frameTotal / (e.prevEnergy + dbEpsilon)
		flux = min(math.Abs(math.Log(ratio))/2, 1)
	}
	e.prevEnergy = frameTotal

	var aboveFloor float64
	if meanSq > e.noiseFloorSq*4 {
		aboveFloor = min(rmsTotal/(math.Sqrt(e.noiseFloorSq)+dbEpsilon)/10, 1)
	}

	if meanSq < e.noiseFloorSq {
		e.noiseFloorSq = e.noiseAttackCoeff*e.noiseFloorSq + (1-e.noiseAttackCoeff)*meanSq
	} else {
		e.noiseFloorSq = e.noiseReleaseCoeff*e.noiseFloorSq + (1-e.noiseReleaseCoeff)*meanSq
	}
	e.noiseFloorSq = min(max(e.noiseFloorSq, 1e-12), 0.01)

	var raw float64
	if rmsTotal > MinRMS && speechRatio > minSpeechRatio {
		ratioScore := (speechRatio - minSpeechRatio) / (1 - minSpeechRatio)
		structure := 1 - min((1-speechRatio)*1.5, 1)
		var structureScore float64
		if structure > flatnessThreshold {
			structureScore = (structure - flatnessThreshold) / (1 - flatnessThreshold)
		}
		raw = 0.4*ratioScore + 0.2*structureScore + 0.2*flux + 0.2*aboveFloor
	} else if rmsTotal > MinRMS {
		raw = 0.2*flux + 0.2*aboveFloor
	}
	raw = min(max(raw, 0), 1)

	switch {
	case raw > e.confidence:
		e.confidence = e.attackCoeff*e.confidence + (1-e.attackCoeff)*raw
		e.hangLeft = e.hangHops
	case e.hangLeft > 0:
		e.hangLeft--
	default:
		e.confidence = e.releaseCoeff*e.confidence + (1-e.releaseCoeff)*raw
	}
	e.confidence = min(max(e.confidence, 0), 1)

	e.lastHopTotal, e.lastHopSpeech, e.lastHopCount = e.energyTotal, e.energySpeech, e.sampleCount
	e.energyTotal = 0
	e.energySpeech = 0
	e.sampleCount = 0
}
