// Package profile measures the noise profile of a signal, so that the
// effect of a suppressor can be reported in dB.
package profile

import (
	"math"
	"slices"

	"github.com/mjibson/go-dsp/spectral"
	"github.com/mjibson/go-dsp/window"
)

const (
	NFFT = 1024

	SpeechBandLowHz  = 250
	SpeechBandHighHz = 4000
	HighFrequencyHz  = 4000

	// NoiseFloorPercentile is the share of bins treated as noise.
	NoiseFloorPercentile = 0.1

	minPower = 1e-20
)

// Profile holds levels in dB relative to full scale.
type Profile struct {
	NoiseFloorDB    float64
	SpeechBandDB    float64
	HighFrequencyDB float64
	RMSDB           float64
}

// Delta is before minus after, so positive values are reductions.
type Delta struct {
	NoiseFloorDB    float64
	SpeechBandDB    float64
	HighFrequencyDB float64
	RMSDB           float64
}

func powerDB(p float64) float64 {
	return 10 * math.Log10(max(p, minPower))
}

// Analyze computes the Welch PSD of samples (Hann segments of NFFT with
// half overlap) and summarizes it.
func Analyze(samples []float64, sampleRate float64) Profile {
	var energy float64
	for _, x := range samples {
		energy += x * x
	}
	result := Profile{RMSDB: powerDB(energy / float64(max(len(samples), 1)))}

	if len(samples) < NFFT {
		padded := make([]float64, NFFT)
		copy(padded, samples)
		samples = padded
	}
	pxx, freqs := spectral.Pwelch(samples, sampleRate, &spectral.PwelchOptions{
		NFFT:     NFFT,
		Noverlap: NFFT / 2,
		Window:   window.Hann,
	})

	var speech, hf float64
	for i, f := range freqs {
		switch {
		case f >= SpeechBandLowHz && f < SpeechBandHighHz:
			speech += pxx[i]
		case f >= HighFrequencyHz:
			hf += pxx[i]
		}
	}
	binWidth := sampleRate / NFFT
	result.SpeechBandDB = powerDB(speech * binWidth)
	result.HighFrequencyDB = powerDB(hf * binWidth)

	// skip DC
	sorted := slices.Clone(pxx[1:])
	slices.Sort(sorted)
	result.NoiseFloorDB = powerDB(sorted[int(NoiseFloorPercentile*float64(len(sorted)-1))])
	return result
}

func Compare(before, after Profile) Delta {
	return Delta{
		NoiseFloorDB:    before.NoiseFloorDB - after.NoiseFloorDB,
		SpeechBandDB:    before.SpeechBandDB - after.SpeechBandDB,
		HighFrequencyDB: before.HighFrequencyDB - after.HighFrequencyDB,
		RMSDB:           before.RMSDB - after.RMSDB,
	}
}
