package spectral

import (
	"cmp"
	"math"
	"slices"
)

type spectralPeak struct {
	bin int
	mag float64
}

// masker builds the psychoacoustic masking curve of a single hop.
type masker struct {
	params *Params
	curve  []float64
	peaks  []spectralPeak
}

func newMasker(params *Params, bins int) masker {
	return masker{
		params: params,
		curve:  make([]float64, bins),
		peaks:  make([]spectralPeak, 0, bins),
	}
}

// Build recomputes the curve as the pointwise maximum of the exponential
// skirts of the strongest peaks of mag.
func (m *masker) Build(mag []float64, sampleRate float64, windowSize int) []float64 {
	p := m.params
	clear(m.curve)
	nyq := len(mag) - 1

	m.peaks = m.peaks[:0]
	for i := 2; i < nyq-1; i++ {
		v := mag[i]
		if v > mag[i-1] && v > mag[i+1] && v > mag[i-2] && v > mag[i+2] && v > p.MaskerPeakMin {
			m.peaks = append(m.peaks, spectralPeak{bin: i, mag: v})
		}
	}
	slices.SortFunc(m.peaks, func(a, b spectralPeak) int {
		return cmp.Compare(b.mag, a.mag)
	})
	if len(m.peaks) > p.MaskerMaxPeaks {
		m.peaks = m.peaks[:p.MaskerMaxPeaks]
	}

	binWidth := sampleRate / float64(windowSize)
	for _, peak := range m.peaks {
		if peak.mag <= p.MagFloor {
			continue
		}
		pos := float64(peak.bin) * binWidth / p.MaskerSpanHz
		radius := max(lerp(p.MaskerRadiusLow, p.MaskerRadiusHi, pos), 1)
		decay := max(lerp(p.MaskerDecayLow, p.MaskerDecayHi, pos), 1)
		r := int(radius)
		for d := -r; d <= r; d++ {
			j := peak.bin + d
			if j < 0 || j >= nyq {
				continue
			}
			dist := math.Abs(float64(d)) / radius
			if dist > 1 {
				continue
			}
			m.curve[j] = max(m.curve[j], peak.mag*math.Exp(-decay*dist))
		}
	}
	return m.curve
}
