package spectral

import (
	"math"
	"math/cmplx"

	brettfourier "github.com/brettbuddin/fourier"
	"gonum.org/v1/gonum/dsp/fourier"
)

// mainTransform is the windowed STFT of the full analysis frame.
type mainTransform struct {
	fft      *fourier.CmplxFFT
	window   []float64
	seq      []complex128
	spectrum []complex128
	mag      []float64
	magFloor float64
}

func newMainTransform(windowSize int, magFloor float64) mainTransform {
	t := mainTransform{
		fft:      fourier.NewCmplxFFT(windowSize),
		window:   make([]float64, windowSize),
		seq:      make([]complex128, windowSize),
		spectrum: make([]complex128, windowSize),
		mag:      make([]float64, windowSize/2+1),
		magFloor: magFloor,
	}
	fillSqrtHann(t.window)
	return t
}

func (t *mainTransform) Forward(frame []float64) {
	if len(frame) != len(t.window) {
		panic("mainTransform: frame length mismatch")
	}
	for i, x := range frame {
		t.seq[i] = complex(x*t.window[i], 0)
	}
	t.fft.Coefficients(t.spectrum, t.seq)
	t.updateMagnitudes()
}

func (t *mainTransform) updateMagnitudes() {
	for i := range t.mag {
		t.mag[i] = max(cmplx.Abs(t.spectrum[i]), t.magFloor)
	}
}

// RemoveHum attenuates the power-line harmonics and zeroes the bins below
// lowCutHz, then refreshes the magnitudes.
func (t *mainTransform) RemoveHum(p *Params, sampleRate float64) {
	n := len(t.window)
	nyq := n / 2
	binWidth := sampleRate / float64(n)
	for _, freq := range p.HumFrequencies {
		bin := int(freq / binWidth)
		if bin <= 0 || bin >= nyq {
			continue
		}
		t.spectrum[bin] *= complex(p.HumMainScale, 0)
		if bin > 1 {
			t.spectrum[bin-1] *= complex(p.HumSideScale, 0)
		}
		if bin+1 < nyq {
			t.spectrum[bin+1] *= complex(p.HumSideScale, 0)
		}
	}
	lowCutBin := min(int(p.HumLowCutHz/binWidth), nyq)
	for i := 0; i < lowCutBin; i++ {
		t.spectrum[i] = 0
	}
	t.updateMagnitudes()
}

// Inverse mirrors the gained half-spectrum into a Hermitian one and writes
// the real part of its inverse transform into out.
func (t *mainTransform) Inverse(gains []float64, out []float64) {
	n := len(t.window)
	nyq := n / 2
	for k := 0; k <= nyq; k++ {
		t.spectrum[k] *= complex(gains[k], 0)
	}
	t.spectrum[0] = complex(real(t.spectrum[0]), 0)
	if n%2 == 0 {
		t.spectrum[nyq] = complex(real(t.spectrum[nyq]), 0)
	}
	for k := 1; k < n-k; k++ {
		t.spectrum[n-k] = cmplx.Conj(t.spectrum[k])
	}
	t.fft.Sequence(t.seq, t.spectrum)
	scale := 1 / float64(n)
	for i := range out {
		out[i] = real(t.seq[i]) * scale
	}
}

// coarseTransform is a smaller power-of-two transform over the beginning
// of the frame with its own slow noise floor. Nothing in it feeds back into
// the main spectrum.
type coarseTransform struct {
	window     []float64
	buf        []complex128
	mag        []float64
	noiseFloor []float64
}

func coarseSize(windowSize, minSize int) int {
	size := min(max(windowSize/2, minSize), windowSize)
	return largestPowerOfTwo(size)
}

func newCoarseTransform(size int) coarseTransform {
	t := coarseTransform{
		window:     make([]float64, size),
		buf:        make([]complex128, size),
		mag:        make([]float64, size/2+1),
		noiseFloor: make([]float64, size/2+1),
	}
	fillSqrtHann(t.window)
	return t
}

func (t *coarseTransform) Reset(initFloor float64) {
	for i := range t.noiseFloor {
		t.noiseFloor[i] = initFloor
	}
	clear(t.mag)
}

func (t *coarseTransform) Update(frame []float64, p *Params) {
	for i, w := range t.window {
		t.buf[i] = complex(frame[i]*w, 0)
	}
	if err := brettfourier.Forward(t.buf); err != nil {
		panic(err)
	}
	for i := range t.mag {
		mag := max(cmplx.Abs(t.buf[i]), p.MagFloor)
		t.mag[i] = mag
		nf := t.noiseFloor[i]
		if mag < nf {
			nf = nf*p.CoarseAttack + mag*(1-p.CoarseAttack)
		} else {
			nf = nf*p.CoarseRelease + mag*(1-p.CoarseRelease)
		}
		t.noiseFloor[i] = max(nf, p.MagFloor)
	}
}

// SNR returns the mean log-ratio of magnitude to noise floor in dB.
func (t *coarseTransform) SNR() float64 {
	var sum float64
	for i := 1; i < len(t.mag)-1; i++ {
		sum += math.Log10(t.mag[i] / t.noiseFloor[i])
	}
	return 20 * sum / float64(max(len(t.mag)-2, 1))
}
