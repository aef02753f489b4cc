package spectral

// sampleRing is a fixed-capacity FIFO of samples with a non-destructive
// peek. It never allocates after construction.
type sampleRing struct {
	buf  []float64
	head int
	size int
}

func newSampleRing(capacity int) sampleRing {
	return sampleRing{buf: make([]float64, capacity)}
}

func (r *sampleRing) Len() int {
	return r.size
}

// Push appends v; it reports false and drops v if the ring is full.
func (r *sampleRing) Push(v float64) bool {
	if r.size == len(r.buf) {
		return false
	}
	idx := r.head + r.size
	if idx >= len(r.buf) {
		idx -= len(r.buf)
	}
	r.buf[idx] = v
	r.size++
	return true
}

func (r *sampleRing) Pop() (float64, bool) {
	if r.size == 0 {
		return 0, false
	}
	v := r.buf[r.head]
	r.head++
	if r.head == len(r.buf) {
		r.head = 0
	}
	r.size--
	return v, true
}

// Peek copies the oldest len(dst) samples into dst without consuming them.
func (r *sampleRing) Peek(dst []float64) int {
	n := min(len(dst), r.size)
	first := min(n, len(r.buf)-r.head)
	copy(dst[:first], r.buf[r.head:r.head+first])
	copy(dst[first:n], r.buf[:n-first])
	return n
}

func (r *sampleRing) Discard(n int) {
	n = min(n, r.size)
	r.head = (r.head + n) % len(r.buf)
	r.size -= n
}

func (r *sampleRing) Clear() {
	r.head = 0
	r.size = 0
}

// overlapAdder accumulates windowed frames together with the energy of the
// synthesis window, so every emitted sample can be normalized on its own.
// The energy is floored at its steady-state value, which keeps the first
// hops after a reset, covered by fewer frames, from being amplified.
type overlapAdder struct {
	acc    []float64
	norm   []float64
	steady []float64
	hop    int
	eps    float64
}

func newOverlapAdder(window []float64, hop int, eps float64) overlapAdder {
	o := overlapAdder{
		acc:    make([]float64, len(window)),
		norm:   make([]float64, len(window)),
		steady: make([]float64, hop),
		hop:    hop,
		eps:    eps,
	}
	for i := range o.steady {
		for j := i; j < len(window); j += hop {
			o.steady[i] += window[j] * window[j]
		}
	}
	return o
}

// Add accumulates frame*window and window² into the buffers.
func (o *overlapAdder) Add(frame, window []float64) {
	if len(frame) != len(o.acc) || len(window) != len(o.acc) {
		panic("overlapAdder: frame/window length mismatch")
	}
	for i, w := range window {
		o.acc[i] += frame[i] * w
		o.norm[i] += w * w
	}
}

// Emit writes the first hop samples, normalized, into out and shifts the
// accumulators left by a hop, zeroing the vacated tail.
func (o *overlapAdder) Emit(out *sampleRing) {
	for i := 0; i < o.hop; i++ {
		out.Push(o.acc[i] / max(o.norm[i], o.steady[i], o.eps))
	}
	o.Shift()
}

// Shift drops the first hop accumulated samples.
func (o *overlapAdder) Shift() {
	n := len(o.acc)
	copy(o.acc, o.acc[o.hop:])
	copy(o.norm, o.norm[o.hop:])
	clear(o.acc[n-o.hop:])
	clear(o.norm[n-o.hop:])
}

func (o *overlapAdder) Clear() {
	clear(o.acc)
	clear(o.norm)
}
