package audio

// Framer slices an arbitrary stream of samples into fixed-size frames,
// carrying the remainder over to the next Push.
type Framer struct {
	size    int
	pending []float32
}

// NewFramer creates a framer emitting frames of size samples.
func NewFramer(size int) *Framer {
	if size <= 0 {
		size = 1
	}
	return &Framer{size: size, pending: make([]float32, 0, size*2)}
}

// Size returns the frame length in samples.
func (f *Framer) Size() int {
	return f.size
}

// Push appends samples and calls emit for every complete frame. The frame
// slice is only valid for the duration of the call.
func (f *Framer) Push(samples []float32, emit func(frame []float32)) {
	f.pending = append(f.pending, samples...)
	off := 0
	for len(f.pending)-off >= f.size {
		emit(f.pending[off : off+f.size])
		off += f.size
	}
	if off > 0 {
		n := copy(f.pending, f.pending[off:])
		f.pending = f.pending[:n]
	}
}

// Reset discards buffered samples.
func (f *Framer) Reset() {
	f.pending = f.pending[:0]
}
