package audio

import "sync"

// RingBuffer keeps the most recent window of samples. Recognizers use it as
// pre-roll so the first syllable before a speech-start decision is not lost.
//
// Usage:
//
//	rb := NewRingBuffer(16000, 300) // 300ms at 16kHz
//	rb.Write(samples)
//	preRoll := rb.Snapshot()
type RingBuffer struct {
	mu       sync.Mutex
	data     []int16
	writePos int
	size     int
}

// NewRingBuffer creates a buffer holding durationMs of audio at sampleRate.
func NewRingBuffer(sampleRate, durationMs int) *RingBuffer {
	capacity := sampleRate * durationMs / 1000
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{data: make([]int16, capacity)}
}

// Write appends samples, overwriting the oldest ones when full.
func (rb *RingBuffer) Write(samples []int16) {
	if len(samples) == 0 {
		return
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()

	capacity := len(rb.data)
	if len(samples) >= capacity {
		copy(rb.data, samples[len(samples)-capacity:])
		rb.writePos = 0
		rb.size = capacity
		return
	}

	n := copy(rb.data[rb.writePos:], samples)
	if n < len(samples) {
		copy(rb.data, samples[n:])
	}
	rb.writePos = (rb.writePos + len(samples)) % capacity
	rb.size = min(rb.size+len(samples), capacity)
}

// Snapshot returns the buffered samples oldest first without consuming them.
func (rb *RingBuffer) Snapshot() []int16 {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size == 0 {
		return nil
	}
	out := make([]int16, rb.size)
	if rb.size < len(rb.data) {
		copy(out, rb.data[:rb.size])
		return out
	}
	n := copy(out, rb.data[rb.writePos:])
	copy(out[n:], rb.data[:rb.writePos])
	return out
}

// Clear empties the buffer.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.writePos = 0
	rb.size = 0
}

// Len returns the number of buffered samples.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Cap returns the capacity in samples.
func (rb *RingBuffer) Cap() int {
	return len(rb.data)
}
