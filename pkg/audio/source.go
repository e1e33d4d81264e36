package audio

import (
	"errors"
	"sync"
)

// ErrSourceClosed is returned when subscribing to a source that has ended.
var ErrSourceClosed = errors.New("audio source closed")

// Source is a live capture stream. Subscribers are invoked on the capture
// path and must not block.
type Source interface {
	// SampleRate of the delivered PCM in Hz.
	SampleRate() int
	// Subscribe registers fn for every captured chunk. The returned function
	// removes the subscription and is safe to call more than once.
	Subscribe(fn func(pcm []int16)) (unsubscribe func(), err error)
}

// Sink accepts PCM for playback.
type Sink interface {
	SampleRate() int
	// WriteFrame queues one frame of S16 bytes. It may block for pacing.
	WriteFrame(frame []byte) error
}

// ClearableSink is a Sink that buffers ahead of the device and can drop
// queued audio on interruption.
type ClearableSink interface {
	Sink
	Clear()
}

// Broadcaster fans a capture stream out to subscribers. It implements Source
// for rooms and devices that produce audio.
//
// Usage:
//
//	b := NewBroadcaster(16000)
//	stop, _ := b.Subscribe(func(pcm []int16) { ... })
//	b.Publish(samples)
type Broadcaster struct {
	sampleRate int

	mu     sync.RWMutex
	subs   map[uint64]func([]int16)
	nextID uint64
	closed bool
}

// NewBroadcaster creates a broadcaster delivering PCM at sampleRate.
func NewBroadcaster(sampleRate int) *Broadcaster {
	return &Broadcaster{
		sampleRate: sampleRate,
		subs:       make(map[uint64]func([]int16)),
	}
}

func (b *Broadcaster) SampleRate() int {
	return b.sampleRate
}

func (b *Broadcaster) Subscribe(fn func(pcm []int16)) (func(), error) {
	if fn == nil {
		return nil, errors.New("nil subscriber")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrSourceClosed
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}, nil
}

// Publish delivers pcm to every subscriber in the caller's goroutine.
func (b *Broadcaster) Publish(pcm []int16) {
	if len(pcm) == 0 {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, fn := range b.subs {
		fn(pcm)
	}
}

// Subscribers returns the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops all subscribers; later Publish calls are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[uint64]func([]int16))
}

var _ Source = (*Broadcaster)(nil)
