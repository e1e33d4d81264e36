package audio

import (
	"log"
	"sync"
)

// PacerConfig configures a Pacer.
type PacerConfig struct {
	SampleRate int
	// PrerollFrames is how many frames must be buffered after a Clear before
	// output resumes. Zero starts output immediately.
	PrerollFrames int
}

// DefaultPacerConfig returns a 24 kHz pacer with a 200 ms preroll.
func DefaultPacerConfig() PacerConfig {
	return PacerConfig{
		SampleRate:    24000,
		PrerollFrames: 10,
	}
}

// Pacer buffers synthesized PCM and hands it out in fixed 20 ms frames. It
// never resamples; callers convert to the pacer rate before Write.
//
//   - short reads are padded with silence
//   - Clear drops buffered audio for barge-in
//   - Pause/Resume hold output without dropping it
type Pacer struct {
	mu            sync.Mutex
	buffer        []byte
	accumulating  bool
	paused        bool
	sampleRate    int
	prerollFrames int
	bytesPerFrame int
}

// NewPacer creates a pacer. Zero fields fall back to DefaultPacerConfig.
func NewPacer(cfg PacerConfig) *Pacer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultPacerConfig().SampleRate
	}
	if cfg.PrerollFrames < 0 {
		cfg.PrerollFrames = 0
	}
	bytesPerFrame := cfg.SampleRate * FrameDurationMs / 1000 * BytesPerSample

	return &Pacer{
		buffer:        make([]byte, 0, bytesPerFrame*100),
		sampleRate:    cfg.SampleRate,
		prerollFrames: cfg.PrerollFrames,
		bytesPerFrame: bytesPerFrame,
	}
}

// Write appends PCM bytes.
func (p *Pacer) Write(data []byte) {
	if len(data) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer = append(p.buffer, data...)
}

// ReadFrame returns the next 20 ms frame and whether it carried audio.
// While paused or prerolling it returns silence.
func (p *Pacer) ReadFrame() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := make([]byte, p.bytesPerFrame)
	if p.paused {
		return frame, false
	}

	if p.accumulating {
		if len(p.buffer) < p.bytesPerFrame*p.prerollFrames {
			return frame, false
		}
		p.accumulating = false
	}

	switch {
	case len(p.buffer) >= p.bytesPerFrame:
		copy(frame, p.buffer[:p.bytesPerFrame])
		p.buffer = p.buffer[p.bytesPerFrame:]
		return frame, true
	case len(p.buffer) > 0:
		copy(frame, p.buffer)
		p.buffer = p.buffer[:0]
		return frame, true
	}
	return frame, false
}

// Flush ends preroll so a short tail is played even if it never reaches the
// preroll size.
func (p *Pacer) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accumulating = false
}

// Clear drops buffered audio and re-arms the preroll.
func (p *Pacer) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buffer) > 0 {
		log.Printf("[Pacer] dropped %d buffered bytes", len(p.buffer))
	}
	p.buffer = p.buffer[:0]
	p.accumulating = p.prerollFrames > 0
	p.paused = false
}

func (p *Pacer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
}

func (p *Pacer) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
}

// Available returns the number of buffered bytes.
func (p *Pacer) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

func (p *Pacer) BytesPerFrame() int {
	return p.bytesPerFrame
}

func (p *Pacer) SampleRate() int {
	return p.sampleRate
}
