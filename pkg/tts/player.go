package tts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/realtime-ai/interview-agent/pkg/audio"
)

// PacedPlayer plays PCM into an audio.Sink one 20 ms frame per tick,
// resampling to the sink rate first.
type PacedPlayer struct {
	sink     audio.Sink
	pacer    *audio.Pacer
	interval time.Duration

	playMu sync.Mutex // one utterance at a time

	mu         sync.Mutex
	resamplers map[int]audio.Resampler
}

var _ Player = (*PacedPlayer)(nil)

// NewPacedPlayer creates a player for sink. A zero interval uses the real
// frame duration.
func NewPacedPlayer(sink audio.Sink, interval time.Duration) *PacedPlayer {
	if interval <= 0 {
		interval = audio.FrameDurationMs * time.Millisecond
	}
	return &PacedPlayer{
		sink:       sink,
		pacer:      audio.NewPacer(audio.PacerConfig{SampleRate: sink.SampleRate()}),
		interval:   interval,
		resamplers: make(map[int]audio.Resampler),
	}
}

// Play blocks until pcm has been written to the sink or ctx ends.
func (p *PacedPlayer) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}
	r, err := p.resampler(sampleRate)
	if err != nil {
		return err
	}
	out, err := r.Resample(pcm)
	if err != nil {
		return fmt.Errorf("resample %d -> %d: %w", sampleRate, p.sink.SampleRate(), err)
	}

	p.playMu.Lock()
	defer p.playMu.Unlock()

	p.pacer.Clear()
	p.pacer.Write(out)
	p.pacer.Flush()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.pacer.Clear()
			if c, ok := p.sink.(audio.ClearableSink); ok {
				c.Clear()
			}
			return ctx.Err()
		case <-ticker.C:
			frame, ok := p.pacer.ReadFrame()
			if !ok {
				return nil
			}
			if err := p.sink.WriteFrame(frame); err != nil {
				p.pacer.Clear()
				return fmt.Errorf("write frame: %w", err)
			}
		}
	}
}

func (p *PacedPlayer) resampler(rate int) (audio.Resampler, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.resamplers[rate]; ok {
		return r, nil
	}
	r, err := audio.NewResampler(rate, p.sink.SampleRate())
	if err != nil {
		return nil, err
	}
	p.resamplers[rate] = r
	return r, nil
}

// Close releases resamplers.
func (p *PacedPlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for rate, r := range p.resamplers {
		r.Close()
		delete(p.resamplers, rate)
	}
}
