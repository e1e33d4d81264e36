// Package tts turns interviewer replies into audio. Client synthesizes a
// reply sentence by sentence through an ordered list of providers and plays
// each sentence as soon as it is ready. An utterance can be cut off at any
// point by Stop or by starting the next one.
package tts

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/realtime-ai/interview-agent/pkg/trace"
)

// ClientConfig holds speaking defaults.
type ClientConfig struct {
	Voice string
	Speed float64
	// RequestTimeout bounds each provider call.
	RequestTimeout time.Duration
	// StopTimeout bounds how long ForceStop waits for playback to halt.
	StopTimeout time.Duration
	Segmenter   SegmenterConfig
}

// DefaultClientConfig returns the interviewer voice settings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Voice:          "nova",
		Speed:          0.95,
		RequestTimeout: 20 * time.Second,
		StopTimeout:    2 * time.Second,
		Segmenter:      DefaultSegmenterConfig(),
	}
}

// SpeakOptions override the client defaults for one utterance.
type SpeakOptions struct {
	Voice string
	Speed float64
}

var errNoProvider = errors.New("no tts provider configured")

type utterance struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type synthResult struct {
	resp *SynthesizeResponse
	err  error
}

// Client is the speech synthesis client. At most one utterance plays at a
// time.
type Client struct {
	player    Player
	providers []Provider
	cfg       ClientConfig

	mu       sync.Mutex
	current  *utterance
	speaking atomic.Bool
}

// NewClient tries primary first and each fallback in order.
func NewClient(player Player, primary Provider, fallbacks ...Provider) *Client {
	return NewClientWithConfig(DefaultClientConfig(), player, append([]Provider{primary}, fallbacks...)...)
}

// NewClientWithConfig creates a client with explicit defaults. Nil providers
// are skipped.
func NewClientWithConfig(cfg ClientConfig, player Player, providers ...Provider) *Client {
	d := DefaultClientConfig()
	if cfg.Voice == "" {
		cfg.Voice = d.Voice
	}
	if cfg.Speed <= 0 {
		cfg.Speed = d.Speed
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = d.RequestTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = d.StopTimeout
	}

	c := &Client{player: player, cfg: cfg}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// Speak synthesizes and plays text, cancelling any utterance in flight. It
// returns nil when playback completed, ErrInterrupted when stopped,
// *GenerationError when every provider failed and *PlaybackError when the
// audio output failed.
func (c *Client) Speak(ctx context.Context, text string, opts SpeakOptions) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(c.providers) == 0 {
		return &GenerationError{Attempts: []ProviderError{{Provider: "none", Err: errNoProvider}}}
	}
	if opts.Voice == "" {
		opts.Voice = c.cfg.Voice
	}
	if opts.Speed <= 0 {
		opts.Speed = c.cfg.Speed
	}

	uctx, cancel := context.WithCancel(ctx)
	u := &utterance{cancel: cancel, done: make(chan struct{})}
	c.mu.Lock()
	for c.current != nil {
		prev := c.current
		prev.cancel()
		c.mu.Unlock()
		<-prev.done
		c.mu.Lock()
	}
	c.current = u
	c.speaking.Store(true)
	c.mu.Unlock()

	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		c.mu.Lock()
		if c.current == u {
			c.current = nil
			c.speaking.Store(false)
		}
		c.mu.Unlock()
		close(u.done)
	}()

	sentences := SplitSentences(text, c.cfg.Segmenter)
	results := make(chan synthResult, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(results)
		for _, s := range sentences {
			resp, err := c.synthesize(uctx, s, opts)
			select {
			case results <- synthResult{resp: resp, err: err}:
			case <-uctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for r := range results {
		if uctx.Err() != nil {
			return ErrInterrupted
		}
		if r.err != nil {
			return r.err
		}
		if err := c.player.Play(uctx, r.resp.AudioData, r.resp.AudioFormat.SampleRate); err != nil {
			if uctx.Err() != nil {
				return ErrInterrupted
			}
			return &PlaybackError{Err: err}
		}
	}
	if uctx.Err() != nil {
		return ErrInterrupted
	}
	return nil
}

// synthesize walks the provider list until one returns audio.
func (c *Client) synthesize(ctx context.Context, text string, opts SpeakOptions) (*SynthesizeResponse, error) {
	gen := &GenerationError{}
	for _, p := range c.providers {
		resp, err := c.synthesizeWith(ctx, p, text, opts)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ErrInterrupted
		}
		log.Printf("[TTS] %s synthesis failed: %v", p.Name(), err)
		gen.Attempts = append(gen.Attempts, ProviderError{Provider: p.Name(), Err: err})
	}
	return nil, gen
}

func (c *Client) synthesizeWith(ctx context.Context, p Provider, text string, opts SpeakOptions) (*SynthesizeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	ctx, span := trace.InstrumentTTSRequest(ctx, p.Name(), opts.Voice, text)
	defer span.End()

	resp, err := p.Synthesize(ctx, &SynthesizeRequest{Text: text, Voice: opts.Voice, Speed: opts.Speed})
	if err == nil && (resp == nil || len(resp.AudioData) == 0 || resp.AudioFormat.SampleRate <= 0) {
		err = errors.New("provider returned no audio")
	}
	if err != nil {
		trace.RecordError(span, err)
		return nil, err
	}
	return resp, nil
}

// Stop cancels the current utterance. IsSpeaking reports false on return.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.current != nil {
		c.current.cancel()
	}
	c.speaking.Store(false)
	c.mu.Unlock()
}

// ForceStop cancels the current utterance and waits until its playback has
// halted.
func (c *Client) ForceStop() {
	c.mu.Lock()
	u := c.current
	c.mu.Unlock()

	c.Stop()
	if u == nil {
		return
	}
	select {
	case <-u.done:
	case <-time.After(c.cfg.StopTimeout):
		log.Printf("[TTS] playback did not halt within %v", c.cfg.StopTimeout)
	}
}

// IsSpeaking reports whether an utterance is being synthesized or played.
func (c *Client) IsSpeaking() bool {
	return c.speaking.Load()
}
