package vad

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/realtime-ai/interview-agent/pkg/audio"
)

// Callbacks receive engine notifications. They run synchronously on the
// capture path and must return quickly.
type Callbacks struct {
	OnSpeechStart   func()
	OnSpeechEnd     func()
	OnVoiceActivity func(probability float32)
}

// State is a point-in-time view of the engine.
type State struct {
	Active          bool
	IsSpeaking      bool
	SpeechDuration  time.Duration
	LastProbability float32
}

// Option customizes an Engine.
type Option func(*Engine)

// WithScorer replaces the default EnergyScorer.
func WithScorer(s Scorer) Option {
	return func(e *Engine) {
		e.scorer = s
	}
}

type notification int

const (
	notifyNone notification = iota
	notifySpeechStart
	notifySpeechEnd
)

// step is the outcome of one frame, reported after the lock is released.
type step struct {
	prob float32
	note notification
	// speechStart identifies the run a start notification belongs to.
	speechStart time.Duration
}

// Engine is the frame-driven voice activity state machine. Durations are
// measured in stream time, the sum of processed frame lengths, so results do
// not depend on scheduling jitter.
type Engine struct {
	callbacks Callbacks
	frameMs   int

	active    atomic.Bool
	destroyed atomic.Bool

	mu          sync.Mutex
	tuning      Tuning
	scorer      Scorer
	source      audio.Source
	unsubscribe func()
	framer      *audio.Framer
	sampleRate  int

	// stream clock and state machine, guarded by mu
	clock        time.Duration
	speaking     bool
	runStart     time.Duration
	inRun        bool
	speechStart  time.Duration
	silenceStart time.Duration
	inSilence    bool
	lastProb     float32
}

// NewEngine creates an engine. It does nothing until Initialize and Start.
func NewEngine(cfg Config, callbacks Callbacks, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.FrameMs <= 0 {
		cfg.FrameMs = def.FrameMs
	}
	if err := cfg.Tuning.Validate(); err != nil {
		log.Printf("[EnergyVAD] invalid tuning (%v), using defaults", err)
		cfg.Tuning = def.Tuning
	}

	e := &Engine{
		callbacks: callbacks,
		frameMs:   cfg.FrameMs,
		tuning:    cfg.Tuning,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize binds the engine to a live source. Binding again replaces the
// previous source.
func (e *Engine) Initialize(src audio.Source) error {
	if e.destroyed.Load() {
		return &AudioInitError{Reason: "engine destroyed"}
	}
	if src == nil {
		return &AudioInitError{Reason: "no audio source"}
	}
	rate := src.SampleRate()
	if rate <= 0 {
		return &AudioInitError{Reason: "invalid sample rate"}
	}

	e.mu.Lock()
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	if e.scorer == nil {
		e.scorer = NewEnergyScorer(DefaultEnergyConfig(rate))
	}
	e.sampleRate = rate
	e.framer = audio.NewFramer(rate * e.frameMs / 1000)
	e.source = src
	e.mu.Unlock()

	unsub, err := src.Subscribe(e.onAudio)
	if err != nil {
		return &AudioInitError{Reason: "subscribe failed", Err: err}
	}

	e.mu.Lock()
	e.unsubscribe = unsub
	e.mu.Unlock()

	log.Printf("[EnergyVAD] bound to source at %d Hz, frame %d ms", rate, e.frameMs)
	return nil
}

// Start enables frame processing. State frozen by Stop is resumed.
func (e *Engine) Start() {
	if e.destroyed.Load() {
		return
	}
	e.mu.Lock()
	if e.framer != nil {
		e.framer.Reset()
	}
	e.mu.Unlock()
	e.active.Store(true)
}

// Stop disables frame processing. A chunk already being dispatched stops
// at the next frame; nothing new is scored.
func (e *Engine) Stop() {
	e.active.Store(false)
}

// UpdateConfig swaps the tuning; it applies from the next frame.
func (e *Engine) UpdateConfig(t Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.tuning = t
	e.mu.Unlock()
	log.Printf("[EnergyVAD] tuning updated: threshold=%.2f minSpeech=%v minSilence=%v",
		t.ActivationThreshold, t.MinSpeechDuration, t.MinSilenceDuration)
	return nil
}

// Tuning returns the active tuning.
func (e *Engine) Tuning() Tuning {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tuning
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := State{
		Active:          e.active.Load(),
		IsSpeaking:      e.speaking,
		LastProbability: e.lastProb,
	}
	if e.speaking {
		s.SpeechDuration = e.clock - e.speechStart
	}
	return s
}

// Destroy stops the engine, detaches from the source and releases the
// scorer. It is idempotent.
func (e *Engine) Destroy() {
	if e.destroyed.Swap(true) {
		return
	}
	e.active.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	if e.scorer != nil {
		if err := e.scorer.Destroy(); err != nil {
			log.Printf("[EnergyVAD] scorer destroy: %v", err)
		}
		e.scorer = nil
	}
	e.source = nil
	e.speaking = false
	e.inRun = false
	e.inSilence = false
}

// onAudio is the source subscription.
func (e *Engine) onAudio(pcm []int16) {
	if !e.active.Load() {
		return
	}
	samples := audio.Int16ToFloat32(pcm)

	var steps []step

	e.mu.Lock()
	if e.framer == nil || e.scorer == nil {
		e.mu.Unlock()
		return
	}
	e.framer.Push(samples, func(frame []float32) {
		if st, ok := e.stepLocked(frame); ok {
			steps = append(steps, st)
		}
	})
	e.mu.Unlock()

	e.dispatch(steps)
}

// ProcessFrame runs one frame through the state machine, bypassing the
// framer. The engine must be started.
func (e *Engine) ProcessFrame(frame []float32) {
	if !e.active.Load() || len(frame) == 0 {
		return
	}
	e.mu.Lock()
	if e.scorer == nil {
		e.mu.Unlock()
		return
	}
	if e.sampleRate == 0 {
		e.sampleRate = 16000
	}
	st, ok := e.stepLocked(frame)
	e.mu.Unlock()

	if ok {
		e.dispatch([]step{st})
	}
}

// stepLocked scores a frame and advances the state machine.
func (e *Engine) stepLocked(frame []float32) (step, bool) {
	prob, err := e.scorer.Infer(frame)
	if err != nil {
		log.Printf("[EnergyVAD] scorer error: %v", err)
		return step{}, false
	}

	frameStart := e.clock
	e.clock += audio.DurationOf(len(frame), e.sampleRate)
	e.lastProb = prob
	st := step{prob: prob}
	voiced := prob > e.tuning.ActivationThreshold

	if !e.speaking {
		if !voiced {
			e.inRun = false
			return st, true
		}
		if !e.inRun {
			e.inRun = true
			e.runStart = frameStart
		}
		if e.clock-e.runStart >= e.tuning.MinSpeechDuration {
			e.speaking = true
			e.speechStart = e.runStart
			e.inSilence = false
			st.note = notifySpeechStart
			st.speechStart = e.speechStart
		}
		return st, true
	}

	if voiced {
		e.inSilence = false
		return st, true
	}
	if !e.inSilence {
		e.inSilence = true
		e.silenceStart = frameStart
	}
	if e.clock-e.silenceStart < e.tuning.MinSilenceDuration {
		return st, true
	}
	// MinSpeechDuration may have been raised mid-utterance; a run that no
	// longer qualifies returns to silence without an end.
	if e.silenceStart-e.speechStart >= e.tuning.MinSpeechDuration {
		st.note = notifySpeechEnd
	}
	e.speaking = false
	e.inRun = false
	e.inSilence = false
	return st, true
}

// dispatch fires callbacks outside the lock, frame by frame. A transition is
// reported after the activity of the frame that caused it. If the engine is
// stopped before a start is delivered, the run is rolled back so the next
// callback a listener sees is never an unmatched end.
func (e *Engine) dispatch(steps []step) {
	for i, st := range steps {
		if !e.active.Load() {
			e.rollback(steps[i:])
			return
		}
		if e.callbacks.OnVoiceActivity != nil {
			e.callbacks.OnVoiceActivity(st.prob)
		}
		if st.note == notifyNone {
			continue
		}
		if !e.active.Load() {
			e.rollback(steps[i:])
			return
		}
		switch st.note {
		case notifySpeechStart:
			log.Printf("[EnergyVAD] speech start")
			if e.callbacks.OnSpeechStart != nil {
				e.callbacks.OnSpeechStart()
			}
		case notifySpeechEnd:
			log.Printf("[EnergyVAD] speech end")
			if e.callbacks.OnSpeechEnd != nil {
				e.callbacks.OnSpeechEnd()
			}
		}
	}
}

// rollback returns to silence when an undelivered start is still the
// current run.
func (e *Engine) rollback(pending []step) {
	for _, st := range pending {
		if st.note != notifySpeechStart {
			continue
		}
		e.mu.Lock()
		if e.speaking && e.speechStart == st.speechStart {
			e.speaking = false
			e.inRun = false
			e.inSilence = false
		}
		e.mu.Unlock()
	}
}
