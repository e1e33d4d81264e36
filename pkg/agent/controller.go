// Package agent is the turn controller of a spoken interview. A Controller
// owns the agent state and arbitrates between listening to the participant
// and speaking replies: it consumes voice activity and transcripts, asks the
// conductor what to say, drives speech synthesis and yields the floor the
// moment the participant talks over it.
//
// All state changes happen on one goroutine that consumes a queue of typed
// events. Asynchronous work (recognition, reply generation, playback) posts
// its outcome back to that queue tagged with a generation number; results
// whose generation is no longer current are dropped.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/realtime-ai/interview-agent/pkg/asr"
	"github.com/realtime-ai/interview-agent/pkg/audio"
	"github.com/realtime-ai/interview-agent/pkg/bus"
	"github.com/realtime-ai/interview-agent/pkg/dialogue"
	"github.com/realtime-ai/interview-agent/pkg/trace"
	"github.com/realtime-ai/interview-agent/pkg/tts"
	"github.com/realtime-ai/interview-agent/pkg/vad"
)

type phase int

const (
	phaseNew phase = iota
	phaseRunning
	phaseStopped
)

// Option customizes a Controller.
type Option func(*Controller)

// WithConfig replaces the turn-taking timings.
func WithConfig(cfg Config) Option {
	return func(c *Controller) {
		c.cfg = cfg.withDefaults()
	}
}

// WithBus publishes session events to b.
func WithBus(b bus.Bus) Option {
	return func(c *Controller) {
		if b != nil {
			c.bus = b
		}
	}
}

// WithVADFactory replaces the energy VAD.
func WithVADFactory(f VADFactory) Option {
	return func(c *Controller) {
		if f != nil {
			c.newVAD = f
		}
	}
}

// Status is a point-in-time view of a controller.
type Status struct {
	SessionID           string           `json:"session_id"`
	State               State            `json:"state"`
	Active              bool             `json:"active"`
	Listening           bool             `json:"listening"`
	Processing          bool             `json:"processing"`
	Speaking            bool             `json:"speaking"`
	ConversationStarted bool             `json:"conversation_started"`
	Metrics             Metrics          `json:"metrics"`
	VAD                 *vad.State       `json:"vad,omitempty"`
	Interview           dialogue.Summary `json:"interview"`
}

// Controller runs one interview. Create one per session.
type Controller struct {
	id     string
	deps   Deps
	cfg    Config
	bus    bus.Bus
	newVAD VADFactory

	events   chan event
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu         sync.Mutex
	phase      phase
	state      State
	conversing bool
	metrics    Metrics
	detector   VoiceDetector
	tuning     vad.Tuning

	// speaking mirrors state for the capture path.
	speaking atomic.Bool

	// Owned by the loop goroutine.
	ctx           context.Context
	cancel        context.CancelFunc
	span          oteltrace.Span
	src           audio.Source
	cur           State
	turnGen       uint64
	listenGen     uint64
	session       asr.Session
	opening       bool
	speakCancel   context.CancelFunc
	speakingReply bool
	listenDelay   time.Duration
	ignoreUntil   time.Time
	lastProcessed string
	pending       string
	debounceSeq   uint64
	debounce      *time.Timer
	watchdog      *time.Timer
	restart       *time.Timer
	speechStartAt time.Time
	turnSpan      oteltrace.Span
}

// NewController wires an interview. An empty id gets a random one.
func NewController(id string, deps Deps, opts ...Option) (*Controller, error) {
	switch {
	case deps.Microphone == nil:
		return nil, errors.New("agent: microphone is required")
	case deps.Recognizer == nil:
		return nil, errors.New("agent: recognizer is required")
	case deps.Speaker == nil:
		return nil, errors.New("agent: speaker is required")
	case deps.Conductor == nil:
		return nil, errors.New("agent: conductor is required")
	}
	if id == "" {
		id = uuid.NewString()
	}

	c := &Controller{
		id:     id,
		deps:   deps,
		cfg:    DefaultConfig(),
		bus:    bus.New(),
		newVAD: defaultVADFactory,
		events: make(chan event, 256),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tuning = c.cfg.VAD.Tuning
	return c, nil
}

func (c *Controller) ID() string   { return c.id }
func (c *Controller) Bus() bus.Bus { return c.bus }

// Done is closed once the controller has stopped for good.
func (c *Controller) Done() <-chan struct{} { return c.done }

// State returns the current agent state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartInterview acquires the microphone, starts voice detection and speaks
// the opening; listening begins once the opening has played. It returns
// *MicrophoneAccessError when capture cannot be set up, leaving the
// controller idle.
func (c *Controller) StartInterview(ctx context.Context) error {
	c.mu.Lock()
	switch c.phase {
	case phaseRunning:
		c.mu.Unlock()
		log.Printf("[TurnController] %s: interview already active", c.id)
		return ErrAlreadyActive
	case phaseStopped:
		c.mu.Unlock()
		return ErrStopped
	}
	c.phase = phaseRunning
	c.mu.Unlock()

	sctx, span := trace.StartSpan(context.WithoutCancel(ctx), "agent.session",
		oteltrace.WithAttributes(trace.SessionAttrs(c.id)...))
	c.mu.Lock()
	c.ctx, c.cancel = context.WithCancel(sctx)
	c.mu.Unlock()
	c.span = span
	c.setState(StateConnecting)

	if err := c.openAudio(ctx); err != nil {
		merr := &MicrophoneAccessError{Err: err}
		log.Printf("[TurnController] %s: %v", c.id, merr)
		trace.RecordError(span, merr)
		c.cancel()
		c.setState(StateIdle)
		span.End()
		c.publish(bus.EventError, bus.ErrorPayload{Err: merr, Fatal: true})

		c.mu.Lock()
		select {
		case <-c.stopCh:
			c.phase = phaseStopped
			close(c.done)
		default:
			c.phase = phaseNew
		}
		c.mu.Unlock()
		return merr
	}

	gen := c.turnGen
	go c.run()
	go func() {
		text := c.deps.Conductor.GetOpeningMessage(c.ctx)
		c.post(openingReady{text: text, gen: gen})
	}()
	log.Printf("[TurnController] %s: interview started", c.id)
	return nil
}

func (c *Controller) openAudio(ctx context.Context) error {
	src, err := c.deps.Microphone.Open(ctx)
	if err != nil {
		return err
	}
	if src == nil {
		c.deps.Microphone.Close()
		return errors.New("microphone returned no audio source")
	}

	c.mu.Lock()
	cfg := c.cfg.VAD
	cfg.Tuning = c.tuning
	c.mu.Unlock()

	det := c.newVAD(cfg, vad.Callbacks{
		OnSpeechStart:   func() { c.tryPost(speechStarted{at: time.Now()}) },
		OnSpeechEnd:     func() { c.tryPost(speechEnded{at: time.Now()}) },
		OnVoiceActivity: c.onVoiceActivity,
	})
	if err := det.Initialize(src); err != nil {
		det.Destroy()
		c.deps.Microphone.Close()
		return err
	}
	det.Start()

	c.mu.Lock()
	c.detector = det
	c.mu.Unlock()
	c.src = src
	return nil
}

// onVoiceActivity runs on the capture path for every frame.
func (c *Controller) onVoiceActivity(p float32) {
	if p > c.cfg.InterruptProbability && c.speaking.Load() {
		c.tryPost(voiceActivity{prob: p, at: time.Now()})
	}
}

// Stop ends the interview from any state. It waits for in-flight work to be
// cancelled and is safe to call repeatedly.
func (c *Controller) Stop() error {
	c.mu.Lock()
	switch c.phase {
	case phaseNew:
		c.phase = phaseStopped
		close(c.done)
		c.mu.Unlock()
		return nil
	case phaseRunning:
		c.stopOnce.Do(func() { close(c.stopCh) })
	}
	c.mu.Unlock()
	<-c.done
	return nil
}

// HandleTranscript feeds a final transcript from outside the recognizer.
func (c *Controller) HandleTranscript(text string) error {
	return c.command(externalTranscript{text: text, final: true})
}

// ForceNextQuestion skips to the next question, cutting off any reply being
// spoken. It is refused while a reply is being prepared, since that turn
// already advances the plan.
func (c *Controller) ForceNextQuestion() error {
	if c.State() == StateProcessing {
		return ErrTurnInProgress
	}
	return c.command(forceNextRequested{})
}

// ResetProcessing abandons a turn stuck waiting for its reply.
func (c *Controller) ResetProcessing() error {
	return c.command(resetRequested{})
}

func (c *Controller) command(ev event) error {
	c.mu.Lock()
	ctx := c.ctx
	running := c.phase == phaseRunning && ctx != nil
	c.mu.Unlock()
	if !running {
		return ErrNotActive
	}
	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		return ErrNotActive
	}
}

// UpdateVADSensitivity changes the activation threshold, live if the
// interview is running.
func (c *Controller) UpdateVADSensitivity(threshold float32) error {
	c.mu.Lock()
	t := c.tuning
	t.ActivationThreshold = threshold
	if err := t.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.tuning = t
	det := c.detector
	c.mu.Unlock()

	if det != nil {
		return det.UpdateConfig(t)
	}
	return nil
}

// Metrics returns a copy of the latency counters.
func (c *Controller) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Status reports state, metrics, voice detection and interview progress.
func (c *Controller) Status() Status {
	c.mu.Lock()
	s := Status{
		SessionID:           c.id,
		State:               c.state,
		Active:              c.phase == phaseRunning,
		Listening:           c.state == StateListening,
		Processing:          c.state == StateProcessing,
		ConversationStarted: c.conversing,
		Metrics:             c.metrics,
	}
	det := c.detector
	c.mu.Unlock()

	s.Speaking = c.deps.Speaker.IsSpeaking()
	if det != nil {
		v := det.Snapshot()
		s.VAD = &v
	}
	s.Interview = c.deps.Conductor.GetInterviewSummary()
	return s
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.stopCh:
			c.shutdown("stop requested")
			return
		case ev := <-c.events:
			if !c.handle(ev) {
				return
			}
		}
	}
}

// handle is the single state-transition function. It returns false once
// the interview has ended.
func (c *Controller) handle(ev event) bool {
	switch e := ev.(type) {
	case speechStarted:
		c.onSpeechStarted(e)
	case speechEnded:
		c.publish(bus.EventSpeechEnded, nil)
	case voiceActivity:
		if c.cur == StateSpeaking {
			c.interrupt("voice_activity", e.at)
		}
	case transcriptReceived:
		if e.gen == c.listenGen {
			c.onTranscript(e.text, e.final, e.at)
		}
	case externalTranscript:
		c.onTranscript(e.text, e.final, time.Now())
	case recognizerOpened:
		return c.onRecognizerOpened(e)
	case recognizerEnded:
		return c.onRecognizerEnded(e)
	case recognizerRestart:
		if e.gen == c.listenGen && c.session == nil && c.cur != StateConnecting {
			c.ensureRecognizer()
		}
	case openingReady:
		if e.gen == c.turnGen && c.cur == StateConnecting {
			c.mu.Lock()
			c.conversing = true
			c.mu.Unlock()
			c.say(e.text, c.cfg.ListenDelayAfterOpening, false)
		}
	case responseReady:
		c.onResponse(e)
	case speakDone:
		return c.onSpeakDone(e)
	case debounceFired:
		c.onDebounce(e)
	case watchdogFired:
		c.onWatchdog(e)
	case forceNextRequested:
		c.onForceNext()
	case resetRequested:
		c.onReset()
	default:
		log.Printf("[TurnController] %s: unhandled event %T", c.id, ev)
	}
	return true
}

func (c *Controller) onSpeechStarted(e speechStarted) {
	c.publish(bus.EventSpeechStarted, nil)
	if c.speechStartAt.IsZero() {
		c.speechStartAt = e.at
	}
	if c.cur == StateSpeaking {
		c.interrupt("vad", e.at)
	}
}

func (c *Controller) onTranscript(text string, final bool, at time.Time) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if !c.speechStartAt.IsZero() {
		c.mu.Lock()
		c.metrics.SpeechDetectionLatency.Observe(at.Sub(c.speechStartAt))
		c.mu.Unlock()
		c.speechStartAt = time.Time{}
	}
	c.publish(bus.EventTranscript, bus.TranscriptPayload{Text: text, Final: final})

	switch c.cur {
	case StateSpeaking:
		// the words that cut the agent off are not an answer
		c.interrupt("transcript", at)
		return
	case StateListening:
	default:
		return
	}
	if !final {
		return
	}
	if at.Before(c.ignoreUntil) {
		log.Printf("[TurnController] %s: ignoring transcript during settle window", c.id)
		return
	}
	if text == c.lastProcessed {
		log.Printf("[TurnController] %s: duplicate transcript ignored", c.id)
		return
	}

	c.pending = text
	c.debounceSeq++
	seq := c.debounceSeq
	stopTimer(c.debounce)
	c.debounce = time.AfterFunc(c.cfg.TranscriptDebounce, func() {
		c.post(debounceFired{seq: seq})
	})
}

func (c *Controller) onDebounce(e debounceFired) {
	if e.seq != c.debounceSeq || c.cur != StateListening || c.pending == "" {
		return
	}
	text := c.pending
	c.pending = ""
	if text == c.lastProcessed {
		return
	}
	c.lastProcessed = text
	c.beginTurn(func(ctx context.Context) string {
		return c.deps.Conductor.ProcessResponse(ctx, text)
	})
}

// beginTurn moves to processing and runs produce off the loop under the
// watchdog.
func (c *Controller) beginTurn(produce func(ctx context.Context) string) {
	c.turnGen++
	gen := c.turnGen
	c.setState(StateProcessing)

	c.mu.Lock()
	c.metrics.Turns++
	c.mu.Unlock()

	stopTimer(c.watchdog)
	c.watchdog = time.AfterFunc(c.cfg.ProcessingTimeout, func() {
		c.post(watchdogFired{gen: gen})
	})

	ctx, span := trace.InstrumentTurn(c.ctx, c.id, gen)
	c.endTurnSpan()
	c.turnSpan = span
	start := time.Now()
	go func() {
		reply := produce(ctx)
		c.post(responseReady{text: reply, gen: gen, start: start})
	}()
}

func (c *Controller) onResponse(e responseReady) {
	if e.gen != c.turnGen || c.cur != StateProcessing {
		log.Printf("[TurnController] %s: dropping stale reply", c.id)
		return
	}
	stopTimer(c.watchdog)
	c.mu.Lock()
	c.metrics.ResponseTime.Observe(time.Since(e.start))
	c.mu.Unlock()

	if strings.TrimSpace(e.text) == "" {
		log.Printf("[TurnController] %s: empty reply, recovering", c.id)
		c.endTurnSpan()
		c.speakRecovery(dialogue.RecoveryTechnical)
		return
	}
	c.say(e.text, c.cfg.ListenDelayAfterReply, true)
}

func (c *Controller) say(text string, listenDelay time.Duration, reply bool) {
	c.publish(bus.EventAgentMessage, bus.MessagePayload{Text: text})
	c.setState(StateSpeaking)
	c.listenDelay = listenDelay
	c.speakingReply = reply

	gen := c.turnGen
	ctx, cancel := context.WithCancel(c.ctx)
	c.speakCancel = cancel
	opts := c.cfg.Voice
	go func() {
		err := c.deps.Speaker.Speak(ctx, text, opts)
		c.post(speakDone{err: err, gen: gen})
	}()
}

func (c *Controller) onSpeakDone(e speakDone) bool {
	if e.gen != c.turnGen || c.cur != StateSpeaking {
		// an interruption or stop already moved on
		return true
	}
	if c.speakCancel != nil {
		c.speakCancel()
		c.speakCancel = nil
	}

	var perr *tts.PlaybackError
	var gerr *tts.GenerationError
	switch {
	case e.err == nil, errors.Is(e.err, tts.ErrInterrupted), errors.Is(e.err, context.Canceled):
	case errors.As(e.err, &perr):
		log.Printf("[TurnController] %s: playback failed: %v", c.id, e.err)
		c.publishError(e.err, false)
	case errors.As(e.err, &gerr):
		log.Printf("[TurnController] %s: speech generation failed: %v", c.id, e.err)
		c.publishError(e.err, false)
	default:
		log.Printf("[TurnController] %s: speak: %v", c.id, e.err)
		c.publishError(e.err, false)
	}
	c.endTurnSpan()

	if c.speakingReply && c.deps.Conductor.IsInterviewComplete() {
		c.finish()
		return false
	}
	c.ignoreUntil = time.Now().Add(c.listenDelay)
	c.enterListening()
	return true
}

// interrupt is the forced speaking -> listening edge.
func (c *Controller) interrupt(source string, at time.Time) {
	if c.speakCancel != nil {
		c.speakCancel()
		c.speakCancel = nil
	}
	c.deps.Speaker.ForceStop()
	c.turnGen++
	stopTimer(c.watchdog)
	latency := time.Since(at)

	c.mu.Lock()
	c.metrics.Interruptions++
	c.metrics.InterruptionLatency.Observe(latency)
	c.mu.Unlock()

	log.Printf("[TurnController] %s: interrupted by %s after %v", c.id, source, latency)
	trace.RecordInterruption(c.ctx, source, latency)
	c.publish(bus.EventInterrupted, bus.InterruptPayload{Source: source, Latency: latency})
	c.endTurnSpan()

	c.ignoreUntil = time.Time{}
	c.setState(StateListening)
	if c.session == nil && !c.opening {
		c.scheduleRestart(c.cfg.RestartDelay)
	}
}

func (c *Controller) onWatchdog(e watchdogFired) {
	if e.gen != c.turnGen || c.cur != StateProcessing {
		return
	}
	log.Printf("[TurnController] %s: no reply within %v, resetting", c.id, c.cfg.ProcessingTimeout)
	c.turnGen++
	c.mu.Lock()
	c.metrics.Timeouts++
	c.mu.Unlock()
	if c.turnSpan != nil {
		trace.RecordError(c.turnSpan, ErrProcessingTimeout)
	}
	c.endTurnSpan()
	c.publishError(ErrProcessingTimeout, false)
	c.speakRecovery(dialogue.RecoveryTechnical)
}

// speakRecovery speaks a scripted recovery line; listening resumes after it.
func (c *Controller) speakRecovery(kind dialogue.RecoveryKind) {
	text := c.deps.Conductor.HandleRecovery(kind)
	if text == "" {
		c.enterListening()
		return
	}
	c.say(text, c.cfg.ListenDelayAfterReply, false)
}

func (c *Controller) onForceNext() {
	switch c.cur {
	case StateSpeaking:
		c.interrupt("manual", time.Now())
	case StateListening:
	default:
		log.Printf("[TurnController] %s: cannot skip while %s", c.id, c.cur)
		return
	}
	c.pending = ""
	c.beginTurn(c.deps.Conductor.SkipToNextQuestion)
}

func (c *Controller) onReset() {
	if c.cur != StateProcessing {
		return
	}
	log.Printf("[TurnController] %s: processing reset", c.id)
	c.turnGen++
	stopTimer(c.watchdog)
	c.endTurnSpan()
	c.enterListening()
}

func (c *Controller) enterListening() {
	c.setState(StateListening)
	c.ensureRecognizer()
}

// ensureRecognizer opens a recognition session unless one is open or
// opening. Opening runs off the loop.
func (c *Controller) ensureRecognizer() {
	if c.session != nil || c.opening {
		return
	}
	c.listenGen++
	gen := c.listenGen
	c.opening = true
	src := c.src
	go func() {
		s, err := c.deps.Recognizer.Listen(c.ctx, src)
		if !c.post(recognizerOpened{session: s, err: err, gen: gen}) && s != nil {
			s.Close()
		}
	}()
}

func (c *Controller) onRecognizerOpened(e recognizerOpened) bool {
	if e.gen != c.listenGen {
		if e.session != nil {
			e.session.Close()
		}
		return true
	}
	c.opening = false
	if e.err != nil {
		return c.onRecognizerEnded(recognizerEnded{err: e.err, gen: e.gen})
	}
	c.session = e.session
	go c.pump(e.session, e.gen)
	return true
}

// pump forwards a session's results to the loop.
func (c *Controller) pump(s asr.Session, gen uint64) {
	for r := range s.Results() {
		if r == nil {
			continue
		}
		if !c.post(transcriptReceived{text: r.Text, final: r.IsFinal, at: time.Now(), gen: gen}) {
			return
		}
	}
	c.post(recognizerEnded{err: s.Err(), gen: gen})
}

func (c *Controller) onRecognizerEnded(e recognizerEnded) bool {
	if e.gen != c.listenGen {
		return true
	}
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	c.opening = false

	switch code := asr.CodeOf(e.err); {
	case e.err == nil, code == asr.ErrCodeNoSpeech:
		c.scheduleRestart(c.cfg.RecognizerRestartDelay)
	case code == asr.ErrCodePermissionDenied, code == asr.ErrCodeInvalidConfig:
		log.Printf("[TurnController] %s: recognition unavailable: %v", c.id, e.err)
		c.publishError(fmt.Errorf("speech recognition: %w", e.err), true)
		c.shutdown("recognition unavailable")
		return false
	default:
		log.Printf("[TurnController] %s: recognizer error, retrying: %v", c.id, e.err)
		c.publishError(e.err, false)
		c.scheduleRestart(c.cfg.RecognizerRetryDelay)
	}
	return true
}

func (c *Controller) scheduleRestart(d time.Duration) {
	gen := c.listenGen
	stopTimer(c.restart)
	c.restart = time.AfterFunc(d, func() {
		c.post(recognizerRestart{gen: gen})
	})
}

func (c *Controller) finish() {
	sum := c.deps.Conductor.GetInterviewSummary()
	log.Printf("[TurnController] %s: interview complete: %d questions, %d responses, %d%%",
		c.id, sum.QuestionsAsked, sum.Responses, sum.Completion)
	c.publish(bus.EventInterviewComplete, bus.CompletePayload{
		Duration:       sum.Duration,
		QuestionsAsked: sum.QuestionsAsked,
		Responses:      sum.Responses,
		Completion:     sum.Completion,
	})
	c.shutdown("interview complete")
}

// shutdown releases everything the interview holds. Work still in flight
// sees a cancelled context and its results are never applied.
func (c *Controller) shutdown(reason string) {
	log.Printf("[TurnController] %s: stopping (%s)", c.id, reason)
	c.turnGen++
	c.listenGen++
	c.cancel()

	stopTimer(c.debounce)
	stopTimer(c.watchdog)
	stopTimer(c.restart)
	if c.speakCancel != nil {
		c.speakCancel()
		c.speakCancel = nil
	}
	c.deps.Speaker.ForceStop()

	if c.session != nil {
		if err := c.session.Close(); err != nil {
			log.Printf("[TurnController] %s: close recognizer: %v", c.id, err)
		}
		c.session = nil
	}

	c.mu.Lock()
	det := c.detector
	c.detector = nil
	c.mu.Unlock()
	if det != nil {
		det.Stop()
		det.Destroy()
	}
	if err := c.deps.Microphone.Close(); err != nil {
		log.Printf("[TurnController] %s: close microphone: %v", c.id, err)
	}

	c.endTurnSpan()
	c.setState(StateIdle)
	c.span.End()

	c.mu.Lock()
	c.phase = phaseStopped
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	from := c.state
	c.state = s
	c.mu.Unlock()
	c.cur = s
	c.speaking.Store(s == StateSpeaking)
	if from == s {
		return
	}
	log.Printf("[TurnController] %s: %s -> %s", c.id, from, s)
	trace.RecordStateChange(c.ctx, from.String(), s.String())
	c.publish(bus.EventStateChanged, bus.StatePayload{From: from.String(), To: s.String()})
}

func (c *Controller) endTurnSpan() {
	if c.turnSpan != nil {
		c.turnSpan.End()
		c.turnSpan = nil
	}
}

func (c *Controller) publish(t bus.EventType, payload interface{}) {
	c.bus.Publish(bus.NewEvent(t, c.id, payload))
}

func (c *Controller) publishError(err error, fatal bool) {
	if c.span != nil {
		trace.RecordError(c.span, err)
	}
	c.publish(bus.EventError, bus.ErrorPayload{Err: err, Fatal: fatal})
}

// post queues ev for the loop, waiting while the queue is full. It reports
// false once the interview has stopped.
func (c *Controller) post(ev event) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// tryPost never blocks; the capture path uses it.
func (c *Controller) tryPost(ev event) {
	if c.ctx == nil || c.ctx.Err() != nil {
		return
	}
	select {
	case c.events <- ev:
	default:
		log.Printf("[TurnController] %s: event queue full, dropping %T", c.id, ev)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
