package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/interview-agent/pkg/asr"
	"github.com/realtime-ai/interview-agent/pkg/audio"
	"github.com/realtime-ai/interview-agent/pkg/bus"
	"github.com/realtime-ai/interview-agent/pkg/dialogue"
	"github.com/realtime-ai/interview-agent/pkg/tts"
	"github.com/realtime-ai/interview-agent/pkg/vad"
)

type fakeMic struct {
	src     *audio.Broadcaster
	openErr error
	opens   atomic.Int32
	closes  atomic.Int32
}

func newFakeMic() *fakeMic {
	return &fakeMic{src: audio.NewBroadcaster(16000)}
}

func (m *fakeMic) Open(ctx context.Context) (audio.Source, error) {
	m.opens.Add(1)
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.src, nil
}

func (m *fakeMic) Close() error {
	m.closes.Add(1)
	return nil
}

type fakeSession struct {
	results chan *asr.RecognitionResult
	err     error
	once    sync.Once
	closed  atomic.Bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{results: make(chan *asr.RecognitionResult, 16)}
}

func (s *fakeSession) Results() <-chan *asr.RecognitionResult { return s.results }
func (s *fakeSession) Err() error                             { return s.err }

func (s *fakeSession) Close() error {
	s.closed.Store(true)
	s.end(nil)
	return nil
}

// end finishes the session with err as its reason.
func (s *fakeSession) end(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.results)
	})
}

func (s *fakeSession) say(text string) {
	s.results <- &asr.RecognitionResult{Text: text, IsFinal: true}
}

type fakeRecognizer struct {
	mu       sync.Mutex
	sessions []*fakeSession
	opened   chan *fakeSession
	ListenFn func() error
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{opened: make(chan *fakeSession, 64)}
}

func (r *fakeRecognizer) Listen(ctx context.Context, src audio.Source) (asr.Session, error) {
	if r.ListenFn != nil {
		if err := r.ListenFn(); err != nil {
			return nil, err
		}
	}
	s := newFakeSession()
	r.mu.Lock()
	r.sessions = append(r.sessions, s)
	r.mu.Unlock()
	select {
	case r.opened <- s:
	default:
	}
	return s, nil
}

func (r *fakeRecognizer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *fakeRecognizer) next(t *testing.T) *fakeSession {
	t.Helper()
	select {
	case s := <-r.opened:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("recognizer was not opened")
		return nil
	}
}

// fakeSpeaker plays each utterance for duration, or until released when
// hold is set.
type fakeSpeaker struct {
	duration time.Duration
	hold     chan struct{}
	// lateReturn delays Speak's return after cancellation.
	lateReturn time.Duration

	mu       sync.Mutex
	texts    []string
	cancel   context.CancelFunc
	done     chan struct{}
	speaking atomic.Bool
	started  chan string
}

func newFakeSpeaker() *fakeSpeaker {
	return &fakeSpeaker{duration: 5 * time.Millisecond, started: make(chan string, 64)}
}

func (s *fakeSpeaker) Speak(ctx context.Context, text string, opts tts.SpeakOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()
	s.speaking.Store(true)
	select {
	case s.started <- text:
	default:
	}
	defer close(done)

	var timer <-chan time.Time
	if s.hold == nil {
		timer = time.After(s.duration)
	}
	select {
	case <-ctx.Done():
		s.speaking.Store(false)
		if s.lateReturn > 0 {
			time.Sleep(s.lateReturn)
			return nil
		}
		return tts.ErrInterrupted
	case <-s.hold:
	case <-timer:
	}
	s.speaking.Store(false)
	return nil
}

func (s *fakeSpeaker) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.speaking.Store(false)
}

func (s *fakeSpeaker) ForceStop() {
	s.Stop()
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil && s.lateReturn == 0 {
		<-done
	}
}

func (s *fakeSpeaker) IsSpeaking() bool { return s.speaking.Load() }

func (s *fakeSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func (s *fakeSpeaker) waitSaid(t *testing.T, want string) {
	t.Helper()
	for {
		select {
		case got := <-s.started:
			if got == want {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("speaker never said %q (said %q)", want, s.said())
		}
	}
}

type fakeConductor struct {
	opening   string
	ProcessFn func(ctx context.Context, answer string) string
	SkipFn    func(ctx context.Context) string
	complete  atomic.Bool

	mu         sync.Mutex
	answers    []string
	skips      int
	recoveries []dialogue.RecoveryKind
}

func newFakeConductor() *fakeConductor {
	return &fakeConductor{opening: "Hello, welcome."}
}

func (c *fakeConductor) GetOpeningMessage(ctx context.Context) string { return c.opening }

func (c *fakeConductor) ProcessResponse(ctx context.Context, answer string) string {
	c.mu.Lock()
	c.answers = append(c.answers, answer)
	c.mu.Unlock()
	if c.ProcessFn != nil {
		return c.ProcessFn(ctx, answer)
	}
	return "Reply to " + answer
}

func (c *fakeConductor) SkipToNextQuestion(ctx context.Context) string {
	c.mu.Lock()
	c.skips++
	c.mu.Unlock()
	if c.SkipFn != nil {
		return c.SkipFn(ctx)
	}
	return "Let's move on."
}

func (c *fakeConductor) HandleRecovery(kind dialogue.RecoveryKind) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recoveries = append(c.recoveries, kind)
	return "Sorry?"
}

func (c *fakeConductor) recovered() []dialogue.RecoveryKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]dialogue.RecoveryKind(nil), c.recoveries...)
}

func (c *fakeConductor) IsInterviewComplete() bool { return c.complete.Load() }

func (c *fakeConductor) GetInterviewSummary() dialogue.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return dialogue.Summary{QuestionsAsked: len(c.answers), Responses: len(c.answers), Completion: 100}
}

func (c *fakeConductor) skipped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skips
}

func (c *fakeConductor) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.answers...)
}

type fakeVAD struct {
	mu          sync.Mutex
	cb          vad.Callbacks
	tuning      vad.Tuning
	initErr     error
	started     bool
	destroyed   atomic.Int32
	initialized bool
}

func (v *fakeVAD) Initialize(src audio.Source) error {
	if v.initErr != nil {
		return v.initErr
	}
	v.mu.Lock()
	v.initialized = true
	v.mu.Unlock()
	return nil
}

func (v *fakeVAD) Start() {
	v.mu.Lock()
	v.started = true
	v.mu.Unlock()
}

func (v *fakeVAD) Stop() {
	v.mu.Lock()
	v.started = false
	v.mu.Unlock()
}

func (v *fakeVAD) UpdateConfig(t vad.Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	v.tuning = t
	v.mu.Unlock()
	return nil
}

func (v *fakeVAD) Tuning() vad.Tuning {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tuning
}

func (v *fakeVAD) Snapshot() vad.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return vad.State{Active: v.started}
}

func (v *fakeVAD) Destroy() { v.destroyed.Add(1) }

func (v *fakeVAD) speechStart() { v.cb.OnSpeechStart() }

func (v *fakeVAD) activity(p float32) { v.cb.OnVoiceActivity(p) }

// harness wires a controller to fakes with short timings.
type harness struct {
	c    *Controller
	mic  *fakeMic
	rec  *fakeRecognizer
	spk  *fakeSpeaker
	cond *fakeConductor
	vad  *fakeVAD
	bus  *bus.EventBus
	evCh chan bus.Event
	cfg  Config
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RestartDelay = 5 * time.Millisecond
	cfg.RecognizerRestartDelay = 5 * time.Millisecond
	cfg.RecognizerRetryDelay = 10 * time.Millisecond
	cfg.ListenDelayAfterOpening = 0
	cfg.ListenDelayAfterReply = 0
	cfg.TranscriptDebounce = 10 * time.Millisecond
	cfg.ProcessingTimeout = 2 * time.Second
	return cfg
}

func newHarness(t *testing.T, mutate ...func(*harness)) *harness {
	t.Helper()
	h := &harness{
		mic:  newFakeMic(),
		rec:  newFakeRecognizer(),
		spk:  newFakeSpeaker(),
		cond: newFakeConductor(),
		vad:  &fakeVAD{},
		bus:  bus.New(),
		evCh: make(chan bus.Event, 256),
		cfg:  testConfig(),
	}
	for _, m := range mutate {
		m(h)
	}
	h.bus.SubscribeAll(h.evCh)

	c, err := NewController("session-1", Deps{
		Microphone: h.mic,
		Recognizer: h.rec,
		Speaker:    h.spk,
		Conductor:  h.cond,
	},
		WithConfig(h.cfg),
		WithBus(h.bus),
		WithVADFactory(func(cfg vad.Config, cb vad.Callbacks) VoiceDetector {
			h.vad.cb = cb
			h.vad.tuning = cfg.Tuning
			return h.vad
		}),
	)
	require.NoError(t, err)
	h.c = c
	t.Cleanup(func() { c.Stop() })
	return h
}

// start runs the interview up to listening after the opening.
func (h *harness) start(t *testing.T) *fakeSession {
	t.Helper()
	require.NoError(t, h.c.StartInterview(context.Background()))
	h.spk.waitSaid(t, h.cond.opening)
	s := h.rec.next(t)
	h.waitState(t, StateListening)
	return s
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.c.State() == want },
		2*time.Second, time.Millisecond, "state never became %s (is %s)", want, h.c.State())
}

// waitEvent returns the next bus event of type typ.
func (h *harness) waitEvent(t *testing.T, typ bus.EventType) bus.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.evCh:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", typ)
			return bus.Event{}
		}
	}
}

// drainStates returns the state transitions published so far.
func (h *harness) drainStates() []string {
	var out []string
	for {
		select {
		case ev := <-h.evCh:
			if ev.Type == bus.EventStateChanged {
				out = append(out, ev.Payload.(bus.StatePayload).To)
			}
		default:
			return out
		}
	}
}

var errBoom = errors.New("boom")
