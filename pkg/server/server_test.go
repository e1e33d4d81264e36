package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/interview-agent/pkg/agent"
	"github.com/realtime-ai/interview-agent/pkg/asr"
	"github.com/realtime-ai/interview-agent/pkg/audio"
	"github.com/realtime-ai/interview-agent/pkg/bus"
	"github.com/realtime-ai/interview-agent/pkg/dialogue"
	"github.com/realtime-ai/interview-agent/pkg/tts"
)

type stubMic struct{ err error }

func (m stubMic) Open(ctx context.Context) (audio.Source, error) {
	if m.err != nil {
		return nil, m.err
	}
	return audio.NewBroadcaster(16000), nil
}

func (stubMic) Close() error { return nil }

type stubSession struct {
	results chan *asr.RecognitionResult
	once    sync.Once
}

func (s *stubSession) Results() <-chan *asr.RecognitionResult { return s.results }
func (s *stubSession) Err() error                             { return nil }

func (s *stubSession) Close() error {
	s.once.Do(func() { close(s.results) })
	return nil
}

type stubRecognizer struct{}

func (stubRecognizer) Listen(ctx context.Context, src audio.Source) (asr.Session, error) {
	return &stubSession{results: make(chan *asr.RecognitionResult)}, nil
}

type stubSpeaker struct{}

func (stubSpeaker) Speak(ctx context.Context, text string, opts tts.SpeakOptions) error {
	select {
	case <-ctx.Done():
		return tts.ErrInterrupted
	case <-time.After(time.Millisecond):
		return nil
	}
}
func (stubSpeaker) Stop()            {}
func (stubSpeaker) ForceStop()       {}
func (stubSpeaker) IsSpeaking() bool { return false }

type stubConductor struct {
	mu    sync.Mutex
	title string
}

func (c *stubConductor) GetOpeningMessage(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return "Welcome to " + c.title
}
func (c *stubConductor) ProcessResponse(ctx context.Context, answer string) string {
	return "Noted: " + answer
}
func (c *stubConductor) SkipToNextQuestion(ctx context.Context) string    { return "Next one." }
func (c *stubConductor) HandleRecovery(kind dialogue.RecoveryKind) string { return "Sorry?" }
func (c *stubConductor) IsInterviewComplete() bool                        { return false }
func (c *stubConductor) GetInterviewSummary() dialogue.Summary {
	return dialogue.Summary{Completion: 50}
}

type testServer struct {
	*httptest.Server
	registry *agent.Registry

	mu     sync.Mutex
	micErr error
	titles []string
}

func (ts *testServer) setMicErr(err error) {
	ts.mu.Lock()
	ts.micErr = err
	ts.mu.Unlock()
}

func (ts *testServer) started() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.titles...)
}

func newTestServer(t *testing.T, cfg *Config) *testServer {
	t.Helper()
	ts := &testServer{registry: agent.NewRegistry()}
	factory := func(ctx context.Context, id string, req StartRequest) (*agent.Controller, error) {
		if id == "broken" {
			return nil, errors.New("no room available")
		}
		title := "the default interview"
		if req.Interview != nil {
			title = req.Interview.Title
		}
		ts.mu.Lock()
		ts.titles = append(ts.titles, title)
		micErr := ts.micErr
		ts.mu.Unlock()

		cfg := agent.DefaultConfig()
		cfg.ListenDelayAfterOpening = 0
		cfg.TranscriptDebounce = 5 * time.Millisecond
		return agent.NewController(id, agent.Deps{
			Microphone: stubMic{err: micErr},
			Recognizer: stubRecognizer{},
			Speaker:    stubSpeaker{},
			Conductor:  &stubConductor{title: title},
		}, agent.WithConfig(cfg))
	}
	srv := New(cfg, ts.registry, factory)
	ts.Server = httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		require.NoError(t, srv.Stop(context.Background()))
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func (ts *testServer) start(t *testing.T, req StartRequest) string {
	t.Helper()
	res := ts.do(t, http.MethodPost, "/sessions", req)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var out StartResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

func (ts *testServer) waitListening(t *testing.T, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		res := ts.do(t, http.MethodGet, "/sessions/"+id, nil)
		var st struct {
			State string `json:"state"`
		}
		return res.StatusCode == http.StatusOK &&
			json.NewDecoder(res.Body).Decode(&st) == nil && st.State == "listening"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestServer_SessionLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	id := ts.start(t, StartRequest{Interview: &dialogue.InterviewContext{Title: "Team retro"}})
	assert.Equal(t, []string{"Team retro"}, ts.started())
	ts.waitListening(t, id)

	res := ts.do(t, http.MethodGet, "/sessions", nil)
	var list map[string][]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	assert.Equal(t, []string{id}, list["sessions"])

	res = ts.do(t, http.MethodGet, "/sessions/"+id, nil)
	var st map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&st))
	assert.Equal(t, id, st["session_id"])
	assert.Equal(t, true, st["active"])
	assert.Equal(t, true, st["conversation_started"])

	res = ts.do(t, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	require.Eventually(t, func() bool {
		return ts.do(t, http.MethodGet, "/sessions/"+id, nil).StatusCode == http.StatusNotFound
	}, time.Second, 5*time.Millisecond)
}

func TestServer_StartWithoutBody(t *testing.T) {
	ts := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/sessions", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, []string{"the default interview"}, ts.started())
}

func TestServer_StartErrors(t *testing.T) {
	ts := newTestServer(t, &Config{MaxSessions: 1})

	res := ts.do(t, http.MethodPost, "/sessions", StartRequest{SessionID: "broken"})
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

	ts.setMicErr(errors.New("device busy"))
	res = ts.do(t, http.MethodPost, "/sessions", StartRequest{SessionID: "no-mic"})
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	require.Eventually(t, func() bool { return ts.registry.Len() == 0 }, time.Second, 5*time.Millisecond)

	ts.setMicErr(nil)
	ts.start(t, StartRequest{SessionID: "one"})

	res = ts.do(t, http.MethodPost, "/sessions", StartRequest{SessionID: "one"})
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res = ts.do(t, http.MethodPost, "/sessions", StartRequest{SessionID: "two"})
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)

	res = ts.do(t, http.MethodPost, "/sessions", "not an object")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestServer_Controls(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.start(t, StartRequest{})
	ts.waitListening(t, id)

	res := ts.do(t, http.MethodPost, "/sessions/"+id+"/transcript", map[string]string{"text": "I ship APIs"})
	assert.Equal(t, http.StatusAccepted, res.StatusCode)

	res = ts.do(t, http.MethodPost, "/sessions/"+id+"/transcript", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = ts.do(t, http.MethodPut, "/sessions/"+id+"/vad", map[string]float32{"threshold": 0.3})
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res = ts.do(t, http.MethodPut, "/sessions/"+id+"/vad", map[string]float32{"threshold": 3})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = ts.do(t, http.MethodPost, "/sessions/"+id+"/next", nil)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)

	res = ts.do(t, http.MethodPost, "/sessions/"+id+"/reset", nil)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)

	res = ts.do(t, http.MethodPost, "/sessions/missing/next", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestServer_Auth(t *testing.T) {
	ts := newTestServer(t, &Config{AuthToken: "letmein"})

	res := ts.do(t, http.MethodGet, "/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer letmein")
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = ts.do(t, http.MethodGet, "/healthz?access_token=letmein", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestServer_EventStream(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.start(t, StartRequest{})
	ts.waitListening(t, id)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sessions/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the subscription is registered once the upgrade has completed
	time.Sleep(20 * time.Millisecond)
	res := ts.do(t, http.MethodPost, "/sessions/"+id+"/transcript", map[string]string{"text": "hello"})
	require.Equal(t, http.StatusAccepted, res.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var seen []bus.EventType
	for {
		var msg EventMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, id, msg.SessionID)
		seen = append(seen, msg.Type)
		if msg.Type == bus.EventAgentMessage {
			assert.Equal(t, "Noted: hello", msg.Payload["text"])
			break
		}
	}
	assert.Contains(t, seen, bus.EventTranscript)

	ts.do(t, http.MethodDelete, "/sessions/"+id, nil)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
			break
		}
	}
}

func TestNewEventMessage(t *testing.T) {
	ev := bus.NewEvent(bus.EventError, "s1", bus.ErrorPayload{Err: errors.New("boom"), Fatal: true})
	msg := NewEventMessage(ev)
	assert.Equal(t, map[string]any{"error": "boom", "fatal": true}, msg.Payload)

	ev = bus.NewEvent(bus.EventInterrupted, "s1", bus.InterruptPayload{Source: "vad", Latency: 42 * time.Millisecond})
	msg = NewEventMessage(ev)
	assert.Equal(t, int64(42), msg.Payload["latency_ms"])

	msg = NewEventMessage(bus.NewEvent(bus.EventSpeechStarted, "s1", nil))
	assert.Nil(t, msg.Payload)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{agent.ErrSessionExists, http.StatusConflict},
		{agent.ErrNotActive, http.StatusConflict},
		{agent.ErrTurnInProgress, http.StatusConflict},
		{&agent.MicrophoneAccessError{Err: errors.New("busy")}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}
