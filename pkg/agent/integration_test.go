package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/interview-agent/pkg/bus"
	"github.com/realtime-ai/interview-agent/pkg/dialogue"
	"github.com/realtime-ai/interview-agent/pkg/tts"
)

// scriptedModel answers completions from a fixed list.
type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Complete(ctx context.Context, req dialogue.CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.replies) == 0 {
		return "Thanks.", nil
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r, nil
}

// silenceProvider returns one frame of silence per sentence.
type silenceProvider struct{}

func (silenceProvider) Name() string { return "silence" }

func (silenceProvider) Synthesize(ctx context.Context, req *tts.SynthesizeRequest) (*tts.SynthesizeResponse, error) {
	return &tts.SynthesizeResponse{
		AudioData:   make([]byte, 960),
		AudioFormat: tts.AudioFormat{SampleRate: 24000, Channels: 1, Encoding: "pcm_s16le"},
	}, nil
}

func (silenceProvider) GetSupportedVoices() []string { return []string{"nova"} }
func (silenceProvider) GetDefaultVoice() string      { return "nova" }
func (silenceProvider) ValidateConfig() error        { return nil }

type countingSink struct {
	mu     sync.Mutex
	frames int
}

func (s *countingSink) SampleRate() int { return 24000 }

func (s *countingSink) WriteFrame(frame []byte) error {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
	return nil
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func TestInterview_EndToEnd(t *testing.T) {
	model := &scriptedModel{replies: []string{
		"Welcome! Tell me a little about yourself.",
		"What was the hardest project you shipped?",
		"How do you approach being on call?",
	}}
	conductor := dialogue.NewConductor(dialogue.InterviewContext{
		Title:              "Backend engineering",
		GeneratedQuestions: []string{"Hardest project?", "On-call approach?"},
		ParticipantRole:    "engineer",
		TimeBudgetMinutes:  15,
	}, model)

	sink := &countingSink{}
	player := tts.NewPacedPlayer(sink, time.Millisecond)
	defer player.Close()
	speaker := tts.NewClient(player, silenceProvider{})

	mic := newFakeMic()
	rec := newFakeRecognizer()
	events := bus.New()
	evCh := make(chan bus.Event, 256)
	events.SubscribeAll(evCh)

	c, err := NewController("", Deps{
		Microphone: mic,
		Recognizer: rec,
		Speaker:    speaker,
		Conductor:  conductor,
	}, WithConfig(testConfig()), WithBus(events))
	require.NoError(t, err)
	defer c.Stop()

	require.NoError(t, c.StartInterview(context.Background()))

	var spoken []string
	waitMessage := func() string {
		t.Helper()
		for {
			select {
			case ev := <-evCh:
				if ev.Type == bus.EventAgentMessage {
					return ev.Payload.(bus.MessagePayload).Text
				}
			case <-time.After(2 * time.Second):
				t.Fatal("no agent message")
				return ""
			}
		}
	}
	spoken = append(spoken, waitMessage())
	s := rec.next(t)

	require.Eventually(t, func() bool { return c.State() == StateListening }, 2*time.Second, time.Millisecond)
	s.say("I'm a backend engineer working on payments.")
	spoken = append(spoken, waitMessage())

	require.Eventually(t, func() bool { return c.State() == StateListening }, 2*time.Second, time.Millisecond)
	s.say("The ledger rewrite, because we had to migrate live balances without any downtime at all.")
	spoken = append(spoken, waitMessage())

	var complete bus.CompletePayload
	deadline := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case ev := <-evCh:
			if ev.Type == bus.EventInterviewComplete {
				complete = ev.Payload.(bus.CompletePayload)
				done = true
			}
		case <-deadline:
			t.Fatal("interview never completed")
		}
	}

	assert.Equal(t, []string{
		"Welcome! Tell me a little about yourself.",
		"What was the hardest project you shipped?",
		"How do you approach being on call?",
	}, spoken)
	assert.Equal(t, 2, complete.QuestionsAsked)
	assert.Equal(t, 1, complete.Responses)
	assert.Equal(t, 100, complete.Completion)

	<-c.Done()
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, speaker.IsSpeaking())
	assert.Positive(t, sink.count())

	state := conductor.State()
	require.Len(t, state.Responses, 1)
	assert.Equal(t, "Hardest project?", state.Responses[0].Question)
}
