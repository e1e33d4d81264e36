package agent

import (
	"context"

	"github.com/realtime-ai/interview-agent/pkg/asr"
	"github.com/realtime-ai/interview-agent/pkg/audio"
	"github.com/realtime-ai/interview-agent/pkg/dialogue"
	"github.com/realtime-ai/interview-agent/pkg/tts"
	"github.com/realtime-ai/interview-agent/pkg/vad"
)

// Microphone acquires the participant's audio. room.Microphone implements
// it.
type Microphone interface {
	Open(ctx context.Context) (audio.Source, error)
	Close() error
}

// Recognizer opens a continuous transcription session on a source.
// asr.Listener implements it.
type Recognizer interface {
	Listen(ctx context.Context, src audio.Source) (asr.Session, error)
}

// Speaker renders replies. tts.Client implements it.
type Speaker interface {
	Speak(ctx context.Context, text string, opts tts.SpeakOptions) error
	Stop()
	ForceStop()
	IsSpeaking() bool
}

// Conductor decides what to say. dialogue.Conductor implements it.
type Conductor interface {
	GetOpeningMessage(ctx context.Context) string
	ProcessResponse(ctx context.Context, answer string) string
	SkipToNextQuestion(ctx context.Context) string
	HandleRecovery(kind dialogue.RecoveryKind) string
	IsInterviewComplete() bool
	GetInterviewSummary() dialogue.Summary
}

// VoiceDetector is the part of vad.Engine the controller drives.
type VoiceDetector interface {
	Initialize(src audio.Source) error
	Start()
	Stop()
	UpdateConfig(t vad.Tuning) error
	Tuning() vad.Tuning
	Snapshot() vad.State
	Destroy()
}

// VADFactory builds a detector wired to the controller's callbacks.
type VADFactory func(cfg vad.Config, cb vad.Callbacks) VoiceDetector

func defaultVADFactory(cfg vad.Config, cb vad.Callbacks) VoiceDetector {
	return vad.NewEngine(cfg, cb)
}

var (
	_ Recognizer    = (*asr.Listener)(nil)
	_ Speaker       = (*tts.Client)(nil)
	_ Conductor     = (*dialogue.Conductor)(nil)
	_ VoiceDetector = (*vad.Engine)(nil)
)

// Deps are the collaborators of one interview.
type Deps struct {
	Microphone Microphone
	Recognizer Recognizer
	Speaker    Speaker
	Conductor  Conductor
}
