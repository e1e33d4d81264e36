package agent

import (
	"time"

	"github.com/realtime-ai/interview-agent/pkg/tts"
	"github.com/realtime-ai/interview-agent/pkg/vad"
)

// Config holds the turn-taking timings.
type Config struct {
	// InterruptProbability: voice activity above it while speaking barges in.
	InterruptProbability float32 `yaml:"interrupt_probability"`

	// RestartDelay after an interruption before recognition is ensured.
	RestartDelay time.Duration `yaml:"restart_delay"`
	// RecognizerRestartDelay after a recognizer session ended quietly or
	// heard no speech.
	RecognizerRestartDelay time.Duration `yaml:"recognizer_restart_delay"`
	// RecognizerRetryDelay after a recognizer failure.
	RecognizerRetryDelay time.Duration `yaml:"recognizer_retry_delay"`

	// Transcripts arriving this soon after the agent stops talking are
	// treated as the tail of its own voice.
	ListenDelayAfterOpening time.Duration `yaml:"listen_delay_after_opening"`
	ListenDelayAfterReply   time.Duration `yaml:"listen_delay_after_reply"`

	// TranscriptDebounce collapses bursts of final transcripts; the last
	// one wins.
	TranscriptDebounce time.Duration `yaml:"transcript_debounce"`
	// ProcessingTimeout is the watchdog on a turn without a reply.
	ProcessingTimeout time.Duration `yaml:"processing_timeout"`

	VAD   vad.Config       `yaml:"vad"`
	Voice tts.SpeakOptions `yaml:"-"`
}

// DefaultConfig returns the interviewer timings.
func DefaultConfig() Config {
	return Config{
		InterruptProbability:    0.6,
		RestartDelay:            50 * time.Millisecond,
		RecognizerRestartDelay:  100 * time.Millisecond,
		RecognizerRetryDelay:    500 * time.Millisecond,
		ListenDelayAfterOpening: 200 * time.Millisecond,
		ListenDelayAfterReply:   300 * time.Millisecond,
		TranscriptDebounce:      200 * time.Millisecond,
		ProcessingTimeout:       30 * time.Second,
		VAD:                     vad.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InterruptProbability <= 0 || c.InterruptProbability > 1 {
		c.InterruptProbability = d.InterruptProbability
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = d.RestartDelay
	}
	if c.RecognizerRestartDelay <= 0 {
		c.RecognizerRestartDelay = d.RecognizerRestartDelay
	}
	if c.RecognizerRetryDelay <= 0 {
		c.RecognizerRetryDelay = d.RecognizerRetryDelay
	}
	if c.ListenDelayAfterOpening < 0 {
		c.ListenDelayAfterOpening = 0
	}
	if c.ListenDelayAfterReply < 0 {
		c.ListenDelayAfterReply = 0
	}
	if c.TranscriptDebounce <= 0 {
		c.TranscriptDebounce = d.TranscriptDebounce
	}
	if c.ProcessingTimeout <= 0 {
		c.ProcessingTimeout = d.ProcessingTimeout
	}
	if c.VAD.FrameMs == 0 && c.VAD.Tuning == (vad.Tuning{}) {
		c.VAD = d.VAD
	}
	return c
}
