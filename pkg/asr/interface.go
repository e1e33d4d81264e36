// Package asr provides speech recognition behind one interface. The
// interview agent only needs continuous recognition of a live microphone:
// a StreamingRecognizer receives PCM and emits interim and final
// transcripts until it is closed or fails. Batch recognition of a complete
// segment is offered by providers for segment-based engines.
package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// RecognitionResult represents the output of speech recognition.
type RecognitionResult struct {
	Text string

	// IsFinal is false for interim hypotheses.
	IsFinal bool

	// Confidence in 0.0-1.0, or -1 when the provider does not report one.
	Confidence float32

	Language string

	// Duration of the audio segment that was recognized
	Duration time.Duration

	Timestamp time.Time
}

// AudioConfig specifies the PCM format fed to a recognizer.
type AudioConfig struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultAudioConfig is 16 kHz mono S16.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
}

func (c AudioConfig) bytesPerSecond() int {
	return c.SampleRate * c.Channels * c.BitsPerSample / 8
}

// RecognitionConfig contains settings for speech recognition.
type RecognitionConfig struct {
	// Language code (e.g., "en-US"); empty lets the provider decide.
	Language string

	// Model to use (provider-specific, e.g., "whisper-1")
	Model string

	EnablePartialResults bool

	// Prompt biases recognition toward expected vocabulary, if supported.
	Prompt string

	// NoSpeechTimeout ends a session with ErrCodeNoSpeech when nothing was
	// heard for this long. Zero disables it.
	NoSpeechTimeout time.Duration
}

// StreamingRecognizer handles continuous recognition of an audio stream.
type StreamingRecognizer interface {
	// SendAudio queues PCM matching the AudioConfig of the session.
	SendAudio(ctx context.Context, audioData []byte) error

	// Results is closed when the session ends.
	Results() <-chan *RecognitionResult

	// Err reports why the session ended once Results is closed: nil after
	// Close, a *Error otherwise.
	Err() error

	// Close stops recognition and releases resources.
	Close() error
}

// Provider is the main interface for ASR systems.
type Provider interface {
	Name() string

	// Recognize performs speech recognition on a complete audio segment.
	Recognize(ctx context.Context, audio io.Reader, audioConfig AudioConfig, config RecognitionConfig) (*RecognitionResult, error)

	// StreamingRecognize opens a continuous recognition session.
	StreamingRecognize(ctx context.Context, audioConfig AudioConfig, config RecognitionConfig) (StreamingRecognizer, error)

	Close() error
}

// Error types for ASR operations
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeInvalidConfig
	ErrCodeInvalidAudio
	ErrCodeNoSpeech
	ErrCodePermissionDenied
	ErrCodeQuotaExceeded
	ErrCodeNetworkError
	ErrCodeProviderError
)

var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:          "unknown",
	ErrCodeInvalidConfig:    "invalid-config",
	ErrCodeInvalidAudio:     "invalid-audio",
	ErrCodeNoSpeech:         "no-speech",
	ErrCodePermissionDenied: "not-allowed",
	ErrCodeQuotaExceeded:    "quota-exceeded",
	ErrCodeNetworkError:     "network",
	ErrCodeProviderError:    "provider",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// CodeOf returns the code of the first *Error in err's chain, or
// ErrCodeUnknown.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeUnknown
}
