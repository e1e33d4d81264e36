package tts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInterrupted is returned by Speak when the utterance was stopped before
// it finished playing.
var ErrInterrupted = errors.New("tts: speech interrupted")

// GenerationError reports that no provider could synthesize the text.
type GenerationError struct {
	// Attempts lists the provider errors in the order they were tried.
	Attempts []ProviderError
}

// ProviderError is one failed synthesis attempt.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return "tts generation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the last provider error.
func (e *GenerationError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// PlaybackError reports that synthesized audio could not be played. It is
// never retried.
type PlaybackError struct {
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("tts playback failed: %v", e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}
