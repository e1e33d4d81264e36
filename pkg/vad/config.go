package vad

import (
	"fmt"
	"time"
)

// Tuning holds the parameters that can change while the engine runs.
type Tuning struct {
	// ActivationThreshold: a frame is voiced when its probability exceeds it.
	ActivationThreshold float32 `yaml:"activation_threshold"`
	// MinSpeechDuration of continuous voiced frames before speech starts.
	MinSpeechDuration time.Duration `yaml:"min_speech_duration"`
	// MinSilenceDuration of continuous unvoiced frames before speech ends.
	MinSilenceDuration time.Duration `yaml:"min_silence_duration"`
}

// Validate reports out-of-range values.
func (t Tuning) Validate() error {
	if t.ActivationThreshold < 0 || t.ActivationThreshold > 1 {
		return fmt.Errorf("activation threshold must be between 0 and 1, got %v", t.ActivationThreshold)
	}
	if t.MinSpeechDuration < 0 || t.MinSilenceDuration < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// Config configures an Engine.
type Config struct {
	Tuning `yaml:",inline"`
	// FrameMs is the analysis frame length.
	FrameMs int `yaml:"frame_ms"`
}

// DefaultConfig returns the interview defaults: fast onset, about half a
// second of silence before end of turn.
func DefaultConfig() Config {
	return Config{
		Tuning: Tuning{
			ActivationThreshold: 0.45,
			MinSpeechDuration:   50 * time.Millisecond,
			MinSilenceDuration:  550 * time.Millisecond,
		},
		FrameMs: 20,
	}
}
