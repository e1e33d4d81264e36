package vad

import "fmt"

// AudioInitError is returned when the engine cannot bind to an audio source.
type AudioInitError struct {
	Reason string
	Err    error
}

func (e *AudioInitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vad: audio init failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("vad: audio init failed: %s", e.Reason)
}

func (e *AudioInitError) Unwrap() error {
	return e.Err
}
