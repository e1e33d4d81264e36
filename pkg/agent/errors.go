package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyActive is returned by StartInterview on a running controller.
	ErrAlreadyActive = errors.New("interview already active")

	// ErrStopped is returned when starting a controller that has been stopped.
	ErrStopped = errors.New("interview controller stopped")

	// ErrNotActive is returned by controls that need a running interview.
	ErrNotActive = errors.New("interview not active")

	// ErrTurnInProgress is returned by ForceNextQuestion while a reply is
	// being prepared.
	ErrTurnInProgress = errors.New("reply in progress")

	// ErrProcessingTimeout is published when the watchdog clears a turn that
	// never produced a reply.
	ErrProcessingTimeout = errors.New("processing timed out")
)

// MicrophoneAccessError reports that audio capture could not be acquired.
// It ends the startup attempt.
type MicrophoneAccessError struct {
	Err error
}

func (e *MicrophoneAccessError) Error() string {
	return fmt.Sprintf("microphone access: %v", e.Err)
}

func (e *MicrophoneAccessError) Unwrap() error {
	return e.Err
}
