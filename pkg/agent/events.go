package agent

import (
	"time"

	"github.com/realtime-ai/interview-agent/pkg/asr"
)

// event is one input to the controller loop. Every source of change is
// translated into one of these before it touches controller state.
type event interface {
	isEvent()
}

type (
	speechStarted struct{ at time.Time }
	speechEnded   struct{ at time.Time }

	// voiceActivity is only posted for probabilities above the interrupt
	// bound.
	voiceActivity struct {
		prob float32
		at   time.Time
	}

	transcriptReceived struct {
		text  string
		final bool
		at    time.Time
		gen   uint64
	}

	recognizerOpened struct {
		session asr.Session
		err     error
		gen     uint64
	}

	recognizerEnded struct {
		err error
		gen uint64
	}

	recognizerRestart struct{ gen uint64 }

	openingReady struct {
		text string
		gen  uint64
	}

	responseReady struct {
		text  string
		gen   uint64
		start time.Time
	}

	speakDone struct {
		err error
		gen uint64
	}

	debounceFired struct{ seq uint64 }

	watchdogFired struct{ gen uint64 }

	// Commands from the public API.
	forceNextRequested struct{}
	resetRequested     struct{}
	externalTranscript struct {
		text  string
		final bool
	}
)

func (speechStarted) isEvent()      {}
func (speechEnded) isEvent()        {}
func (voiceActivity) isEvent()      {}
func (transcriptReceived) isEvent() {}
func (recognizerOpened) isEvent()   {}
func (recognizerEnded) isEvent()    {}
func (recognizerRestart) isEvent()  {}
func (openingReady) isEvent()       {}
func (responseReady) isEvent()      {}
func (speakDone) isEvent()          {}
func (debounceFired) isEvent()      {}
func (watchdogFired) isEvent()      {}
func (forceNextRequested) isEvent() {}
func (resetRequested) isEvent()     {}
func (externalTranscript) isEvent() {}
