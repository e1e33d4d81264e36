package bus

import "time"

// EventType names a notification.
type EventType string

const (
	EventStateChanged      EventType = "state_changed"
	EventSpeechStarted     EventType = "speech_started"
	EventSpeechEnded       EventType = "speech_ended"
	EventTranscript        EventType = "transcript"
	EventAgentMessage      EventType = "agent_message"
	EventInterrupted       EventType = "interrupted"
	EventInterviewComplete EventType = "interview_complete"
	EventError             EventType = "error"
)

// StatePayload accompanies EventStateChanged.
type StatePayload struct {
	From string
	To   string
}

// TranscriptPayload accompanies EventTranscript.
type TranscriptPayload struct {
	Text  string
	Final bool
}

// MessagePayload accompanies EventAgentMessage.
type MessagePayload struct {
	Text string
}

// InterruptPayload accompanies EventInterrupted.
type InterruptPayload struct {
	// Source is "vad", "voice_activity" or "transcript".
	Source  string
	Latency time.Duration
}

// CompletePayload accompanies EventInterviewComplete.
type CompletePayload struct {
	Duration       time.Duration
	QuestionsAsked int
	Responses      int
	Completion     int
}

// ErrorPayload accompanies EventError. Fatal errors end the session.
type ErrorPayload struct {
	Err   error
	Fatal bool
}
