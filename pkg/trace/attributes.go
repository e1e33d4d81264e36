package trace

import "go.opentelemetry.io/otel/attribute"

const (
	AttrSessionID = "session.id"

	AttrAgentState      = "agent.state"
	AttrInterruptSource = "agent.interrupt_source"
	AttrTurnID          = "agent.turn_id"

	AttrInterviewTitle     = "interview.title"
	AttrInterviewQuestions = "interview.questions"
	AttrInterviewAction    = "interview.action"

	AttrRoomKind = "room.kind"
	AttrRoomURL  = "room.url"

	AttrLLMProvider = "llm.provider"
	AttrLLMModel    = "llm.model"

	AttrSTTProvider = "stt.provider"
	AttrTTSProvider = "tts.provider"
	AttrTTSVoice    = "tts.voice"

	AttrErrorType = "error.type"
)

// SessionAttrs tags a span with the interview session.
func SessionAttrs(sessionID string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(AttrSessionID, sessionID)}
}

// LLMAttrs tags a language model call.
func LLMAttrs(provider, model string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrLLMProvider, provider),
		attribute.String(AttrLLMModel, model),
	}
}

// InterviewAttrs describes the interview being conducted.
func InterviewAttrs(title string, questions int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrInterviewTitle, title),
		attribute.Int(AttrInterviewQuestions, questions),
	}
}
