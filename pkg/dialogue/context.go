// Package dialogue decides what the interviewer says next.
//
// A Conductor owns the question plan and conversation state for one
// interview. Each participant answer is recorded, classified (does it need a
// follow-up, are we behind schedule) and turned into a single prompt for the
// language model, whose reply is returned for speech. Every failure path
// degrades to a scripted phrase so the interview never stalls on the model.
package dialogue

import "time"

// InterviewContext is the immutable description of an interview.
type InterviewContext struct {
	Title              string   `json:"title" yaml:"title"`
	FocusTopics        []string `json:"focus_topics" yaml:"focus_topics"`
	CustomQuestions    []string `json:"custom_questions" yaml:"custom_questions"`
	GeneratedQuestions []string `json:"generated_questions" yaml:"generated_questions"`
	ParticipantRole    string   `json:"participant_role,omitempty" yaml:"participant_role"`
	Relationship       string   `json:"relationship,omitempty" yaml:"relationship"`
	TimeBudgetMinutes  int      `json:"time_budget_minutes" yaml:"time_budget_minutes"`
}

// Questions returns custom questions followed by generated ones.
func (c InterviewContext) Questions() []string {
	out := make([]string, 0, len(c.CustomQuestions)+len(c.GeneratedQuestions))
	out = append(out, c.CustomQuestions...)
	return append(out, c.GeneratedQuestions...)
}

// Response is one recorded participant answer.
type Response struct {
	Question  string
	Text      string
	Timestamp time.Time
}

// ConversationState is the progress of an interview.
// len(QuestionsAsked)+len(QuestionsRemaining) is constant.
type ConversationState struct {
	QuestionsAsked     []string
	QuestionsRemaining []string
	FollowUpCount      int
	StartTime          time.Time
	Responses          []Response
}

func (s ConversationState) clone() ConversationState {
	s.QuestionsAsked = append([]string(nil), s.QuestionsAsked...)
	s.QuestionsRemaining = append([]string(nil), s.QuestionsRemaining...)
	s.Responses = append([]Response(nil), s.Responses...)
	return s
}

// Summary is reported when the interview ends.
type Summary struct {
	Duration        time.Duration
	DurationMinutes int
	QuestionsAsked  int
	Responses       int
	// Completion is the share of planned questions asked, in percent.
	Completion int
}

// Action is the conductor's decision for a turn.
type Action int

const (
	ActionFollowUp Action = iota
	ActionNextQuestion
	ActionWrapUp
)

func (a Action) String() string {
	switch a {
	case ActionFollowUp:
		return "follow_up"
	case ActionNextQuestion:
		return "next_question"
	case ActionWrapUp:
		return "wrap_up"
	default:
		return "unknown"
	}
}

// RecoveryKind selects a recovery phrase pool.
type RecoveryKind string

const (
	RecoveryUnclear   RecoveryKind = "unclear"
	RecoveryTechnical RecoveryKind = "technical"
	RecoverySilence   RecoveryKind = "silence"
)
