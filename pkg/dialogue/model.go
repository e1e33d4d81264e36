package dialogue

import "context"

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is a single non-streaming chat completion.
type CompletionRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// LanguageModel produces the interviewer's next utterance.
type LanguageModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name identifies the provider and model for logs and spans.
	Name() string
}
