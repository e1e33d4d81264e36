package dialogue

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/realtime-ai/interview-agent/pkg/trace"
)

// OpenAIConfig configures the chat completion adapter.
type OpenAIConfig struct {
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// MaxRetries for transient errors. Negative disables retries.
	MaxRetries int `yaml:"max_retries"`
}

// OpenAIModel completes prompts with the OpenAI chat API.
type OpenAIModel struct {
	client openai.Client
	model  string
}

// NewOpenAIModel creates the adapter. The model defaults to gpt-4o-mini.
func NewOpenAIModel(cfg OpenAIConfig) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries != 0 {
		opts = append(opts, option.WithMaxRetries(max(cfg.MaxRetries, 0)))
	}

	return &OpenAIModel{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

func (m *OpenAIModel) Name() string {
	return "openai/" + m.model
}

func (m *OpenAIModel) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, span := trace.InstrumentLLMRequest(ctx, "openai", m.model)
	defer span.End()

	params := openai.ChatCompletionNewParams{
		Messages: toOpenAIMessages(req.Messages),
		Model:    shared.ChatModel(m.model),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		trace.RecordError(span, err)
		return "", fmt.Errorf("completion error: %w", err)
	}
	if len(completion.Choices) == 0 {
		err := fmt.Errorf("no response from model")
		trace.RecordError(span, err)
		return "", err
	}
	return completion.Choices[0].Message.Content, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

var _ LanguageModel = (*OpenAIModel)(nil)
