package dialogue

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/realtime-ai/interview-agent/pkg/trace"
)

// GeminiConfig configures the Gemini adapter.
type GeminiConfig struct {
	APIKey string `yaml:"-"`
	Model  string `yaml:"model"`
	// BaseURL overrides the API endpoint.
	BaseURL string `yaml:"base_url"`
}

// GeminiModel completes prompts with the Gemini API.
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel creates the adapter. The model defaults to gemini-2.0-flash.
func NewGeminiModel(ctx context.Context, cfg GeminiConfig) (*GeminiModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiModel{client: client, model: cfg.Model}, nil
}

func (m *GeminiModel) Name() string {
	return "gemini/" + m.model
}

func (m *GeminiModel) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, span := trace.InstrumentLLMRequest(ctx, "gemini", m.model)
	defer span.End()

	system, contents := toGeminiContents(req.Messages)
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, config)
	if err != nil {
		trace.RecordError(span, err)
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := collectGeminiText(resp)
	if text == "" {
		err := fmt.Errorf("no response from Gemini")
		trace.RecordError(span, err)
		return "", err
	}
	return text, nil
}

// toGeminiContents folds system messages into one instruction and maps the
// rest onto user/model turns.
func toGeminiContents(msgs []Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func collectGeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.Text != "" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

var _ LanguageModel = (*GeminiModel)(nil)
