package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	openAITTSEndpoint       = "https://api.openai.com/v1/audio/speech"
	openAIDefaultModel      = "tts-1"
	openAIDefaultVoice      = "nova"
	openAIDefaultSampleRate = 24000
)

var openAIVoices = []string{
	"alloy",   // Neutral and balanced
	"echo",    // More expressive
	"fable",   // British accent
	"onyx",    // Deep and authoritative
	"nova",    // Energetic and lively
	"shimmer", // Soft and gentle
}

// OpenAIConfig configures OpenAIProvider. Empty fields use defaults and the
// OPENAI_API_KEY environment variable.
type OpenAIConfig struct {
	APIKey   string
	Model    string // "tts-1" or "tts-1-hd"
	Voice    string
	Endpoint string
	Timeout  time.Duration
}

// OpenAIProvider synthesizes raw 24 kHz PCM with the OpenAI speech endpoint.
type OpenAIProvider struct {
	apiKey     string
	model      string
	voice      string
	endpoint   string
	httpClient *http.Client
}

var _ Provider = (*OpenAIProvider)(nil)

type openAISpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"` // 0.25 to 4.0
}

// NewOpenAIProvider creates a new OpenAI TTS provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = openAIDefaultVoice
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = openAITTSEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		voice:      cfg.Voice,
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Synthesize converts text to speech using the OpenAI TTS API
func (p *OpenAIProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if err := p.ValidateConfig(); err != nil {
		return nil, err
	}

	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}
	speed := req.Speed
	if speed < 0.25 || speed > 4.0 {
		speed = 0
	}

	payload, err := json.Marshal(openAISpeechRequest{
		Model:          p.model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: "pcm",
		Speed:          speed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(audioData) == 0 {
		return nil, fmt.Errorf("empty audio response")
	}

	return &SynthesizeResponse{
		AudioData: audioData,
		AudioFormat: AudioFormat{
			SampleRate: openAIDefaultSampleRate,
			Channels:   1,
			Encoding:   "pcm_s16le",
		},
	}, nil
}

func (p *OpenAIProvider) GetSupportedVoices() []string {
	return openAIVoices
}

func (p *OpenAIProvider) GetDefaultVoice() string {
	return p.voice
}

// ValidateConfig validates the provider configuration
func (p *OpenAIProvider) ValidateConfig() error {
	if p.apiKey == "" {
		return fmt.Errorf("OpenAI API key is not set. Please set OPENAI_API_KEY environment variable")
	}
	return nil
}
