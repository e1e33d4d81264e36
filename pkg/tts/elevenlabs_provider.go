package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

const (
	elevenLabsEndpoint     = "https://api.elevenlabs.io/v1/text-to-speech"
	elevenLabsDefaultModel = "eleven_multilingual_v2"
	elevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM" // Rachel
	elevenLabsOutputFormat = "pcm_16000"
	elevenLabsSampleRate   = 16000
	elevenLabsLatency      = 3
)

var elevenLabsVoices = []string{
	"21m00Tcm4TlvDq8ikWAM", // Rachel
	"EXAVITQu4vr4xnSDxMaL", // Bella
	"ErXwobaYiN019PkySvjV", // Antoni
	"MF3mGyEYCl7XYWbV9V6O", // Elli
	"TxGEqnHWrfWFTfGW9XjX", // Josh
	"pNInz6obpgDQGcFmaJgB", // Adam
}

// ElevenLabsConfig configures ElevenLabsProvider. The key falls back to
// ELEVENLABS_API_KEY.
type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	Model   string
	// Stability and SimilarityBoost are voice settings in 0-1.
	Stability       float64
	SimilarityBoost float64
	Endpoint        string
	Timeout         time.Duration
}

// ElevenLabsProvider synthesizes 16 kHz PCM with the ElevenLabs streaming
// endpoint. The stream is read to completion; Client paces playback.
type ElevenLabsProvider struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
}

var _ Provider = (*ElevenLabsProvider)(nil)

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id,omitempty"`
	LanguageCode  string                  `json:"language_code,omitempty"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

func NewElevenLabsProvider(cfg ElevenLabsConfig) *ElevenLabsProvider {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = elevenLabsDefaultVoice
	}
	if cfg.Model == "" {
		cfg.Model = elevenLabsDefaultModel
	}
	if cfg.Stability <= 0 {
		cfg.Stability = 0.5
	}
	if cfg.SimilarityBoost <= 0 {
		cfg.SimilarityBoost = 0.75
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = elevenLabsEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ElevenLabsProvider{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

func (p *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

// Synthesize ignores voices that are not ElevenLabs voice ids, so a
// fallback chain can share one SpeakOptions.Voice.
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if err := p.ValidateConfig(); err != nil {
		return nil, err
	}

	voice := p.cfg.VoiceID
	if isElevenLabsVoiceID(req.Voice) {
		voice = req.Voice
	}
	speed := req.Speed
	if speed != 0 {
		// The service accepts 0.7 to 1.2.
		speed = min(max(speed, 0.7), 1.2)
	}

	payload, err := json.Marshal(elevenLabsRequest{
		Text:    req.Text,
		ModelID: p.cfg.Model,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       p.cfg.Stability,
			SimilarityBoost: p.cfg.SimilarityBoost,
			Speed:           speed,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	params := url.Values{}
	params.Set("output_format", elevenLabsOutputFormat)
	params.Set("optimize_streaming_latency", strconv.Itoa(elevenLabsLatency))
	endpoint := fmt.Sprintf("%s/%s/stream?%s", p.cfg.Endpoint, url.PathEscape(voice), params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

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
			SampleRate: elevenLabsSampleRate,
			Channels:   1,
			Encoding:   "pcm_s16le",
		},
	}, nil
}

// isElevenLabsVoiceID reports whether v looks like a 20-character voice id.
func isElevenLabsVoiceID(v string) bool {
	if len(v) != 20 {
		return false
	}
	for _, r := range v {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') {
			return false
		}
	}
	return true
}

func (p *ElevenLabsProvider) GetSupportedVoices() []string {
	return elevenLabsVoices
}

func (p *ElevenLabsProvider) GetDefaultVoice() string {
	return p.cfg.VoiceID
}

func (p *ElevenLabsProvider) ValidateConfig() error {
	if p.cfg.APIKey == "" {
		return fmt.Errorf("ElevenLabs API key is not set. Please set ELEVENLABS_API_KEY environment variable")
	}
	return nil
}
