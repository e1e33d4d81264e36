package tts

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	azureDefaultVoice    = "en-US-JennyNeural"
	azureDefaultLanguage = "en-US"
	azureOutputFormat    = "raw-16khz-16bit-mono-pcm"
	azureSampleRate      = 16000
)

var azureVoices = []string{
	"en-US-JennyNeural",
	"en-US-AriaNeural",
	"en-US-GuyNeural",
	"en-US-DavisNeural",
	"en-GB-SoniaNeural",
}

// AzureConfig configures AzureProvider. Key and region fall back to
// AZURE_SPEECH_KEY and AZURE_SPEECH_REGION.
type AzureConfig struct {
	SubscriptionKey string
	Region          string
	Voice           string
	Language        string
	// Endpoint overrides the regional REST endpoint.
	Endpoint string
	Timeout  time.Duration
}

// AzureProvider synthesizes 16 kHz PCM through the Azure Speech REST API.
type AzureProvider struct {
	key        string
	endpoint   string
	voice      string
	language   string
	httpClient *http.Client
}

var _ Provider = (*AzureProvider)(nil)

func NewAzureProvider(cfg AzureConfig) *AzureProvider {
	if cfg.SubscriptionKey == "" {
		cfg.SubscriptionKey = os.Getenv("AZURE_SPEECH_KEY")
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AZURE_SPEECH_REGION")
	}
	if cfg.Voice == "" {
		cfg.Voice = azureDefaultVoice
	}
	if cfg.Language == "" {
		cfg.Language = azureDefaultLanguage
	}
	if cfg.Endpoint == "" && cfg.Region != "" {
		cfg.Endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &AzureProvider{
		key:        cfg.SubscriptionKey,
		endpoint:   cfg.Endpoint,
		voice:      cfg.Voice,
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *AzureProvider) Name() string {
	return "azure"
}

func (p *AzureProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if err := p.ValidateConfig(); err != nil {
		return nil, err
	}

	voice := req.Voice
	if voice == "" || !strings.Contains(voice, "-") {
		// OpenAI voice names are not valid here.
		voice = p.voice
	}
	language := req.Language
	if language == "" {
		language = p.language
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint,
		strings.NewReader(buildSSML(req.Text, voice, language, req.Speed)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", azureOutputFormat)
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	httpReq.Header.Set("User-Agent", "interview-agent")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(audioData) == 0 {
		return nil, fmt.Errorf("empty audio response")
	}

	return &SynthesizeResponse{
		AudioData: audioData,
		AudioFormat: AudioFormat{
			SampleRate: azureSampleRate,
			Channels:   1,
			Encoding:   "pcm_s16le",
		},
	}, nil
}

// buildSSML wraps text in a voice element; speed maps to a prosody rate.
func buildSSML(text, voice, language string, speed float64) string {
	var escaped strings.Builder
	_ = xml.EscapeText(&escaped, []byte(text))

	body := escaped.String()
	if speed > 0 && speed != 1 {
		body = fmt.Sprintf(`<prosody rate="%+d%%">%s</prosody>`, int((speed-1)*100), body)
	}
	return fmt.Sprintf(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s"><voice name="%s">%s</voice></speak>`,
		language, voice, body)
}

func (p *AzureProvider) GetSupportedVoices() []string {
	return azureVoices
}

func (p *AzureProvider) GetDefaultVoice() string {
	return p.voice
}

func (p *AzureProvider) ValidateConfig() error {
	if p.key == "" {
		return fmt.Errorf("Azure speech key is not set. Please set AZURE_SPEECH_KEY environment variable")
	}
	if p.endpoint == "" {
		return fmt.Errorf("Azure speech region is not set. Please set AZURE_SPEECH_REGION environment variable")
	}
	return nil
}
