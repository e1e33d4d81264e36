package asr

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/realtime-ai/interview-agent/pkg/trace"
)

// WhisperConfig configures WhisperProvider. Empty fields fall back to
// OPENAI_API_KEY and OPENAI_BASE_URL.
type WhisperConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// WhisperProvider implements Provider with OpenAI's transcription API. Its
// streaming sessions cut the microphone stream into utterances with a VAD
// and transcribe each one.
type WhisperProvider struct {
	client *openai.Client
	model  string
}

var _ Provider = (*WhisperProvider)(nil)

// NewWhisperProvider creates a new OpenAI Whisper ASR provider.
func NewWhisperProvider(cfg WhisperConfig) (*WhisperProvider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "OpenAI API key is required",
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
		log.Printf("[Whisper STT] Using BaseURL: %s", clientConfig.BaseURL)
	}

	return &WhisperProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}, nil
}

func (w *WhisperProvider) Name() string {
	return "openai-whisper"
}

// Recognize transcribes one complete PCM segment.
func (w *WhisperProvider) Recognize(ctx context.Context, audio io.Reader, audioConfig AudioConfig, config RecognitionConfig) (*RecognitionResult, error) {
	audioData, err := io.ReadAll(audio)
	if err != nil {
		return nil, &Error{
			Code:    ErrCodeInvalidAudio,
			Message: "failed to read audio data",
			Err:     err,
		}
	}
	if len(audioData) == 0 {
		return nil, &Error{
			Code:    ErrCodeInvalidAudio,
			Message: "audio data is empty",
		}
	}

	ctx, span := trace.InstrumentSTTRequest(ctx, w.Name(), len(audioData))
	defer span.End()

	req := openai.AudioRequest{
		Model:    config.Model,
		FilePath: "audio.wav", // Filename hint for API
		Reader:   bytes.NewReader(convertPCMToWAV(audioData, audioConfig)),
		Prompt:   config.Prompt,
		Language: whisperLanguage(config.Language),
	}
	if req.Model == "" {
		req.Model = w.model
	}

	start := time.Now()
	resp, err := w.client.CreateTranscription(ctx, req)
	if err != nil {
		trace.RecordError(span, err)
		return nil, classifyOpenAIError(err)
	}

	return &RecognitionResult{
		Text:       strings.TrimSpace(resp.Text),
		IsFinal:    true,
		Confidence: -1,
		Language:   config.Language,
		Duration:   pcmDuration(len(audioData), audioConfig),
		Timestamp:  start,
	}, nil
}

// StreamingRecognize starts a VAD-segmented session.
func (w *WhisperProvider) StreamingRecognize(ctx context.Context, audioConfig AudioConfig, config RecognitionConfig) (StreamingRecognizer, error) {
	return newSegmentedRecognizer(ctx, w, audioConfig, config)
}

func (w *WhisperProvider) Close() error {
	return nil
}

// whisperLanguage maps "en-US" to the ISO-639-1 code Whisper expects.
func whisperLanguage(lang string) string {
	if lang == "" || lang == "auto" {
		return ""
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}

func classifyOpenAIError(err error) *Error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	code := ErrCodeProviderError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeNetworkError
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = ErrCodePermissionDenied
	case status == http.StatusTooManyRequests:
		code = ErrCodeQuotaExceeded
	case status == 0:
		code = ErrCodeNetworkError
	}
	return &Error{Code: code, Message: "Whisper API request failed", Err: err}
}

func pcmDuration(n int, cfg AudioConfig) time.Duration {
	bps := cfg.bytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// convertPCMToWAV prepends a RIFF header to raw PCM.
func convertPCMToWAV(pcmData []byte, config AudioConfig) []byte {
	channels := config.Channels
	if channels == 0 {
		channels = 1
	}
	bitsPerSample := config.BitsPerSample
	if bitsPerSample == 0 {
		bitsPerSample = 16
	}

	var buf bytes.Buffer
	buf.Grow(44 + len(pcmData))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcmData)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(config.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(config.SampleRate*channels*bitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*bitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcmData)))
	buf.Write(pcmData)

	return buf.Bytes()
}
