package asr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	elevenLabsRealtimeURL   = "wss://api.elevenlabs.io/v1/speech-to-text/realtime"
	elevenLabsDefaultModel  = "scribe_v2_realtime"
	elevenLabsSampleRate    = 16000
	elevenLabsMaxAttempts   = 3
	elevenLabsInitialDelay  = 1 * time.Second
	elevenLabsMaxDelay      = 4 * time.Second
	elevenLabsHandshakeWait = 10 * time.Second
	elevenLabsWriteWait     = 5 * time.Second
)

// ElevenLabsConfig configures the Scribe realtime provider.
type ElevenLabsConfig struct {
	APIKey string
	Model  string
	// Endpoint overrides the realtime WebSocket URL.
	Endpoint string
}

// ElevenLabsProvider implements Provider with ElevenLabs Scribe realtime
// transcription over a WebSocket. Streaming sessions let the service
// commit utterances with its own VAD; batch recognition commits manually.
type ElevenLabsProvider struct {
	cfg ElevenLabsConfig
}

var _ Provider = (*ElevenLabsProvider)(nil)

// NewElevenLabsProvider falls back to ELEVENLABS_API_KEY.
func NewElevenLabsProvider(cfg ElevenLabsConfig) (*ElevenLabsProvider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, &Error{Code: ErrCodeInvalidConfig, Message: "ElevenLabs API key is required"}
	}
	if cfg.Model == "" {
		cfg.Model = elevenLabsDefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = elevenLabsRealtimeURL
	}
	return &ElevenLabsProvider{cfg: cfg}, nil
}

func (p *ElevenLabsProvider) Name() string {
	return "elevenlabs-scribe"
}

func (p *ElevenLabsProvider) Close() error {
	return nil
}

// Recognize streams a complete segment, commits it and waits for the
// committed transcript.
func (p *ElevenLabsProvider) Recognize(ctx context.Context, audio io.Reader, audioConfig AudioConfig, config RecognitionConfig) (*RecognitionResult, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, &Error{Code: ErrCodeInvalidAudio, Message: "failed to read audio data", Err: err}
	}
	if len(data) == 0 {
		return nil, &Error{Code: ErrCodeInvalidAudio, Message: "audio data is empty"}
	}

	r, err := p.open(ctx, audioConfig, config, "manual")
	if err != nil {
		return nil, err
	}
	defer r.Close()

	chunk := audioConfig.bytesPerSecond()
	for len(data) > 0 {
		n := min(chunk, len(data))
		if err := r.SendAudio(ctx, data[:n]); err != nil {
			return nil, err
		}
		data = data[n:]
	}
	if err := r.write(nil, true); err != nil {
		return nil, err
	}

	timeout := time.NewTimer(30 * time.Second)
	defer timeout.Stop()
	for {
		select {
		case res, ok := <-r.Results():
			if !ok {
				if err := r.Err(); err != nil {
					return nil, err
				}
				return nil, &Error{Code: ErrCodeNoSpeech, Message: "no speech detected"}
			}
			if res.IsFinal {
				return res, nil
			}
		case <-timeout.C:
			return nil, &Error{Code: ErrCodeNoSpeech, Message: "no transcript before timeout"}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// StreamingRecognize opens a session committed by the service's VAD.
func (p *ElevenLabsProvider) StreamingRecognize(ctx context.Context, audioConfig AudioConfig, config RecognitionConfig) (StreamingRecognizer, error) {
	r, err := p.open(ctx, audioConfig, config, "vad")
	if err != nil {
		return nil, err
	}
	go func() {
		select {
		case <-ctx.Done():
			r.Close()
		case <-r.done:
		}
	}()
	return r, nil
}

func (p *ElevenLabsProvider) open(ctx context.Context, audioConfig AudioConfig, config RecognitionConfig, commit string) (*elevenLabsRecognizer, error) {
	if audioConfig.SampleRate != elevenLabsSampleRate {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: fmt.Sprintf("ElevenLabs requires 16kHz audio, got %dHz", audioConfig.SampleRate),
		}
	}

	params := url.Values{}
	params.Set("model_id", p.cfg.Model)
	params.Set("commit_strategy", commit)
	params.Set("audio_format", "pcm_16000")
	if lang := whisperLanguage(config.Language); lang != "" {
		params.Set("language_code", lang)
	}
	wsURL := p.cfg.Endpoint + "?" + params.Encode()

	var conn *websocket.Conn
	var lastErr error
	delay := elevenLabsInitialDelay
	for attempt := 1; attempt <= elevenLabsMaxAttempts; attempt++ {
		conn, lastErr = p.dial(ctx, wsURL)
		if lastErr == nil {
			break
		}
		if CodeOf(lastErr) == ErrCodePermissionDenied {
			return nil, lastErr
		}
		log.Printf("[ElevenLabs STT] connect attempt %d/%d failed: %v", attempt, elevenLabsMaxAttempts, lastErr)
		if attempt == elevenLabsMaxAttempts {
			break
		}
		select {
		case <-time.After(delay):
			delay = min(delay*2, elevenLabsMaxDelay)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if lastErr != nil {
		return nil, &Error{Code: ErrCodeNetworkError, Message: fmt.Sprintf("failed to connect after %d attempts", elevenLabsMaxAttempts), Err: lastErr}
	}

	r := &elevenLabsRecognizer{
		conn:       conn,
		config:     config,
		sampleRate: audioConfig.SampleRate,
		results:    make(chan *RecognitionResult, 10),
		done:       make(chan struct{}),
	}
	if config.NoSpeechTimeout > 0 {
		r.timeout = config.NoSpeechTimeout
		r.silence = time.AfterFunc(config.NoSpeechTimeout, func() {
			r.end(&Error{Code: ErrCodeNoSpeech, Message: "no speech detected"})
			r.Close()
		})
	}
	go r.readLoop()
	return r, nil
}

// dial connects and waits for session_started.
func (p *ElevenLabsProvider) dial(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: elevenLabsHandshakeWait}
	header := http.Header{"xi-api-key": []string{p.cfg.APIKey}}

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &Error{Code: ErrCodePermissionDenied, Message: "ElevenLabs rejected the API key", Err: err}
		}
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(elevenLabsHandshakeWait))
	var msg elevenLabsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("waiting for session start: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	if msg.MessageType != "session_started" {
		conn.Close()
		return nil, msg.err()
	}
	return conn, nil
}

type elevenLabsMessage struct {
	MessageType string   `json:"message_type"`
	Text        string   `json:"text,omitempty"`
	Confidence  *float32 `json:"confidence,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func (m elevenLabsMessage) err() *Error {
	code := ErrCodeProviderError
	switch m.MessageType {
	case "auth_error":
		code = ErrCodePermissionDenied
	case "quota_exceeded", "rate_limited", "resource_exhausted":
		code = ErrCodeQuotaExceeded
	case "input_error":
		code = ErrCodeInvalidAudio
	}
	text := m.Error
	if text == "" {
		text = "unexpected " + m.MessageType + " message"
	}
	return &Error{Code: code, Message: text}
}

type elevenLabsAudioChunk struct {
	MessageType string `json:"message_type"`
	AudioBase64 string `json:"audio_base_64"`
	Commit      bool   `json:"commit"`
	SampleRate  int    `json:"sample_rate"`
}

type elevenLabsRecognizer struct {
	conn       *websocket.Conn
	config     RecognitionConfig
	sampleRate int

	timeout time.Duration
	silence *time.Timer

	writeMu sync.Mutex

	mu      sync.Mutex
	results chan *RecognitionResult
	ended   bool
	done    chan struct{}
	err     error

	closeOnce sync.Once
}

func (r *elevenLabsRecognizer) readLoop() {
	for {
		var msg elevenLabsMessage
		if err := r.conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || r.isEnded() {
				r.end(nil)
				return
			}
			r.end(&Error{Code: ErrCodeNetworkError, Message: "connection lost", Err: err})
			return
		}

		switch msg.MessageType {
		case "partial_transcript":
			if msg.Text == "" {
				continue
			}
			r.heard()
			if r.config.EnablePartialResults {
				r.send(&RecognitionResult{Text: msg.Text, Confidence: confidenceOf(msg), Language: r.config.Language, Timestamp: time.Now()})
			}
		case "committed_transcript", "committed_transcript_with_timestamps":
			if msg.Text == "" {
				continue
			}
			r.heard()
			r.send(&RecognitionResult{
				Text:       msg.Text,
				IsFinal:    true,
				Confidence: confidenceOf(msg),
				Language:   r.config.Language,
				Timestamp:  time.Now(),
			})
		default:
			e := msg.err()
			log.Printf("[ElevenLabs STT] %s: %s", msg.MessageType, e.Message)
			r.end(e)
			return
		}
	}
}

func confidenceOf(m elevenLabsMessage) float32 {
	if m.Confidence != nil {
		return *m.Confidence
	}
	return -1
}

func (r *elevenLabsRecognizer) heard() {
	if r.silence != nil {
		r.silence.Reset(r.timeout)
	}
}

func (r *elevenLabsRecognizer) send(res *RecognitionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	select {
	case r.results <- res:
	default:
		log.Printf("[ElevenLabs STT] result dropped, consumer too slow")
	}
}

func (r *elevenLabsRecognizer) isEnded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

func (r *elevenLabsRecognizer) end(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	r.ended = true
	r.err = err
	close(r.results)
	close(r.done)
	if r.silence != nil {
		r.silence.Stop()
	}
}

func (r *elevenLabsRecognizer) write(pcm []byte, commit bool) error {
	if r.isEnded() {
		return &Error{Code: ErrCodeProviderError, Message: "recognizer is closed"}
	}
	chunk := elevenLabsAudioChunk{
		MessageType: "input_audio_chunk",
		AudioBase64: base64.StdEncoding.EncodeToString(pcm),
		Commit:      commit,
		SampleRate:  r.sampleRate,
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		return &Error{Code: ErrCodeInvalidAudio, Message: "encode audio chunk", Err: err}
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.conn.SetWriteDeadline(time.Now().Add(elevenLabsWriteWait))
	if err := r.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &Error{Code: ErrCodeNetworkError, Message: "failed to send audio", Err: err}
	}
	return nil
}

func (r *elevenLabsRecognizer) SendAudio(ctx context.Context, audioData []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.write(audioData, false)
}

func (r *elevenLabsRecognizer) Results() <-chan *RecognitionResult {
	return r.results
}

func (r *elevenLabsRecognizer) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *elevenLabsRecognizer) Close() error {
	r.end(nil)
	r.closeOnce.Do(func() {
		r.writeMu.Lock()
		r.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		r.writeMu.Unlock()
		r.conn.Close()
	})
	return nil
}
