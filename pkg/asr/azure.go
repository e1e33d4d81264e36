package asr

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	sdkaudio "github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
)

// AzureConfig configures AzureProvider. Key and region fall back to
// AZURE_SPEECH_KEY and AZURE_SPEECH_REGION.
type AzureConfig struct {
	SubscriptionKey string
	Region          string
	Language        string
	// SegmentationSilence is the pause that ends a phrase.
	SegmentationSilence time.Duration
}

// AzureProvider implements Provider with the Azure Speech SDK. Streaming
// sessions use continuous recognition with interim hypotheses.
type AzureProvider struct {
	cfg AzureConfig
}

var _ Provider = (*AzureProvider)(nil)

func NewAzureProvider(cfg AzureConfig) (*AzureProvider, error) {
	if cfg.SubscriptionKey == "" {
		cfg.SubscriptionKey = os.Getenv("AZURE_SPEECH_KEY")
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AZURE_SPEECH_REGION")
	}
	if cfg.SubscriptionKey == "" || cfg.Region == "" {
		return nil, &Error{Code: ErrCodeInvalidConfig, Message: "Azure Speech credentials not set"}
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.SegmentationSilence <= 0 {
		cfg.SegmentationSilence = 800 * time.Millisecond
	}
	return &AzureProvider{cfg: cfg}, nil
}

func (p *AzureProvider) Name() string {
	return "azure-speech"
}

func (p *AzureProvider) Close() error {
	return nil
}

// azureSession bundles the SDK handles of one recognizer.
type azureSession struct {
	recognizer  *speech.SpeechRecognizer
	stream      *sdkaudio.PushAudioInputStream
	audioConfig *sdkaudio.AudioConfig
}

func (s *azureSession) close() {
	if s.recognizer != nil {
		s.recognizer.Close()
	}
	if s.stream != nil {
		s.stream.Close()
	}
	if s.audioConfig != nil {
		s.audioConfig.Close()
	}
}

func (p *AzureProvider) open(audioCfg AudioConfig, language string) (*azureSession, error) {
	if audioCfg.SampleRate <= 0 {
		audioCfg = DefaultAudioConfig()
	}
	if audioCfg.Channels == 0 {
		audioCfg.Channels = 1
	}
	if audioCfg.BitsPerSample == 0 {
		audioCfg.BitsPerSample = 16
	}
	if language == "" {
		language = p.cfg.Language
	}

	format, err := sdkaudio.GetWaveFormatPCM(uint32(audioCfg.SampleRate), uint8(audioCfg.BitsPerSample), uint8(audioCfg.Channels))
	if err != nil {
		return nil, &Error{Code: ErrCodeInvalidConfig, Message: "failed to create audio format", Err: err}
	}
	defer format.Close()

	s := &azureSession{}
	s.stream, err = sdkaudio.CreatePushAudioInputStreamFromFormat(format)
	if err != nil {
		return nil, &Error{Code: ErrCodeProviderError, Message: "failed to create push stream", Err: err}
	}
	s.audioConfig, err = sdkaudio.NewAudioConfigFromStreamInput(s.stream)
	if err != nil {
		s.close()
		return nil, &Error{Code: ErrCodeProviderError, Message: "failed to create audio config", Err: err}
	}

	speechConfig, err := speech.NewSpeechConfigFromSubscription(p.cfg.SubscriptionKey, p.cfg.Region)
	if err != nil {
		s.close()
		return nil, &Error{Code: ErrCodeInvalidConfig, Message: "failed to create speech config", Err: err}
	}
	defer speechConfig.Close()
	speechConfig.SetSpeechRecognitionLanguage(language)
	speechConfig.SetProperty(common.SegmentationSilenceTimeoutMs, strconv.Itoa(int(p.cfg.SegmentationSilence/time.Millisecond)))

	s.recognizer, err = speech.NewSpeechRecognizerFromConfig(speechConfig, s.audioConfig)
	if err != nil {
		s.close()
		return nil, &Error{Code: ErrCodeProviderError, Message: "failed to create recognizer", Err: err}
	}
	return s, nil
}

// Recognize runs single-shot recognition over a complete segment.
func (p *AzureProvider) Recognize(ctx context.Context, audio io.Reader, audioConfig AudioConfig, config RecognitionConfig) (*RecognitionResult, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, &Error{Code: ErrCodeInvalidAudio, Message: "failed to read audio data", Err: err}
	}
	if len(data) == 0 {
		return nil, &Error{Code: ErrCodeInvalidAudio, Message: "audio data is empty"}
	}

	s, err := p.open(audioConfig, config.Language)
	if err != nil {
		return nil, err
	}
	defer s.close()

	if err := s.stream.Write(data); err != nil {
		return nil, &Error{Code: ErrCodeProviderError, Message: "failed to write audio data", Err: err}
	}
	s.stream.CloseStream()

	select {
	case outcome := <-s.recognizer.RecognizeOnceAsync():
		defer outcome.Close()
		if outcome.Error != nil {
			return nil, &Error{Code: ErrCodeProviderError, Message: "recognition failed", Err: outcome.Error}
		}
		switch outcome.Result.Reason {
		case common.RecognizedSpeech:
			return &RecognitionResult{
				Text:       outcome.Result.Text,
				IsFinal:    true,
				Confidence: -1,
				Language:   config.Language,
				Duration:   outcome.Result.Duration,
				Timestamp:  time.Now(),
			}, nil
		case common.NoMatch:
			return nil, &Error{Code: ErrCodeNoSpeech, Message: "no speech recognized"}
		default:
			return nil, &Error{Code: ErrCodeProviderError, Message: fmt.Sprintf("recognition ended with reason %v", outcome.Result.Reason)}
		}
	case <-ctx.Done():
		return nil, &Error{Code: ErrCodeNetworkError, Message: "recognition cancelled", Err: ctx.Err()}
	}
}

// StreamingRecognize starts continuous recognition.
func (p *AzureProvider) StreamingRecognize(ctx context.Context, audioConfig AudioConfig, config RecognitionConfig) (StreamingRecognizer, error) {
	s, err := p.open(audioConfig, config.Language)
	if err != nil {
		return nil, err
	}

	r := &azureRecognizer{
		session: s,
		config:  config,
		results: make(chan *RecognitionResult, 10),
		done:    make(chan struct{}),
	}

	if config.NoSpeechTimeout > 0 {
		r.timeout = config.NoSpeechTimeout
		// Armed before the handlers can fire.
		r.silence = time.AfterFunc(config.NoSpeechTimeout, func() {
			r.end(&Error{Code: ErrCodeNoSpeech, Message: "no speech detected"})
		})
	}

	s.recognizer.SessionStopped(func(evt speech.SessionEventArgs) {
		defer evt.Close()
		log.Printf("[Azure STT] session stopped")
		r.end(nil)
	})
	s.recognizer.Recognizing(func(evt speech.SpeechRecognitionEventArgs) {
		defer evt.Close()
		if evt.Result.Reason != common.RecognizingSpeech {
			return
		}
		r.heard()
		if r.config.EnablePartialResults {
			r.send(&RecognitionResult{Text: evt.Result.Text, Confidence: -1, Language: r.config.Language, Timestamp: time.Now()})
		}
	})
	s.recognizer.Recognized(func(evt speech.SpeechRecognitionEventArgs) {
		defer evt.Close()
		if evt.Result.Reason != common.RecognizedSpeech || evt.Result.Text == "" {
			return
		}
		r.heard()
		r.send(&RecognitionResult{
			Text:       evt.Result.Text,
			IsFinal:    true,
			Confidence: -1,
			Language:   r.config.Language,
			Duration:   evt.Result.Duration,
			Timestamp:  time.Now(),
		})
	})
	s.recognizer.Canceled(func(evt speech.SpeechRecognitionCanceledEventArgs) {
		defer evt.Close()
		if evt.Reason != common.Error {
			r.end(nil)
			return
		}
		log.Printf("[Azure STT] canceled: code=%v details=%s", evt.ErrorCode, evt.ErrorDetails)
		r.end(&Error{Code: classifyAzureCancellation(evt.ErrorCode), Message: evt.ErrorDetails})
	})

	if err := <-s.recognizer.StartContinuousRecognitionAsync(); err != nil {
		r.end(nil)
		s.close()
		return nil, &Error{Code: ErrCodeProviderError, Message: "failed to start continuous recognition", Err: err}
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

func classifyAzureCancellation(code common.CancellationErrorCode) ErrorCode {
	switch code {
	case common.AuthenticationFailure, common.Forbidden:
		return ErrCodePermissionDenied
	case common.TooManyRequests:
		return ErrCodeQuotaExceeded
	case common.ConnectionFailure, common.ServiceTimeout, common.ServiceUnavailable:
		return ErrCodeNetworkError
	default:
		return ErrCodeProviderError
	}
}

type azureRecognizer struct {
	session *azureSession
	config  RecognitionConfig

	timeout time.Duration
	silence *time.Timer

	mu      sync.Mutex
	results chan *RecognitionResult
	ended   bool
	done    chan struct{}
	err     error

	closeOnce sync.Once
}

func (r *azureRecognizer) heard() {
	if r.silence != nil {
		r.silence.Reset(r.timeout)
	}
}

// send never blocks an SDK callback thread.
func (r *azureRecognizer) send(res *RecognitionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	select {
	case r.results <- res:
	default:
		log.Printf("[Azure STT] result dropped, consumer too slow")
	}
}

func (r *azureRecognizer) end(err error) {
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

func (r *azureRecognizer) SendAudio(ctx context.Context, audioData []byte) error {
	r.mu.Lock()
	ended := r.ended
	r.mu.Unlock()
	if ended {
		return &Error{Code: ErrCodeProviderError, Message: "recognizer is closed"}
	}
	if err := r.session.stream.Write(audioData); err != nil {
		return &Error{Code: ErrCodeProviderError, Message: "failed to write audio data", Err: err}
	}
	return nil
}

func (r *azureRecognizer) Results() <-chan *RecognitionResult {
	return r.results
}

func (r *azureRecognizer) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *azureRecognizer) Close() error {
	r.end(nil)
	r.closeOnce.Do(func() {
		select {
		case err := <-r.session.recognizer.StopContinuousRecognitionAsync():
			if err != nil {
				log.Printf("[Azure STT] failed to stop recognition: %v", err)
			}
		case <-time.After(2 * time.Second):
			log.Printf("[Azure STT] stop timed out")
		}
		r.session.close()
	})
	return nil
}
