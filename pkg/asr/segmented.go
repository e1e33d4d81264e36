package asr

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/realtime-ai/interview-agent/pkg/audio"
	"github.com/realtime-ai/interview-agent/pkg/vad"
)

const (
	segmentPrerollMs  = 400
	maxSegmentSeconds = 30
	minSegment        = 100 * time.Millisecond
)

type batchRecognizer interface {
	Recognize(ctx context.Context, audio io.Reader, audioConfig AudioConfig, config RecognitionConfig) (*RecognitionResult, error)
}

// segmentedRecognizer turns a batch recognizer into a streaming one. Audio
// runs through a VAD; each detected utterance, with a short pre-roll, is
// transcribed as a unit once the speaker pauses.
type segmentedRecognizer struct {
	batch    batchRecognizer
	audioCfg AudioConfig
	cfg      RecognitionConfig

	ctx     context.Context
	cancel  context.CancelFunc
	audioCh chan []byte
	results chan *RecognitionResult
	closed  atomic.Bool

	errMu sync.Mutex
	err   error

	// owned by run
	source     *audio.Broadcaster
	engine     *vad.Engine
	preroll    *audio.RingBuffer
	segment    []int16
	inSpeech   bool
	flush      bool
	sinceHeard time.Duration
}

func newSegmentedRecognizer(ctx context.Context, batch batchRecognizer, audioCfg AudioConfig, cfg RecognitionConfig) (*segmentedRecognizer, error) {
	if audioCfg.SampleRate <= 0 {
		return nil, &Error{Code: ErrCodeInvalidConfig, Message: "sample rate is required"}
	}
	if audioCfg.Channels == 0 {
		audioCfg.Channels = 1
	}
	if audioCfg.BitsPerSample == 0 {
		audioCfg.BitsPerSample = 16
	}
	if audioCfg.Channels != 1 || audioCfg.BitsPerSample != 16 {
		return nil, &Error{Code: ErrCodeInvalidConfig, Message: "only mono 16-bit PCM is supported"}
	}

	r := &segmentedRecognizer{
		batch:    batch,
		audioCfg: audioCfg,
		cfg:      cfg,
		audioCh:  make(chan []byte, 100),
		results:  make(chan *RecognitionResult, 10),
		source:   audio.NewBroadcaster(audioCfg.SampleRate),
		preroll:  audio.NewRingBuffer(audioCfg.SampleRate, segmentPrerollMs),
	}
	r.ctx, r.cancel = context.WithCancel(ctx)

	// The collector subscribes before the VAD so the pre-roll already holds
	// the chunk that triggers speech start.
	if _, err := r.source.Subscribe(r.collect); err != nil {
		r.cancel()
		return nil, &Error{Code: ErrCodeInvalidAudio, Message: "subscribe collector", Err: err}
	}
	r.engine = vad.NewEngine(vad.DefaultConfig(), vad.Callbacks{
		OnSpeechStart: r.onSpeechStart,
		OnSpeechEnd:   func() { r.flush = true },
	})
	if err := r.engine.Initialize(r.source); err != nil {
		r.cancel()
		return nil, &Error{Code: ErrCodeInvalidAudio, Message: "initialize segmenter", Err: err}
	}
	r.engine.Start()

	go r.run()
	return r, nil
}

func (r *segmentedRecognizer) SendAudio(ctx context.Context, audioData []byte) error {
	if r.closed.Load() {
		return &Error{Code: ErrCodeProviderError, Message: "recognizer is closed"}
	}
	select {
	case r.audioCh <- audioData:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ctx.Done():
		return &Error{Code: ErrCodeProviderError, Message: "recognizer stopped", Err: r.ctx.Err()}
	}
}

func (r *segmentedRecognizer) Results() <-chan *RecognitionResult {
	return r.results
}

func (r *segmentedRecognizer) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

func (r *segmentedRecognizer) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		r.cancel()
	}
	return nil
}

func (r *segmentedRecognizer) run() {
	var err error
	defer func() {
		r.engine.Destroy()
		r.source.Close()
		r.errMu.Lock()
		r.err = err
		r.errMu.Unlock()
		r.cancel()
		close(r.results)
	}()

	for {
		select {
		case <-r.ctx.Done():
			return
		case data := <-r.audioCh:
			if err = r.process(data); err != nil {
				log.Printf("[Whisper STT] session ended: %v", err)
				return
			}
		}
	}
}

func (r *segmentedRecognizer) process(data []byte) error {
	samples := audio.BytesToInt16(data)
	if len(samples) == 0 {
		return nil
	}
	chunk := audio.DurationOf(len(samples), r.audioCfg.SampleRate)

	r.source.Publish(samples)

	if r.inSpeech {
		r.sinceHeard = 0
	} else {
		r.sinceHeard += chunk
	}

	maxLen := r.audioCfg.SampleRate * maxSegmentSeconds
	if r.flush || len(r.segment) >= maxLen {
		if err := r.transcribe(); err != nil {
			return err
		}
	}

	if r.cfg.NoSpeechTimeout > 0 && r.sinceHeard >= r.cfg.NoSpeechTimeout {
		return &Error{Code: ErrCodeNoSpeech, Message: "no speech detected"}
	}
	return nil
}

func (r *segmentedRecognizer) collect(pcm []int16) {
	r.preroll.Write(pcm)
	if r.inSpeech {
		r.segment = append(r.segment, pcm...)
	}
}

func (r *segmentedRecognizer) onSpeechStart() {
	r.inSpeech = true
	r.segment = append(r.segment[:0], r.preroll.Snapshot()...)
	if r.cfg.EnablePartialResults {
		select {
		case r.results <- &RecognitionResult{Confidence: -1, Language: r.cfg.Language, Timestamp: time.Now()}:
		default:
		}
	}
}

// transcribe sends the collected utterance and emits a final result.
func (r *segmentedRecognizer) transcribe() error {
	segment := r.segment
	if r.flush {
		r.inSpeech = false
		r.flush = false
		r.preroll.Clear()
	}
	r.segment = nil

	if audio.DurationOf(len(segment), r.audioCfg.SampleRate) < minSegment {
		return nil
	}

	result, err := r.batch.Recognize(r.ctx, bytes.NewReader(audio.Int16ToBytes(segment)), r.audioCfg, r.cfg)
	if err != nil {
		if r.ctx.Err() != nil {
			return nil
		}
		var asrErr *Error
		if errors.As(err, &asrErr) {
			return asrErr
		}
		return &Error{Code: ErrCodeProviderError, Message: "transcription failed", Err: err}
	}
	if result == nil || result.Text == "" {
		return nil
	}
	result.IsFinal = true

	select {
	case r.results <- result:
	case <-r.ctx.Done():
	}
	return nil
}
