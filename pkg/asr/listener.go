package asr

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/realtime-ai/interview-agent/pkg/audio"
)

// Session is a running recognition of a live source.
type Session interface {
	// Results is closed when the session ends.
	Results() <-chan *RecognitionResult
	// Err is valid once Results is closed.
	Err() error
	Close() error
}

// Listener opens recognition sessions on a live audio source.
type Listener struct {
	provider Provider
	cfg      RecognitionConfig
}

func NewListener(p Provider, cfg RecognitionConfig) *Listener {
	return &Listener{provider: p, cfg: cfg}
}

func (l *Listener) Name() string {
	return l.provider.Name()
}

// Listen starts a streaming session and feeds it from src until Close.
func (l *Listener) Listen(ctx context.Context, src audio.Source) (Session, error) {
	if src == nil {
		return nil, &Error{Code: ErrCodeInvalidAudio, Message: "no audio source"}
	}
	audioCfg := AudioConfig{SampleRate: src.SampleRate(), Channels: 1, BitsPerSample: 16}

	ctx, cancel := context.WithCancel(ctx)
	rec, err := l.provider.StreamingRecognize(ctx, audioCfg, l.cfg)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &sourceSession{
		rec:    rec,
		cancel: cancel,
		pcm:    make(chan []byte, 64),
	}
	unsub, err := src.Subscribe(s.onAudio)
	if err != nil {
		cancel()
		rec.Close()
		return nil, &Error{Code: ErrCodeInvalidAudio, Message: "subscribe to source", Err: err}
	}
	s.unsubscribe = unsub

	s.wg.Add(1)
	go s.forward(ctx)
	return s, nil
}

type sourceSession struct {
	rec         StreamingRecognizer
	cancel      context.CancelFunc
	unsubscribe func()
	pcm         chan []byte
	dropped     atomic.Int64
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// onAudio runs on the capture path and never blocks.
func (s *sourceSession) onAudio(pcm []int16) {
	select {
	case s.pcm <- audio.Int16ToBytes(pcm):
	default:
		if s.dropped.Add(1)%50 == 1 {
			log.Printf("[ASR] recognizer falling behind, dropped %d chunks", s.dropped.Load())
		}
	}
}

func (s *sourceSession) forward(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-s.pcm:
			if err := s.rec.SendAudio(ctx, data); err != nil {
				// The recognizer ended; its Err carries the reason.
				return
			}
		}
	}
}

func (s *sourceSession) Results() <-chan *RecognitionResult {
	return s.rec.Results()
}

func (s *sourceSession) Err() error {
	return s.rec.Err()
}

func (s *sourceSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.cancel()
		s.wg.Wait()
		err = s.rec.Close()
	})
	return err
}
