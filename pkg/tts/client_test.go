package tts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name      string
	calls     atomic.Int32
	lastReq   atomic.Pointer[SynthesizeRequest]
	SynthFunc func(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error)
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	p.calls.Add(1)
	p.lastReq.Store(req)
	if p.SynthFunc != nil {
		return p.SynthFunc(ctx, req)
	}
	return &SynthesizeResponse{
		AudioData:   []byte(req.Text),
		AudioFormat: AudioFormat{SampleRate: 24000, Channels: 1, Encoding: "pcm_s16le"},
	}, nil
}

func (p *fakeProvider) GetSupportedVoices() []string { return []string{"nova"} }
func (p *fakeProvider) GetDefaultVoice() string      { return "nova" }
func (p *fakeProvider) ValidateConfig() error        { return nil }

type fakePlayer struct {
	mu       sync.Mutex
	played   []string
	PlayFunc func(ctx context.Context, pcm []byte) error
}

func (p *fakePlayer) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if p.PlayFunc != nil {
		if err := p.PlayFunc(ctx, pcm); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.played = append(p.played, string(pcm))
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

// blockUntilDone waits for cancellation and signals when playback began.
func blockUntilDone(started chan<- struct{}) func(ctx context.Context, pcm []byte) error {
	var once sync.Once
	return func(ctx context.Context, pcm []byte) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}
}

const reply = "Thanks for sharing that. What would you change next quarter?"

func TestSpeakPlaysSentencesInOrder(t *testing.T) {
	var speakingDuringPlay atomic.Bool
	player := &fakePlayer{}
	client := NewClient(player, &fakeProvider{name: "primary"})
	player.PlayFunc = func(ctx context.Context, pcm []byte) error {
		speakingDuringPlay.Store(client.IsSpeaking())
		return nil
	}

	require.NoError(t, client.Speak(context.Background(), reply, SpeakOptions{}))
	assert.Equal(t, []string{"Thanks for sharing that.", "What would you change next quarter?"}, player.Played())
	assert.True(t, speakingDuringPlay.Load())
	assert.False(t, client.IsSpeaking())
}

func TestSpeakUsesDefaults(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	client := NewClient(&fakePlayer{}, primary)

	require.NoError(t, client.Speak(context.Background(), "Hello and welcome.", SpeakOptions{}))
	req := primary.lastReq.Load()
	assert.Equal(t, "nova", req.Voice)
	assert.InDelta(t, 0.95, req.Speed, 1e-9)

	require.NoError(t, client.Speak(context.Background(), "Hello and welcome.", SpeakOptions{Voice: "onyx", Speed: 1.2}))
	req = primary.lastReq.Load()
	assert.Equal(t, "onyx", req.Voice)
	assert.InDelta(t, 1.2, req.Speed, 1e-9)
}

func TestSpeakFallsBack(t *testing.T) {
	primary := &fakeProvider{name: "primary", SynthFunc: func(context.Context, *SynthesizeRequest) (*SynthesizeResponse, error) {
		return nil, errors.New("quota exceeded")
	}}
	fallback := &fakeProvider{name: "fallback"}
	player := &fakePlayer{}
	client := NewClient(player, primary, fallback)

	require.NoError(t, client.Speak(context.Background(), reply, SpeakOptions{}))
	assert.Len(t, player.Played(), 2)
	assert.EqualValues(t, 2, primary.calls.Load())
	assert.EqualValues(t, 2, fallback.calls.Load())
}

func TestSpeakGenerationError(t *testing.T) {
	fail := func(context.Context, *SynthesizeRequest) (*SynthesizeResponse, error) {
		return nil, errors.New("down")
	}
	empty := func(context.Context, *SynthesizeRequest) (*SynthesizeResponse, error) {
		return &SynthesizeResponse{}, nil
	}
	player := &fakePlayer{}
	client := NewClient(player, &fakeProvider{name: "a", SynthFunc: fail}, &fakeProvider{name: "b", SynthFunc: empty})

	err := client.Speak(context.Background(), reply, SpeakOptions{})
	var gen *GenerationError
	require.ErrorAs(t, err, &gen)
	require.Len(t, gen.Attempts, 2)
	assert.Equal(t, "a", gen.Attempts[0].Provider)
	assert.Equal(t, "b", gen.Attempts[1].Provider)
	assert.Empty(t, player.Played())
	assert.False(t, client.IsSpeaking())
}

func TestSpeakNoProviders(t *testing.T) {
	client := NewClientWithConfig(ClientConfig{}, &fakePlayer{})
	var gen *GenerationError
	assert.ErrorAs(t, client.Speak(context.Background(), "hello there friend", SpeakOptions{}), &gen)
}

func TestSpeakPlaybackErrorNotRetried(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	fallback := &fakeProvider{name: "fallback"}
	player := &fakePlayer{PlayFunc: func(context.Context, []byte) error {
		return errors.New("device unplugged")
	}}
	client := NewClient(player, primary, fallback)

	err := client.Speak(context.Background(), "Hello and welcome to the session.", SpeakOptions{})
	var pe *PlaybackError
	require.ErrorAs(t, err, &pe)
	assert.EqualValues(t, 1, primary.calls.Load())
	assert.Zero(t, fallback.calls.Load())
}

func TestSpeakEmptyText(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	client := NewClient(&fakePlayer{}, primary)
	assert.NoError(t, client.Speak(context.Background(), "  ", SpeakOptions{}))
	assert.Zero(t, primary.calls.Load())
}

func TestStopInterruptsPlayback(t *testing.T) {
	started := make(chan struct{})
	player := &fakePlayer{PlayFunc: blockUntilDone(started)}
	client := NewClient(player, &fakeProvider{name: "primary"})

	errc := make(chan error, 1)
	go func() { errc <- client.Speak(context.Background(), reply, SpeakOptions{}) }()

	<-started
	assert.True(t, client.IsSpeaking())
	client.Stop()
	assert.False(t, client.IsSpeaking())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatal("Speak did not return after Stop")
	}
	assert.Empty(t, player.Played())
}

func TestStopDuringSynthesis(t *testing.T) {
	started := make(chan struct{})
	primary := &fakeProvider{name: "primary", SynthFunc: func(ctx context.Context, _ *SynthesizeRequest) (*SynthesizeResponse, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	fallback := &fakeProvider{name: "fallback"}
	client := NewClient(&fakePlayer{}, primary, fallback)

	errc := make(chan error, 1)
	go func() { errc <- client.Speak(context.Background(), "One sentence only here.", SpeakOptions{}) }()
	<-started
	client.ForceStop()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatal("Speak did not return after ForceStop")
	}
	assert.Zero(t, fallback.calls.Load(), "cancellation is not a provider failure")
}

func TestSpeakCancelsPrevious(t *testing.T) {
	started := make(chan struct{})
	player := &fakePlayer{}
	var first atomic.Bool
	first.Store(true)
	block := blockUntilDone(started)
	player.PlayFunc = func(ctx context.Context, pcm []byte) error {
		if first.Load() {
			return block(ctx, pcm)
		}
		return nil
	}
	client := NewClient(player, &fakeProvider{name: "primary"})

	errc := make(chan error, 1)
	go func() { errc <- client.Speak(context.Background(), "The first reply goes here.", SpeakOptions{}) }()
	<-started
	first.Store(false)

	require.NoError(t, client.Speak(context.Background(), "The second reply goes here.", SpeakOptions{}))
	assert.ErrorIs(t, <-errc, ErrInterrupted)
	assert.Equal(t, []string{"The second reply goes here."}, player.Played())
}

func TestForceStopWhenIdle(t *testing.T) {
	client := NewClient(&fakePlayer{}, &fakeProvider{name: "primary"})
	client.ForceStop()
	client.Stop()
	assert.False(t, client.IsSpeaking())
}

func TestParentContextCancel(t *testing.T) {
	started := make(chan struct{})
	client := NewClient(&fakePlayer{PlayFunc: blockUntilDone(started)}, &fakeProvider{name: "primary"})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- client.Speak(ctx, reply, SpeakOptions{}) }()
	<-started
	cancel()
	assert.ErrorIs(t, <-errc, ErrInterrupted)
}
