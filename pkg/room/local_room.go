package room

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/realtime-ai/interview-agent/pkg/audio"
)

// LocalConfig selects the device formats of a LocalRoom.
type LocalConfig struct {
	CaptureSampleRate  int
	PlaybackSampleRate int
	// PrebufferMs of speech are queued before the speaker starts draining.
	PrebufferMs int
}

func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		CaptureSampleRate:  16000,
		PlaybackSampleRate: 24000,
		PrebufferMs:        100,
	}
}

// LocalRoom is a room of one: the machine's default capture and playback
// devices.
type LocalRoom struct {
	cfg    LocalConfig
	events *events
	mic    *gatedSource
	spk    *playbackBuffer

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	capture  *malgo.Device
	playback *malgo.Device
}

var _ Room = (*LocalRoom)(nil)

// NewLocalRoom creates an unconnected local room.
func NewLocalRoom(cfg LocalConfig) *LocalRoom {
	def := DefaultLocalConfig()
	if cfg.CaptureSampleRate <= 0 {
		cfg.CaptureSampleRate = def.CaptureSampleRate
	}
	if cfg.PlaybackSampleRate <= 0 {
		cfg.PlaybackSampleRate = def.PlaybackSampleRate
	}
	if cfg.PrebufferMs < 0 {
		cfg.PrebufferMs = 0
	}
	return &LocalRoom{
		cfg:    cfg,
		events: newEvents("LocalRoom"),
		mic:    newGatedSource(cfg.CaptureSampleRate),
		spk:    newPlaybackBuffer(cfg.PlaybackSampleRate, cfg.PrebufferMs),
	}
}

// Connect opens the audio devices.
func (r *LocalRoom) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.malgoCtx != nil {
		return nil
	}
	r.events.setState(StateConnecting)

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		r.events.setState(StateFailed)
		return fmt.Errorf("init audio context: %w", err)
	}
	r.malgoCtx = mctx

	if err := r.startPlaybackLocked(); err != nil {
		r.releaseLocked()
		r.events.setState(StateFailed)
		return err
	}
	r.events.setState(StateConnected)
	log.Printf("[LocalRoom] connected, playback %d Hz", r.cfg.PlaybackSampleRate)
	return nil
}

// SetMicrophoneEnabled opens the capture device on first use. Errors mean
// the platform refused the microphone.
func (r *LocalRoom) SetMicrophoneEnabled(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.malgoCtx == nil {
		return ErrNotConnected
	}
	if enabled && r.capture == nil {
		if err := r.startCaptureLocked(); err != nil {
			return err
		}
	}
	r.mic.setEnabled(enabled)
	return nil
}

func (r *LocalRoom) startCaptureLocked() error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.PeriodSizeInMilliseconds = audio.FrameDurationMs
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(r.cfg.CaptureSampleRate)
	deviceConfig.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(r.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			r.mic.publish(audio.BytesToInt16(input))
		},
	})
	if err != nil {
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("start capture device: %w", err)
	}
	r.capture = dev
	log.Printf("[LocalRoom] capture started at %d Hz", r.cfg.CaptureSampleRate)
	return nil
}

func (r *LocalRoom) startPlaybackLocked() error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.PeriodSizeInMilliseconds = audio.FrameDurationMs
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(r.cfg.PlaybackSampleRate)
	deviceConfig.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(r.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(output, _ []byte, _ uint32) {
			r.spk.fill(output)
		},
	})
	if err != nil {
		return fmt.Errorf("init playback device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("start playback device: %w", err)
	}
	r.playback = dev
	return nil
}

func (r *LocalRoom) releaseLocked() {
	if r.capture != nil {
		_ = r.capture.Stop()
		r.capture.Uninit()
		r.capture = nil
	}
	if r.playback != nil {
		_ = r.playback.Stop()
		r.playback.Uninit()
		r.playback = nil
	}
	if r.malgoCtx != nil {
		_ = r.malgoCtx.Uninit()
		r.malgoCtx.Free()
		r.malgoCtx = nil
	}
}

// Disconnect stops the devices and closes Events.
func (r *LocalRoom) Disconnect() error {
	r.mu.Lock()
	r.mic.setEnabled(false)
	r.releaseLocked()
	r.mu.Unlock()

	r.spk.Clear()
	r.mic.Close()
	r.events.setState(StateDisconnected)
	r.events.close()
	return nil
}

func (r *LocalRoom) Events() <-chan Event     { return r.events.ch }
func (r *LocalRoom) Microphone() audio.Source { return r.mic }
func (r *LocalRoom) Speaker() audio.Sink      { return r.spk }

// playbackBuffer queues speaker frames for the device callback. Output starts
// once the prebuffer is full; Clear re-arms it.
type playbackBuffer struct {
	rate      int
	prebuffer int

	mu        sync.Mutex
	buf       []byte
	buffering bool
}

var _ audio.ClearableSink = (*playbackBuffer)(nil)

func newPlaybackBuffer(rate, prebufferMs int) *playbackBuffer {
	return &playbackBuffer{
		rate:      rate,
		prebuffer: rate * prebufferMs / 1000 * audio.BytesPerSample,
		buffering: true,
	}
}

func (b *playbackBuffer) SampleRate() int { return b.rate }

func (b *playbackBuffer) WriteFrame(frame []byte) error {
	b.mu.Lock()
	b.buf = append(b.buf, frame...)
	if b.buffering && len(b.buf) >= b.prebuffer {
		b.buffering = false
	}
	b.mu.Unlock()
	return nil
}

// Clear drops queued audio.
func (b *playbackBuffer) Clear() {
	b.mu.Lock()
	b.buf = nil
	b.buffering = true
	b.mu.Unlock()
}

// fill copies queued audio into out, padding with silence.
func (b *playbackBuffer) fill(out []byte) {
	b.mu.Lock()
	n := 0
	if !b.buffering {
		n = copy(out, b.buf)
		b.buf = b.buf[n:]
	}
	b.mu.Unlock()
	clear(out[n:])
}

func (b *playbackBuffer) queued() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
