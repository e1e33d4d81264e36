package room

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hraban/opus"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/realtime-ai/interview-agent/pkg/audio"
)

const (
	DefaultWebRTCSampleRate = 48000
	DefaultWebRTCBitRate    = 32000

	opusMaxFrameSamples = 5760 // 120 ms at 48 kHz
	opusMaxPacketBytes  = 1275
)

// WebRTCConfig configures a WebRTCRoom. The room joins by posting an SDP
// offer to URL with the token as bearer credential and applying the answer.
type WebRTCConfig struct {
	URL        string
	Token      string
	ICEServers []string

	// MicSampleRate is the rate of the microphone source; decoded Opus is
	// resampled to it.
	MicSampleRate int
	BitRate       int

	HTTPClient *http.Client
}

func DefaultWebRTCConfig() WebRTCConfig {
	return WebRTCConfig{
		ICEServers:    []string{"stun:stun.l.google.com:19302"},
		MicSampleRate: 16000,
		BitRate:       DefaultWebRTCBitRate,
		HTTPClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

// WebRTCRoom joins a media server over WebRTC with Opus audio.
type WebRTCRoom struct {
	cfg    WebRTCConfig
	events *events
	mic    *gatedSource
	spk    *opusSpeaker

	mu       sync.Mutex
	pc       *webrtc.PeerConnection
	dc       *webrtc.DataChannel
	resource string
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	once     sync.Once
}

var _ Room = (*WebRTCRoom)(nil)

// NewWebRTCRoom creates an unconnected room.
func NewWebRTCRoom(cfg WebRTCConfig) *WebRTCRoom {
	def := DefaultWebRTCConfig()
	if cfg.MicSampleRate <= 0 {
		cfg.MicSampleRate = def.MicSampleRate
	}
	if cfg.BitRate <= 0 {
		cfg.BitRate = def.BitRate
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = def.HTTPClient
	}
	r := &WebRTCRoom{
		cfg:    cfg,
		events: newEvents("WebRTCRoom"),
		mic:    newGatedSource(cfg.MicSampleRate),
		spk:    &opusSpeaker{bitRate: cfg.BitRate},
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r
}

// Connect negotiates the session. It returns once the answer is applied;
// media connectivity is reported through StateChanged events.
func (r *WebRTCRoom) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pc != nil {
		return nil
	}
	if r.cfg.URL == "" {
		return errors.New("room: webrtc url is empty")
	}
	r.events.setState(StateConnecting)

	if err := r.connectLocked(ctx); err != nil {
		r.events.setState(StateFailed)
		if r.pc != nil {
			r.pc.Close()
			r.pc = nil
		}
		return err
	}
	return nil
}

func (r *WebRTCRoom) connectLocked(ctx context.Context) error {
	var servers []webrtc.ICEServer
	if len(r.cfg.ICEServers) > 0 {
		servers = []webrtc.ICEServer{{URLs: r.cfg.ICEServers}}
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}
	r.pc = pc

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: DefaultWebRTCSampleRate, Channels: 2},
		"audio", "interviewer")
	if err != nil {
		return fmt.Errorf("create audio track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		return fmt.Errorf("add audio track: %w", err)
	}
	r.spk.setTrack(track)

	dc, err := pc.CreateDataChannel("events", nil)
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		r.events.emit(DataReceived{Payload: msg.Data})
	})
	r.dc = dc

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Printf("[WebRTCRoom] peer connection %s", s)
		state := mapPeerState(s)
		r.events.setState(state)
		if state == StateFailed {
			r.events.emit(Failed{Err: errors.New("peer connection failed")})
		}
	})
	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		log.Printf("[WebRTCRoom] remote track %s (%s)", remote.ID(), remote.Codec().MimeType)
		r.wg.Add(1)
		go r.readRemoteAudio(remote)
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return ctx.Err()
	}

	answer, resource, err := r.exchange(ctx, pc.LocalDescription().SDP)
	if err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	r.resource = resource
	log.Printf("[WebRTCRoom] negotiated with %s", r.cfg.URL)
	return nil
}

// exchange posts the offer and returns the answer SDP and the session
// resource URL, if the server named one.
func (r *WebRTCRoom) exchange(ctx context.Context, offer string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewBufferString(offer))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/sdp")
	if r.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	}

	resp, err := r.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("post offer: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("read answer: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("post offer: unexpected status %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	var resource string
	if loc := resp.Header.Get("Location"); loc != "" {
		base, _ := url.Parse(r.cfg.URL)
		if ref, err := url.Parse(loc); err == nil && base != nil {
			resource = base.ResolveReference(ref).String()
		}
	}
	return string(body), resource, nil
}

func (r *WebRTCRoom) readRemoteAudio(track *webrtc.TrackRemote) {
	defer r.wg.Done()

	identity := track.StreamID()
	r.events.emit(ParticipantJoined{Identity: identity})
	defer r.events.emit(ParticipantLeft{Identity: identity})

	dec, err := opus.NewDecoder(DefaultWebRTCSampleRate, 1)
	if err != nil {
		log.Printf("[WebRTCRoom] failed to create opus decoder: %v", err)
		return
	}
	rs, err := audio.NewResampler(DefaultWebRTCSampleRate, r.cfg.MicSampleRate)
	if err != nil {
		log.Printf("[WebRTCRoom] failed to create resampler: %v", err)
		return
	}
	defer rs.Close()

	pcm := make([]int16, opusMaxFrameSamples)
	for r.ctx.Err() == nil {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) && r.ctx.Err() == nil {
				log.Printf("[WebRTCRoom] RTP read error: %v", err)
			}
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		n, err := dec.Decode(pkt.Payload, pcm)
		if err != nil {
			log.Printf("[WebRTCRoom] opus decode error: %v", err)
			continue
		}
		out, err := rs.Resample(audio.Int16ToBytes(pcm[:n]))
		if err != nil {
			log.Printf("[WebRTCRoom] resample error: %v", err)
			continue
		}
		r.mic.publish(audio.BytesToInt16(out))
	}
}

// SendText sends an application message on the data channel.
func (r *WebRTCRoom) SendText(text string) error {
	r.mu.Lock()
	dc := r.dc
	r.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrNotConnected
	}
	return dc.SendText(text)
}

// Disconnect closes the peer connection and releases the server session.
func (r *WebRTCRoom) Disconnect() error {
	var err error
	r.once.Do(func() {
		r.cancel()
		r.mic.setEnabled(false)

		r.mu.Lock()
		pc, resource := r.pc, r.resource
		r.mu.Unlock()

		if resource != "" {
			r.deleteResource(resource)
		}
		if pc != nil {
			err = pc.Close()
		}
		r.wg.Wait()

		r.mic.Close()
		r.events.setState(StateDisconnected)
		r.events.close()
	})
	return err
}

func (r *WebRTCRoom) deleteResource(resource string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, resource, nil)
	if err != nil {
		return
	}
	if r.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	}
	resp, err := r.cfg.HTTPClient.Do(req)
	if err != nil {
		log.Printf("[WebRTCRoom] release session: %v", err)
		return
	}
	resp.Body.Close()
}

func (r *WebRTCRoom) SetMicrophoneEnabled(enabled bool) error {
	r.mu.Lock()
	connected := r.pc != nil
	r.mu.Unlock()
	if enabled && !connected {
		return ErrNotConnected
	}
	r.mic.setEnabled(enabled)
	return nil
}

func (r *WebRTCRoom) Events() <-chan Event     { return r.events.ch }
func (r *WebRTCRoom) Microphone() audio.Source { return r.mic }
func (r *WebRTCRoom) Speaker() audio.Sink      { return r.spk }

func mapPeerState(s webrtc.PeerConnectionState) State {
	switch s {
	case webrtc.PeerConnectionStateNew, webrtc.PeerConnectionStateConnecting:
		return StateConnecting
	case webrtc.PeerConnectionStateConnected:
		return StateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return StateReconnecting
	case webrtc.PeerConnectionStateFailed:
		return StateFailed
	default:
		return StateDisconnected
	}
}

// opusSpeaker encodes 20 ms frames at 48 kHz onto the local track. Writes
// fail with ErrNotConnected until the track exists.
type opusSpeaker struct {
	bitRate int

	mu    sync.Mutex
	track *webrtc.TrackLocalStaticSample
	enc   *opus.Encoder
	buf   []byte
}

func (s *opusSpeaker) setTrack(track *webrtc.TrackLocalStaticSample) {
	s.mu.Lock()
	s.track = track
	s.mu.Unlock()
}

func (s *opusSpeaker) encoderLocked() (*opus.Encoder, error) {
	if s.enc != nil {
		return s.enc, nil
	}
	enc, err := opus.NewEncoder(DefaultWebRTCSampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	if err := enc.SetBitrate(s.bitRate); err != nil {
		return nil, fmt.Errorf("set opus bitrate: %w", err)
	}
	enc.SetComplexity(10)
	enc.SetDTX(true)
	s.enc = enc
	s.buf = make([]byte, opusMaxPacketBytes)
	return enc, nil
}

func (s *opusSpeaker) SampleRate() int { return DefaultWebRTCSampleRate }

func (s *opusSpeaker) WriteFrame(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track == nil {
		return ErrNotConnected
	}
	enc, err := s.encoderLocked()
	if err != nil {
		return err
	}
	pcm := audio.BytesToInt16(frame)
	n, err := enc.Encode(pcm, s.buf)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}
	return s.track.WriteSample(media.Sample{
		Data:     append([]byte(nil), s.buf[:n]...),
		Duration: audio.DurationOf(len(pcm), DefaultWebRTCSampleRate),
	})
}
