package room

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/realtime-ai/interview-agent/pkg/audio"
)

const (
	DefaultWSWriteWait  = 10 * time.Second
	DefaultWSPongWait   = 60 * time.Second
	DefaultWSPingPeriod = 54 * time.Second // must be less than pong wait
)

// Message types exchanged with the room server.
const (
	MsgJoin              = "join"
	MsgAudio             = "audio"
	MsgText              = "text"
	MsgParticipantJoined = "participant_joined"
	MsgParticipantLeft   = "participant_left"
)

// WebSocketConfig configures a WebSocketRoom.
type WebSocketConfig struct {
	URL      string
	Token    string
	Identity string

	// SampleRate of the microphone source. Incoming audio at other rates is
	// resampled.
	SampleRate        int
	SpeakerSampleRate int

	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
}

func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		Identity:          "interviewer",
		SampleRate:        16000,
		SpeakerSampleRate: 24000,
		WriteWait:         DefaultWSWriteWait,
		PongWait:          DefaultWSPongWait,
		PingPeriod:        DefaultWSPingPeriod,
	}
}

// WSMessage is the JSON envelope on the wire.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSAudioPayload carries base64 S16LE mono PCM.
type WSAudioPayload struct {
	Data       string `json:"data"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// WSParticipantPayload identifies a participant.
type WSParticipantPayload struct {
	Identity string `json:"identity"`
}

// WSTextPayload is an application message.
type WSTextPayload struct {
	From string `json:"from,omitempty"`
	Text string `json:"text"`
}

// WebSocketRoom joins a room server over a WebSocket carrying JSON-framed
// audio.
type WebSocketRoom struct {
	cfg    WebSocketConfig
	events *events
	mic    *gatedSource
	spk    *wsSpeaker

	mu      sync.Mutex
	conn    *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	outChan chan WSMessage
	wdone   chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	resamplers map[int]audio.Resampler
}

var _ Room = (*WebSocketRoom)(nil)

// NewWebSocketRoom creates an unconnected room.
func NewWebSocketRoom(cfg WebSocketConfig) *WebSocketRoom {
	def := DefaultWebSocketConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.SpeakerSampleRate <= 0 {
		cfg.SpeakerSampleRate = def.SpeakerSampleRate
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.Identity == "" {
		cfg.Identity = def.Identity
	}
	r := &WebSocketRoom{
		cfg:        cfg,
		events:     newEvents("WebSocketRoom"),
		mic:        newGatedSource(cfg.SampleRate),
		resamplers: make(map[int]audio.Resampler),
	}
	r.spk = &wsSpeaker{room: r, rate: cfg.SpeakerSampleRate}
	return r
}

// Connect dials the room server and announces the agent.
func (r *WebSocketRoom) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		return nil
	}
	if r.cfg.URL == "" {
		return errors.New("room: websocket url is empty")
	}
	r.events.setState(StateConnecting)

	header := http.Header{}
	if r.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+r.cfg.Token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, r.cfg.URL, header)
	if err != nil {
		r.events.setState(StateFailed)
		if resp != nil {
			return fmt.Errorf("dial %s: %s: %w", r.cfg.URL, resp.Status, err)
		}
		return fmt.Errorf("dial %s: %w", r.cfg.URL, err)
	}

	r.conn = conn
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.outChan = make(chan WSMessage, 64)
	r.wdone = make(chan struct{})

	conn.SetReadDeadline(time.Now().Add(r.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(r.cfg.PongWait))
	})

	r.wg.Add(2)
	go r.readPump()
	go r.writePump()

	join, _ := json.Marshal(WSParticipantPayload{Identity: r.cfg.Identity})
	r.outChan <- WSMessage{Type: MsgJoin, Payload: join}

	r.events.setState(StateConnected)
	log.Printf("[WebSocketRoom] connected to %s as %s", r.cfg.URL, r.cfg.Identity)
	return nil
}

func (r *WebSocketRoom) readPump() {
	defer r.wg.Done()
	defer r.shutdown()

	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			if r.ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WebSocketRoom] read error: %v", err)
				r.events.emit(Failed{Err: err})
			}
			return
		}
		r.handleMessage(data)
	}
}

func (r *WebSocketRoom) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[WebSocketRoom] failed to unmarshal message: %v", err)
		return
	}

	switch msg.Type {
	case MsgAudio:
		var p WSAudioPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			log.Printf("[WebSocketRoom] bad audio payload: %v", err)
			return
		}
		pcm, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			log.Printf("[WebSocketRoom] failed to decode base64 audio: %v", err)
			return
		}
		if p.Channels > 1 {
			log.Printf("[WebSocketRoom] dropping %d-channel audio", p.Channels)
			return
		}
		rate := p.SampleRate
		if rate == 0 {
			rate = r.cfg.SampleRate
		}
		if rate != r.cfg.SampleRate {
			if pcm, err = r.resample(pcm, rate); err != nil {
				log.Printf("[WebSocketRoom] resample %d Hz: %v", rate, err)
				return
			}
		}
		r.mic.publish(audio.BytesToInt16(pcm))

	case MsgParticipantJoined, MsgParticipantLeft:
		var p WSParticipantPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			log.Printf("[WebSocketRoom] bad participant payload: %v", err)
			return
		}
		if msg.Type == MsgParticipantJoined {
			r.events.emit(ParticipantJoined{Identity: p.Identity})
		} else {
			r.events.emit(ParticipantLeft{Identity: p.Identity})
		}

	case MsgText:
		var p WSTextPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			log.Printf("[WebSocketRoom] bad text payload: %v", err)
			return
		}
		r.events.emit(DataReceived{From: p.From, Payload: []byte(p.Text)})

	default:
		log.Printf("[WebSocketRoom] unknown message type: %s", msg.Type)
	}
}

// resample runs on the read pump only.
func (r *WebSocketRoom) resample(pcm []byte, rate int) ([]byte, error) {
	rs, ok := r.resamplers[rate]
	if !ok {
		var err error
		if rs, err = audio.NewResampler(rate, r.cfg.SampleRate); err != nil {
			return nil, err
		}
		r.resamplers[rate] = rs
	}
	return rs.Resample(pcm)
}

// writePump owns all writes to the connection, pings included.
func (r *WebSocketRoom) writePump() {
	defer r.wg.Done()
	defer close(r.wdone)

	ticker := time.NewTicker(r.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteWait))
			r.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-r.outChan:
			r.conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteWait))
			if err := r.conn.WriteJSON(msg); err != nil {
				log.Printf("[WebSocketRoom] write error: %v", err)
				r.events.emit(Failed{Err: err})
				go r.shutdown()
				return
			}
		case <-ticker.C:
			r.conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteWait))
			if err := r.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WebSocketRoom] ping error: %v", err)
				go r.shutdown()
				return
			}
		}
	}
}

// send queues msg, waiting while the queue is full.
func (r *WebSocketRoom) send(msg WSMessage) error {
	r.mu.Lock()
	ctx, out := r.ctx, r.outChan
	r.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return ErrNotConnected
	}
	select {
	case out <- msg:
		return nil
	case <-ctx.Done():
		return ErrNotConnected
	}
}

// SendText publishes an application message to the room.
func (r *WebSocketRoom) SendText(text string) error {
	payload, _ := json.Marshal(WSTextPayload{From: r.cfg.Identity, Text: text})
	return r.send(WSMessage{Type: MsgText, Payload: payload})
}

// shutdown tears the transport down once. The read pump closing the socket
// ends the write pump through the context.
func (r *WebSocketRoom) shutdown() {
	r.once.Do(func() {
		r.mu.Lock()
		cancel := r.cancel
		r.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		r.mic.setEnabled(false)
		r.events.setState(StateDisconnected)
		log.Printf("[WebSocketRoom] disconnected")
	})
}

// Disconnect closes the socket and waits for the pumps.
func (r *WebSocketRoom) Disconnect() error {
	r.mu.Lock()
	conn, wdone := r.conn, r.wdone
	r.mu.Unlock()

	r.shutdown()
	if conn != nil {
		// the write pump sends the close frame on its way out
		<-wdone
		conn.Close()
		r.wg.Wait()
	}

	r.mu.Lock()
	for rate, rs := range r.resamplers {
		rs.Close()
		delete(r.resamplers, rate)
	}
	r.mu.Unlock()

	r.mic.Close()
	r.events.close()
	return nil
}

func (r *WebSocketRoom) SetMicrophoneEnabled(enabled bool) error {
	r.mu.Lock()
	connected := r.ctx != nil && r.ctx.Err() == nil
	r.mu.Unlock()
	if enabled && !connected {
		return ErrNotConnected
	}
	r.mic.setEnabled(enabled)
	return nil
}

func (r *WebSocketRoom) Events() <-chan Event     { return r.events.ch }
func (r *WebSocketRoom) Microphone() audio.Source { return r.mic }
func (r *WebSocketRoom) Speaker() audio.Sink      { return r.spk }

// wsSpeaker sends agent audio frames to the room.
type wsSpeaker struct {
	room *WebSocketRoom
	rate int
}

func (s *wsSpeaker) SampleRate() int { return s.rate }

func (s *wsSpeaker) WriteFrame(frame []byte) error {
	payload, err := json.Marshal(WSAudioPayload{
		Data:       base64.StdEncoding.EncodeToString(frame),
		SampleRate: s.rate,
		Channels:   1,
	})
	if err != nil {
		return err
	}
	return s.room.send(WSMessage{Type: MsgAudio, Payload: payload})
}
