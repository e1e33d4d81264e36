package room

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/interview-agent/pkg/audio"
)

// roomServer is a minimal room: it records what the agent sends and lets the
// test push messages to it.
type roomServer struct {
	srv      *httptest.Server
	auth     chan string
	received chan WSMessage
	conns    chan *websocket.Conn
}

func newRoomServer(t *testing.T) *roomServer {
	rs := &roomServer{
		auth:     make(chan string, 1),
		received: make(chan WSMessage, 64),
		conns:    make(chan *websocket.Conn, 1),
	}
	upgrader := websocket.Upgrader{}
	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		rs.conns <- conn
		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			rs.received <- msg
		}
	}))
	t.Cleanup(rs.srv.Close)
	return rs
}

func (rs *roomServer) url() string {
	return "ws" + strings.TrimPrefix(rs.srv.URL, "http")
}

func (rs *roomServer) next(t *testing.T) WSMessage {
	t.Helper()
	select {
	case msg := <-rs.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
		return WSMessage{}
	}
}

func nextEvent(t *testing.T, r Room) Event {
	t.Helper()
	select {
	case ev, ok := <-r.Events():
		require.True(t, ok, "events closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
		return nil
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(WSMessage{Type: typ, Payload: raw}))
}

func connectRoom(t *testing.T, rs *roomServer) (*WebSocketRoom, *websocket.Conn) {
	t.Helper()
	cfg := DefaultWebSocketConfig()
	cfg.URL = rs.url()
	cfg.Token = "secret"
	cfg.Identity = "agent-1"
	r := NewWebSocketRoom(cfg)
	require.NoError(t, r.Connect(context.Background()))

	assert.Equal(t, StateChanged{State: StateConnecting}, nextEvent(t, r))
	assert.Equal(t, StateChanged{State: StateConnected}, nextEvent(t, r))
	return r, <-rs.conns
}

func TestWebSocketRoomJoin(t *testing.T) {
	rs := newRoomServer(t)
	r, _ := connectRoom(t, rs)
	defer r.Disconnect()

	assert.Equal(t, "Bearer secret", <-rs.auth)
	msg := rs.next(t)
	assert.Equal(t, MsgJoin, msg.Type)
	var p WSParticipantPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, "agent-1", p.Identity)
}

func TestWebSocketRoomParticipantEvents(t *testing.T) {
	rs := newRoomServer(t)
	r, conn := connectRoom(t, rs)
	defer r.Disconnect()

	send(t, conn, MsgParticipantJoined, WSParticipantPayload{Identity: "bob"})
	send(t, conn, MsgText, WSTextPayload{From: "bob", Text: "hi"})
	send(t, conn, MsgParticipantLeft, WSParticipantPayload{Identity: "bob"})

	assert.Equal(t, ParticipantJoined{Identity: "bob"}, nextEvent(t, r))
	assert.Equal(t, DataReceived{From: "bob", Payload: []byte("hi")}, nextEvent(t, r))
	assert.Equal(t, ParticipantLeft{Identity: "bob"}, nextEvent(t, r))
}

func TestWebSocketRoomMicrophone(t *testing.T) {
	rs := newRoomServer(t)
	r, conn := connectRoom(t, rs)
	defer r.Disconnect()

	got := make(chan []int16, 4)
	unsub, err := r.Microphone().Subscribe(func(pcm []int16) { got <- pcm })
	require.NoError(t, err)
	defer unsub()

	pcm := audio.Int16ToBytes([]int16{1, -2, 3, -4})
	frame := WSAudioPayload{Data: base64.StdEncoding.EncodeToString(pcm), SampleRate: 16000, Channels: 1}

	send(t, conn, MsgAudio, frame)
	send(t, conn, MsgParticipantJoined, WSParticipantPayload{Identity: "marker"})
	nextEvent(t, r)
	assert.Empty(t, got, "microphone is off until enabled")

	require.NoError(t, r.SetMicrophoneEnabled(true))
	send(t, conn, MsgAudio, frame)
	select {
	case samples := <-got:
		assert.Equal(t, []int16{1, -2, 3, -4}, samples)
	case <-time.After(2 * time.Second):
		t.Fatal("no audio delivered")
	}
}

func TestWebSocketRoomSpeaker(t *testing.T) {
	rs := newRoomServer(t)
	r, _ := connectRoom(t, rs)
	defer r.Disconnect()
	rs.next(t) // join

	frame := audio.Int16ToBytes([]int16{5, 6, 7})
	require.NoError(t, r.Speaker().WriteFrame(frame))

	msg := rs.next(t)
	require.Equal(t, MsgAudio, msg.Type)
	var p WSAudioPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, 24000, p.SampleRate)
	assert.Equal(t, 1, p.Channels)
	data, err := base64.StdEncoding.DecodeString(p.Data)
	require.NoError(t, err)
	assert.Equal(t, frame, data)
}

func TestWebSocketRoomRemoteClose(t *testing.T) {
	rs := newRoomServer(t)
	r, conn := connectRoom(t, rs)
	defer r.Disconnect()

	conn.Close()
	for {
		ev := nextEvent(t, r)
		if sc, ok := ev.(StateChanged); ok {
			assert.Equal(t, StateDisconnected, sc.State)
			break
		}
	}
	assert.ErrorIs(t, r.Speaker().WriteFrame([]byte{0, 0}), ErrNotConnected)
	assert.ErrorIs(t, r.SetMicrophoneEnabled(true), ErrNotConnected)
}

func TestWebSocketRoomDisconnectClosesEvents(t *testing.T) {
	rs := newRoomServer(t)
	r, _ := connectRoom(t, rs)

	require.NoError(t, r.Disconnect())
	require.NoError(t, r.Disconnect())

	var last Event
	for ev := range r.Events() {
		last = ev
	}
	assert.Equal(t, StateChanged{State: StateDisconnected}, last)
}

func TestWebSocketRoomDialFailure(t *testing.T) {
	r := NewWebSocketRoom(WebSocketConfig{URL: "ws://127.0.0.1:1/nowhere"})
	err := r.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, r.events.current())

	empty := NewWebSocketRoom(WebSocketConfig{})
	assert.Error(t, empty.Connect(context.Background()))
}
