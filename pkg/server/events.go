package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/realtime-ai/interview-agent/pkg/bus"
)

// EventMessage is one session event on the WebSocket stream.
type EventMessage struct {
	Type      bus.EventType  `json:"type"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewEventMessage flattens a bus event for JSON.
func NewEventMessage(ev bus.Event) EventMessage {
	msg := EventMessage{Type: ev.Type, SessionID: ev.SessionID, Timestamp: ev.Timestamp}
	switch p := ev.Payload.(type) {
	case bus.StatePayload:
		msg.Payload = map[string]any{"from": p.From, "to": p.To}
	case bus.TranscriptPayload:
		msg.Payload = map[string]any{"text": p.Text, "final": p.Final}
	case bus.MessagePayload:
		msg.Payload = map[string]any{"text": p.Text}
	case bus.InterruptPayload:
		msg.Payload = map[string]any{"source": p.Source, "latency_ms": p.Latency.Milliseconds()}
	case bus.CompletePayload:
		msg.Payload = map[string]any{
			"duration_ms":     p.Duration.Milliseconds(),
			"questions_asked": p.QuestionsAsked,
			"responses":       p.Responses,
			"completion":      p.Completion,
		}
	case bus.ErrorPayload:
		text := ""
		if p.Err != nil {
			text = p.Err.Error()
		}
		msg.Payload = map[string]any{"error": text, "fatal": p.Fatal}
	}
	return msg
}

// handleEvents streams a session's bus events until the client leaves or
// the interview ends.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] [session %s] WebSocket upgrade failed: %v", c.ID(), err)
		return
	}
	defer conn.Close()

	events := make(chan bus.Event, 64)
	c.Bus().SubscribeAll(events)
	defer c.Bus().UnsubscribeAll(events)

	// The client only sends control frames; reading keeps pongs and close
	// handshakes flowing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("[Server] [session %s] event stream read error: %v", c.ID(), err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(s.config.PingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait))
			if err := conn.WriteJSON(NewEventMessage(ev)); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Done():
			s.drain(conn, events)
			conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "interview ended"))
			return
		case <-gone:
			return
		}
	}
}

// drain flushes events published before the session ended.
func (s *Server) drain(conn *websocket.Conn, events <-chan bus.Event) {
	for {
		select {
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait))
			if err := conn.WriteJSON(NewEventMessage(ev)); err != nil {
				return
			}
		default:
			return
		}
	}
}
