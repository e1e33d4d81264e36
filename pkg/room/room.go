// Package room connects the agent to a live audio room. A Room delivers the
// participant's microphone as an audio.Source, accepts agent speech through
// an audio.Sink and reports what happens in the room as typed events.
//
// Three transports are provided: LocalRoom drives the machine's own
// microphone and speaker, WebSocketRoom exchanges JSON audio frames with a
// room server, and WebRTCRoom joins over WebRTC with Opus audio.
package room

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/realtime-ai/interview-agent/pkg/audio"
)

// ErrNotConnected is returned by operations that need a live room.
var ErrNotConnected = errors.New("room: not connected")

// State is the connection state of a room.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is implemented by every room event. Consumers switch on the
// concrete type.
type Event interface {
	roomEvent()
}

// StateChanged reports a connection state transition.
type StateChanged struct {
	State State
}

// ParticipantJoined reports a remote participant entering the room.
type ParticipantJoined struct {
	Identity string
}

// ParticipantLeft reports a remote participant leaving the room.
type ParticipantLeft struct {
	Identity string
}

// DataReceived carries an application message from the room.
type DataReceived struct {
	From    string
	Payload []byte
}

// Failed reports a transport error. The room may still be usable.
type Failed struct {
	Err error
}

func (StateChanged) roomEvent()      {}
func (ParticipantJoined) roomEvent() {}
func (ParticipantLeft) roomEvent()   {}
func (DataReceived) roomEvent()      {}
func (Failed) roomEvent()            {}

// Room is a joined audio room.
type Room interface {
	Connect(ctx context.Context) error
	// Disconnect leaves the room and closes Events. It is idempotent.
	Disconnect() error
	Events() <-chan Event
	// SetMicrophoneEnabled gates capture. Disabled microphones publish
	// nothing.
	SetMicrophoneEnabled(enabled bool) error
	Microphone() audio.Source
	Speaker() audio.Sink
}

// Microphone adapts a room to open/close microphone semantics.
type Microphone struct {
	Room Room
}

// Open enables capture and returns the live source.
func (m Microphone) Open(ctx context.Context) (audio.Source, error) {
	if err := m.Room.SetMicrophoneEnabled(true); err != nil {
		return nil, err
	}
	return m.Room.Microphone(), nil
}

// Close disables capture.
func (m Microphone) Close() error {
	return m.Room.SetMicrophoneEnabled(false)
}

// events is the event channel shared by the room implementations. Sends
// never block the transport; a full queue drops the event.
type events struct {
	name string

	mu     sync.Mutex
	ch     chan Event
	closed bool
	state  State
}

func newEvents(name string) *events {
	return &events{name: name, ch: make(chan Event, 64)}
}

func (e *events) emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if sc, ok := ev.(StateChanged); ok {
		if sc.State == e.state {
			return
		}
		e.state = sc.State
	}
	select {
	case e.ch <- ev:
	default:
		log.Printf("[%s] event queue full, dropping %T", e.name, ev)
	}
}

func (e *events) setState(s State) {
	e.emit(StateChanged{State: s})
}

func (e *events) current() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *events) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}

// gatedSource wraps a broadcaster with the microphone switch.
type gatedSource struct {
	*audio.Broadcaster
	mu      sync.RWMutex
	enabled bool
}

func newGatedSource(rate int) *gatedSource {
	return &gatedSource{Broadcaster: audio.NewBroadcaster(rate)}
}

func (g *gatedSource) setEnabled(on bool) {
	g.mu.Lock()
	g.enabled = on
	g.mu.Unlock()
}

func (g *gatedSource) publish(pcm []int16) {
	g.mu.RLock()
	on := g.enabled
	g.mu.RUnlock()
	if on {
		g.Broadcaster.Publish(pcm)
	}
}
