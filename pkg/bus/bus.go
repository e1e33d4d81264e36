// Package bus carries observer notifications out of an interview session:
// state changes, transcripts, agent messages, interruptions, completion and
// errors. Publishing never blocks; a subscriber that falls behind misses
// events instead of stalling the turn controller.
//
// Usage:
//
//	b := bus.New()
//	ch := make(chan bus.Event, 16)
//	b.Subscribe(bus.EventStateChanged, ch)
//	defer b.Unsubscribe(bus.EventStateChanged, ch)
package bus

import (
	"sync"
	"time"
)

// Bus is the publish/subscribe surface used by session components.
type Bus interface {
	Subscribe(eventType EventType, ch chan<- Event)
	Unsubscribe(eventType EventType, ch chan<- Event)
	// SubscribeAll receives every event type.
	SubscribeAll(ch chan<- Event)
	UnsubscribeAll(ch chan<- Event)
	// Publish delivers evt to current subscribers and reports whether every
	// subscriber accepted it.
	Publish(evt Event) bool
}

// Event is one notification.
type Event struct {
	Type      EventType
	SessionID string
	Timestamp time.Time
	Payload   interface{}
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, sessionID string, payload interface{}) Event {
	return Event{Type: t, SessionID: sessionID, Timestamp: time.Now(), Payload: payload}
}

// EventBus is the in-process Bus.
type EventBus struct {
	mu   sync.RWMutex
	subs map[EventType][]chan<- Event
	all  []chan<- Event
}

// New creates an empty bus.
func New() *EventBus {
	return &EventBus{subs: make(map[EventType][]chan<- Event)}
}

func (b *EventBus) Subscribe(eventType EventType, ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventType] = append(b.subs[eventType], ch)
}

func (b *EventBus) Unsubscribe(eventType EventType, ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventType] = remove(b.subs[eventType], ch)
	if len(b.subs[eventType]) == 0 {
		delete(b.subs, eventType)
	}
}

func (b *EventBus) SubscribeAll(ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, ch)
}

func (b *EventBus) UnsubscribeAll(ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = remove(b.all, ch)
}

func (b *EventBus) Publish(evt Event) bool {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := true
	send := func(ch chan<- Event) {
		select {
		case ch <- evt:
		default:
			delivered = false
		}
	}
	for _, ch := range b.subs[evt.Type] {
		send(ch)
	}
	for _, ch := range b.all {
		send(ch)
	}
	return delivered
}

func remove(list []chan<- Event, ch chan<- Event) []chan<- Event {
	for i, c := range list {
		if c == ch {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

var _ Bus = (*EventBus)(nil)
