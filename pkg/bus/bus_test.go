package bus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch := make(chan Event, 1)
	b.Subscribe(EventError, ch)

	ok := b.Publish(NewEvent(EventError, "s1", ErrorPayload{Err: errors.New("boom")}))
	require.True(t, ok)

	evt := <-ch
	assert.Equal(t, EventError, evt.Type)
	assert.Equal(t, "s1", evt.SessionID)
	assert.EqualError(t, evt.Payload.(ErrorPayload).Err, "boom")
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch := make(chan Event, 1)
	b.Subscribe(EventTranscript, ch)
	b.Unsubscribe(EventTranscript, ch)
	b.Unsubscribe(EventTranscript, ch)

	b.Publish(Event{Type: EventTranscript})
	select {
	case <-ch:
		t.Fatal("received after unsubscribe")
	default:
	}
}

func TestMultipleSubscribersAndAll(t *testing.T) {
	b := New()
	ch1 := make(chan Event, 1)
	ch2 := make(chan Event, 1)
	all := make(chan Event, 4)
	b.Subscribe(EventAgentMessage, ch1)
	b.Subscribe(EventAgentMessage, ch2)
	b.SubscribeAll(all)

	b.Publish(Event{Type: EventAgentMessage, Payload: MessagePayload{Text: "hi"}})
	b.Publish(Event{Type: EventStateChanged})

	assert.Len(t, ch1, 1)
	assert.Len(t, ch2, 1)
	assert.Len(t, all, 2)

	first := <-all
	assert.False(t, first.Timestamp.IsZero(), "timestamp filled in")

	b.UnsubscribeAll(all)
	b.Publish(Event{Type: EventStateChanged})
	assert.Len(t, all, 1)
}

func TestPublishDoesNotBlock(t *testing.T) {
	b := New()
	full := make(chan Event)
	b.Subscribe(EventInterrupted, full)

	done := make(chan bool)
	go func() { done <- b.Publish(Event{Type: EventInterrupted}) }()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("publish blocked")
	}
}

func TestConcurrentUse(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		ch := make(chan Event, 100)
		go func() {
			defer wg.Done()
			b.Subscribe(EventSpeechStarted, ch)
			b.Unsubscribe(EventSpeechStarted, ch)
		}()
		go func() {
			defer wg.Done()
			b.Publish(Event{Type: EventSpeechStarted})
		}()
	}
	wg.Wait()
}
