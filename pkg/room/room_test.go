package room

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/interview-agent/pkg/audio"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestEventsDropRepeatedState(t *testing.T) {
	ev := newEvents("test")
	ev.setState(StateConnecting)
	ev.setState(StateConnecting)
	ev.setState(StateConnected)
	ev.emit(ParticipantJoined{Identity: "alice"})
	ev.close()

	var got []Event
	for e := range ev.ch {
		got = append(got, e)
	}
	assert.Equal(t, []Event{
		StateChanged{State: StateConnecting},
		StateChanged{State: StateConnected},
		ParticipantJoined{Identity: "alice"},
	}, got)
	assert.Equal(t, StateConnected, ev.current())
}

func TestEventsAfterCloseAreDropped(t *testing.T) {
	ev := newEvents("test")
	ev.close()
	ev.close()
	assert.NotPanics(t, func() { ev.emit(Failed{Err: errors.New("late")}) })
}

func TestEventsFullQueueDoesNotBlock(t *testing.T) {
	ev := newEvents("test")
	for i := 0; i < cap(ev.ch)+10; i++ {
		ev.emit(DataReceived{Payload: []byte{byte(i)}})
	}
	assert.Len(t, ev.ch, cap(ev.ch))
}

func TestGatedSource(t *testing.T) {
	g := newGatedSource(16000)
	var got int
	unsub, err := g.Subscribe(func(pcm []int16) { got += len(pcm) })
	require.NoError(t, err)
	defer unsub()

	g.publish(make([]int16, 10))
	assert.Zero(t, got, "disabled microphone must not publish")

	g.setEnabled(true)
	g.publish(make([]int16, 10))
	assert.Equal(t, 10, got)
}

type fakeRoom struct {
	Room
	enabled []bool
	err     error
	src     audio.Source
}

func (f *fakeRoom) SetMicrophoneEnabled(on bool) error {
	if f.err != nil {
		return f.err
	}
	f.enabled = append(f.enabled, on)
	return nil
}

func (f *fakeRoom) Microphone() audio.Source { return f.src }

func TestMicrophoneAdapter(t *testing.T) {
	src := audio.NewBroadcaster(16000)
	fr := &fakeRoom{src: src}
	mic := Microphone{Room: fr}

	got, err := mic.Open(context.Background())
	require.NoError(t, err)
	assert.Same(t, src, got)
	require.NoError(t, mic.Close())
	assert.Equal(t, []bool{true, false}, fr.enabled)

	fr.err = errors.New("permission denied")
	_, err = mic.Open(context.Background())
	assert.ErrorContains(t, err, "permission denied")
}
