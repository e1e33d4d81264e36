package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer(t *testing.T) {
	p := NewPacer(PacerConfig{SampleRate: 24000})
	// 24kHz, 20ms, 16-bit mono
	require.Equal(t, 960, p.BytesPerFrame())

	t.Run("empty buffer returns silence", func(t *testing.T) {
		frame, ok := p.ReadFrame()
		assert.False(t, ok)
		assert.Len(t, frame, 960)
		assert.Equal(t, make([]byte, 960), frame)
	})

	t.Run("partial frame is padded", func(t *testing.T) {
		p.Write(filled(480, 7))
		frame, ok := p.ReadFrame()
		require.True(t, ok)
		assert.Equal(t, byte(7), frame[0])
		assert.Equal(t, byte(0), frame[959])
		assert.Zero(t, p.Available())
	})

	t.Run("multiple frames drain in order", func(t *testing.T) {
		p.Write(filled(960, 1))
		p.Write(filled(960, 2))
		f1, _ := p.ReadFrame()
		f2, _ := p.ReadFrame()
		assert.Equal(t, byte(1), f1[0])
		assert.Equal(t, byte(2), f2[0])
	})

	t.Run("pause holds audio", func(t *testing.T) {
		p.Write(filled(960, 3))
		p.Pause()
		_, ok := p.ReadFrame()
		assert.False(t, ok)
		assert.Equal(t, 960, p.Available())
		p.Resume()
		frame, ok := p.ReadFrame()
		assert.True(t, ok)
		assert.Equal(t, byte(3), frame[0])
	})
}

func TestPacerPreroll(t *testing.T) {
	p := NewPacer(PacerConfig{SampleRate: 16000, PrerollFrames: 2})
	bpf := p.BytesPerFrame()

	p.Write(filled(bpf*5, 9))
	p.Clear()
	assert.Zero(t, p.Available())

	p.Write(filled(bpf, 4))
	_, ok := p.ReadFrame()
	assert.False(t, ok, "prerolling after clear")

	p.Flush()
	frame, ok := p.ReadFrame()
	assert.True(t, ok)
	assert.Equal(t, byte(4), frame[0])
}

func filled(n int, v byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}
