package audio

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCMConversion(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	assert.Equal(t, samples, BytesToInt16(Int16ToBytes(samples)))

	f := Int16ToFloat32([]int16{16384, -32768})
	assert.InDelta(t, 0.5, f[0], 1e-6)
	assert.InDelta(t, -1.0, f[1], 1e-6)

	assert.Equal(t, []int16{32767, -32768, 0}, Float32ToInt16([]float32{1.5, -2, 0}))
}

func TestDurations(t *testing.T) {
	assert.Equal(t, 320, SamplesPerDuration(16000, 20*time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, DurationOf(320, 16000))
	assert.Zero(t, DurationOf(10, 0))
}

func TestFramer(t *testing.T) {
	f := NewFramer(4)
	var frames [][]float32
	collect := func(fr []float32) {
		frames = append(frames, append([]float32(nil), fr...))
	}

	f.Push([]float32{1, 2, 3}, collect)
	assert.Empty(t, frames)

	f.Push([]float32{4, 5, 6, 7, 8, 9}, collect)
	require.Len(t, frames, 2)
	assert.Equal(t, []float32{1, 2, 3, 4}, frames[0])
	assert.Equal(t, []float32{5, 6, 7, 8}, frames[1])

	f.Reset()
	f.Push([]float32{10, 11, 12, 13}, collect)
	require.Len(t, frames, 3)
	assert.Equal(t, []float32{10, 11, 12, 13}, frames[2])
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster(16000)
	assert.Equal(t, 16000, b.SampleRate())

	var a, c atomic.Int32
	unsubA, err := b.Subscribe(func(pcm []int16) { a.Add(int32(len(pcm))) })
	require.NoError(t, err)
	_, err = b.Subscribe(func(pcm []int16) { c.Add(int32(len(pcm))) })
	require.NoError(t, err)

	b.Publish([]int16{1, 2, 3})
	assert.EqualValues(t, 3, a.Load())
	assert.EqualValues(t, 3, c.Load())

	unsubA()
	unsubA()
	b.Publish([]int16{1})
	assert.EqualValues(t, 3, a.Load())
	assert.EqualValues(t, 4, c.Load())

	b.Close()
	b.Publish([]int16{1})
	assert.EqualValues(t, 4, c.Load())
	_, err = b.Subscribe(func([]int16) {})
	assert.ErrorIs(t, err, ErrSourceClosed)
}

func TestPassthroughResampler(t *testing.T) {
	r, err := NewResampler(16000, 16000)
	require.NoError(t, err)
	defer r.Close()

	in := []byte{1, 2, 3, 4}
	out, err := r.Resample(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = NewResampler(0, 16000)
	assert.Error(t, err)
}
