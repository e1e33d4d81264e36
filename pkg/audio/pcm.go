// Package audio holds the PCM plumbing shared by the interview agent: format
// conversion, fixed-size framing, fan-out of a live capture stream, pre-roll
// buffering, paced playback and sample rate conversion.
//
// All PCM in this package is signed 16-bit little-endian mono unless stated
// otherwise.
package audio

import (
	"encoding/binary"
	"time"
)

const (
	// BytesPerSample is the size of one S16 sample.
	BytesPerSample = 2
	// FrameDurationMs is the playback frame duration.
	FrameDurationMs = 20
)

// BytesToInt16 converts little-endian S16 bytes to samples. A trailing odd
// byte is ignored.
func BytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return samples
}

// Int16ToBytes converts samples to little-endian S16 bytes.
func Int16ToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// Int16ToFloat32 normalizes samples to [-1, 1].
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Float32ToInt16 converts normalized samples back to S16, clipping at full scale.
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		switch {
		case s >= 1:
			out[i] = 32767
		case s <= -1:
			out[i] = -32768
		default:
			out[i] = int16(s * 32767)
		}
	}
	return out
}

// SamplesPerDuration returns the number of samples covering d at sampleRate.
func SamplesPerDuration(sampleRate int, d time.Duration) int {
	return int(int64(sampleRate) * d.Milliseconds() / 1000)
}

// DurationOf returns the playback duration of n samples at sampleRate.
func DurationOf(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
