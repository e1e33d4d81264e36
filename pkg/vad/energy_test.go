package vad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testRate = 16000

// tone returns n samples of a sine at freq Hz.
func tone(n int, freq, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/testRate))
	}
	return out
}

func TestEnergyScorer(t *testing.T) {
	s := NewEnergyScorer(DefaultEnergyConfig(testRate))
	frame := 320

	tests := []struct {
		name string
		in   []float32
		want float32
	}{
		{"digital silence", make([]float32, frame), 0},
		{"below energy floor", tone(frame, 300, 0.005), 0},
		{"voiced band tone", tone(frame, 300, 0.3), 1},
		{"quiet voiced tone", tone(frame, 300, 0.02), 0.5 + float32(0.02/math.Sqrt2*10)},
		{"loud tone above voice band", tone(frame, 6000, 0.3), 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := s.Infer(tt.in)
			assert.NoError(t, err)
			assert.InDelta(t, tt.want, p, 0.01)
		})
	}
}

func TestEnergyScorerCentroid(t *testing.T) {
	s := NewEnergyScorer(DefaultEnergyConfig(testRate))

	f := s.Analyze(tone(320, 300, 0.3))
	assert.InDelta(t, 300, f.Centroid, 50)
	assert.InDelta(t, 0.3/math.Sqrt2, f.RMS, 0.01)

	f = s.Analyze(tone(320, 6000, 0.3))
	assert.InDelta(t, 6000, f.Centroid, 100)

	// Frame length changes rebuild the transform.
	f = s.Analyze(tone(512, 500, 0.3))
	assert.InDelta(t, 500, f.Centroid, 60)

	assert.Equal(t, Features{}, s.Analyze(nil))
	assert.NoError(t, s.Reset())
	assert.NoError(t, s.Destroy())
}
