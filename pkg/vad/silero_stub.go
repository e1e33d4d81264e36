//go:build !silero

package vad

import "errors"

// ErrSileroUnavailable is returned when the binary was built without the
// silero tag.
var ErrSileroUnavailable = errors.New("silero scorer not built in; rebuild with -tags silero")

// SileroConfig configures the neural scorer.
type SileroConfig struct {
	ModelPath  string
	SampleRate int
}

// NewSileroScorer always fails in builds without the silero tag.
func NewSileroScorer(SileroConfig) (Scorer, error) {
	return nil, ErrSileroUnavailable
}
