// Package vad detects when a participant starts and stops talking on a live
// capture stream.
//
// An Engine slices the stream into short frames, asks a Scorer for a speech
// probability per frame and runs a two-state machine (silent, speaking) with
// minimum speech and silence durations measured in stream time. The default
// EnergyScorer combines RMS energy with a spectral-centroid check; a Silero
// ONNX scorer is available with the "silero" build tag.
//
// Usage:
//
//	engine := vad.NewEngine(vad.DefaultConfig(), vad.Callbacks{
//	    OnSpeechStart: func() { ... },
//	    OnSpeechEnd:   func() { ... },
//	})
//	if err := engine.Initialize(micSource); err != nil { ... }
//	engine.Start()
//	defer engine.Destroy()
package vad

// Scorer turns one frame of audio into a speech probability.
type Scorer interface {
	// Infer returns a probability in [0, 1] for samples normalized to [-1, 1].
	Infer(samples []float32) (float32, error)

	// Reset clears any state carried between frames.
	Reset() error

	// Destroy releases the scorer. It must not be used afterwards.
	Destroy() error
}
