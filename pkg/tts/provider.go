package tts

import (
	"context"
)

// AudioFormat describes synthesized audio. Providers used by Client must
// return mono 16-bit little-endian PCM.
type AudioFormat struct {
	SampleRate int    // Sample rate in Hz (e.g., 24000, 16000)
	Channels   int    // Number of audio channels
	Encoding   string // e.g. "pcm_s16le"
}

// SynthesizeRequest represents a request to synthesize speech
type SynthesizeRequest struct {
	Text     string
	Voice    string  // Provider voice name; empty selects the default
	Speed    float64 // 1.0 is normal rate; zero means default
	Language string  // e.g. "en-US"
}

// SynthesizeResponse represents the response from speech synthesis
type SynthesizeResponse struct {
	AudioData   []byte
	AudioFormat AudioFormat
}

// Provider defines the interface that all TTS services must implement.
type Provider interface {
	// Name returns the name of the TTS provider (e.g., "openai", "azure")
	Name() string

	// Synthesize converts text to speech. It must honour ctx cancellation.
	Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error)

	// GetSupportedVoices returns voice names accepted in SynthesizeRequest
	GetSupportedVoices() []string

	// GetDefaultVoice returns the default voice for this provider
	GetDefaultVoice() string

	// ValidateConfig returns an error if credentials or required settings are missing
	ValidateConfig() error
}

// Player renders PCM to the listener. Play blocks until the audio has been
// played out or ctx is cancelled, in which case it returns ctx.Err().
type Player interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}
