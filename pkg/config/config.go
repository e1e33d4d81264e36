// Package config assembles the interviewer's settings. Defaults come from
// each component's Default*Config constructor, an optional YAML file
// overlays them and environment variables (including a local .env file)
// win last. Credentials are only ever read from the environment.
//
// Usage:
//
//	cfg, err := config.Load("interviewer.yaml")
//	if err != nil { ... }
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/realtime-ai/interview-agent/pkg/agent"
	"github.com/realtime-ai/interview-agent/pkg/dialogue"
	"github.com/realtime-ai/interview-agent/pkg/trace"
)

// Room transports.
const (
	RoomLocal     = "local"
	RoomWebSocket = "websocket"
	RoomWebRTC    = "webrtc"
)

// Provider names.
const (
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderWhisper = "whisper"
	ProviderAzure   = "azure"

	ProviderElevenLabs = "elevenlabs"
)

// Credentials are read from the environment only.
type Credentials struct {
	OpenAIKey         string
	OpenAIBaseURL     string
	GeminiKey         string
	AzureSpeechKey    string
	AzureSpeechRegion string
	ElevenLabsKey     string
}

// RoomConfig selects how audio reaches the participant.
type RoomConfig struct {
	Kind     string `yaml:"kind"`
	URL      string `yaml:"url"`
	Token    string `yaml:"-"`
	Identity string `yaml:"identity"`
}

// LLMConfig selects the conductor's language model.
type LLMConfig struct {
	Provider string                `yaml:"provider"`
	OpenAI   dialogue.OpenAIConfig `yaml:"openai"`
	Gemini   dialogue.GeminiConfig `yaml:"gemini"`
}

// STTConfig selects speech recognition.
type STTConfig struct {
	Provider string `yaml:"provider"`
	Language string `yaml:"language"`
	// Model applies to Whisper.
	Model string `yaml:"model"`
}

// TTSConfig selects speech synthesis. Fallback adds the other provider
// behind the primary when its credentials are present.
type TTSConfig struct {
	Provider   string  `yaml:"provider"`
	Voice      string  `yaml:"voice"`
	Speed      float64 `yaml:"speed"`
	Model      string  `yaml:"model"`
	AzureVoice string  `yaml:"azure_voice"`
	// ElevenLabsVoice is a voice id.
	ElevenLabsVoice string `yaml:"elevenlabs_voice"`
	Fallback        bool   `yaml:"fallback"`
}

// ServerConfig configures the control API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// AuthToken, when set, is required as a bearer token.
	AuthToken string `yaml:"-"`
}

// Config is everything cmd/interviewer needs to run a session.
type Config struct {
	Room      RoomConfig                `yaml:"room"`
	LLM       LLMConfig                 `yaml:"llm"`
	STT       STTConfig                 `yaml:"stt"`
	TTS       TTSConfig                 `yaml:"tts"`
	Agent     agent.Config              `yaml:"agent"`
	Dialogue  dialogue.Config           `yaml:"dialogue"`
	Interview dialogue.InterviewContext `yaml:"interview"`
	Trace     trace.Config              `yaml:"trace"`
	Server    ServerConfig              `yaml:"server"`

	Credentials Credentials `yaml:"-"`
}

// Default returns a local-microphone interview with OpenAI services.
func Default() Config {
	return Config{
		Room: RoomConfig{Kind: RoomLocal, Identity: "interviewer"},
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			OpenAI:   dialogue.OpenAIConfig{Model: "gpt-4o-mini", MaxRetries: 2},
			Gemini:   dialogue.GeminiConfig{Model: "gemini-2.0-flash"},
		},
		STT: STTConfig{Provider: ProviderWhisper, Language: "en", Model: "whisper-1"},
		TTS: TTSConfig{
			Provider:   ProviderOpenAI,
			Voice:      "nova",
			Speed:      0.95,
			Model:      "tts-1",
			AzureVoice: "en-US-JennyNeural",
		},
		Agent:    agent.DefaultConfig(),
		Dialogue: dialogue.DefaultConfig(),
		Interview: dialogue.InterviewContext{
			Title:             "Conversation",
			TimeBudgetMinutes: 15,
		},
		Trace:  trace.DefaultConfig(),
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads .env (if present), overlays the YAML file at path (if not
// empty), applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[Config] .env: %v", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables looked up with
// lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("OPENAI_API_KEY", &c.Credentials.OpenAIKey)
	str("OPENAI_BASE_URL", &c.Credentials.OpenAIBaseURL)
	str("GEMINI_API_KEY", &c.Credentials.GeminiKey)
	if c.Credentials.GeminiKey == "" {
		str("GOOGLE_API_KEY", &c.Credentials.GeminiKey)
	}
	str("AZURE_SPEECH_KEY", &c.Credentials.AzureSpeechKey)
	str("AZURE_SPEECH_REGION", &c.Credentials.AzureSpeechRegion)
	str("ELEVENLABS_API_KEY", &c.Credentials.ElevenLabsKey)

	str("ROOM_KIND", &c.Room.Kind)
	str("ROOM_URL", &c.Room.URL)
	str("ROOM_TOKEN", &c.Room.Token)
	str("LLM_PROVIDER", &c.LLM.Provider)
	str("STT_PROVIDER", &c.STT.Provider)
	str("TTS_PROVIDER", &c.TTS.Provider)
	str("TTS_VOICE", &c.TTS.Voice)
	str("TRACE_EXPORTER", &c.Trace.Exporter)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Trace.OTLPEndpoint)
	str("SERVER_ADDR", &c.Server.Addr)
	str("SERVER_AUTH_TOKEN", &c.Server.AuthToken)

	if v, ok := lookup("VAD_THRESHOLD"); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			c.Agent.VAD.ActivationThreshold = float32(f)
		} else {
			log.Printf("[Config] ignoring VAD_THRESHOLD=%q: %v", v, err)
		}
	}

	c.LLM.OpenAI.APIKey = c.Credentials.OpenAIKey
	if c.LLM.OpenAI.BaseURL == "" {
		c.LLM.OpenAI.BaseURL = c.Credentials.OpenAIBaseURL
	}
	c.LLM.Gemini.APIKey = c.Credentials.GeminiKey
}

// Validate checks that the selected providers are known and have the
// credentials they need.
func (c Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Room.Kind) {
	case RoomLocal:
	case RoomWebSocket, RoomWebRTC:
		if c.Room.URL == "" {
			errs = append(errs, fmt.Errorf("room %s requires ROOM_URL", c.Room.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown room kind %q", c.Room.Kind))
	}

	switch c.LLM.Provider {
	case ProviderOpenAI:
		errs = append(errs, c.need("OPENAI_API_KEY", c.Credentials.OpenAIKey, "llm"))
	case ProviderGemini:
		errs = append(errs, c.need("GEMINI_API_KEY", c.Credentials.GeminiKey, "llm"))
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}

	switch c.STT.Provider {
	case ProviderWhisper:
		errs = append(errs, c.need("OPENAI_API_KEY", c.Credentials.OpenAIKey, "stt"))
	case ProviderAzure:
		errs = append(errs, c.needAzure("stt"))
	case ProviderElevenLabs:
		errs = append(errs, c.need("ELEVENLABS_API_KEY", c.Credentials.ElevenLabsKey, "stt"))
	default:
		errs = append(errs, fmt.Errorf("unknown stt provider %q", c.STT.Provider))
	}

	switch c.TTS.Provider {
	case ProviderOpenAI:
		errs = append(errs, c.need("OPENAI_API_KEY", c.Credentials.OpenAIKey, "tts"))
	case ProviderAzure:
		errs = append(errs, c.needAzure("tts"))
	case ProviderElevenLabs:
		errs = append(errs, c.need("ELEVENLABS_API_KEY", c.Credentials.ElevenLabsKey, "tts"))
	default:
		errs = append(errs, fmt.Errorf("unknown tts provider %q", c.TTS.Provider))
	}

	if err := c.Agent.VAD.Tuning.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("vad: %w", err))
	}
	return errors.Join(errs...)
}

func (c Config) need(env, value, component string) error {
	if value == "" {
		return fmt.Errorf("%s: %s is not set", component, env)
	}
	return nil
}

func (c Config) needAzure(component string) error {
	if c.Credentials.AzureSpeechKey == "" || c.Credentials.AzureSpeechRegion == "" {
		return fmt.Errorf("%s: AZURE_SPEECH_KEY and AZURE_SPEECH_REGION are required", component)
	}
	return nil
}

// HasAzure reports whether Azure speech credentials are present.
func (c Config) HasAzure() bool {
	return c.Credentials.AzureSpeechKey != "" && c.Credentials.AzureSpeechRegion != ""
}
