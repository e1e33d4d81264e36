package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, RoomLocal, cfg.Room.Kind)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.OpenAI.Model)
	assert.Equal(t, ProviderWhisper, cfg.STT.Provider)
	assert.Equal(t, "nova", cfg.TTS.Voice)
	assert.InDelta(t, 0.95, cfg.TTS.Speed, 1e-9)
	assert.InDelta(t, 0.45, cfg.Agent.VAD.ActivationThreshold, 1e-6)
	assert.Equal(t, 30*time.Second, cfg.Agent.ProcessingTimeout)
	assert.Equal(t, "none", cfg.Trace.Exporter)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(envMap(map[string]string{
		"OPENAI_API_KEY":      "sk-test",
		"OPENAI_BASE_URL":     "http://localhost:9999/v1",
		"GOOGLE_API_KEY":      "g-key",
		"AZURE_SPEECH_KEY":    "az",
		"AZURE_SPEECH_REGION": "westus",
		"ELEVENLABS_API_KEY":  "xi",
		"ROOM_KIND":           "websocket",
		"ROOM_URL":            "ws://room.local/ws",
		"ROOM_TOKEN":          "secret",
		"TRACE_EXPORTER":      "stdout",
		"VAD_THRESHOLD":       "0.3",
		"TTS_VOICE":           "",
	}))

	assert.Equal(t, "sk-test", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "http://localhost:9999/v1", cfg.LLM.OpenAI.BaseURL)
	assert.Equal(t, "g-key", cfg.LLM.Gemini.APIKey)
	assert.True(t, cfg.HasAzure())
	assert.Equal(t, "xi", cfg.Credentials.ElevenLabsKey)
	assert.Equal(t, RoomWebSocket, cfg.Room.Kind)
	assert.Equal(t, "secret", cfg.Room.Token)
	assert.Equal(t, "stdout", cfg.Trace.Exporter)
	assert.InDelta(t, 0.3, cfg.Agent.VAD.ActivationThreshold, 1e-6)
	// empty values do not clear settings
	assert.Equal(t, "nova", cfg.TTS.Voice)
}

func TestApplyEnv_GeminiKeyPreferred(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(envMap(map[string]string{"GEMINI_API_KEY": "gemini", "GOOGLE_API_KEY": "google"}))
	assert.Equal(t, "gemini", cfg.Credentials.GeminiKey)
}

func TestApplyEnv_BadThresholdIgnored(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(envMap(map[string]string{"VAD_THRESHOLD": "loud"}))
	assert.InDelta(t, 0.45, cfg.Agent.VAD.ActivationThreshold, 1e-6)
}

func TestValidate(t *testing.T) {
	withKeys := func(c *Config) {
		c.Credentials.OpenAIKey = "sk"
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults with key", mutate: withKeys},
		{name: "missing openai key", mutate: func(*Config) {}, wantErr: "OPENAI_API_KEY"},
		{
			name: "remote room without url",
			mutate: func(c *Config) {
				withKeys(c)
				c.Room.Kind = RoomWebRTC
			},
			wantErr: "ROOM_URL",
		},
		{
			name: "unknown room",
			mutate: func(c *Config) {
				withKeys(c)
				c.Room.Kind = "sip"
			},
			wantErr: "unknown room kind",
		},
		{
			name: "gemini without key",
			mutate: func(c *Config) {
				withKeys(c)
				c.LLM.Provider = ProviderGemini
			},
			wantErr: "GEMINI_API_KEY",
		},
		{
			name: "azure stt without region",
			mutate: func(c *Config) {
				withKeys(c)
				c.STT.Provider = ProviderAzure
				c.Credentials.AzureSpeechKey = "k"
			},
			wantErr: "AZURE_SPEECH_REGION",
		},
		{
			name: "azure everywhere",
			mutate: func(c *Config) {
				c.Credentials.GeminiKey = "g"
				c.Credentials.AzureSpeechKey = "k"
				c.Credentials.AzureSpeechRegion = "eastus"
				c.LLM.Provider = ProviderGemini
				c.STT.Provider = ProviderAzure
				c.TTS.Provider = ProviderAzure
			},
		},
		{
			name: "elevenlabs without key",
			mutate: func(c *Config) {
				withKeys(c)
				c.TTS.Provider = ProviderElevenLabs
			},
			wantErr: "ELEVENLABS_API_KEY",
		},
		{
			name: "elevenlabs speech",
			mutate: func(c *Config) {
				withKeys(c)
				c.Credentials.ElevenLabsKey = "xi"
				c.STT.Provider = ProviderElevenLabs
				c.TTS.Provider = ProviderElevenLabs
			},
		},
		{
			name: "bad threshold",
			mutate: func(c *Config) {
				withKeys(c)
				c.Agent.VAD.ActivationThreshold = 2
			},
			wantErr: "activation threshold",
		},
		{
			name: "unknown tts",
			mutate: func(c *Config) {
				withKeys(c)
				c.TTS.Provider = "espeak"
			},
			wantErr: "unknown tts provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-yaml")
	t.Setenv("ROOM_URL", "")

	path := filepath.Join(t.TempDir(), "interviewer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
room:
  kind: websocket
  url: ws://localhost:7880/ws
tts:
  voice: shimmer
agent:
  transcript_debounce: 350ms
  vad:
    activation_threshold: 0.5
interview:
  title: Platform team retro
  custom_questions:
    - What slowed you down this quarter?
  time_budget_minutes: 20
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, RoomWebSocket, cfg.Room.Kind)
	assert.Equal(t, "ws://localhost:7880/ws", cfg.Room.URL)
	assert.Equal(t, "shimmer", cfg.TTS.Voice)
	assert.InDelta(t, 0.95, cfg.TTS.Speed, 1e-9)
	assert.Equal(t, 350*time.Millisecond, cfg.Agent.TranscriptDebounce)
	assert.Equal(t, 30*time.Second, cfg.Agent.ProcessingTimeout)
	assert.InDelta(t, 0.5, cfg.Agent.VAD.ActivationThreshold, 1e-6)
	assert.Equal(t, 550*time.Millisecond, cfg.Agent.VAD.MinSilenceDuration)
	assert.Equal(t, "Platform team retro", cfg.Interview.Title)
	assert.Equal(t, []string{"What slowed you down this quarter?"}, cfg.Interview.CustomQuestions)
	assert.Equal(t, "sk-yaml", cfg.LLM.OpenAI.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("room: [unterminated"), 0o600))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse")
}
