package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/realtime-ai/interview-agent/pkg/agent"
	"github.com/realtime-ai/interview-agent/pkg/asr"
	"github.com/realtime-ai/interview-agent/pkg/bus"
	"github.com/realtime-ai/interview-agent/pkg/config"
	"github.com/realtime-ai/interview-agent/pkg/dialogue"
	"github.com/realtime-ai/interview-agent/pkg/room"
	"github.com/realtime-ai/interview-agent/pkg/trace"
	"github.com/realtime-ai/interview-agent/pkg/tts"
)

// newSession connects a room and assembles an unstarted controller around
// it. The room and providers are released when the interview ends.
func newSession(ctx context.Context, cfg config.Config, id string, ictx dialogue.InterviewContext) (*agent.Controller, error) {
	model, err := newModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}
	provider, err := newRecognitionProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("speech recognition: %w", err)
	}

	rm, err := newRoom(cfg)
	if err != nil {
		provider.Close()
		return nil, err
	}
	connectCtx, span := trace.InstrumentRoomConnect(ctx, cfg.Room.Kind, cfg.Room.URL)
	err = rm.Connect(connectCtx)
	trace.RecordError(span, err)
	span.End()
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("connect %s room: %w", cfg.Room.Kind, err)
	}

	player := tts.NewPacedPlayer(rm.Speaker(), 0)
	speaker := newSpeaker(cfg, player)

	agentCfg := cfg.Agent
	agentCfg.Voice = tts.SpeakOptions{Voice: cfg.TTS.Voice, Speed: cfg.TTS.Speed}

	b := bus.New()
	c, err := agent.NewController(id, agent.Deps{
		Microphone: room.Microphone{Room: rm},
		Recognizer: asr.NewListener(provider, asr.RecognitionConfig{
			Language: cfg.STT.Language,
			Model:    cfg.STT.Model,
		}),
		Speaker:   speaker,
		Conductor: dialogue.NewConductor(ictx, model, dialogue.WithConfig(cfg.Dialogue)),
	}, agent.WithConfig(agentCfg), agent.WithBus(b))
	if err != nil {
		player.Close()
		rm.Disconnect()
		provider.Close()
		return nil, err
	}

	go logEvents(c, b)
	go watchRoom(c, rm)
	go func() {
		<-c.Done()
		player.Close()
		if err := rm.Disconnect(); err != nil {
			log.Printf("[Interviewer] [session %s] disconnect: %v", c.ID(), err)
		}
		provider.Close()
	}()

	log.Printf("[Interviewer] [session %s] ready: room=%s llm=%s stt=%s tts=%s questions=%d",
		c.ID(), cfg.Room.Kind, model.Name(), provider.Name(), cfg.TTS.Provider, len(ictx.Questions()))
	return c, nil
}

func newRoom(cfg config.Config) (room.Room, error) {
	switch cfg.Room.Kind {
	case config.RoomLocal, "":
		return room.NewLocalRoom(room.DefaultLocalConfig()), nil
	case config.RoomWebSocket:
		wc := room.DefaultWebSocketConfig()
		wc.URL = cfg.Room.URL
		wc.Token = cfg.Room.Token
		if cfg.Room.Identity != "" {
			wc.Identity = cfg.Room.Identity
		}
		return room.NewWebSocketRoom(wc), nil
	case config.RoomWebRTC:
		rc := room.DefaultWebRTCConfig()
		rc.URL = cfg.Room.URL
		rc.Token = cfg.Room.Token
		return room.NewWebRTCRoom(rc), nil
	default:
		return nil, fmt.Errorf("unknown room kind %q", cfg.Room.Kind)
	}
}

func newModel(ctx context.Context, cfg config.Config) (dialogue.LanguageModel, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		return dialogue.NewGeminiModel(ctx, cfg.LLM.Gemini)
	case config.ProviderOpenAI, "":
		return dialogue.NewOpenAIModel(cfg.LLM.OpenAI)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func newRecognitionProvider(cfg config.Config) (asr.Provider, error) {
	switch cfg.STT.Provider {
	case config.ProviderAzure:
		return asr.NewAzureProvider(asr.AzureConfig{
			SubscriptionKey: cfg.Credentials.AzureSpeechKey,
			Region:          cfg.Credentials.AzureSpeechRegion,
			Language:        azureLocale(cfg.STT.Language),
		})
	case config.ProviderElevenLabs:
		return asr.NewElevenLabsProvider(asr.ElevenLabsConfig{
			APIKey: cfg.Credentials.ElevenLabsKey,
		})
	case config.ProviderWhisper, config.ProviderOpenAI, "":
		return asr.NewWhisperProvider(asr.WhisperConfig{
			APIKey:  cfg.Credentials.OpenAIKey,
			BaseURL: cfg.Credentials.OpenAIBaseURL,
			Model:   cfg.STT.Model,
		})
	default:
		return nil, fmt.Errorf("unknown stt provider %q", cfg.STT.Provider)
	}
}

// newSpeaker puts the configured provider first and, with Fallback set,
// every other provider whose credentials exist behind it.
func newSpeaker(cfg config.Config, player tts.Player) *tts.Client {
	available := map[string]tts.Provider{}
	if cfg.Credentials.OpenAIKey != "" {
		oc := tts.OpenAIConfig{
			APIKey: cfg.Credentials.OpenAIKey,
			Model:  cfg.TTS.Model,
			Voice:  cfg.TTS.Voice,
		}
		if cfg.Credentials.OpenAIBaseURL != "" {
			oc.Endpoint = strings.TrimRight(cfg.Credentials.OpenAIBaseURL, "/") + "/audio/speech"
		}
		available[config.ProviderOpenAI] = tts.NewOpenAIProvider(oc)
	}
	if cfg.HasAzure() {
		available[config.ProviderAzure] = tts.NewAzureProvider(tts.AzureConfig{
			SubscriptionKey: cfg.Credentials.AzureSpeechKey,
			Region:          cfg.Credentials.AzureSpeechRegion,
			Voice:           cfg.TTS.AzureVoice,
			Language:        azureLocale(cfg.STT.Language),
		})
	}
	if cfg.Credentials.ElevenLabsKey != "" {
		available[config.ProviderElevenLabs] = tts.NewElevenLabsProvider(tts.ElevenLabsConfig{
			APIKey:  cfg.Credentials.ElevenLabsKey,
			VoiceID: cfg.TTS.ElevenLabsVoice,
		})
	}

	order := ttsOrder(cfg.TTS.Provider, cfg.TTS.Fallback)
	providers := make([]tts.Provider, 0, len(order))
	for _, name := range order {
		if p, ok := available[name]; ok {
			providers = append(providers, p)
		}
	}

	cc := tts.DefaultClientConfig()
	cc.Voice = cfg.TTS.Voice
	cc.Speed = cfg.TTS.Speed
	return tts.NewClientWithConfig(cc, player, providers...)
}

// ttsOrder lists provider names to try, primary first.
func ttsOrder(primary string, fallback bool) []string {
	order := []string{primary}
	if !fallback {
		return order
	}
	for _, name := range []string{config.ProviderOpenAI, config.ProviderAzure, config.ProviderElevenLabs} {
		if name != primary {
			order = append(order, name)
		}
	}
	return order
}

// azureLocale keeps full locales ("en-US") and lets the provider default
// bare language codes.
func azureLocale(lang string) string {
	if strings.Contains(lang, "-") {
		return lang
	}
	return ""
}

func logEvents(c *agent.Controller, b *bus.EventBus) {
	events := make(chan bus.Event, 64)
	b.SubscribeAll(events)
	defer b.UnsubscribeAll(events)

	for {
		select {
		case ev := <-events:
			logEvent(ev)
		case <-c.Done():
			for {
				select {
				case ev := <-events:
					logEvent(ev)
				default:
					return
				}
			}
		}
	}
}

func logEvent(ev bus.Event) {
	switch p := ev.Payload.(type) {
	case bus.TranscriptPayload:
		if p.Final {
			log.Printf("[Interviewer] [session %s] participant: %s", ev.SessionID, p.Text)
		}
	case bus.MessagePayload:
		log.Printf("[Interviewer] [session %s] interviewer: %s", ev.SessionID, p.Text)
	case bus.InterruptPayload:
		log.Printf("[Interviewer] [session %s] interrupted by %s after %v", ev.SessionID, p.Source, p.Latency)
	case bus.CompletePayload:
		log.Printf("[Interviewer] [session %s] complete: %d questions, %d responses, %d%% in %v",
			ev.SessionID, p.QuestionsAsked, p.Responses, p.Completion, p.Duration.Round(time.Second))
	case bus.ErrorPayload:
		log.Printf("[Interviewer] [session %s] error (fatal=%v): %v", ev.SessionID, p.Fatal, p.Err)
	}
}

// watchRoom ends the interview when the room goes away.
func watchRoom(c *agent.Controller, rm room.Room) {
	for ev := range rm.Events() {
		switch e := ev.(type) {
		case room.ParticipantJoined:
			log.Printf("[Interviewer] [session %s] %s joined", c.ID(), e.Identity)
		case room.ParticipantLeft:
			log.Printf("[Interviewer] [session %s] %s left", c.ID(), e.Identity)
		case room.Failed:
			log.Printf("[Interviewer] [session %s] room error: %v", c.ID(), e.Err)
		case room.StateChanged:
			if e.State == room.StateDisconnected || e.State == room.StateFailed {
				log.Printf("[Interviewer] [session %s] room %s", c.ID(), e.State)
				c.Stop()
				return
			}
		}
	}
}
