package trace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentLLMRequest starts a span around a completion call.
func InstrumentLLMRequest(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return StartSpan(ctx, "llm.request", trace.WithAttributes(LLMAttrs(provider, model)...))
}

// InstrumentSTTRequest starts a span around a transcription call.
func InstrumentSTTRequest(ctx context.Context, provider string, audioSize int) (context.Context, trace.Span) {
	return StartSpan(ctx, "stt.request", trace.WithAttributes(
		attribute.String(AttrSTTProvider, provider),
		attribute.Int("audio.size", audioSize),
	))
}

// InstrumentTTSRequest starts a span around a synthesis call.
func InstrumentTTSRequest(ctx context.Context, provider, voice, text string) (context.Context, trace.Span) {
	return StartSpan(ctx, "tts.request", trace.WithAttributes(
		attribute.String(AttrTTSProvider, provider),
		attribute.String(AttrTTSVoice, voice),
		attribute.Int("text.length", len(text)),
	))
}
