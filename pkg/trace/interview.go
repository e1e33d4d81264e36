package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentTurn starts a span covering one participant answer from final
// transcript to the end of the agent's reply.
func InstrumentTurn(ctx context.Context, sessionID string, turnID uint64) (context.Context, trace.Span) {
	return StartSpan(ctx, "agent.turn", trace.WithAttributes(
		attribute.String(AttrSessionID, sessionID),
		attribute.Int64(AttrTurnID, int64(turnID)),
	))
}

// InstrumentConductorAction starts a span for the dialogue decision.
func InstrumentConductorAction(ctx context.Context, action string) (context.Context, trace.Span) {
	return StartSpan(ctx, "dialogue.respond", trace.WithAttributes(
		attribute.String(AttrInterviewAction, action),
	))
}

// InstrumentRoomConnect starts a span for joining an audio room.
func InstrumentRoomConnect(ctx context.Context, kind, url string) (context.Context, trace.Span) {
	return StartSpan(ctx, "room.connect", trace.WithAttributes(
		attribute.String(AttrRoomKind, kind),
		attribute.String(AttrRoomURL, url),
	))
}

// RecordInterruption adds a barge-in event to the span in ctx.
func RecordInterruption(ctx context.Context, source string, latency time.Duration) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("agent.interrupted", trace.WithAttributes(
		attribute.String(AttrInterruptSource, source),
		attribute.Int64("latency_ms", latency.Milliseconds()),
	))
}

// RecordStateChange adds a state transition event to the span in ctx.
func RecordStateChange(ctx context.Context, from, to string) {
	trace.SpanFromContext(ctx).AddEvent("agent.state", trace.WithAttributes(
		attribute.String("from", from),
		attribute.String(AttrAgentState, to),
	))
}
