package trace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpansAreExported(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	require.NoError(t, InitializeWithExporter(DefaultConfig(), exp))
	defer Shutdown(context.Background())

	assert.Error(t, InitializeWithExporter(DefaultConfig(), exp), "double init")

	ctx, turn := InstrumentTurn(context.Background(), "s1", 3)
	RecordStateChange(ctx, "listening", "processing")
	RecordInterruption(ctx, "vad", 12*time.Millisecond)

	_, llm := InstrumentLLMRequest(ctx, "openai", "gpt-4o-mini")
	RecordErrorType(llm, "timeout", errors.New("deadline exceeded"))
	llm.End()

	assert.NotEmpty(t, TraceID(ctx))
	assert.Contains(t, LogWithTrace(ctx, "hello"), "trace_id=")
	turn.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "llm.request", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "agent.turn", spans[1].Name)
	assert.Len(t, spans[1].Events, 2)
}

func TestNoProviderIsNoop(t *testing.T) {
	ctx, span := InstrumentTTSRequest(context.Background(), "openai", "nova", "hi")
	defer span.End()
	assert.Empty(t, TraceID(ctx))
	assert.Equal(t, "plain", LogWithTrace(ctx, "plain"))
	RecordError(span, nil)
}

func TestUnsupportedExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exporter = "zipkin"
	assert.Error(t, Initialize(context.Background(), cfg))
}
