package trace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RecordError marks the span failed. A nil error is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordErrorType marks the span failed with a classification attribute.
func RecordErrorType(span trace.Span, errType string, err error) {
	if err == nil {
		return
	}
	span.SetAttributes(attribute.String(AttrErrorType, errType))
	RecordError(span, err)
}

// TraceID returns the trace id in ctx or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// LogWithTrace prefixes message with trace and span ids when ctx carries a
// sampled span.
func LogWithTrace(ctx context.Context, message string) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return message
	}
	return fmt.Sprintf("[trace_id=%s span_id=%s] %s", sc.TraceID(), sc.SpanID(), message)
}
