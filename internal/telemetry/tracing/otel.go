package tracing

// otelTracer bridges the internal Tracer contract onto a real OpenTelemetry
// SDK TracerProvider, for processes that export spans to a collector
// instead of relying on the in-process trace/span IDs the simple tracer
// stamps onto log lines.

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	otelapi "go.opentelemetry.io/otel/trace"
)

type otelTracer struct {
	tracer otelapi.Tracer
}

// NewOTelTracer returns a Tracer backed by a fresh SDK TracerProvider.
// Exporters are layered on by the caller via sdktrace.WithBatcher options
// passed through provider (left zero-config, matching the metrics
// provider's zero-config default).
func NewOTelTracer(provider *sdktrace.TracerProvider) Tracer {
	return &otelTracer{tracer: provider.Tracer("emgcore")}
}

func (t *otelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

func (t *otelTracer) Noop() bool { return false }

type otelSpan struct {
	span otelapi.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttribute(key string, value any) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprint(v)))
	}
}

func (s *otelSpan) Context() SpanContext {
	sc := s.span.SpanContext()
	return SpanContext{TraceID: sc.TraceID().String(), SpanID: sc.SpanID().String()}
}

func (s *otelSpan) IsEnded() bool { return !s.span.IsRecording() }
