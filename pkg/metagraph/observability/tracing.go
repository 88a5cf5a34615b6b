package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("metagraph")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartInstantiateSpan starts a span covering one pattern instantiation.
	StartInstantiateSpan(ctx context.Context, flowID string) (context.Context, trace.Span)

	// StartCalcSpan starts a span for one dataflow node evaluation.
	StartCalcSpan(ctx context.Context, flowID, calcID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses the global OTel tracer provider.
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

func (m *otelSpanManager) StartInstantiateSpan(ctx context.Context, flowID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "metagraph.instantiate",
		trace.WithAttributes(
			attribute.String("flow.id", flowID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartCalcSpan(ctx context.Context, flowID, calcID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "metagraph.calc."+calcID,
		trace.WithAttributes(
			attribute.String("flow.id", flowID),
			attribute.String("calc.id", calcID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
