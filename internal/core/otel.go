package core

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelTracer maps service spans onto an OpenTelemetry tracer.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer wraps tracer. A nil tracer uses the global provider.
func NewOTelTracer(tracer trace.Tracer) *OTelTracer {
	if tracer == nil {
		tracer = otel.Tracer("squadcore/internal/core")
	}
	return &OTelTracer{tracer: tracer}
}

// Start implements Tracer.
func (t *OTelTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	ctx, span := t.tracer.Start(ctx, "squadcore."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("squadcore.operation", operation)),
	)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
