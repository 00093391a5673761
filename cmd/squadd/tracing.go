package main

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"squadcore/internal/core"
)

type shutdownFunc func(context.Context) error

func noShutdown(context.Context) error { return nil }

// setupTracing builds the service tracer for mode (none, json or otel).
// The otel exporter reads the standard OTEL_EXPORTER_OTLP_* variables.
func setupTracing(ctx context.Context, mode string) (core.Tracer, shutdownFunc, error) {
	switch mode {
	case "", "none":
		return nil, noShutdown, nil
	case "json":
		return core.NewJSONTracer(serviceName, os.Stderr), noShutdown, nil
	case "otel":
		exporter, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, noShutdown, err
		}
		res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
		if err != nil {
			return nil, noShutdown, err
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})
		return core.NewOTelTracer(tp.Tracer("squadcore/cmd/squadd")), tp.Shutdown, nil
	default:
		return nil, noShutdown, fmt.Errorf("unknown tracing mode %q", mode)
	}
}
