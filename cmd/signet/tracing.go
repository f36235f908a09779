package main

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// newTracerProvider returns the provider controller spans are recorded with,
// and a func that flushes it. With tracing off spans are not recorded and
// logs are not mirrored onto them.
func newTracerProvider(exporter string, out io.Writer) (trace.TracerProvider, func(context.Context) error, error) {
	if exporter != TraceConsole {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", "signet"))),
	)
	return tp, tp.Shutdown, nil
}
