package main

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "ovs-appctl"

// setupTracing returns the tracer for the call middleware and a shutdown
// function that flushes pending spans.
func setupTracing(exporter string, w io.Writer) (trace.Tracer, func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	switch exporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		// One command per process: export synchronously instead of batching.
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exp),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		return tp.Tracer(tracerName), tp.Shutdown, nil
	case "noop", "":
		return noop.NewTracerProvider().Tracer(tracerName), noopShutdown, nil
	default:
		return nil, nil, fmt.Errorf("unsupported exporter: %s", exporter)
	}
}
