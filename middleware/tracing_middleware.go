package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ovs-unixctl/message"
	"ovs-unixctl/rpcerr"
)

const tracerName = "ovs-unixctl"

// TracingMiddleware opens one client span per call. A nil tracer uses the
// global provider.
func TracingMiddleware(tracer trace.Tracer) Middleware {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return func(next Invoker) Invoker {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			ctx, span := tracer.Start(ctx, "unixctl "+req.Method,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(
					attribute.String("rpc.system", "unixctl"),
					attribute.String("rpc.method", req.Method),
					attribute.StringSlice("rpc.unixctl.params", req.Params),
				))
			defer span.End()

			resp, err := next(ctx, req)
			// The id is assigned on the way to the socket; zero means it was never sent.
			if req.ID != 0 {
				span.SetAttributes(attribute.Int64("rpc.unixctl.id", int64(req.ID)))
			}
			if err != nil {
				span.RecordError(err)
				span.SetAttributes(attribute.String("rpc.unixctl.error_kind", rpcerr.KindOf(err).String()))
				span.SetStatus(codes.Error, err.Error())
				return resp, err
			}
			span.SetStatus(codes.Ok, "")
			return resp, nil
		}
	}
}
