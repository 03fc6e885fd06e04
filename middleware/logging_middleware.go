package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ovs-unixctl/message"
	"ovs-unixctl/rpcerr"
)

// LoggingMiddleware logs every call: debug on success, warn on failure.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Invoker) Invoker {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.Strings("params", req.Params),
				zap.Uint64("id", req.ID),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				fields = append(fields, zap.Stringer("kind", rpcerr.KindOf(err)), zap.Error(err))
				logger.Warn("unixctl call failed", fields...)
				return resp, err
			}
			logger.Debug("unixctl call", fields...)
			return resp, nil
		}
	}
}
