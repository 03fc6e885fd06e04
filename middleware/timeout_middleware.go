package middleware

import (
	"context"
	"time"

	"ovs-unixctl/message"
)

// TimeOutMiddleware gives each call a context deadline. The unix transport
// folds it into the socket deadline, so it can only shorten the configured
// socket timeout, never extend it.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, req)
		}
	}
}
