package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"ovs-unixctl/message"
)

// ErrRateLimited is returned without touching the socket when the limiter
// has no token for the call.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitMiddleware bounds the rate of commands sent to the daemon with a
// token bucket of r tokens per second and the given burst.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next Invoker) Invoker {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			if !limiter.Allow() {
				return nil, ErrRateLimited
			}
			return next(ctx, req)
		}
	}
}
