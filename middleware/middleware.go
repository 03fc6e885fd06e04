// Package middleware wraps the client's call path: send a request, receive
// and correlate its response.
//
//	Chain(A, B, C)(invoke) == A(B(C(invoke)))
//
// A runs first on the way in and last on the way out.
package middleware

import (
	"context"

	"ovs-unixctl/message"
)

// Invoker performs one request/response exchange.
type Invoker func(ctx context.Context, req *message.Request) (*message.Response, error)

type Middleware func(next Invoker) Invoker

// Chain composes middlewares into one, the first listed being outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next Invoker) Invoker {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
