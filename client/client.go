// Package client implements request/response correlation over a Stream.
//
// A Client owns exactly one connection and runs one exchange at a time:
//
//	Call(m1) ──send(id=1)──► daemon ──resp(id=1)──► verify ──► result
//	Call(m2) ──send(id=2)──► daemon ──resp(id=2)──► verify ──► result
//
// Nothing is pipelined or multiplexed. Callers that need concurrency use one
// Client each (see appctl.Pool).
package client

import (
	"context"
	"sync"
	"time"

	"ovs-unixctl/message"
	"ovs-unixctl/middleware"
	"ovs-unixctl/rpcerr"
	"ovs-unixctl/transport"
)

type Client struct {
	stream transport.Stream
	target string
	mu     sync.Mutex // Held across each send/receive pair; guards lastID
	lastID uint64     // Last id sent; the first request gets 1
	invoke middleware.Invoker
}

// New connects streamClient and wraps the stream. Middlewares run around
// every call, the first listed being outermost.
func New(ctx context.Context, streamClient transport.StreamClient, mws ...middleware.Middleware) (*Client, error) {
	stream, err := streamClient.Connect(ctx)
	if err != nil {
		return nil, err
	}
	c := &Client{
		stream: stream,
		target: streamClient.String(),
	}
	c.invoke = middleware.Chain(mws...)(c.roundTrip)
	return c, nil
}

// NewUnix connects to the control socket at path. The timeout is applied as
// both read and write deadline; <= 0 means none.
func NewUnix(ctx context.Context, path string, timeout time.Duration, mws ...middleware.Middleware) (*Client, error) {
	return New(ctx, transport.NewUnixStreamClient(path).WithTimeout(timeout), mws...)
}

// Target describes the connected endpoint, e.g. "unix:///run/x.ctl".
func (c *Client) Target() string {
	return c.target
}

// Call sends method with params and returns the correlated response.
//
// A response without an id, or with another request's id, is a
// *rpcerr.ProtocolError. A response carrying a non-empty error is a
// *rpcerr.CommandError. The result may be absent; the caller decides
// whether that is valid for the method.
//
// The id is assigned only when the request reaches the socket, so ids on the
// wire are 1, 2, 3, ... even when calls overlap or a middleware rejects one.
// Middlewares see req.ID once next has returned.
func (c *Client) Call(ctx context.Context, method string, params ...string) (*message.Response, error) {
	return c.invoke(ctx, message.NewRequest(method, params, 0))
}

// CallString is Call for methods returning a text result. ok is false when
// the daemon sent no result.
func (c *Client) CallString(ctx context.Context, method string, params ...string) (result string, ok bool, err error) {
	resp, err := c.Call(ctx, method, params...)
	if err != nil {
		return "", false, err
	}
	ok, err = resp.DecodeResult(&result)
	if err != nil {
		return "", false, &rpcerr.SerializeError{Err: err}
	}
	return result, ok, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.stream.Close()
}

// roundTrip is the innermost Invoker: send, receive, correlate.
func (c *Client) roundTrip(ctx context.Context, req *message.Request) (*message.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastID++
	req.ID = c.lastID
	if err := c.stream.Send(ctx, req); err != nil {
		return nil, err
	}

	var resp message.Response
	if err := c.stream.Receive(ctx, &resp); err != nil {
		return nil, err
	}

	if resp.ID == nil {
		return nil, &rpcerr.ProtocolError{Detail: "id not found in response"}
	}
	if *resp.ID != req.ID {
		return nil, &rpcerr.ProtocolError{Detail: "request and response ids do not match"}
	}
	if errText := resp.ErrorText(); errText != "" {
		return nil, &rpcerr.CommandError{
			Method:  req.Method,
			Params:  req.JoinedParams(),
			Message: errText,
		}
	}
	return &resp, nil
}
