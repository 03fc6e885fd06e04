// Package transport carries encoded messages between the client and a daemon.
//
// The correlation logic in package client is written against Stream and
// StreamClient only, so a new medium (TCP, a test pipe) plugs in without
// touching it.
package transport

import (
	"context"
	"fmt"
	"io"
)

// Stream sends and receives one message at a time.
type Stream interface {
	// Send encodes msg and writes it to the peer.
	Send(ctx context.Context, msg any) error
	// Receive blocks until exactly one value has been decoded into v,
	// or fails with rpcerr.ErrTimeout or a *rpcerr.SocketError.
	Receive(ctx context.Context, v any) error
	io.Closer
}

// StreamClient opens Streams to one target.
type StreamClient interface {
	Connect(ctx context.Context) (Stream, error)
	fmt.Stringer
}
