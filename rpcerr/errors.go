// Package rpcerr defines the failure kinds shared by every layer of the unixctl client.
//
// Each kind is a concrete type (or sentinel) so callers can branch with errors.As
// and errors.Is. KindOf collapses any error, wrapped or not, into the closed set.
package rpcerr

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when a receive produced no value before the deadline
// or before the peer ended the stream.
var ErrTimeout = errors.New("connection timeout")

// ErrNotRunning is returned when discovery found no usable pid file for the target.
var ErrNotRunning = errors.New("daemon is not running")

// NotRunning wraps ErrNotRunning with the target that could not be found.
func NotRunning(target string) error {
	return fmt.Errorf("%w: %s", ErrNotRunning, target)
}

// ProtocolError means the peer broke the request/response correlation contract.
type ProtocolError struct {
	Detail string
}

func (e *ProtocolError) Error() string {
	return "jsonrpc protocol error: " + e.Detail
}

// SerializeError wraps a JSON encode or decode failure not caused by I/O.
type SerializeError struct {
	Err error
}

func (e *SerializeError) Error() string {
	return fmt.Sprintf("(de/)serialization error: %v", e.Err)
}

func (e *SerializeError) Unwrap() error { return e.Err }

// SocketError wraps a transport I/O failure. Op names the failed step
// ("connect", "read", "write", "deadline").
type SocketError struct {
	Op  string
	Err error
}

func (e *SocketError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("input/output socket error: %v", e.Err)
	}
	return fmt.Sprintf("input/output socket error: %s: %v", e.Op, e.Err)
}

func (e *SocketError) Unwrap() error { return e.Err }

// CommandError is an application-level error reported by the remote daemon.
// Params holds the call arguments joined by ", ".
type CommandError struct {
	Method  string
	Params  string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s(%s) returns error: %s", e.Method, e.Params, e.Message)
}

// SocketNotFoundError means no socket file exists at Path.
type SocketNotFoundError struct {
	Path string
}

func (e *SocketNotFoundError) Error() string {
	return "socket not found: " + e.Path
}

// InvalidResponseError means a well-formed reply did not match what a typed
// call expects. Response carries the raw result text.
type InvalidResponseError struct {
	Method   string
	Response string
	Detail   string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("%s returned invalid data (%s): %q", e.Method, e.Detail, e.Response)
}

// Kind enumerates the failure kinds.
type Kind int

const (
	KindUnknown Kind = iota
	KindProtocol
	KindSerialize
	KindSocket
	KindTimeout
	KindCommand
	KindSocketNotFound
	KindNotRunning
	KindInvalidResponse
)

var kindNames = [...]string{
	KindUnknown:         "unknown",
	KindProtocol:        "protocol",
	KindSerialize:       "serialize",
	KindSocket:          "socket",
	KindTimeout:         "timeout",
	KindCommand:         "command",
	KindSocketNotFound:  "socket_not_found",
	KindNotRunning:      "not_running",
	KindInvalidResponse: "invalid_response",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// KindOf classifies err. A nil error is KindUnknown.
//
// Order matters: a SocketError may wrap a net timeout, but it is still a
// socket failure, so the typed wrappers are checked before the sentinels.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var (
		protoErr    *ProtocolError
		serErr      *SerializeError
		sockErr     *SocketError
		cmdErr      *CommandError
		notFoundErr *SocketNotFoundError
		invalidErr  *InvalidResponseError
	)
	switch {
	case errors.As(err, &cmdErr):
		return KindCommand
	case errors.As(err, &invalidErr):
		return KindInvalidResponse
	case errors.As(err, &protoErr):
		return KindProtocol
	case errors.As(err, &notFoundErr):
		return KindSocketNotFound
	case errors.As(err, &sockErr):
		return KindSocket
	case errors.As(err, &serErr):
		return KindSerialize
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrNotRunning):
		return KindNotRunning
	}
	return KindUnknown
}

// Fatal reports whether err leaves the connection in an unspecified state:
// transport, timeout, protocol, and decode failures. Command and
// InvalidResponse errors come from a completed exchange and are not fatal.
func Fatal(err error) bool {
	switch KindOf(err) {
	case KindProtocol, KindSerialize, KindSocket, KindTimeout:
		return true
	}
	return false
}
