package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"ovs-unixctl/codec"
	"ovs-unixctl/rpcerr"
)

// UnixStreamClient connects to a daemon's control socket.
type UnixStreamClient struct {
	path    string
	timeout time.Duration // Read and write deadline per operation; <= 0 disables
	codec   codec.Codec
}

// NewUnixStreamClient creates a client for the socket at path with no timeout.
func NewUnixStreamClient(path string) *UnixStreamClient {
	return &UnixStreamClient{
		path:  path,
		codec: codec.GetCodec(codec.CodecTypeJSON),
	}
}

// WithTimeout sets the duration applied as both the read and the write deadline.
func (c *UnixStreamClient) WithTimeout(timeout time.Duration) *UnixStreamClient {
	c.timeout = timeout
	return c
}

// Path returns the socket path.
func (c *UnixStreamClient) Path() string {
	return c.path
}

// Timeout returns the configured per-operation timeout.
func (c *UnixStreamClient) Timeout() time.Duration {
	return c.timeout
}

func (c *UnixStreamClient) String() string {
	return "unix://" + c.path
}

// Connect dials the socket. A missing socket file is reported as
// *rpcerr.SocketNotFoundError, any other failure as *rpcerr.SocketError.
func (c *UnixStreamClient) Connect(ctx context.Context) (Stream, error) {
	if _, err := os.Stat(c.path); errors.Is(err, os.ErrNotExist) {
		return nil, &rpcerr.SocketNotFoundError{Path: c.path}
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.path)
	if err != nil {
		return nil, &rpcerr.SocketError{Op: "connect", Err: err}
	}
	return newUnixStream(conn, c.codec, c.timeout), nil
}

// unixStream owns one connection. It is not safe for concurrent use: a
// Send/Receive pair must complete before the next one starts.
type unixStream struct {
	conn    net.Conn
	codec   codec.Codec
	timeout time.Duration
	counter *countingReader
	dec     codec.Decoder
}

func newUnixStream(conn net.Conn, c codec.Codec, timeout time.Duration) *unixStream {
	counter := &countingReader{r: conn}
	return &unixStream{
		conn:    conn,
		codec:   c,
		timeout: timeout,
		counter: counter,
		// One decoder for the connection's lifetime: bytes read past the end
		// of a value stay buffered for the next Receive.
		dec: c.NewDecoder(counter),
	}
}

func (s *unixStream) Send(ctx context.Context, msg any) error {
	data, err := s.codec.Encode(msg)
	if err != nil {
		return &rpcerr.SerializeError{Err: err}
	}

	if err := s.conn.SetWriteDeadline(s.deadline(ctx)); err != nil {
		return &rpcerr.SocketError{Op: "deadline", Err: err}
	}
	if _, err := s.conn.Write(data); err != nil {
		return &rpcerr.SocketError{Op: "write", Err: err}
	}
	return nil
}

func (s *unixStream) Receive(ctx context.Context, v any) error {
	if err := s.conn.SetReadDeadline(s.deadline(ctx)); err != nil {
		return &rpcerr.SocketError{Op: "deadline", Err: err}
	}

	pending := hasPendingValue(s.dec.Buffered())
	before := s.counter.Count()

	err := s.dec.Decode(v)
	if err == nil {
		return nil
	}

	started := pending || s.counter.Count() > before
	return classifyDecodeError(err, started)
}

func (s *unixStream) Close() error {
	return s.conn.Close()
}

// deadline returns now+timeout, tightened by the context deadline if earlier.
// The zero time means no deadline.
func (s *unixStream) deadline(ctx context.Context) time.Time {
	var d time.Time
	if s.timeout > 0 {
		d = time.Now().Add(s.timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}

// classifyDecodeError maps a decoder failure to the error model:
//   - stream ended, or deadline hit, before any byte of a value: timeout
//   - stream ended or failed mid-value: socket error
//   - malformed JSON or a type mismatch: serialize error
func classifyDecodeError(err error, started bool) error {
	var (
		syntaxErr    *json.SyntaxError
		typeErr      *json.UnmarshalTypeError
		unmarshalErr *json.InvalidUnmarshalError
		netErr       net.Error
	)
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.As(err, &unmarshalErr):
		return &rpcerr.SerializeError{Err: err}
	case errors.Is(err, io.EOF):
		return rpcerr.ErrTimeout
	case errors.As(err, &netErr) && netErr.Timeout() && !started:
		return rpcerr.ErrTimeout
	}
	return &rpcerr.SocketError{Op: "read", Err: err}
}

// hasPendingValue reports whether the decoder already holds the start of a value.
func hasPendingValue(buffered io.Reader) bool {
	data, _ := io.ReadAll(buffered)
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
		default:
			return true
		}
	}
	return false
}

// countingReader counts bytes pulled from the connection.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) Count() int64 {
	return c.n
}
