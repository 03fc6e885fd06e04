// Package appctl is the public surface for controlling a running daemon over
// its unixctl socket.
//
//	ctl, err := appctl.New(ctx)                       // ovs-vswitchd via $OVS_RUNDIR
//	ctl, err := appctl.NewForTarget(ctx, "ovsdb-server")
//	ctl, err := appctl.NewUnix(ctx, "/run/openvswitch/ovs-vswitchd.42.ctl")
//
//	cmds, err := ctl.ListCommands(ctx)
//	v, err := ctl.Version(ctx)
//	out, err := ctl.Run(ctx, "bond/show", "bond0")
//
// A Ctl holds one connection and serves one caller at a time. After a
// transport, timeout, or protocol failure the connection is in an
// unspecified state; build a new Ctl to recover.
package appctl

import (
	"context"
	"errors"
	"os"
	"time"

	"ovs-unixctl/client"
	"ovs-unixctl/middleware"
	"ovs-unixctl/registry"
	"ovs-unixctl/rpcerr"
)

const (
	// DefaultTarget is the daemon controlled by New.
	DefaultTarget = "ovs-vswitchd"
	// DefaultTimeout bounds each read and write when no timeout is given.
	DefaultTimeout = time.Second
)

type options struct {
	timeout     time.Duration
	registry    registry.Registry
	middlewares []middleware.Middleware
}

type Option func(*options)

// WithTimeout sets the read and write deadline per operation. A value <= 0
// disables deadlines.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRegistry replaces the default discovery (the rundir named by
// $OVS_RUNDIR, or /var/run/openvswitch).
func WithRegistry(r registry.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithRundir discovers sockets in rundir instead of the environment default.
func WithRundir(rundir string) Option {
	return func(o *options) { o.registry = registry.NewRundirRegistry(rundir) }
}

// WithMiddleware appends call middlewares, the first being outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}

func buildOptions(opts []Option) *options {
	o := &options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		// Not NewRundirRegistry: an OVS_RUNDIR set to "" must stay empty.
		o.registry = &registry.RundirRegistry{Rundir: registry.RundirFromEnv(os.LookupEnv)}
	}
	return o
}

// Ctl controls one daemon through one connection.
type Ctl struct {
	client *client.Client
}

// New connects to DefaultTarget.
func New(ctx context.Context, opts ...Option) (*Ctl, error) {
	return NewForTarget(ctx, DefaultTarget, opts...)
}

// NewForTarget discovers the socket of target (e.g. "ovsdb-server",
// "ovn-northd") and connects to it.
func NewForTarget(ctx context.Context, target string, opts ...Option) (*Ctl, error) {
	o := buildOptions(opts)
	path, err := o.registry.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	return dial(ctx, path, o)
}

// NewUnix connects to the socket at path, skipping discovery.
func NewUnix(ctx context.Context, path string, opts ...Option) (*Ctl, error) {
	return dial(ctx, path, buildOptions(opts))
}

func dial(ctx context.Context, path string, o *options) (*Ctl, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, &rpcerr.SocketNotFoundError{Path: path}
	}
	c, err := client.NewUnix(ctx, path, o.timeout, o.middlewares...)
	if err != nil {
		return nil, err
	}
	return &Ctl{client: c}, nil
}

// Target describes the connected socket, e.g. "unix:///run/x.ctl".
func (c *Ctl) Target() string {
	return c.client.Target()
}

// Close closes the connection.
func (c *Ctl) Close() error {
	return c.client.Close()
}

// Run sends an arbitrary command and returns its raw text result, nil when
// the daemon sent none. The result is not interpreted, so Run never fails
// with *rpcerr.InvalidResponseError.
func (c *Ctl) Run(ctx context.Context, method string, args ...string) (*string, error) {
	result, ok, err := c.client.CallString(ctx, method, args...)
	if err != nil || !ok {
		return nil, err
	}
	return &result, nil
}
