// Pool of exclusive Ctl connections for concurrent callers.
//
// A Ctl serves one caller at a time, so concurrency means one connection per
// caller. The pool lends each Ctl to a single caller and takes it back; a
// Ctl whose call failed fatally is closed instead of being reused.
//
// Buffered channels do the bookkeeping: slots holds one token per lent-out
// connection and blocks Get at the limit; idle is a FIFO of returned ones.
package appctl

import (
	"context"
	"errors"
	"sync"

	"ovs-unixctl/rpcerr"
)

// ErrPoolClosed is returned by Get after Close.
var ErrPoolClosed = errors.New("appctl: pool closed")

// Pool manages up to maxConns connections to one daemon.
type Pool struct {
	mu       sync.Mutex
	slots    chan struct{}
	idle     chan *Ctl
	curConns int // open connections, idle or lent out
	closed   bool
	factory  func(ctx context.Context) (*Ctl, error)
}

// NewPool creates a pool that opens connections with factory on demand.
func NewPool(maxConns int, factory func(ctx context.Context) (*Ctl, error)) *Pool {
	if maxConns < 1 {
		maxConns = 1
	}
	return &Pool{
		slots:   make(chan struct{}, maxConns),
		idle:    make(chan *Ctl, maxConns),
		factory: factory,
	}
}

// NewTargetPool is a pool of connections to target, discovered per connection.
func NewTargetPool(target string, maxConns int, opts ...Option) *Pool {
	return NewPool(maxConns, func(ctx context.Context) (*Ctl, error) {
		return NewForTarget(ctx, target, opts...)
	})
}

// Get lends out a connection, waiting while maxConns are lent:
// an idle one if available, otherwise a new one.
func (p *Pool) Get(ctx context.Context) (*Ctl, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		return nil, ErrPoolClosed
	}
	select {
	case ctl := <-p.idle:
		p.mu.Unlock()
		return ctl, nil
	default:
	}
	p.mu.Unlock()

	ctl, err := p.factory(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}

	p.mu.Lock()
	p.curConns++
	p.mu.Unlock()
	return ctl, nil
}

// Put returns ctl after a call that ended with err. A fatal err (see
// rpcerr.Fatal) closes and discards the connection.
func (p *Pool) Put(ctl *Ctl, err error) {
	p.mu.Lock()
	if p.closed || rpcerr.Fatal(err) {
		ctl.Close()
		p.curConns--
	} else {
		p.idle <- ctl
	}
	p.mu.Unlock()
	<-p.slots
}

// Do runs fn with a pooled connection and returns it afterwards.
func (p *Pool) Do(ctx context.Context, fn func(ctl *Ctl) error) error {
	ctl, err := p.Get(ctx)
	if err != nil {
		return err
	}
	err = fn(ctl)
	p.Put(ctl, err)
	return err
}

// Len reports how many connections are open, idle or lent out.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.curConns
}

// Close closes idle connections; lent ones are closed when returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for {
		select {
		case ctl := <-p.idle:
			ctl.Close()
			p.curConns--
		default:
			return nil
		}
	}
}
