// etcd-backed registry.
//
// A node agent publishes each daemon's control socket:
//
//	Key:   {prefix}/{node}/{target}
//	Value: JSON-encoded SocketInstance
//
// Entries carry a TTL lease: if the agent dies, the lease expires and the
// entry disappears instead of pointing at a dead daemon.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"ovs-unixctl/rpcerr"
)

// DefaultEtcdPrefix is the key prefix used when none is configured.
const DefaultEtcdPrefix = "/ovs-unixctl"

// EtcdRegistry implements Registry using etcd v3. Resolve only sees entries
// published for its own node, since a Unix socket is only reachable locally.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
	prefix string
	node   string
}

// NewEtcdRegistry connects to the given etcd endpoints. An empty node uses
// the hostname. A nil logger silences the etcd client.
func NewEtcdRegistry(endpoints []string, prefix, node string, logger *zap.Logger) (*EtcdRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
		Logger:      logger.Named("etcd"),
	})
	if err != nil {
		return nil, err
	}
	return newEtcdRegistry(c, prefix, node), nil
}

func newEtcdRegistry(c *clientv3.Client, prefix, node string) *EtcdRegistry {
	if prefix == "" {
		prefix = DefaultEtcdPrefix
	}
	if node == "" {
		node, _ = os.Hostname()
	}
	return &EtcdRegistry{client: c, prefix: prefix, node: node}
}

// Close releases the etcd connection.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}

func (r *EtcdRegistry) key(target string) string {
	return path.Join(r.prefix, r.node, target)
}

// Register publishes instance under its target with a TTL lease (seconds)
// that is kept alive until ctx is cancelled.
//
// leaseID stays a local variable so one EtcdRegistry can register several
// targets concurrently.
func (r *EtcdRegistry) Register(ctx context.Context, instance SocketInstance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	if instance.Node == "" {
		instance.Node = r.node
	}
	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, r.key(instance.Target), string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}

	// Drain KeepAlive responses so the channel never fills up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes the entry for target.
func (r *EtcdRegistry) Deregister(ctx context.Context, target string) error {
	_, err := r.client.Delete(ctx, r.key(target))
	return err
}

// Lookup returns the published instance for target.
func (r *EtcdRegistry) Lookup(ctx context.Context, target string) (SocketInstance, error) {
	resp, err := r.client.Get(ctx, r.key(target))
	if err != nil {
		return SocketInstance{}, &rpcerr.SocketError{Op: "registry", Err: err}
	}
	if len(resp.Kvs) == 0 {
		return SocketInstance{}, rpcerr.NotRunning(target)
	}

	var instance SocketInstance
	if err := json.Unmarshal(resp.Kvs[0].Value, &instance); err != nil {
		return SocketInstance{}, &rpcerr.SerializeError{Err: err}
	}
	return instance, nil
}

// Resolve looks up target and checks the published socket still exists.
func (r *EtcdRegistry) Resolve(ctx context.Context, target string) (string, error) {
	instance, err := r.Lookup(ctx, target)
	if err != nil {
		return "", err
	}
	if instance.Path == "" {
		return "", rpcerr.NotRunning(target)
	}
	if _, err := os.Stat(instance.Path); errors.Is(err, os.ErrNotExist) {
		return "", &rpcerr.SocketNotFoundError{Path: instance.Path}
	}
	return instance.Path, nil
}

// Watch emits the socket path of target, first its current value if one is
// published, then on every change; an empty string means the entry was
// removed. The channel closes when ctx is done.
func (r *EtcdRegistry) Watch(ctx context.Context, target string) <-chan string {
	ch := make(chan string, 1)
	key := r.key(target)

	emit := func(p string) bool {
		select {
		case ch <- p:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(ch)

		// Read the current value and watch from the next revision, so no
		// change between the two is missed.
		var opts []clientv3.OpOption
		if resp, err := r.client.Get(ctx, key); err == nil {
			opts = append(opts, clientv3.WithRev(resp.Header.Revision+1))
			if len(resp.Kvs) > 0 {
				if p, ok := instancePath(resp.Kvs[0].Value); ok && !emit(p) {
					return
				}
			}
		}

		for wresp := range r.client.Watch(ctx, key, opts...) {
			for _, ev := range wresp.Events {
				var p string
				if ev.Type == clientv3.EventTypePut {
					var ok bool
					if p, ok = instancePath(ev.Kv.Value); !ok {
						continue // skip malformed entries
					}
				}
				if !emit(p) {
					return
				}
			}
		}
	}()

	return ch
}

func instancePath(value []byte) (string, bool) {
	var instance SocketInstance
	if err := json.Unmarshal(value, &instance); err != nil {
		return "", false
	}
	return instance.Path, true
}

// PublishRundir registers every target found in rundir, for a node agent
// that mirrors local sockets into etcd. Targets that are not running are
// skipped. rundir is used as given; "" is the working directory.
func (r *EtcdRegistry) PublishRundir(ctx context.Context, rundir string, targets []string, ttl int64) ([]SocketInstance, error) {
	local := &RundirRegistry{Rundir: rundir}
	var published []SocketInstance
	for _, target := range targets {
		instance, err := local.Instance(target)
		if err != nil {
			if errors.Is(err, rpcerr.ErrNotRunning) {
				continue
			}
			return published, err
		}
		if err := r.Register(ctx, instance, ttl); err != nil {
			return published, err
		}
		published = append(published, instance)
	}
	return published, nil
}
