package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ovs-unixctl/config"
	"ovs-unixctl/registry"
	"ovs-unixctl/rpcerr"
)

const (
	defaultPublishTTL = 10 // seconds
	deregisterTimeout = 2 * time.Second
)

// publish mirrors the rundir sockets of targets into etcd and keeps their
// leases alive until ctx is done, then removes the entries.
func publish(ctx context.Context, cfg *config.Config, targets []string, ttl int64, logger *zap.Logger, stdout io.Writer) error {
	reg, err := registry.NewEtcdRegistry(cfg.Etcd.Endpoints, cfg.Etcd.Prefix, cfg.Etcd.Node, logger)
	if err != nil {
		return err
	}
	defer reg.Close()

	leaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	published, err := reg.PublishRundir(leaseCtx, cfg.Rundir, targets, ttl)
	defer deregister(reg, published, logger)
	if err != nil {
		return err
	}
	if len(published) == 0 {
		return rpcerr.NotRunning(strings.Join(targets, ", "))
	}

	var wg sync.WaitGroup
	for _, instance := range published {
		fmt.Fprintf(stdout, "%s\t%s\n", instance.Target, instance.Path)

		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			for p := range reg.Watch(leaseCtx, target) {
				if p == "" {
					logger.Warn("published entry removed", zap.String("target", target))
				}
			}
		}(instance.Target)
	}
	logger.Info("publishing", zap.Int("targets", len(published)), zap.Int64("ttl", ttl))

	<-ctx.Done()
	cancel()
	wg.Wait()
	return nil
}

// deregister removes the entries with a fresh deadline, since the caller's
// context is usually already cancelled.
func deregister(reg *registry.EtcdRegistry, published []registry.SocketInstance, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), deregisterTimeout)
	defer cancel()
	for _, instance := range published {
		if err := reg.Deregister(ctx, instance.Target); err != nil {
			logger.Warn("deregister failed", zap.String("target", instance.Target), zap.Error(err))
		}
	}
}
