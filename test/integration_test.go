package test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ovs-unixctl/appctl"
	"ovs-unixctl/middleware"
	"ovs-unixctl/registry"
	"ovs-unixctl/rpcerr"
	"ovs-unixctl/server"
)

// ---- daemon double ----

// startVswitchd publishes an ovs-vswitchd double with a few bond commands in
// a fresh rundir.
func startVswitchd(t testing.TB) (rundir string, svr *server.Server) {
	t.Helper()
	svr = server.NewServer("ovs-vswitchd", "3.2.1")
	bonds := map[string]string{"bond0": "active-backup", "bond1": "balance-slb"}
	var mu sync.Mutex

	svr.Register("bond/list", "", func([]string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		var b strings.Builder
		b.WriteString("bond\ttype\n")
		for _, name := range []string{"bond0", "bond1"} {
			if mode, ok := bonds[name]; ok {
				fmt.Fprintf(&b, "%s\t%s\n", name, mode)
			}
		}
		return b.String(), nil
	})
	svr.Register("bond/set-active-slave", "port slave", func(params []string) (string, error) {
		if len(params) != 2 {
			return "", errors.New("bond/set-active-slave requires 2 arguments")
		}
		mu.Lock()
		defer mu.Unlock()
		if _, ok := bonds[params[0]]; !ok {
			return "", errors.New("no such bond")
		}
		return "", nil
	})
	svr.Register("echo", "TEXT...", func(params []string) (string, error) {
		return strings.Join(params, " "), nil
	})

	rundir = t.TempDir()
	if _, err := svr.ListenRundir(rundir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svr.Shutdown(3 * time.Second) })
	return rundir, svr
}

// ---- static registry (no etcd) ----

type staticRegistry map[string]string

func (r staticRegistry) Resolve(_ context.Context, target string) (string, error) {
	if path, ok := r[target]; ok {
		return path, nil
	}
	return "", rpcerr.NotRunning(target)
}

// TestFullChain covers the whole stack:
// Ctl → rundir discovery → tracing → metrics → logging → client → unix transport → server.
func TestFullChain(t *testing.T) {
	rundir, _ := startVswitchd(t)

	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(reg)
	spans := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)).Tracer("integration")

	ctx := context.Background()
	ctl, err := appctl.New(ctx,
		appctl.WithRundir(rundir),
		appctl.WithTimeout(2*time.Second),
		appctl.WithMiddleware(
			middleware.TracingMiddleware(tracer),
			middleware.MetricsMiddleware(metrics),
			middleware.LoggingMiddleware(zap.New(core)),
		),
	)
	require.NoError(t, err)
	defer ctl.Close()

	v, err := ctl.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3.2.1", v.String())

	cmds, err := ctl.ListCommands(ctx)
	require.NoError(t, err)
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"bond/list", "bond/set-active-slave", "echo", "list-commands", "version"}, names)

	out, err := ctl.Run(ctx, "bond/list")
	require.NoError(t, err)
	assert.Equal(t, "bond\ttype\nbond0\tactive-backup\nbond1\tbalance-slb\n", *out)

	_, err = ctl.Run(ctx, "bond/set-active-slave", "bond9", "eth0")
	var cmdErr *rpcerr.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "command bond/set-active-slave(bond9, eth0) returns error: no such bond", cmdErr.Error())

	// Still usable after a command error.
	out, err = ctl.Run(ctx, "bond/set-active-slave", "bond0", "eth0")
	require.NoError(t, err)
	assert.Equal(t, "", *out)

	assert.Equal(t, 5, len(spans.Ended()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Calls.WithLabelValues("bond/set-active-slave", "command")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Calls.WithLabelValues("bond/set-active-slave", "ok")))
	assert.Equal(t, 4, logs.FilterMessage("unixctl call").Len())
	assert.Equal(t, 1, logs.FilterMessage("unixctl call failed").Len())
}

// TestDaemonRestart shows a Ctl outliving its daemon: the next call fails
// fatally and a new Ctl finds the new daemon.
func TestDaemonRestart(t *testing.T) {
	rundir, svr := startVswitchd(t)
	ctx := context.Background()

	ctl, err := appctl.New(ctx, appctl.WithRundir(rundir), appctl.WithTimeout(time.Second))
	require.NoError(t, err)
	defer ctl.Close()
	_, err = ctl.Version(ctx)
	require.NoError(t, err)

	require.NoError(t, svr.Shutdown(3*time.Second))

	_, err = ctl.Version(ctx)
	require.Error(t, err)
	assert.True(t, rpcerr.Fatal(err), "kind %v", rpcerr.KindOf(err))

	_, err = appctl.New(ctx, appctl.WithRundir(rundir))
	assert.ErrorIs(t, err, rpcerr.ErrNotRunning, "pid file is removed on shutdown")

	next := server.NewServer("ovs-vswitchd", "3.3.0")
	_, err = next.ListenRundir(rundir)
	require.NoError(t, err)
	t.Cleanup(func() { next.Shutdown(3 * time.Second) })

	ctl2, err := appctl.New(ctx, appctl.WithRundir(rundir))
	require.NoError(t, err)
	defer ctl2.Close()
	v, err := ctl2.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3.3.0", v.String())
}

func TestCustomRegistry(t *testing.T) {
	rundir, _ := startVswitchd(t)
	path, err := registry.FindSocket("ovs-vswitchd", rundir)
	require.NoError(t, err)

	reg := staticRegistry{"vswitchd": path}
	ctx := context.Background()

	ctl, err := appctl.NewForTarget(ctx, "vswitchd", appctl.WithRegistry(reg))
	require.NoError(t, err)
	defer ctl.Close()
	assert.Equal(t, "unix://"+path, ctl.Target())

	_, err = appctl.NewForTarget(ctx, "ovn-controller", appctl.WithRegistry(reg))
	assert.Equal(t, rpcerr.KindNotRunning, rpcerr.KindOf(err))
}

func TestRateLimitedPool(t *testing.T) {
	rundir, _ := startVswitchd(t)
	pool := appctl.NewTargetPool("ovs-vswitchd", 4,
		appctl.WithRundir(rundir),
		appctl.WithMiddleware(middleware.RateLimitMiddleware(0.001, 3)),
	)
	defer pool.Close()

	ctx := context.Background()
	call := func() error {
		return pool.Do(ctx, func(ctl *appctl.Ctl) error {
			_, err := ctl.Run(ctx, "echo", "x")
			return err
		})
	}

	// One limiter is shared by every connection built from these options.
	for i := 0; i < 3; i++ {
		require.NoError(t, call())
	}
	assert.ErrorIs(t, call(), middleware.ErrRateLimited)
	assert.Equal(t, 1, pool.Len(), "a rate-limited call does not discard the connection")
}

func TestConcurrentCallersThroughPool(t *testing.T) {
	rundir, _ := startVswitchd(t)
	pool := appctl.NewTargetPool("ovs-vswitchd", 4, appctl.WithRundir(rundir))
	defer pool.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- pool.Do(ctx, func(ctl *appctl.Ctl) error {
				want := fmt.Sprintf("msg %d", i)
				out, err := ctl.Run(ctx, "echo", "msg", fmt.Sprint(i))
				if err != nil {
					return err
				}
				if *out != want {
					return fmt.Errorf("got %q, want %q", *out, want)
				}
				return nil
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, pool.Len(), 4)
}

// TestEtcdDiscovery publishes a rundir daemon in etcd and resolves it
// through the etcd registry. Needs ETCD_ENDPOINTS.
func TestEtcdDiscovery(t *testing.T) {
	endpoints := os.Getenv("ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("ETCD_ENDPOINTS not set")
	}
	rundir, _ := startVswitchd(t)

	reg, err := registry.NewEtcdRegistry(strings.Split(endpoints, ","), "/ovs-unixctl-integration", "hv1", nil)
	require.NoError(t, err)
	defer reg.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	published, err := reg.PublishRundir(ctx, rundir, []string{"ovs-vswitchd", "ovsdb-server"}, 10)
	require.NoError(t, err)
	require.Len(t, published, 1, "ovsdb-server is not running")
	defer reg.Deregister(context.Background(), "ovs-vswitchd")

	ctl, err := appctl.New(ctx, appctl.WithRegistry(reg))
	require.NoError(t, err)
	defer ctl.Close()

	v, err := ctl.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3.2.1", v.String())
}
