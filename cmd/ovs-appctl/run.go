package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ovs-unixctl/appctl"
	"ovs-unixctl/config"
	"ovs-unixctl/middleware"
	"ovs-unixctl/registry"
	"ovs-unixctl/rpcerr"
)

// Exit codes.
const (
	exitOK         = 0
	exitCommandErr = 1 // the daemon answered with an error
	exitUsage      = 2
	exitNotFound   = 3 // no pid file or no socket
	exitFailure    = 4
)

const usageText = `usage: ovs-appctl [-t target] [-T timeout] [-s socket] [-config file] [-v] [-trace] COMMAND [ARG...]
       ovs-appctl -publish [-ttl seconds] [-config file] [TARGET...]

Sends COMMAND with its ARGs to a running daemon and prints the reply.
"list-commands" shows the commands the daemon supports.

With -publish, registers the sockets of the TARGETs found in the rundir in
the etcd named by the config file and keeps them alive until interrupted.

Flags:
`

// run is main without the process: it returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookup func(string) (string, bool)) int {
	fs := flag.NewFlagSet("ovs-appctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	target := fs.String("t", "", "daemon name, or a socket path if it contains '/' (default ovs-vswitchd)")
	timeout := fs.Duration("T", appctl.DefaultTimeout, "per-operation socket timeout, 0 for none")
	socket := fs.String("s", "", "socket path, skipping discovery")
	cfgPath := fs.String("config", "", "TOML config file")
	verbose := fs.Bool("v", false, "log each call to stderr")
	traced := fs.Bool("trace", false, "print the call span to stderr")
	publishing := fs.Bool("publish", false, "publish local sockets to etcd until interrupted")
	ttl := fs.Int64("ttl", defaultPublishTTL, "lease TTL in seconds for -publish")
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 && !*publishing {
		fmt.Fprintln(stderr, "ovs-appctl: at least one non-option argument is required (use -h for help)")
		return exitUsage
	}

	cfg, err := config.LoadFrom(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "ovs-appctl: %v\n", err)
		return exitFailure
	}
	cfg.ApplyEnv(lookup)

	// Flags given on the command line override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			if strings.ContainsRune(*target, '/') {
				cfg.Socket = *target
			} else {
				cfg.Target = *target
			}
		case "T":
			cfg.Timeout = *timeout
		case "s":
			cfg.Socket = *socket
		}
	})
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *traced {
		cfg.Trace.Exporter = "stdout"
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "ovs-appctl: invalid config: %v\n", err)
		return exitUsage
	}

	logger, err := newLogger(cfg.Log.Level, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "ovs-appctl: %v\n", err)
		return exitUsage
	}
	defer logger.Sync()

	tracer, shutdown, err := setupTracing(cfg.Trace.Exporter, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "ovs-appctl: %v\n", err)
		return exitFailure
	}
	defer shutdown(context.Background())

	if *publishing {
		if !cfg.UseEtcd() {
			fmt.Fprintln(stderr, "ovs-appctl: -publish needs [etcd] endpoints in the config file")
			return exitUsage
		}
		if *ttl < 1 {
			fmt.Fprintf(stderr, "ovs-appctl: -ttl %d: must be at least 1\n", *ttl)
			return exitUsage
		}
		targets := fs.Args()
		if len(targets) == 0 {
			targets = []string{cfg.Target}
		}
		if err := publish(ctx, cfg, targets, *ttl, logger, stdout); err != nil {
			return fail(stderr, err)
		}
		return exitOK
	}

	ctl, err := connect(ctx, cfg, logger, tracer)
	if err != nil {
		return fail(stderr, err)
	}
	defer ctl.Close()

	if err := execute(ctx, ctl, fs.Arg(0), fs.Args()[1:], stdout); err != nil {
		return fail(stderr, err)
	}
	return exitOK
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), lvl)
	return zap.New(core).Named("ovs-appctl"), nil
}

// connect opens the socket named by cfg: Socket directly, else Target
// discovered through etcd when configured, else through the rundir.
func connect(ctx context.Context, cfg *config.Config, logger *zap.Logger, tracer trace.Tracer) (*appctl.Ctl, error) {
	mws := []middleware.Middleware{
		middleware.TracingMiddleware(tracer),
		middleware.LoggingMiddleware(logger),
	}
	if cfg.RateLimit.RPS > 0 {
		mws = append(mws, middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}
	opts := []appctl.Option{
		appctl.WithTimeout(cfg.Timeout),
		appctl.WithMiddleware(mws...),
	}

	if cfg.Socket != "" {
		logger.Debug("connecting", zap.String("socket", cfg.Socket))
		return appctl.NewUnix(ctx, cfg.Socket, opts...)
	}

	if cfg.UseEtcd() {
		reg, err := registry.NewEtcdRegistry(cfg.Etcd.Endpoints, cfg.Etcd.Prefix, cfg.Etcd.Node, logger)
		if err != nil {
			return nil, err
		}
		// The registry is only needed to resolve the path.
		defer reg.Close()
		opts = append(opts, appctl.WithRegistry(reg))
		logger.Debug("resolving", zap.String("target", cfg.Target), zap.Strings("etcd", cfg.Etcd.Endpoints))
	} else {
		// ApplyEnv already resolved the default; "" means OVS_RUNDIR="".
		opts = append(opts, appctl.WithRegistry(&registry.RundirRegistry{Rundir: cfg.Rundir}))
		logger.Debug("resolving", zap.String("target", cfg.Target), zap.String("rundir", cfg.Rundir))
	}
	return appctl.NewForTarget(ctx, cfg.Target, opts...)
}

// execute prints the daemon's reply as sent, so "version" and
// "list-commands" read as they do from the stock ovs-appctl.
func execute(ctx context.Context, ctl *appctl.Ctl, method string, args []string, stdout io.Writer) error {
	out, err := ctl.Run(ctx, method, args...)
	if err != nil || out == nil {
		return err
	}
	fmt.Fprint(stdout, *out)
	if !strings.HasSuffix(*out, "\n") {
		fmt.Fprintln(stdout)
	}
	return nil
}

// fail reports err and maps its kind to an exit code.
func fail(stderr io.Writer, err error) int {
	var cmdErr *rpcerr.CommandError
	if errors.As(err, &cmdErr) {
		fmt.Fprintln(stderr, cmdErr.Message)
		fmt.Fprintln(stderr, "ovs-appctl: server returned an error")
		return exitCommandErr
	}

	fmt.Fprintf(stderr, "ovs-appctl: %v\n", err)
	switch rpcerr.KindOf(err) {
	case rpcerr.KindNotRunning, rpcerr.KindSocketNotFound:
		return exitNotFound
	}
	return exitFailure
}
