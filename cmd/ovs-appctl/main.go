// Command ovs-appctl sends a control command to a running Open vSwitch
// daemon over its unixctl socket and prints the reply.
//
//	ovs-appctl [-t target] [-T timeout] [-s socket] [-config file] [-v] [-trace] COMMAND [ARG...]
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv)
	stop()
	os.Exit(code)
}
