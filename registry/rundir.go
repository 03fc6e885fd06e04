package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"ovs-unixctl/rpcerr"
)

const (
	// DefaultRundir is where Open vSwitch daemons publish pid files and sockets.
	DefaultRundir = "/var/run/openvswitch"
	// RundirEnv overrides DefaultRundir.
	RundirEnv = "OVS_RUNDIR"
)

// RundirFromEnv returns the rundir named by RundirEnv, read through lookup
// (os.LookupEnv in production). Unset or non-UTF-8 values fall back to
// DefaultRundir. A variable set to "" is kept: the pid file and socket are
// then looked up relative to the working directory.
func RundirFromEnv(lookup func(string) (string, bool)) string {
	if lookup == nil {
		return DefaultRundir
	}
	v, ok := lookup(RundirEnv)
	if !ok || !utf8.ValidString(v) {
		return DefaultRundir
	}
	return v
}

// RundirRegistry discovers sockets in one runtime directory.
// It holds no state; every Resolve re-reads the filesystem.
type RundirRegistry struct {
	Rundir string
}

// NewRundirRegistry returns a registry for rundir, or for DefaultRundir when
// rundir is empty.
func NewRundirRegistry(rundir string) *RundirRegistry {
	if rundir == "" {
		rundir = DefaultRundir
	}
	return &RundirRegistry{Rundir: rundir}
}

func (r *RundirRegistry) Resolve(_ context.Context, target string) (string, error) {
	return FindSocket(target, r.Rundir)
}

// Instance resolves target and also reports the pid read from its pid file.
// Pid stays 0 when the pid file does not hold a number; the socket path
// is built from the raw text either way.
func (r *RundirRegistry) Instance(target string) (SocketInstance, error) {
	pid, err := readPid(target, r.Rundir)
	if err != nil {
		return SocketInstance{}, err
	}
	path, err := socketPath(target, r.Rundir, pid)
	if err != nil {
		return SocketInstance{}, err
	}
	inst := SocketInstance{Target: target, Path: path}
	if n, err := strconv.Atoi(pid); err == nil && n > 0 {
		inst.Pid = n
	}
	return inst, nil
}

// FindSocket locates the control socket of target in rundir:
//
//  1. read {rundir}/{target}.pid; any read failure means the daemon is not running
//  2. trim it; an empty pid also means not running
//  3. {rundir}/{target}.{pid}.ctl must exist, else *rpcerr.SocketNotFoundError
func FindSocket(target, rundir string) (string, error) {
	pid, err := readPid(target, rundir)
	if err != nil {
		return "", err
	}
	return socketPath(target, rundir, pid)
}

func readPid(target, rundir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(rundir, target+".pid"))
	if err != nil {
		return "", rpcerr.NotRunning(target)
	}
	pid := strings.TrimSpace(string(data))
	if pid == "" {
		return "", rpcerr.NotRunning(target)
	}
	return pid, nil
}

func socketPath(target, rundir, pid string) (string, error) {
	path := filepath.Join(rundir, fmt.Sprintf("%s.%s.ctl", target, pid))
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", &rpcerr.SocketNotFoundError{Path: path}
	}
	return path, nil
}
