// Package registry resolves a daemon name (the target) into the path of its
// control socket.
//
// RundirRegistry follows the Open vSwitch convention of a pid file and a
// pid-suffixed socket in a runtime directory. EtcdRegistry serves hosts where
// a node agent publishes socket paths centrally.
package registry

import "context"

// SocketInstance describes one published control socket.
type SocketInstance struct {
	Target string `json:"target"`
	Path   string `json:"path"`
	Pid    int    `json:"pid,omitempty"`
	Node   string `json:"node,omitempty"`
}

// Registry resolves target names to control-socket paths.
//
// Resolve fails with rpcerr.ErrNotRunning when the target has no live entry
// and with *rpcerr.SocketNotFoundError when the entry names a missing socket.
type Registry interface {
	Resolve(ctx context.Context, target string) (string, error)
}
