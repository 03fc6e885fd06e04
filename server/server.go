// Package server implements a minimal unixctl command server.
//
// It stands in for a real daemon in tests and examples: it answers
// "list-commands" and "version" the way Open vSwitch daemons do, dispatches
// registered commands, and can publish itself in a rundir as
// {name}.pid plus {name}.{pid}.ctl.
//
//	Accept conn → handleConn (one goroutine, sequential exchanges)
//	  → decode request → dispatch handler → encode response (same id)
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Handler runs a command with its string arguments and returns its text output.
type Handler func(params []string) (string, error)

type command struct {
	usage   string
	handler Handler
}

type request struct {
	Method string          `json:"method"`
	Params []string        `json:"params"`
	ID     json.RawMessage `json:"id"`
}

type response struct {
	Result *string         `json:"result"`
	Error  *string         `json:"error"`
	ID     json.RawMessage `json:"id"`
}

// Server is a unixctl-compatible command server.
type Server struct {
	name     string
	version  string
	mu       sync.RWMutex
	commands map[string]*command
	listener net.Listener
	pidFile  string
	wg       sync.WaitGroup
	shutdown atomic.Bool
	conns    sync.Map // net.Conn → struct{}, closed on Shutdown
}

// NewServer creates a server for the daemon called name, reporting version
// from the "version" command.
func NewServer(name, version string) *Server {
	s := &Server{
		name:     name,
		version:  version,
		commands: make(map[string]*command),
	}
	s.Register("list-commands", "", s.listCommands)
	s.Register("version", "", func([]string) (string, error) {
		return fmt.Sprintf("%s (Open vSwitch) %s", s.name, s.version), nil
	})
	return s
}

// Register adds or replaces a command. usage is the argument signature shown
// by list-commands, e.g. "[dp]".
func (s *Server) Register(name, usage string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[name] = &command{usage: usage, handler: h}
}

// Listen starts serving on a Unix socket at path and returns immediately.
func (s *Server) Listen(path string) error {
	listener, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	s.listener = listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	return nil
}

// ListenRundir writes {rundir}/{name}.pid with the current process id and
// serves on {rundir}/{name}.{pid}.ctl. It returns the socket path.
func (s *Server) ListenRundir(rundir string) (string, error) {
	pid := os.Getpid()
	pidFile := filepath.Join(rundir, s.name+".pid")
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return "", err
	}

	path := filepath.Join(rundir, fmt.Sprintf("%s.%d.ctl", s.name, pid))
	if err := s.Listen(path); err != nil {
		os.Remove(pidFile)
		return "", err
	}
	s.pidFile = pidFile
	return path, nil
}

// Addr returns the socket path, or "" before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting, closes open connections, removes the pid file,
// and waits up to timeout for connection goroutines to exit.
func (s *Server) Shutdown(timeout time.Duration) error {
	// Set the flag before closing so acceptLoop treats the error as intentional.
	s.shutdown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}
	s.conns.Range(func(key, _ any) bool {
		key.(net.Conn).Close()
		return true
	})
	if s.pidFile != "" {
		os.Remove(s.pidFile)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for connections to close")
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.shutdown.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		s.conns.Store(conn, struct{}{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.conns.Delete(conn)
			defer conn.Close()
			s.handleConn(conn)
		}()
	}
}

// handleConn serves exchanges on one connection until the peer goes away or
// sends something that is not a request.
func (s *Server) handleConn(conn net.Conn) {
	dec := json.NewDecoder(conn)
	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			return
		}

		data, err := json.Marshal(s.dispatch(&req))
		if err != nil {
			return
		}
		if _, err := conn.Write(data); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req *request) *response {
	resp := &response{ID: req.ID}
	if len(resp.ID) == 0 {
		resp.ID = json.RawMessage("null")
	}

	s.mu.RLock()
	cmd, ok := s.commands[req.Method]
	s.mu.RUnlock()
	if !ok {
		msg := fmt.Sprintf("%q is not a valid command (use \"list-commands\" to see a list of valid commands)", req.Method)
		resp.Error = &msg
		return resp
	}

	out, err := cmd.handler(req.Params)
	if err != nil {
		msg := err.Error()
		resp.Error = &msg
		return resp
	}
	resp.Result = &out
	return resp
}

func (s *Server) listCommands([]string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("The available commands are:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-23s %s\n", name, s.commands[name].usage)
	}
	return b.String(), nil
}
