package config

import "time"

// Config is the ovs-appctl configuration file.
type Config struct {
	// Target is the daemon discovered in Rundir when Socket is empty.
	Target string `toml:"target"`
	Rundir string `toml:"rundir"`
	// Socket, when set, skips discovery.
	Socket string `toml:"socket"`
	// Timeout is the per-operation socket deadline, e.g. "1s"; "0s" disables it.
	Timeout time.Duration `toml:"timeout"`

	RateLimit RateLimitConfig `toml:"rate_limit"`
	Etcd      EtcdConfig      `toml:"etcd"`
	Log       LogConfig       `toml:"log"`
	Trace     TraceConfig     `toml:"trace"`
}

// RateLimitConfig caps commands per second. RPS 0 disables the limit.
type RateLimitConfig struct {
	RPS   float64 `toml:"rps"`
	Burst int     `toml:"burst"`
}

// EtcdConfig enables discovery through an etcd registry instead of the
// rundir when Endpoints is non-empty.
type EtcdConfig struct {
	Endpoints []string `toml:"endpoints"`
	Node      string   `toml:"node"`
	Prefix    string   `toml:"prefix"`
}

// LogConfig holds the zap level name ("debug", "info", "warn", "error").
type LogConfig struct {
	Level string `toml:"level"`
}

// TraceConfig selects the span exporter: "stdout" prints spans to stderr,
// "noop" or "" disables tracing.
type TraceConfig struct {
	Exporter string `toml:"exporter"`
}

// UseEtcd reports whether sockets are resolved through etcd.
func (c *Config) UseEtcd() bool {
	return len(c.Etcd.Endpoints) > 0
}
