package config

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Validate checks configuration invariants and returns actionable errors.
func Validate(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var errs []error
	if cfg.Target == "" && cfg.Socket == "" {
		errs = append(errs, errors.New("target: must be set unless socket is given"))
	}
	if strings.ContainsRune(cfg.Target, '/') {
		errs = append(errs, fmt.Errorf("target %q: must be a daemon name, not a path (use socket)", cfg.Target))
	}
	if cfg.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %s: must not be negative", cfg.Timeout))
	}

	if cfg.RateLimit.RPS < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.rps %v: must not be negative", cfg.RateLimit.RPS))
	}
	if cfg.RateLimit.RPS > 0 && cfg.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Errorf("rate_limit.burst %d: must be at least 1 when rps is set", cfg.RateLimit.Burst))
	}

	for i, ep := range cfg.Etcd.Endpoints {
		if strings.TrimSpace(ep) == "" {
			errs = append(errs, fmt.Errorf("etcd.endpoints[%d]: must not be empty", i))
		}
	}
	if cfg.UseEtcd() && !strings.HasPrefix(cfg.Etcd.Prefix, "/") {
		errs = append(errs, fmt.Errorf("etcd.prefix %q: must start with /", cfg.Etcd.Prefix))
	}

	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	switch cfg.Trace.Exporter {
	case "", "noop", "stdout":
	default:
		errs = append(errs, fmt.Errorf("trace.exporter %q: unsupported (want stdout or noop)", cfg.Trace.Exporter))
	}

	return errors.Join(errs...)
}
