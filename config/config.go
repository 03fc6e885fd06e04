// Package config loads the ovs-appctl TOML configuration.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"ovs-unixctl/appctl"
	"ovs-unixctl/registry"
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Target:  appctl.DefaultTarget,
		Timeout: appctl.DefaultTimeout,
		Etcd:    EtcdConfig{Prefix: registry.DefaultEtcdPrefix},
		Log:     LogConfig{Level: "warn"},
	}
}

// LoadFrom reads and parses a config file at the given path. Keys absent
// from the file keep their Default values. If the file does not exist, it
// returns Default (no error).
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("parsing config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// ApplyEnv fills Rundir from $OVS_RUNDIR (read through lookup) when the file
// left it empty.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if c.Rundir == "" {
		c.Rundir = registry.RundirFromEnv(lookup)
	}
}
