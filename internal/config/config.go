// Package config loads the daemon's configuration snapshot once at
// startup. Unlike a hot-reloadable control-plane config, this snapshot
// is read once and never mutated afterward; every component receives it
// by value or read-only pointer.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeccompConfig describes the two syscall allow-lists the syscall
// filter stage controller installs.
type SeccompConfig struct {
	Enabled             bool     `yaml:"enabled"`
	StartupSyscalls     []string `yaml:"startup_syscalls"`
	SteadyStateSyscalls []string `yaml:"steady_state_syscalls"`
}

// Snapshot is the full configuration snapshot loaded from a single YAML
// file at startup.
type Snapshot struct {
	DBRoot                 string `yaml:"db_root"`
	SchemasRoot            string `yaml:"schemas_root"`
	SocketPath             string `yaml:"socket_path"`
	LogDir                 string `yaml:"log_dir"`
	PIDFile                string `yaml:"pid_file"`
	PrivateKeyPath         string `yaml:"private_key_path"`
	PublicCertPath         string `yaml:"public_cert_path"`
	SignSysMeta            bool   `yaml:"sign_sys_meta"`
	ManifestSysMeta        bool   `yaml:"manifest_sys_meta"`
	MaxRecordBytes         uint64 `yaml:"max_record_bytes"`
	AcceptDelayThreadCount int    `yaml:"accept_delay_thread_count"`
	AcceptDelayIncrementUS int    `yaml:"accept_delay_increment_us"`
	AcceptDelayMaxUS       int    `yaml:"accept_delay_max_us"`
	Debug                  bool   `yaml:"debug"`

	Seccomp SeccompConfig `yaml:"seccomp"`
}

// defaults mirrors the original daemon's built-in fallbacks for fields
// the config file may omit.
func defaults() Snapshot {
	return Snapshot{
		SocketPath:             "/var/run/jalocald/jalocald.sock",
		AcceptDelayIncrementUS: 10000,
		AcceptDelayMaxUS:       1000000,
	}
}

// Load reads and parses the YAML configuration file at path.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	snap := defaults()
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if snap.DBRoot == "" {
		return nil, fmt.Errorf("config: db_root is required")
	}
	if snap.SignSysMeta && snap.PrivateKeyPath == "" {
		return nil, fmt.Errorf("config: sign_sys_meta requires private_key_path")
	}

	return &snap, nil
}
