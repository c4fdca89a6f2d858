// Package config loads git-inner-server's process configuration: a local
// development INI file plus environment variable overrides, the ambient
// configuration stack named in spec §2.
package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

const (
	envConfigFile     = "CONFIG_FILE"
	defaultConfigFile = "config.ini"

	envBackendDSN = "MONGODB_URL"
	envLogLevel   = "GIT_INNER_LOG"
)

// Config is the process-wide configuration for git-inner-server, constructed
// once at startup by the serve command, which passes its fields to the
// components it wires up, rather than living in a global mutable singleton.
type Config struct {
	// HTTPAddr is the listen address for the HTTP front door (spec §6.1).
	HTTPAddr string
	// SSHAddr is the listen address for the SSH front door (spec §6.2).
	SSHAddr string
	// BackendDSN is the connection string for the document-store/object-store
	// backend. Maps to $MONGODB_URL if set, overriding the file value.
	BackendDSN string
	// LogLevel is a level name ("debug", "info", "warn", "error") the
	// Logger implementation parses into its verbosity. Maps to
	// $GIT_INNER_LOG, mirroring the original's RUST_LOG-style env filter.
	LogLevel string
	// DefaultBranch is the branch new repositories are initialized with
	// (spec §4.6).
	DefaultBranch string
}

// Load reads path (or the file named by $CONFIG_FILE, defaulting to
// "config.ini", when path is empty), then applies environment overrides.
// A missing config file is not an error: every field has a usable default
// and the whole Config can be supplied purely from the environment.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(envConfigFile)
	}
	if path == "" {
		path = defaultConfigFile
	}

	cfg := &Config{
		HTTPAddr:      ":8080",
		SSHAddr:       ":2222",
		LogLevel:      "info",
		DefaultBranch: "refs/heads/main",
	}

	if _, err := os.Stat(path); err == nil {
		file, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
		applyFile(cfg, file)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyFile(cfg *Config, file *ini.File) {
	server := file.Section("server")
	if v := server.Key("http_addr").String(); v != "" {
		cfg.HTTPAddr = v
	}
	if v := server.Key("ssh_addr").String(); v != "" {
		cfg.SSHAddr = v
	}
	if v := server.Key("default_branch").String(); v != "" {
		cfg.DefaultBranch = v
	}

	backend := file.Section("backend")
	if v := backend.Key("dsn").String(); v != "" {
		cfg.BackendDSN = v
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(envBackendDSN); v != "" {
		cfg.BackendDSN = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = v
	}
}
