// Package config loads bridge configuration from a YAML file.
//
// Hosts embedding the bridge usually supply WorkerConfig programmatically;
// the file form exists for the probe tool and for standalone testing, where
// no editor is present to serve variables.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Worker  Worker  `yaml:"worker"`
	Logging Logging `yaml:"logging"`
}

// Worker configures how the completion worker is launched.
type Worker struct {
	// Python is the interpreter; empty means resolve automatically.
	Python string `yaml:"python"`

	// PythonPrefix is the installation prefix probed during resolution.
	PythonPrefix string `yaml:"python_prefix"`

	// Entry is the worker entry-point script. Required.
	Entry string `yaml:"entry"`

	// ServerAddr is the editor RPC address handed to the worker.
	ServerAddr string `yaml:"server_addr"`
}

// Logging configures the bridge logger.
type Logging struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: Logging{Level: "info"},
	}
}

// Load reads and validates a YAML configuration file, applying defaults for
// absent fields.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c Config) Validate() error {
	if c.Worker.Entry == "" {
		return fmt.Errorf("worker.entry is required")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
