package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keycomp.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
worker:
  python: /usr/bin/python3
  entry: /opt/keycomp/worker/main.py
  server_addr: 127.0.0.1:7777
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Worker.Python != "/usr/bin/python3" {
		t.Errorf("Python = %q", cfg.Worker.Python)
	}
	if cfg.Worker.Entry != "/opt/keycomp/worker/main.py" {
		t.Errorf("Entry = %q", cfg.Worker.Entry)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "worker:\n  entry: main.py\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Worker.Python != "" {
		t.Errorf("default Python = %q, want empty (auto-resolve)", cfg.Worker.Python)
	}
}

func TestLoad_MissingEntry(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "worker.entry") {
		t.Errorf("Load() error = %v, want worker.entry validation failure", err)
	}
}

func TestLoad_BadLevel(t *testing.T) {
	path := writeConfig(t, "worker:\n  entry: main.py\nlogging:\n  level: loud\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("Load() error = %v, want logging.level validation failure", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() error = nil, want read failure")
	}
}
