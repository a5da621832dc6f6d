package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Autosync.Enabled {
		t.Error("autosync must default to disabled")
	}
	if cfg.Autosync.Debounce != 5*time.Minute {
		t.Errorf("debounce default = %v, want 5m", cfg.Autosync.Debounce)
	}
	if cfg.Dashboard.Port != 8080 {
		t.Errorf("dashboard port default = %d, want 8080", cfg.Dashboard.Port)
	}
	if cfg.Database.Path == "" {
		t.Error("database path default missing")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: /tmp/studio.db
autosync:
  enabled: true
  debounce: 30s
replicas:
  primary: https://primary.example.com
  secondary: https://secondary.example.com
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.Autosync.Enabled || cfg.Autosync.Debounce != 30*time.Second {
		t.Errorf("autosync not parsed: %+v", cfg.Autosync)
	}
	if cfg.Replicas.Primary != "https://primary.example.com" {
		t.Errorf("primary replica not parsed: %q", cfg.Replicas.Primary)
	}
	if cfg.Database.Path != "/tmp/studio.db" {
		t.Errorf("database path not parsed: %q", cfg.Database.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file must not fail: %v", err)
	}
	if cfg.Dashboard.Port != 8080 {
		t.Errorf("defaults not applied: %+v", cfg.Dashboard)
	}
}

func TestWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("autosync:\n  enabled: false\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	changes := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case changes <- cfg:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(w.Stop)

	if err := os.WriteFile(path, []byte("autosync:\n  enabled: true\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-changes:
		if !cfg.Autosync.Enabled {
			t.Error("reloaded config did not pick up change")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}
