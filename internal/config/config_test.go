package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
viewer:
  kind: zx
  mode: DUMP
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
fetch:
  timeout: 15s
decoder:
  command: mzdecode
  args: ["--plain"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Viewer.Kind != ViewerZX || cfg.Viewer.Mode != "DUMP" {
		t.Errorf("unexpected viewer config: %+v", cfg.Viewer)
	}
	if cfg.Fetch.Timeout != 15*time.Second {
		t.Errorf("fetch timeout = %v", cfg.Fetch.Timeout)
	}
	if cfg.Decoder.Command != "mzdecode" || len(cfg.Decoder.Args) != 1 {
		t.Errorf("unexpected decoder config: %+v", cfg.Decoder)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_memberPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "viewer:\n  kind: mzf\n  member: '\\.m12$'\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Viewer.Member != `\.m12$` {
		t.Errorf("member = %q", cfg.Viewer.Member)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/history.db"
output:
  directory: "./listings"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "history.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantOut := filepath.Join(dir, "listings")
	if cfg.Output.Directory != wantOut {
		t.Errorf("output directory = %s, want %s", cfg.Output.Directory, wantOut)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Viewer.Kind != ViewerMZF {
		t.Errorf("default viewer: got %s", cfg.Viewer.Kind)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("default debounce: got %v", cfg.Watch.Debounce)
	}
	if cfg.Fetch.Timeout != 0 {
		t.Errorf("fetch timeout should default to none, got %v", cfg.Fetch.Timeout)
	}
	if cfg.Output.Directory != "" {
		t.Errorf("output directory should stay empty, got %q", cfg.Output.Directory)
	}
}

func TestFetchConfig_RelayOrDefault(t *testing.T) {
	t.Run("nil_returns_default", func(t *testing.T) {
		f := &FetchConfig{}
		if got := f.RelayOrDefault(); got != DefaultRelay {
			t.Errorf("RelayOrDefault() = %q, want %q", got, DefaultRelay)
		}
	})
	t.Run("empty_means_direct", func(t *testing.T) {
		empty := ""
		f := &FetchConfig{Relay: &empty}
		if got := f.RelayOrDefault(); got != "" {
			t.Errorf("RelayOrDefault() = %q, want empty", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Viewer:  ViewerConfig{Kind: ViewerZX},
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
		Fetch:   FetchConfig{Timeout: 3 * time.Second},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 || loaded.Viewer.Kind != ViewerZX {
		t.Errorf("loaded config: %+v", loaded)
	}
	if loaded.Fetch.Timeout != 3*time.Second {
		t.Errorf("loaded timeout: got %v", loaded.Fetch.Timeout)
	}
}
