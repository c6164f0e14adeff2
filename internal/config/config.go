// Package config provides configuration loading and structs for tapeview.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultRelay is the CORS relay prefixed to remote URLs when none is configured.
const DefaultRelay = "https://corsproxy.io/?"

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Decoder DecoderConfig `yaml:"decoder"`
	Output  OutputConfig  `yaml:"output"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ViewerConfig selects the viewer variant and its startup state.
type ViewerConfig struct {
	// Kind is "mzf" (Sharp MZ) or "zx" (Sinclair ZX).
	Kind string `yaml:"kind"`
	// Mode is the startup conversion mode. Empty selects the viewer default.
	Mode string `yaml:"mode"`
	// URL, when set, is fetched at startup and disables local input.
	URL     string `yaml:"url"`
	Charset bool   `yaml:"charset"`
	// Member is a regular expression selecting the archive member to load,
	// overriding the viewer's own extension. Matching ignores case.
	Member string `yaml:"member"`
}

// FetchConfig holds remote fetch settings.
type FetchConfig struct {
	Relay   *string       `yaml:"relay"`
	Timeout time.Duration `yaml:"timeout"`
}

// RelayOrDefault returns the configured relay; DefaultRelay when unset. An
// explicitly empty relay fetches directly.
func (f *FetchConfig) RelayOrDefault() string {
	if f.Relay != nil {
		return *f.Relay
	}
	return DefaultRelay
}

// DecoderConfig selects the decoder. An empty Command uses the built-in decoder.
type DecoderConfig struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

// OutputConfig holds where saved listings are written.
type OutputConfig struct {
	// Directory defaults to the working directory when empty.
	Directory string `yaml:"directory"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the save history database and catalog index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// WatchConfig holds file watch settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.ExpandPaths(filepath.Dir(path))

	return &cfg, nil
}

// ExpandPaths makes storage and output paths absolute relative to configDir.
func (c *Config) ExpandPaths(configDir string) {
	c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, configDir)
	c.Storage.BleveIndexPath = expandPath(c.Storage.BleveIndexPath, configDir)
	if c.Output.Directory != "" {
		c.Output.Directory = expandPath(c.Output.Directory, configDir)
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
