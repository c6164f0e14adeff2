package config

import "time"

// Viewer kinds.
const (
	ViewerMZF = "mzf"
	ViewerZX  = "zx"
)

// Default returns a configuration with every default applied and paths expanded
// against the working directory. Used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.ExpandPaths(".")
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Viewer.Kind == "" {
		cfg.Viewer.Kind = ViewerMZF
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".tapeview/history.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = ".tapeview/catalog"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}
