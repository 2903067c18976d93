// Package config loads Growth Ops configuration from a flat JSON file at
// $XDG_CONFIG_HOME/growthops/config.json with GROWTHOPS_* environment
// overrides on top of built-in defaults.
package config

import (
	"os"
	"path/filepath"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Blob    BlobConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	// DataDir holds the SQLite backend, the API token file, and the PID file.
	DataDir string
	// Demo forces local/guest mode: seed data, synthetic identity, no
	// backend writes.
	Demo bool
}

type BlobConfig struct {
	Driver   string // "fs", "s3", or "memory"
	Dir      string // fs driver; defaults to <data_dir>/avatars
	Bucket   string // s3 driver
	Region   string // s3 driver
	Endpoint string // s3 driver, optional (e.g. MinIO)
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			Demo:    true,
		},
		Blob: BlobConfig{
			Driver: "fs",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "growthops-data"
		}
	}
	return filepath.Join(dir, "growthops")
}

// Load reads configuration from the config file backend and applies
// environment overrides.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.Blob.Dir == "" {
		cfg.Blob.Dir = filepath.Join(cfg.Storage.DataDir, "avatars")
	}
	return cfg, nil
}

// Demo reports whether the configuration selects local/guest mode.
func (c Config) Demo() bool {
	return c.Storage.Demo || c.Storage.DataDir == ""
}
