package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const appName = "backupbanana"

// Config represents the optional banana configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Paths    PathsConfig    `toml:"paths"`
}

// DefaultsConfig holds persistent flag defaults.
type DefaultsConfig struct {
	Verify  *bool   `toml:"verify"`
	Workers *int    `toml:"workers"`
	BWLimit *string `toml:"bwlimit"`
	LogFile *string `toml:"log_file"`
}

// PathsConfig overrides where state is kept.
type PathsConfig struct {
	DataDir *string `toml:"data_dir"`
	Tasks   *string `toml:"tasks"`
}

// Dir returns the XDG config directory for banana.
func Dir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, appName)
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}

// TasksPath returns the task definitions file.
func (c Config) TasksPath() string {
	if c.Paths.Tasks != nil && *c.Paths.Tasks != "" {
		return *c.Paths.Tasks
	}
	return filepath.Join(Dir(), "tasks.toml")
}

// DataDir returns the directory holding manifests and history, defaulting
// to $XDG_DATA_HOME/backupbanana.
func (c Config) DataDir() string {
	if c.Paths.DataDir != nil && *c.Paths.DataDir != "" {
		return *c.Paths.DataDir
	}
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), appName)
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, appName)
}

// ManifestDir returns the directory of per-task manifests.
func (c Config) ManifestDir() string {
	return filepath.Join(c.DataDir(), "manifests")
}

// HistoryPath returns the run history database.
func (c Config) HistoryPath() string {
	return filepath.Join(c.DataDir(), "history.db")
}
