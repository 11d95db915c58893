package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/banana/internal/config"
)

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Defaults.Verify)
	assert.Nil(t, cfg.Defaults.Workers)
	assert.Nil(t, cfg.Paths.DataDir)
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "backupbanana")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	content := `
[defaults]
verify = true
workers = 16
bwlimit = "100MB"
log_file = "/var/log/banana.log"

[paths]
data_dir = "/srv/banana"
tasks = "/etc/banana/tasks.toml"
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Defaults.Verify)
	assert.True(t, *cfg.Defaults.Verify)

	require.NotNil(t, cfg.Defaults.Workers)
	assert.Equal(t, 16, *cfg.Defaults.Workers)

	require.NotNil(t, cfg.Defaults.BWLimit)
	assert.Equal(t, "100MB", *cfg.Defaults.BWLimit)

	require.NotNil(t, cfg.Defaults.LogFile)
	assert.Equal(t, "/var/log/banana.log", *cfg.Defaults.LogFile)

	assert.Equal(t, "/srv/banana", cfg.DataDir())
	assert.Equal(t, "/srv/banana/manifests", cfg.ManifestDir())
	assert.Equal(t, "/srv/banana/history.db", cfg.HistoryPath())
	assert.Equal(t, "/etc/banana/tasks.toml", cfg.TasksPath())
}

func TestLoad_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "backupbanana")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte("[defaults]\nworkers = 4\n"), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.Defaults.Workers)
	assert.Equal(t, 4, *cfg.Defaults.Workers)
	assert.Nil(t, cfg.Defaults.Verify)
	assert.Nil(t, cfg.Defaults.BWLimit)
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "backupbanana")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte("[defaults\nbroken"), 0o644))

	_, err := config.Load()
	assert.Error(t, err)
}

func TestDefaultPaths(t *testing.T) {
	cfgHome := t.TempDir()
	dataHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfgHome)
	t.Setenv("XDG_DATA_HOME", dataHome)

	var cfg config.Config
	assert.Equal(t, filepath.Join(cfgHome, "backupbanana", "config.toml"), config.Path())
	assert.Equal(t, filepath.Join(cfgHome, "backupbanana", "tasks.toml"), cfg.TasksPath())
	assert.Equal(t, filepath.Join(dataHome, "backupbanana"), cfg.DataDir())
	assert.Equal(t, filepath.Join(dataHome, "backupbanana", "history.db"), cfg.HistoryPath())
}

func TestPath_FallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, ".config", "backupbanana", "config.toml"), config.Path())
}
