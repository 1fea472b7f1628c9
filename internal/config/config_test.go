package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_PassesValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().FilterOrder, cfg.FilterOrder)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker_count: 16\nlog_level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.WorkerCount)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker_count: 16\n"), 0o644))

	t.Setenv("EMG_WORKER_COUNT", "32")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.WorkerCount)
}

func TestValidate_RejectsBadFilterCutoffs(t *testing.T) {
	cfg := Defaults()
	cfg.LowPassCutoffHz = 10
	cfg.HighPassCutoffHz = 20
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveWorkerCount(t *testing.T) {
	cfg := Defaults()
	cfg.WorkerCount = 0
	assert.Error(t, cfg.Validate())
}
