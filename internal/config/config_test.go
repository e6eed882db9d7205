package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)
	require.True(t, cfg.Browser.Headless)
	require.Equal(t, 1280, cfg.Browser.ViewportWidth)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "sensordash.yaml")

	cfg := DefaultConfig()
	cfg.Server.BaseURL = "http://api.example.com"
	cfg.Browser.ViewportWidth = 1920
	cfg.Logging.Level = "debug"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://api.example.com", loaded.Server.BaseURL)
	require.Equal(t, 1920, loaded.Browser.ViewportWidth)
	require.Equal(t, "debug", loaded.Logging.Level)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  base_url: http://other:9000\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://other:9000", cfg.Server.BaseURL)
	// Untouched sections keep their defaults.
	require.Equal(t, "30s", cfg.Server.Timeout)
	require.Equal(t, "testdata/baselines", cfg.Browser.BaselineDir)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SENSORDASH_SERVER_URL", "http://env.example.com")
	t.Setenv("SENSORDASH_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, "http://env.example.com", cfg.Server.BaseURL)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
