package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 8080, cfg.Device.Port)
	assert.Equal(t, 2*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Monitor.ErrorBackoff)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
device:
  request_timeout: 20s
monitor:
  poll_interval: 1s
logging:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Device.RequestTimeout)
	assert.Equal(t, time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Untouched sections keep their defaults.
	assert.Equal(t, 8080, cfg.Device.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RAYBOX_PANEL_PORT", "9100")
	t.Setenv("RAYBOX_PANEL_JOBS_PATH", "/var/lib/raybox/jobs.json")
	t.Setenv("RAYBOX_PANEL_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/var/lib/raybox/jobs.json", cfg.Storage.JobsPath)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad server port", func(c *Config) { c.Server.Port = 0 }},
		{"bad device port", func(c *Config) { c.Device.Port = 70000 }},
		{"zero poll interval", func(c *Config) { c.Monitor.PollInterval = 0 }},
		{"zero error backoff", func(c *Config) { c.Monitor.ErrorBackoff = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "text" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
