package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
dataDir: /var/lib/visenty
requestTimeout: 3s
cacheDir: /tmp/visenty-cache
eventLimit: 20
livePollInterval: 500ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/visenty", cfg.DataDir)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "/tmp/visenty-cache", cfg.CacheDir)
	assert.Equal(t, 20, cfg.EventLimit)
	assert.Equal(t, 500*time.Millisecond, cfg.LivePollInterval)

	assert.Equal(t, "visenty", cfg.LegacyScheme)
	assert.Equal(t, time.Second, cfg.LiveStartDelay)
	assert.Equal(t, 5*time.Second, cfg.WatchInterval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero timeout", "requestTimeout: 0s"},
		{"negative limit", "eventLimit: -1"},
		{"zero poll interval", "livePollInterval: 0s"},
		{"negative start delay", "liveStartDelay: -1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "requestTimeout: [not a duration"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML config")
}
