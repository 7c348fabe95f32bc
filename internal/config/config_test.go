package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir(), "config")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Backend.Driver)
	assert.Equal(t, "memory", cfg.Realtime.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 20, cfg.Pagination.DefaultLimit)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: 9000
backend:
  driver: memory
pagination:
  default_limit: 10
  max_limit: 50
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFrom(dir, "config")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Backend.Driver)
	assert.Equal(t, 10, cfg.Pagination.DefaultLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown backend", env: map[string]string{"BACKEND": "mongo"}},
		{name: "redis bus without address", env: map[string]string{"REALTIME_DRIVER": "redis"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadFrom(t.TempDir(), "config")
			assert.Error(t, err)
		})
	}
}
