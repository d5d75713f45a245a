package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	loader := NewLoaderWithEnv("", "1.0.0", func(string) (string, bool) { return "", false })
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, ":8080", cfg.API.ListenAddr)
	assert.Equal(t, 6*time.Second, cfg.Crossfade.LeadTime)
	assert.Equal(t, "equal-power", cfg.Crossfade.Curve)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  root: /music\napi:\n  listenAddr: \":9090\"\n"), 0o600))

	loader := NewLoaderWithEnv(path, "1.0.0", func(string) (string, bool) { return "", false })
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "/music", cfg.Catalog.Root)
	assert.Equal(t, ":9090", cfg.API.ListenAddr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  listenAddr: \":9090\"\n"), 0o600))

	env := map[string]string{"DRIFTCAST_LISTEN_ADDR": ":7070"}
	loader := NewLoaderWithEnv(path, "1.0.0", func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.API.ListenAddr)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	loader := NewLoaderWithEnv(filepath.Join(t.TempDir(), "missing.yaml"), "1.0.0", func(string) (string, bool) { return "", false })
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Catalog.Root, cfg.Catalog.Root)
}

func TestLoad_InvalidEnvIntFallsBackToDefault(t *testing.T) {
	env := map[string]string{"DRIFTCAST_RATE_LIMIT_BURST": "not-a-number"}
	loader := NewLoaderWithEnv("", "1.0.0", func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().API.RateLimitBurst, cfg.API.RateLimitBurst)
}

func TestLoad_AdminTokenAndAutoTLSFromEnv(t *testing.T) {
	env := map[string]string{
		"DRIFTCAST_ADMIN_TOKEN": "s3cret",
		"DRIFTCAST_AUTO_TLS":    "true",
	}
	loader := NewLoaderWithEnv("", "1.0.0", func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.API.AdminToken)
	assert.True(t, cfg.API.AutoTLS)
}

func TestLoad_InvalidEnvBoolFallsBackToDefault(t *testing.T) {
	env := map[string]string{"DRIFTCAST_AUTO_TLS": "not-a-bool"}
	loader := NewLoaderWithEnv("", "1.0.0", func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().API.AutoTLS, cfg.API.AutoTLS)
}
