package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "ffmpeg", cfg.Transcoder.BinaryPath)
	assert.Equal(t, 5*time.Minute, cfg.Streaming.IdleTimeout)
	assert.Equal(t, 60*time.Minute, cfg.Auth.StreamTokenTTL)
	assert.Equal(t, 8, cfg.Streaming.MaxSessionsPerStore)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  address: ":9999"
streaming:
  idle_timeout: 90s
auth:
  stream_token_ttl: 15m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, 90*time.Second, cfg.Streaming.IdleTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Auth.StreamTokenTTL)
	// Untouched values keep their defaults.
	assert.Equal(t, "ffmpeg", cfg.Transcoder.BinaryPath)
}

func TestLoad_EnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":9999\"\n"), 0o600))
	t.Setenv("STREAMGATE_SERVER_ADDRESS", ":7777")
	t.Setenv("STREAMGATE_STREAM_TOKEN_SECRET", "env-secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Address)
	assert.Equal(t, "env-secret", cfg.Auth.StreamTokenSecret)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty address", func(c *Config) { c.Server.Address = "" }},
		{"zero idle timeout", func(c *Config) { c.Streaming.IdleTimeout = 0 }},
		{"empty transcoder", func(c *Config) { c.Transcoder.BinaryPath = "" }},
		{"negative store ceiling", func(c *Config) { c.Streaming.MaxSessionsPerStore = -1 }},
		{"bad directory mode", func(c *Config) { c.Directory.Mode = "ldap" }},
		{"http mode without url", func(c *Config) { c.Directory.Mode = "http"; c.Directory.BaseURL = "" }},
		{"empty token secret", func(c *Config) { c.Auth.StreamTokenSecret = "" }},
		{"redis enabled without address", func(c *Config) { c.Redis.Enabled = true; c.Redis.Address = "" }},
		{"rate limit enabled without rps", func(c *Config) { c.RateLimiting.Enabled = true; c.RateLimiting.RequestsPerSecond = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
