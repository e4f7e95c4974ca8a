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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 24*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 256, cfg.EventBuffer)
	assert.Equal(t, 8, cfg.BatchLimit)
	assert.Empty(t, cfg.RedisURL)
	assert.False(t, cfg.DuplicateTemplates)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("SESSION_MAX_AGE", "2h")
	t.Setenv("DUPLICATE_TEMPLATES", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, 2*time.Hour, cfg.SessionMaxAge)
	assert.True(t, cfg.DuplicateTemplates)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tbl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\ntree_dir: trees\nbatch_limit: 2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "trees", cfg.TreeDir)
	assert.Equal(t, 2, cfg.BatchLimit)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := Load("")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestValidate(t *testing.T) {
	valid := Config{
		Port:            80,
		DatabaseURL:     "postgres://localhost/tbl",
		LogLevel:        "dev",
		CleanupInterval: time.Second,
		EventBuffer:     1,
		BatchLimit:      1,
	}
	assert.NoError(t, Validate(&valid))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Port = 70000 }},
		{"no database", func(c *Config) { c.DatabaseURL = "" }},
		{"bad redis url", func(c *Config) { c.RedisURL = "not a url" }},
		{"zero cleanup interval", func(c *Config) { c.CleanupInterval = 0 }},
		{"zero batch limit", func(c *Config) { c.BatchLimit = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, Validate(&cfg))
		})
	}
}
