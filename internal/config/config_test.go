package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 2, cfg.Scheduler.MaxConcurrent)
	require.Equal(t, 10, cfg.Scheduler.MaxQueue)
	require.Equal(t, 60*time.Second, cfg.JobTimeout())
	require.Equal(t, 10, cfg.RateLimit.Requests)
	require.Equal(t, time.Minute, cfg.RateWindow())
	require.Equal(t, "memory", cfg.Cache.Provider)
	require.Equal(t, 24*time.Hour, cfg.CacheTTL())
	require.Equal(t, "pageaudit-bot/0.1", cfg.Engine.UserAgent)
	require.False(t, cfg.Auth.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
scheduler:
  max_concurrent: 4
  max_queue: 20
  job_timeout_seconds: 120
ratelimit:
  requests: 30
  window_seconds: 300
cache:
  provider: redis
  redis_addr: redis.internal:6379
  ttl_seconds: 3600
auth:
  enabled: true
  api_key: hunter2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 4, cfg.Scheduler.MaxConcurrent)
	require.Equal(t, 20, cfg.Scheduler.MaxQueue)
	require.Equal(t, 2*time.Minute, cfg.JobTimeout())
	require.Equal(t, 30, cfg.RateLimit.Requests)
	require.Equal(t, 5*time.Minute, cfg.RateWindow())
	require.Equal(t, "redis", cfg.Cache.Provider)
	require.Equal(t, "redis.internal:6379", cfg.Cache.RedisAddr)
	require.Equal(t, time.Hour, cfg.CacheTTL())
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "hunter2", cfg.Auth.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PAGEAUDIT_SERVER_PORT", "7070")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Scheduler.MaxConcurrent = 0 },
			wantErr: "max_concurrent",
		},
		{
			name:    "zero queue",
			mutate:  func(c *Config) { c.Scheduler.MaxQueue = 0 },
			wantErr: "max_queue",
		},
		{
			name:    "zero job timeout",
			mutate:  func(c *Config) { c.Scheduler.JobTimeoutSeconds = 0 },
			wantErr: "job_timeout_seconds",
		},
		{
			name:    "zero rate budget",
			mutate:  func(c *Config) { c.RateLimit.Requests = 0 },
			wantErr: "ratelimit.requests",
		},
		{
			name:    "unknown cache provider",
			mutate:  func(c *Config) { c.Cache.Provider = "memcached" },
			wantErr: "unknown cache provider",
		},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.Cache.Provider = "redis"
				c.Cache.RedisAddr = ""
			},
			wantErr: "redis_addr",
		},
		{
			name: "auth without key",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.APIKey = ""
			},
			wantErr: "api_key",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
