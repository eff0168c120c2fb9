package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:8000", cfg.Addr())
	require.Equal(t, 120*time.Second, cfg.RequestTimeout())
	require.Equal(t, "https://trends.google.com/trending", cfg.Scraper.BaseURL)
	require.Equal(t, 20, cfg.Scraper.FeedLimit)
	require.InDelta(t, 1.0, cfg.Scraper.RateLimitRPS, 0.0001)
	require.False(t, cfg.Headless.Enabled)
	require.Equal(t, 5000, cfg.Headless.QuietPeriodMs)
	require.Equal(t, BackendMemory, cfg.Storage.Backend)
	require.False(t, cfg.Storage.SaveSnapshots)
	require.Equal(t, 50, cfg.Storage.MemoryMaxObjects)
	require.Equal(t, "trend_collections", cfg.DB.Table)
	require.Empty(t, cfg.DB.DSN)
	require.True(t, cfg.Logging.Development)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  host: 0.0.0.0
  port: 9090
  request_timeout_seconds: 60
scraper:
  feed_limit: 10
  rate_limit_rps: 0.5
  timeout_seconds: 12
headless:
  enabled: true
  max_parallel: 2
  quiet_period_ms: 1500
storage:
  save_snapshots: true
  backend: gcs
  bucket: trends-snapshots
  prefix: html
db:
  dsn: postgres://trends@localhost/trends
  max_conns: 8
pubsub:
  project_id: trends-project
  topic_name: collections
logging:
  development: false
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:9090", cfg.Addr())
	require.Equal(t, time.Minute, cfg.RequestTimeout())
	require.Equal(t, 10, cfg.Scraper.FeedLimit)
	require.InDelta(t, 0.5, cfg.Scraper.RateLimitRPS, 0.0001)
	require.Equal(t, 12, cfg.Scraper.TimeoutSeconds)
	require.True(t, cfg.Headless.Enabled)
	require.Equal(t, 2, cfg.Headless.MaxParallel)
	require.Equal(t, 1500, cfg.Headless.QuietPeriodMs)
	require.Equal(t, 2000, cfg.Headless.ScrollSettleMs, "unset keys keep defaults")
	require.True(t, cfg.Storage.SaveSnapshots)
	require.Equal(t, BackendGCS, cfg.Storage.Backend)
	require.Equal(t, "trends-snapshots", cfg.Storage.Bucket)
	require.Equal(t, "html", cfg.Storage.Prefix)
	require.Equal(t, "postgres://trends@localhost/trends", cfg.DB.DSN)
	require.Equal(t, int32(8), cfg.DB.MaxConns)
	require.Equal(t, "collections", cfg.PubSub.TopicName)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TRENDS_SERVER_PORT", "9191")
	t.Setenv("TRENDS_HEADLESS_ENABLED", "true")
	t.Setenv("TRENDS_STORAGE_BACKEND", "local")
	t.Setenv("TRENDS_STORAGE_BASE_DIR", "/tmp/trends")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)
	require.True(t, cfg.Headless.Enabled)
	require.Equal(t, BackendLocal, cfg.Storage.Backend)
	require.Equal(t, "/tmp/trends", cfg.Storage.BaseDir)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: s3\n"), 0o600))

	_, err := Load(path)
	require.ErrorContains(t, err, "storage.backend")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, want: "server.port"},
		{name: "request timeout", mutate: func(c *Config) { c.Server.RequestTimeoutSeconds = 0 }, want: "server.request_timeout_seconds"},
		{name: "raw timeout", mutate: func(c *Config) { c.Scraper.TimeoutSeconds = 0 }, want: "scraper.timeout_seconds"},
		{name: "feed timeout", mutate: func(c *Config) { c.Scraper.FeedTimeoutSeconds = -1 }, want: "scraper.feed_timeout_seconds"},
		{name: "feed limit", mutate: func(c *Config) { c.Scraper.FeedLimit = 0 }, want: "scraper.feed_limit"},
		{name: "negative rate", mutate: func(c *Config) { c.Scraper.RateLimitRPS = -1 }, want: "scraper.rate_limit_rps"},
		{
			name:   "headless missing max parallel",
			mutate: func(c *Config) { c.Headless.Enabled = true; c.Headless.MaxParallel = 0 },
			want:   "headless.max_parallel",
		},
		{
			name:   "local backend without dir",
			mutate: func(c *Config) { c.Storage.Backend = BackendLocal; c.Storage.BaseDir = " " },
			want:   "storage.base_dir",
		},
		{
			name:   "memory snapshots unbounded",
			mutate: func(c *Config) { c.Storage.SaveSnapshots = true; c.Storage.MemoryMaxObjects = 0 },
			want:   "storage.memory_max_objects",
		},
		{name: "gcs backend without bucket", mutate: func(c *Config) { c.Storage.Backend = BackendGCS }, want: "storage.bucket"},
		{name: "pubsub half configured", mutate: func(c *Config) { c.PubSub.ProjectID = "p" }, want: "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestAddrBracketsIPv6Hosts(t *testing.T) {
	t.Parallel()

	cfg := Config{Server: ServerConfig{Host: "::1", Port: 8000}}
	require.Equal(t, "[::1]:8000", cfg.Addr())
}
