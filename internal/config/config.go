// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends for HTML snapshots.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Host                  string `mapstructure:"host"`
	Port                  int    `mapstructure:"port"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
}

// ScraperConfig governs the raw fetch, feed and fallback chain.
type ScraperConfig struct {
	BaseURL            string  `mapstructure:"base_url"`
	FeedURL            string  `mapstructure:"feed_url"`
	UserAgent          string  `mapstructure:"user_agent"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds"`
	FeedTimeoutSeconds int     `mapstructure:"feed_timeout_seconds"`
	FeedLimit          int     `mapstructure:"feed_limit"`
	RateLimitRPS       float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`
	ShellThreshold     int     `mapstructure:"shell_threshold_bytes"`
}

// HeadlessConfig configures the browser renderer.
type HeadlessConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	MaxParallel      int    `mapstructure:"max_parallel"`
	ExecPath         string `mapstructure:"exec_path"`
	NavTimeoutSec    int    `mapstructure:"nav_timeout_seconds"`
	MarkerTimeoutSec int    `mapstructure:"marker_timeout_seconds"`
	QuietPeriodMs    int    `mapstructure:"quiet_period_ms"`
	ScrollSettleMs   int    `mapstructure:"scroll_settle_ms"`
}

// StorageConfig selects where HTML snapshots are written.
type StorageConfig struct {
	SaveSnapshots bool   `mapstructure:"save_snapshots"`
	Backend       string `mapstructure:"backend"`
	BaseDir       string `mapstructure:"base_dir"`
	Bucket        string `mapstructure:"bucket"`
	Prefix        string `mapstructure:"prefix"`

	// MemoryMaxObjects caps the memory backend; the oldest snapshot is evicted first.
	MemoryMaxObjects int `mapstructure:"memory_max_objects"`
}

// DBConfig controls the Postgres collection archive. An empty DSN disables it.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxConns     int32  `mapstructure:"max_conns"`
	EnsureSchema bool   `mapstructure:"ensure_schema"`
}

// PubSubConfig holds the topic collection events are announced on.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment. Environment variables use the
// TRENDS_ prefix with dots replaced by underscores.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRENDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("scraper.base_url", "https://trends.google.com/trending")
	v.SetDefault("scraper.feed_url", "https://trends.google.com/trends/trendingsearches/daily/rss")
	v.SetDefault("scraper.user_agent", "")
	v.SetDefault("scraper.timeout_seconds", 30)
	v.SetDefault("scraper.feed_timeout_seconds", 15)
	v.SetDefault("scraper.feed_limit", 20)
	v.SetDefault("scraper.rate_limit_rps", 1.0)
	v.SetDefault("scraper.rate_limit_burst", 2)
	v.SetDefault("scraper.shell_threshold_bytes", 2048)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.marker_timeout_seconds", 10)
	v.SetDefault("headless.quiet_period_ms", 5000)
	v.SetDefault("headless.scroll_settle_ms", 2000)
	v.SetDefault("storage.save_snapshots", false)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.base_dir", "snapshots")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.memory_max_objects", 50)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "trend_collections")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.ensure_schema", true)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if c.Scraper.FeedTimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.feed_timeout_seconds must be > 0")
	}
	if c.Scraper.FeedLimit <= 0 {
		return fmt.Errorf("scraper.feed_limit must be > 0")
	}
	if c.Scraper.RateLimitRPS < 0 {
		return fmt.Errorf("scraper.rate_limit_rps must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Storage.Backend {
	case BackendMemory:
		if c.Storage.SaveSnapshots && c.Storage.MemoryMaxObjects <= 0 {
			return fmt.Errorf("storage.memory_max_objects must be > 0 for the memory backend")
		}
	case BackendLocal:
		if strings.TrimSpace(c.Storage.BaseDir) == "" {
			return fmt.Errorf("storage.base_dir is required for the local backend")
		}
	case BackendGCS:
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return fmt.Errorf("storage.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, local, gcs; got %q", c.Storage.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// RequestTimeout bounds one API request, including every fallback step.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
