// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper. All
// values are fixed at process start; nothing is hot-reloadable.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SchedulerConfig bounds the job queue and executor.
type SchedulerConfig struct {
	MaxConcurrent     int `mapstructure:"max_concurrent"`
	MaxQueue          int `mapstructure:"max_queue"`
	JobTimeoutSeconds int `mapstructure:"job_timeout_seconds"`
}

// RateLimitConfig governs the per-client fixed window.
type RateLimitConfig struct {
	Requests      int `mapstructure:"requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// CacheConfig selects and tunes the result cache backend.
type CacheConfig struct {
	Provider   string `mapstructure:"provider"`
	RedisAddr  string `mapstructure:"redis_addr"`
	KeyPrefix  string `mapstructure:"key_prefix"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// EngineConfig configures the headless audit engine.
type EngineConfig struct {
	UserAgent           string  `mapstructure:"user_agent"`
	NavTimeoutSeconds   int     `mapstructure:"nav_timeout_seconds"`
	ProbeTimeoutSeconds int     `mapstructure:"probe_timeout_seconds"`
	HostRPS             float64 `mapstructure:"host_rps"`
	HostBurst           int     `mapstructure:"host_burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAGEAUDIT")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("scheduler.max_concurrent", 2)
	v.SetDefault("scheduler.max_queue", 10)
	v.SetDefault("scheduler.job_timeout_seconds", 60)
	v.SetDefault("ratelimit.requests", 10)
	v.SetDefault("ratelimit.window_seconds", 60)
	v.SetDefault("cache.provider", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.key_prefix", "pageaudit:")
	v.SetDefault("cache.ttl_seconds", 86400)
	v.SetDefault("engine.user_agent", "pageaudit-bot/0.1")
	v.SetDefault("engine.nav_timeout_seconds", 45)
	v.SetDefault("engine.probe_timeout_seconds", 10)
	v.SetDefault("engine.host_rps", 1)
	v.SetDefault("engine.host_burst", 2)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scheduler.MaxConcurrent <= 0 {
		return fmt.Errorf("scheduler.max_concurrent must be > 0")
	}
	if c.Scheduler.MaxQueue <= 0 {
		return fmt.Errorf("scheduler.max_queue must be > 0")
	}
	if c.Scheduler.JobTimeoutSeconds <= 0 {
		return fmt.Errorf("scheduler.job_timeout_seconds must be > 0")
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("ratelimit.requests must be > 0")
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("ratelimit.window_seconds must be > 0")
	}
	switch c.Cache.Provider {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown cache provider: %s", c.Cache.Provider)
	}
	if c.Cache.Provider == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr must be set when cache provider is redis")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// JobTimeout converts the configured per-job deadline into a duration.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.Scheduler.JobTimeoutSeconds) * time.Second
}

// RateWindow converts the configured limiter window into a duration.
func (c Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

// CacheTTL converts the configured cache expiry into a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
