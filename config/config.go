// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Providers ProvidersConfig `yaml:"providers"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Profile   ProfileConfig   `yaml:"profile"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout must stay generous: SSE responses are open for the
	// whole generation.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig configures the cache and rate-limit backend. With
// Enabled false the service runs on in-process fallbacks.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ProviderConfig configures one upstream model backend.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// ProvidersConfig names the model backends by role. Chat is the
// general conversational model, Math the reasoning model used when the
// client flags a math question, Multimodal the vision/audio model.
type ProvidersConfig struct {
	Chat       ProviderConfig `yaml:"chat"`
	Math       ProviderConfig `yaml:"math"`
	Multimodal ProviderConfig `yaml:"multimodal"`
}

// RetryConfig configures the whole-operation retry loop around
// upstream calls.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

// RateLimitConfig configures the per-user fixed window on generation
// endpoints.
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max_requests"`
}

// ProfileConfig configures the daily learner-portrait job.
type ProfileConfig struct {
	Enabled bool `yaml:"enabled"`
	// CronSpec follows the standard five-field cron syntax.
	CronSpec string `yaml:"cron_spec"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	LUMINOTE_CHAT_API_KEY       - Chat provider API key (required)
//	LUMINOTE_CHAT_BASE_URL      - Chat provider base URL
//	LUMINOTE_CHAT_MODEL         - Chat model name
//	LUMINOTE_MATH_API_KEY       - Math provider API key
//	LUMINOTE_MULTIMODAL_API_KEY - Vision/audio provider API key
//	LUMINOTE_DATABASE_PATH      - SQLite path (default: luminote.db)
//	LUMINOTE_SERVER_HOST        - Server host (default: 0.0.0.0)
//	LUMINOTE_SERVER_PORT        - Server port (default: 8080)
//	LUMINOTE_REDIS_ADDR         - Redis address; enables Redis when set
//	LUMINOTE_LOG_LEVEL          - Log level (default: info)
//	LUMINOTE_LOG_FORMAT         - Log format: json or console (default: json)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set LUMINOTE_CHAT_API_KEY")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("LUMINOTE_CHAT_API_KEY") != ""
}

// applyEnvOverrides applies LUMINOTE_* environment variables to the
// config. Environment variables always override file-based
// configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("LUMINOTE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LUMINOTE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LUMINOTE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("LUMINOTE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv("LUMINOTE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Redis configuration
	if v := os.Getenv("LUMINOTE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("LUMINOTE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LUMINOTE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("LUMINOTE_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v)
	}

	// Provider configuration
	applyProviderEnv(&cfg.Providers.Chat, "CHAT")
	applyProviderEnv(&cfg.Providers.Math, "MATH")
	applyProviderEnv(&cfg.Providers.Multimodal, "MULTIMODAL")

	// Retry configuration
	if v := os.Getenv("LUMINOTE_RETRY_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxRetries = n
		}
	}
	if v := os.Getenv("LUMINOTE_RETRY_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.BaseDelay = d
		}
	}

	// Rate limit configuration
	if v := os.Getenv("LUMINOTE_RATELIMIT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimit.Window = d
		}
	}
	if v := os.Getenv("LUMINOTE_RATELIMIT_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.MaxRequests = n
		}
	}

	// Profile job configuration
	if v := os.Getenv("LUMINOTE_PROFILE_ENABLED"); v != "" {
		cfg.Profile.Enabled = parseBool(v)
	}
	if v := os.Getenv("LUMINOTE_PROFILE_CRON"); v != "" {
		cfg.Profile.CronSpec = v
	}

	// Logging configuration
	if v := os.Getenv("LUMINOTE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LUMINOTE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func applyProviderEnv(p *ProviderConfig, name string) {
	if v := os.Getenv("LUMINOTE_" + name + "_BASE_URL"); v != "" {
		p.BaseURL = v
	}
	if v := os.Getenv("LUMINOTE_" + name + "_API_KEY"); v != "" {
		p.APIKey = v
	}
	if v := os.Getenv("LUMINOTE_" + name + "_MODEL"); v != "" {
		p.Model = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// Streams stay open for the whole generation.
		cfg.Server.WriteTimeout = 5 * time.Minute
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "luminote.db"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	if cfg.Providers.Chat.BaseURL == "" {
		cfg.Providers.Chat.BaseURL = "https://api.moonshot.cn/v1"
	}
	if cfg.Providers.Chat.Model == "" {
		cfg.Providers.Chat.Model = "moonshot-v1-8k"
	}
	if cfg.Providers.Math.BaseURL == "" {
		cfg.Providers.Math.BaseURL = "https://dashscope.aliyuncs.com/api/v1"
	}
	if cfg.Providers.Math.Model == "" {
		cfg.Providers.Math.Model = "qwen-plus"
	}
	if cfg.Providers.Multimodal.BaseURL == "" {
		cfg.Providers.Multimodal.BaseURL = "https://dashscope.aliyuncs.com/api/v1"
	}
	if cfg.Providers.Multimodal.Model == "" {
		cfg.Providers.Multimodal.Model = "qwen-vl-plus"
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 500 * time.Millisecond
	}

	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.MaxRequests == 0 {
		cfg.RateLimit.MaxRequests = 20
	}

	if cfg.Profile.CronSpec == "" {
		cfg.Profile.CronSpec = "0 0 * * *"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Providers.Chat.APIKey == "" {
		return fmt.Errorf("providers.chat.api_key is required")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Retry.MaxRetries < 1 {
		return fmt.Errorf("retry.max_retries must be at least 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be json or console, got %q", cfg.Logging.Format)
	}

	return nil
}
