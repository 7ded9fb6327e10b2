package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/luminote/luminote/config"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090

database:
  path: "/var/lib/luminote/luminote.db"

redis:
  enabled: true
  addr: "redis:6379"
  db: 2

providers:
  chat:
    base_url: "https://api.moonshot.cn/v1"
    api_key: "sk-test"
    model: "moonshot-v1-8k"
  math:
    base_url: "https://dashscope.aliyuncs.com/api/v1"
    api_key: "sk-math"
    model: "qwen-plus"

retry:
  max_retries: 5
  base_delay: 250ms

rate_limit:
  window: 30s
  max_requests: 10
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Path != "/var/lib/luminote/luminote.db" {
		t.Errorf("Database.Path = %s", cfg.Database.Path)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 2 {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.Providers.Chat.APIKey != "sk-test" {
		t.Errorf("Chat.APIKey = %s, want sk-test", cfg.Providers.Chat.APIKey)
	}
	if cfg.Providers.Math.Model != "qwen-plus" {
		t.Errorf("Math.Model = %s, want qwen-plus", cfg.Providers.Math.Model)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("Retry.MaxRetries = %d, want 5", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("Retry.BaseDelay = %v, want 250ms", cfg.Retry.BaseDelay)
	}
	if cfg.RateLimit.Window != 30*time.Second || cfg.RateLimit.MaxRequests != 10 {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
}

func TestLoad_Defaults(t *testing.T) {
	content := `
providers:
  chat:
    api_key: "sk-test"
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 5*time.Minute {
		t.Errorf("default WriteTimeout = %v, want 5m", cfg.Server.WriteTimeout)
	}
	if cfg.Database.Path != "luminote.db" {
		t.Errorf("default Database.Path = %s, want luminote.db", cfg.Database.Path)
	}
	if cfg.Providers.Chat.BaseURL != "https://api.moonshot.cn/v1" {
		t.Errorf("default Chat.BaseURL = %s", cfg.Providers.Chat.BaseURL)
	}
	if cfg.Providers.Math.Model != "qwen-plus" {
		t.Errorf("default Math.Model = %s", cfg.Providers.Math.Model)
	}
	if cfg.Providers.Multimodal.Model != "qwen-vl-plus" {
		t.Errorf("default Multimodal.Model = %s", cfg.Providers.Multimodal.Model)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("default Retry.MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if cfg.RateLimit.Window != time.Minute || cfg.RateLimit.MaxRequests != 20 {
		t.Errorf("default RateLimit = %+v", cfg.RateLimit)
	}
	if cfg.Profile.CronSpec != "0 0 * * *" {
		t.Errorf("default Profile.CronSpec = %s", cfg.Profile.CronSpec)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %s, want info", cfg.Logging.Level)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	os.Setenv("TEST_CHAT_KEY", "sk-from-env")
	defer os.Unsetenv("TEST_CHAT_KEY")

	content := `
providers:
  chat:
    api_key: "${TEST_CHAT_KEY}"
`

	cfg := writeAndLoad(t, content)

	if cfg.Providers.Chat.APIKey != "sk-from-env" {
		t.Errorf("Chat.APIKey = %s, want sk-from-env", cfg.Providers.Chat.APIKey)
	}
}

func TestLoad_MissingChatKey(t *testing.T) {
	content := `
server:
  port: 8080
`

	_, err := writeAndLoadErr(t, content)
	if err == nil {
		t.Fatal("expected error for missing providers.chat.api_key")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	content := `
providers:
  chat:
    api_key: "sk-test"

logging:
  level: "loud"
`

	_, err := writeAndLoadErr(t, content)
	if err == nil {
		t.Fatal("expected error for invalid logging.level")
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("LUMINOTE_CHAT_API_KEY", "sk-env")
	os.Setenv("LUMINOTE_SERVER_PORT", "9999")
	os.Setenv("LUMINOTE_DATABASE_PATH", "/tmp/env-test.db")
	os.Setenv("LUMINOTE_LOG_LEVEL", "debug")
	os.Setenv("LUMINOTE_REDIS_ADDR", "redis-env:6379")
	defer func() {
		os.Unsetenv("LUMINOTE_CHAT_API_KEY")
		os.Unsetenv("LUMINOTE_SERVER_PORT")
		os.Unsetenv("LUMINOTE_DATABASE_PATH")
		os.Unsetenv("LUMINOTE_LOG_LEVEL")
		os.Unsetenv("LUMINOTE_REDIS_ADDR")
	}()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if cfg.Providers.Chat.APIKey != "sk-env" {
		t.Errorf("Chat.APIKey = %s, want sk-env", cfg.Providers.Chat.APIKey)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/env-test.db" {
		t.Errorf("Database.Path = %s, want /tmp/env-test.db", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis-env:6379" {
		t.Errorf("Redis = %+v, want enabled at redis-env:6379", cfg.Redis)
	}
}

func TestLoadFromEnv_MissingRequired(t *testing.T) {
	os.Unsetenv("LUMINOTE_CHAT_API_KEY")

	_, err := config.LoadFromEnv()
	if err == nil {
		t.Fatal("expected error for missing chat API key")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	os.Setenv("LUMINOTE_SERVER_PORT", "7777")
	os.Setenv("LUMINOTE_LOG_LEVEL", "error")
	defer func() {
		os.Unsetenv("LUMINOTE_SERVER_PORT")
		os.Unsetenv("LUMINOTE_LOG_LEVEL")
	}()

	content := `
providers:
  chat:
    api_key: "sk-file"
server:
  port: 8080
logging:
  level: "info"
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777 (env override)", cfg.Server.Port)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %s, want error (env override)", cfg.Logging.Level)
	}
	if cfg.Providers.Chat.APIKey != "sk-file" {
		t.Errorf("Chat.APIKey = %s, want sk-file", cfg.Providers.Chat.APIKey)
	}
}

func TestLoadWithFallback_FileExists(t *testing.T) {
	content := `
providers:
  chat:
    api_key: "sk-file-config"
`

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}

	if cfg.Providers.Chat.APIKey != "sk-file-config" {
		t.Errorf("Chat.APIKey = %s, want sk-file-config", cfg.Providers.Chat.APIKey)
	}
}

func TestLoadWithFallback_EnvOnly(t *testing.T) {
	os.Setenv("LUMINOTE_CHAT_API_KEY", "sk-env-fallback")
	defer os.Unsetenv("LUMINOTE_CHAT_API_KEY")

	cfg, err := config.LoadWithFallback("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}

	if cfg.Providers.Chat.APIKey != "sk-env-fallback" {
		t.Errorf("Chat.APIKey = %s, want sk-env-fallback", cfg.Providers.Chat.APIKey)
	}
}

func TestLoadWithFallback_NoConfig(t *testing.T) {
	os.Unsetenv("LUMINOTE_CHAT_API_KEY")

	_, err := config.LoadWithFallback("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error when no config available")
	}
}

func TestHasEnvConfig(t *testing.T) {
	os.Unsetenv("LUMINOTE_CHAT_API_KEY")
	if config.HasEnvConfig() {
		t.Error("HasEnvConfig() = true, want false")
	}

	os.Setenv("LUMINOTE_CHAT_API_KEY", "sk-test")
	defer os.Unsetenv("LUMINOTE_CHAT_API_KEY")
	if !config.HasEnvConfig() {
		t.Error("HasEnvConfig() = false, want true")
	}
}

func TestEnvOverrides_ProviderSettings(t *testing.T) {
	os.Setenv("LUMINOTE_CHAT_API_KEY", "sk-chat")
	os.Setenv("LUMINOTE_MATH_API_KEY", "sk-math")
	os.Setenv("LUMINOTE_MATH_MODEL", "qwen-max")
	os.Setenv("LUMINOTE_MULTIMODAL_BASE_URL", "https://custom.example/api/v1")
	defer func() {
		os.Unsetenv("LUMINOTE_CHAT_API_KEY")
		os.Unsetenv("LUMINOTE_MATH_API_KEY")
		os.Unsetenv("LUMINOTE_MATH_MODEL")
		os.Unsetenv("LUMINOTE_MULTIMODAL_BASE_URL")
	}()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if cfg.Providers.Math.APIKey != "sk-math" {
		t.Errorf("Math.APIKey = %s, want sk-math", cfg.Providers.Math.APIKey)
	}
	if cfg.Providers.Math.Model != "qwen-max" {
		t.Errorf("Math.Model = %s, want qwen-max", cfg.Providers.Math.Model)
	}
	if cfg.Providers.Multimodal.BaseURL != "https://custom.example/api/v1" {
		t.Errorf("Multimodal.BaseURL = %s", cfg.Providers.Multimodal.BaseURL)
	}
}

func TestEnvOverrides_RateLimitAndRetry(t *testing.T) {
	os.Setenv("LUMINOTE_CHAT_API_KEY", "sk-test")
	os.Setenv("LUMINOTE_RATELIMIT_WINDOW", "2m")
	os.Setenv("LUMINOTE_RATELIMIT_MAX", "50")
	os.Setenv("LUMINOTE_RETRY_MAX", "7")
	os.Setenv("LUMINOTE_RETRY_BASE_DELAY", "100ms")
	defer func() {
		os.Unsetenv("LUMINOTE_CHAT_API_KEY")
		os.Unsetenv("LUMINOTE_RATELIMIT_WINDOW")
		os.Unsetenv("LUMINOTE_RATELIMIT_MAX")
		os.Unsetenv("LUMINOTE_RETRY_MAX")
		os.Unsetenv("LUMINOTE_RETRY_BASE_DELAY")
	}()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if cfg.RateLimit.Window != 2*time.Minute {
		t.Errorf("RateLimit.Window = %v, want 2m", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.MaxRequests != 50 {
		t.Errorf("RateLimit.MaxRequests = %d, want 50", cfg.RateLimit.MaxRequests)
	}
	if cfg.Retry.MaxRetries != 7 {
		t.Errorf("Retry.MaxRetries = %d, want 7", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != 100*time.Millisecond {
		t.Errorf("Retry.BaseDelay = %v, want 100ms", cfg.Retry.BaseDelay)
	}
}

func TestEnvOverrides_ProfileJob(t *testing.T) {
	os.Setenv("LUMINOTE_CHAT_API_KEY", "sk-test")
	os.Setenv("LUMINOTE_PROFILE_ENABLED", "true")
	os.Setenv("LUMINOTE_PROFILE_CRON", "30 2 * * *")
	defer func() {
		os.Unsetenv("LUMINOTE_CHAT_API_KEY")
		os.Unsetenv("LUMINOTE_PROFILE_ENABLED")
		os.Unsetenv("LUMINOTE_PROFILE_CRON")
	}()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if !cfg.Profile.Enabled {
		t.Error("Profile.Enabled = false, want true")
	}
	if cfg.Profile.CronSpec != "30 2 * * *" {
		t.Errorf("Profile.CronSpec = %s, want 30 2 * * *", cfg.Profile.CronSpec)
	}
}

func TestEnvOverrides_InvalidValues(t *testing.T) {
	os.Setenv("LUMINOTE_CHAT_API_KEY", "sk-test")
	os.Setenv("LUMINOTE_SERVER_PORT", "not-a-number")
	os.Setenv("LUMINOTE_SERVER_READ_TIMEOUT", "not-a-duration")
	os.Setenv("LUMINOTE_RATELIMIT_MAX", "invalid")
	defer func() {
		os.Unsetenv("LUMINOTE_CHAT_API_KEY")
		os.Unsetenv("LUMINOTE_SERVER_PORT")
		os.Unsetenv("LUMINOTE_SERVER_READ_TIMEOUT")
		os.Unsetenv("LUMINOTE_RATELIMIT_MAX")
	}()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080 (default)", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 30s (default)", cfg.Server.ReadTimeout)
	}
	if cfg.RateLimit.MaxRequests != 20 {
		t.Errorf("RateLimit.MaxRequests = %d, want 20 (default)", cfg.RateLimit.MaxRequests)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	content := `
providers:
  chat:
    api_key: "sk-test"
  this is not valid yaml: [
`
	_, err := writeAndLoadErr(t, content)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

// Helpers

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return config.Load(path)
}
