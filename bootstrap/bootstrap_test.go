package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestNew_FromEnv(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, "LUMINOTE_CHAT_API_KEY", "sk-test")
	setEnv(t, "LUMINOTE_DATABASE_PATH", filepath.Join(dir, "test.db"))
	setEnv(t, "LUMINOTE_SERVER_PORT", "0")

	a, err := New(Options{Registry: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown()

	if a.DB == nil {
		t.Error("database not initialized")
	}
	if a.HTTPServer == nil {
		t.Error("http server not initialized")
	}
	if a.Metrics == nil {
		t.Error("metrics not initialized")
	}
	if a.cron != nil {
		t.Error("profile job scheduled without being enabled")
	}
}

func TestNew_FromConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
providers:
  chat:
    api_key: "sk-file"

database:
  path: "` + filepath.Join(dir, "file.db") + `"

profile:
  enabled: true
  cron_spec: "0 0 * * *"
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	a, err := New(Options{ConfigPath: path, Registry: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown()

	if a.Config.Providers.Chat.APIKey != "sk-file" {
		t.Errorf("APIKey = %s, want sk-file", a.Config.Providers.Chat.APIKey)
	}
	if a.cron == nil {
		t.Error("profile job not scheduled")
	}
	if a.Profile == nil {
		t.Error("profile service not wired")
	}
}

func TestNew_MissingConfig(t *testing.T) {
	os.Unsetenv("LUMINOTE_CHAT_API_KEY")

	if _, err := New(Options{ConfigPath: "/nonexistent/config.yaml"}); err == nil {
		t.Fatal("expected error when no configuration is available")
	}
}

func TestNew_BadCronSpec(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, "LUMINOTE_CHAT_API_KEY", "sk-test")
	setEnv(t, "LUMINOTE_DATABASE_PATH", filepath.Join(dir, "test.db"))
	setEnv(t, "LUMINOTE_PROFILE_ENABLED", "true")
	setEnv(t, "LUMINOTE_PROFILE_CRON", "not a cron spec")

	if _, err := New(Options{Registry: prometheus.NewRegistry()}); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestNew_TwoAppsInOneProcess(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, "LUMINOTE_CHAT_API_KEY", "sk-test")
	setEnv(t, "LUMINOTE_SERVER_PORT", "0")

	for i, name := range []string{"one.db", "two.db"} {
		setEnv(t, "LUMINOTE_DATABASE_PATH", filepath.Join(dir, name))
		a, err := New(Options{Registry: prometheus.NewRegistry()})
		if err != nil {
			t.Fatalf("New #%d: %v", i+1, err)
		}
		a.Shutdown()
	}
}
