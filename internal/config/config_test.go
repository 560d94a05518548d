package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DEEPLBOT_HOME", home)
	t.Setenv("DEEPLBOT_CONFIG", filepath.Join(home, "config.json"))
	t.Setenv("DEEPLBOT_ENV_FILE", filepath.Join(home, "missing.env"))
	return home
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Profiles.Backend != BackendINI {
		t.Fatalf("backend = %q", cfg.Profiles.Backend)
	}
	if want := filepath.Join(home, ".deeplbot", "profiles"); cfg.Profiles.Dir != want {
		t.Fatalf("profiles dir = %q, want %q", cfg.Profiles.Dir, want)
	}
	if cfg.Engine.ResultTimeout != 10*time.Second {
		t.Fatalf("result timeout = %s", cfg.Engine.ResultTimeout)
	}
	if !cfg.Telegram.SkipPending {
		t.Fatal("expected skipPending default true")
	}
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	home := isolate(t)
	t.Setenv("BOT_TOKEN_FROM_ENV", "123:abc")
	body := `{
  "telegram": {"token": "${BOT_TOKEN_FROM_ENV}"},
  "access": {"owner": 42, "testers": [7, 8]},
  "profiles": {"backend": "SQLite"},
  "engine": {"maxPages": 3}
}`
	if err := os.WriteFile(filepath.Join(home, "config.json"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DEEPLBOT_ENGINE_MAX_PAGES", "5")
	t.Setenv("DEEPLBOT_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Access.Owner != 42 || !slices.Contains(cfg.Access.Testers, 8) || slices.Contains(cfg.Access.Testers, 42) {
		t.Fatalf("access = %+v", cfg.Access)
	}
	if cfg.Profiles.Backend != BackendSQLite {
		t.Fatalf("backend = %q", cfg.Profiles.Backend)
	}
	if !strings.HasSuffix(cfg.Profiles.SQLitePath, "profiles.db") {
		t.Fatalf("sqlite path = %q", cfg.Profiles.SQLitePath)
	}
	if cfg.Engine.MaxPages != 5 {
		t.Fatalf("env should override file, maxPages = %d", cfg.Engine.MaxPages)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
	if cfg.Engine.BaseURL == "" {
		t.Fatal("expected default base url kept")
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	home := isolate(t)
	if err := os.WriteFile(filepath.Join(home, "config.json"), []byte("{nope"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTokenFallbackEnv(t *testing.T) {
	isolate(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "fallback")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "fallback" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "telegram.token") || !strings.Contains(err.Error(), "access.owner") {
		t.Fatalf("expected token and owner errors, got %v", err)
	}
	cfg.Telegram.Token = "x"
	cfg.Access.Owner = 1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Events.Enabled = true
	cfg.Events.Brokers = " "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected brokers error")
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(cfg.Validate(), &joined) {
		t.Fatal("expected joined errors")
	}
}
