package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deeplbot/deeplbot/internal/profile"
	"github.com/deeplbot/deeplbot/internal/scheduler"
)

func runRootCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()
	rootCmd.SetArgs(nil)
	return strings.TrimSpace(buf.String()), err
}

// isolate points config and profile storage at a fresh temp home.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DEEPLBOT_HOME", home)
	t.Setenv("DEEPLBOT_CONFIG", filepath.Join(home, "config.json"))
	t.Setenv("DEEPLBOT_ENV_FILE", filepath.Join(home, "missing.env"))
	t.Setenv("DEEPLBOT_TELEGRAM_TOKEN", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("DEEPLBOT_PROFILES_BACKEND", "ini")
	dir := filepath.Join(home, "profiles")
	t.Setenv("DEEPLBOT_PROFILES_DIR", dir)
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := runRootCommand(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "Version: "+version) {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestStatusWithoutConfig(t *testing.T) {
	isolate(t)
	out, err := runRootCommand(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Config:  ✗ Not found", "Token:   ✗ Not set", "Profiles: 0 (ini", "Bot:     ✗ Not running"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestProfileCommands(t *testing.T) {
	dir := isolate(t)
	ctx := context.Background()

	store, err := profile.NewFileStore(dir)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	old := profile.NewLifecycle(store, profile.LifecycleOptions{Version: "0.1.0"})
	if err := old.Init(ctx, 42, "fr"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := store.IncrStat(ctx, 42, profile.KeyTotal); err != nil {
		t.Fatalf("incr: %v", err)
	}
	store.Close()

	out, err := runRootCommand(t, "profile", "show", "42")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"[MAIN]\nlang = fr", "total = 1", "version = 0.1.0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}

	out, err = runRootCommand(t, "profile", "migrate", "42")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if out != "Profile 42 migrated to "+version {
		t.Fatalf("migrate output = %q", out)
	}
	out, _ = runRootCommand(t, "profile", "migrate", "42")
	if out != "Profile 42 is up to date" {
		t.Fatalf("second migrate output = %q", out)
	}

	out, _ = runRootCommand(t, "profile", "show", "42")
	if !strings.Contains(out, "total = 0") || !strings.Contains(out, "lang = fr") {
		t.Fatalf("migration should keep lang and reset counters:\n%s", out)
	}

	out, err = runRootCommand(t, "profile", "reset", "42")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if out != "Profile 42 reset (lang fr)" {
		t.Fatalf("reset output = %q", out)
	}

	out, err = runRootCommand(t, "profile", "list")
	if err != nil || out != "42" {
		t.Fatalf("list = %q, %v", out, err)
	}
}

func TestProfileShowMissingAndInvalid(t *testing.T) {
	isolate(t)
	if _, err := runRootCommand(t, "profile", "show", "7"); err == nil || !strings.Contains(err.Error(), "no profile for 7") {
		t.Fatalf("expected missing profile error, got %v", err)
	}
	if _, err := runRootCommand(t, "profile", "show", "abc"); err == nil {
		t.Fatal("expected invalid identity error")
	}
}

func TestServeRejectsIncompleteConfig(t *testing.T) {
	isolate(t)
	_, err := runRootCommand(t, "serve")
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLockStatusReportsErrors(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer

	printLockStatus(&buf, scheduler.NewFileLock(filepath.Join(dir, "missing", lockFile)))
	if !strings.Contains(buf.String(), "? Lock check failed") {
		t.Fatalf("missing lock dir should be reported, got %q", buf.String())
	}

	buf.Reset()
	held := scheduler.NewFileLock(filepath.Join(dir, lockFile))
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("lock: %v %v", ok, err)
	}
	defer held.Unlock()
	printLockStatus(&buf, scheduler.NewFileLock(filepath.Join(dir, lockFile)))
	if want := fmt.Sprintf("✓ Running (pid %d)", os.Getpid()); !strings.Contains(buf.String(), want) {
		t.Fatalf("status = %q, want %q", buf.String(), want)
	}
}
