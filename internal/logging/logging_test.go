package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deeplbot/deeplbot/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupTeesIntoFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "bot.log")
	var console bytes.Buffer
	logger, closer := setup(config.LogConfig{Level: "warn", File: path, MaxSizeMB: 1}, &console)

	logger.Info("hidden")
	slog.Warn("visible", "chat", 7)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if strings.Contains(console.String(), "hidden") {
		t.Fatalf("info should be filtered: %q", console.String())
	}
	if !strings.Contains(console.String(), "visible") {
		t.Fatalf("expected console output, got %q", console.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "chat=7") {
		t.Fatalf("expected file output, got %q", data)
	}
}
