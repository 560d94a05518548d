// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/deeplbot/deeplbot/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps a level name to a slog level. Unknown names yield info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds a text logger on stderr, tees it into a rotating file when
// cfg.File is set, and installs it as the slog default. The returned closer
// releases the log file.
func Setup(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	return setup(cfg, os.Stderr)
}

func setup(cfg config.LogConfig, console io.Writer) (*slog.Logger, io.Closer) {
	var (
		w      = console
		closer io.Closer = nopCloser{}
	)
	if strings.TrimSpace(cfg.File) != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(console, rotator)
		closer = rotator
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}))
	slog.SetDefault(logger)
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
