package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/deeplbot/deeplbot/internal/admin"
	"github.com/deeplbot/deeplbot/internal/bot"
	"github.com/deeplbot/deeplbot/internal/browser"
	"github.com/deeplbot/deeplbot/internal/bus"
	"github.com/deeplbot/deeplbot/internal/channels"
	"github.com/deeplbot/deeplbot/internal/config"
	"github.com/deeplbot/deeplbot/internal/events"
	"github.com/deeplbot/deeplbot/internal/logging"
	"github.com/deeplbot/deeplbot/internal/profile"
	"github.com/deeplbot/deeplbot/internal/routing"
	"github.com/deeplbot/deeplbot/internal/scheduler"
	"github.com/deeplbot/deeplbot/internal/settings"
	"github.com/deeplbot/deeplbot/internal/translator"
	"github.com/spf13/cobra"
)

const lockFile = ".deeplbot.lock"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot until interrupted",
	RunE:  runServe,
}

var serveSignalNotify = signal.Notify
var serveSignalStop = signal.Stop

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Config and logging
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, logCloser := logging.Setup(cfg.Log)
	defer logCloser.Close()

	// 2. Storage location and single-instance lock
	if err := config.EnsureDir(cfg.Profiles.Dir); err != nil {
		return fmt.Errorf("profiles dir: %w", err)
	}
	lock := scheduler.NewFileLock(filepath.Join(cfg.Profiles.Dir, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !ok {
		return fmt.Errorf("another deeplbot instance holds %s", lock.Path())
	}
	defer lock.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Profiles and global settings
	raw, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer raw.Close()
	owner := cfg.Access.Owner
	store := profile.GuardOwnerKeys(raw, owner)
	lifecycle := profile.NewLifecycle(store, profile.LifecycleOptions{
		Owner:                owner,
		Version:              version,
		PreserveOwnerToggles: cfg.Profiles.PreserveOwnerToggles,
	})
	if _, err := lifecycle.Ensure(ctx, owner); err != nil {
		return fmt.Errorf("owner profile: %w", err)
	}
	cache := settings.New(store, owner)
	if err := cache.Load(ctx); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	logger.Info("Settings loaded", "settings", cache.Snapshot())

	// 4. Browser engine
	engine := browser.NewManager(cfg.Engine)
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer engine.Shutdown(context.Background())
	if err := engine.Healthy(ctx); err != nil {
		logger.Warn("Browser engine not answering yet", "error", err)
	}

	publisher := events.New(cfg.Events)
	defer publisher.Close()

	// 5. Channel and handler
	msgBus := bus.NewMessageBus()
	tg := channels.NewTelegramChannel(cfg.Telegram, msgBus)
	handler := bot.New(bot.Deps{
		Bus:        msgBus,
		Sender:     tg,
		Channel:    tg.Name(),
		Store:      store,
		Lifecycle:  lifecycle,
		Settings:   cache,
		Policy:     routing.New(owner, cfg.Access.Testers, routing.PublicFunc(func() bool { return cache.IsEnabled(settings.Public) })),
		Panel:      admin.New(cache),
		Translator: translator.New(engine, lifecycle, cfg.Engine),
		Events:     publisher,
	})

	sigChan := make(chan os.Signal, 1)
	serveSignalNotify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer serveSignalStop(sigChan)

	if err := tg.Start(ctx); err != nil {
		return fmt.Errorf("start telegram: %w", err)
	}
	go msgBus.DispatchOutbound(ctx)
	done := make(chan error, 1)
	go func() { done <- handler.Run(ctx) }()

	logger.Info("deeplbot serving", "version", version, "owner", owner, "backend", cfg.Profiles.Backend, "engine", engine.Endpoint())

	handlerDone := false
	select {
	case sig := <-sigChan:
		logger.Info("Shutting down", "signal", sig.String())
	case err := <-done:
		handlerDone = true
		if err != nil {
			slog.Error("Handler stopped", "error", err)
		}
	}
	cancel()
	if err := tg.Stop(); err != nil {
		slog.Warn("Stopping telegram failed", "error", err)
	}
	if !handlerDone {
		<-done
	}
	in, out := msgBus.Pending()
	logger.Info("Stopped", "dropped_inbound", in, "dropped_outbound", out)
	return nil
}

func openStore(cfg *config.Config) (profile.Store, error) {
	var (
		store profile.Store
		err   error
	)
	switch cfg.Profiles.Backend {
	case config.BackendSQLite:
		store, err = profile.NewSQLiteStore(cfg.Profiles.SQLitePath)
	default:
		store, err = profile.NewFileStore(cfg.Profiles.Dir)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s profile store: %w", cfg.Profiles.Backend, err)
	}
	return store, nil
}
