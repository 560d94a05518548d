package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/deeplbot/deeplbot/internal/browser"
	"github.com/deeplbot/deeplbot/internal/config"
	"github.com/deeplbot/deeplbot/internal/scheduler"
	"github.com/spf13/cobra"
)

const statusProbeTimeout = 5 * time.Second

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		printHeader(out, "🏷️ deeplbot Version")
		fmt.Fprintf(out, "Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and profile status",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		printHeader(out, "📊 deeplbot Status")
		fmt.Fprintf(out, "Version: %s\n", version)

		if path, err := config.ConfigPath(); err == nil {
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Config:  ✓ Found ("+path+")")
			} else {
				fmt.Fprintln(out, "Config:  ✗ Not found ("+path+")")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(out, "Config:  ? Unable to load (%v)\n", err)
			return
		}
		if cfg.Telegram.Token != "" {
			fmt.Fprintln(out, "Token:   ✓ Set")
		} else {
			fmt.Fprintln(out, "Token:   ✗ Not set")
		}
		if cfg.Access.Owner != 0 {
			fmt.Fprintf(out, "Owner:   %d\n", cfg.Access.Owner)
		} else {
			fmt.Fprintln(out, "Owner:   ✗ Not set")
		}
		fmt.Fprintf(out, "Testers: %d\n", len(cfg.Access.Testers))

		printEngineStatus(out, cfg.Engine)
		if cfg.Events.Enabled {
			fmt.Fprintf(out, "Events:  ✓ %s → %s\n", cfg.Events.Brokers, cfg.Events.Topic)
		} else {
			fmt.Fprintln(out, "Events:  ✗ Disabled")
		}

		store, err := openStore(cfg)
		if err != nil {
			fmt.Fprintf(out, "Profiles: ✗ %s store unavailable (%v)\n", cfg.Profiles.Backend, err)
		} else {
			ids, err := store.Identities(context.Background())
			store.Close()
			if err != nil {
				fmt.Fprintf(out, "Profiles: ✗ %v\n", err)
			} else {
				fmt.Fprintf(out, "Profiles: %d (%s, %s)\n", len(ids), cfg.Profiles.Backend, cfg.Profiles.Dir)
			}
		}

		printLockStatus(out, scheduler.NewFileLock(filepath.Join(cfg.Profiles.Dir, lockFile)))
	},
}

// printEngineStatus probes an attached browser. A locally launched one only
// exists while serve runs.
func printEngineStatus(out io.Writer, cfg config.EngineConfig) {
	if cfg.DebuggerURL == "" {
		fmt.Fprintln(out, "Engine:  local launch")
		return
	}
	fmt.Fprintln(out, "Engine:  remote ("+cfg.DebuggerURL+")")
	ctx, cancel := context.WithTimeout(context.Background(), statusProbeTimeout)
	defer cancel()
	engine := browser.NewManager(cfg)
	if err := engine.Start(ctx); err != nil {
		fmt.Fprintf(out, "         ✗ %v\n", err)
		return
	}
	if err := engine.Healthy(ctx); err != nil {
		fmt.Fprintf(out, "         ✗ %v\n", err)
		return
	}
	fmt.Fprintln(out, "         ✓ Reachable")
}

func printLockStatus(out io.Writer, lock *scheduler.FileLock) {
	ok, err := lock.TryLock()
	switch {
	case err != nil:
		fmt.Fprintf(out, "Bot:     ? Lock check failed (%v)\n", err)
	case ok:
		lock.Unlock()
		fmt.Fprintln(out, "Bot:     ✗ Not running")
	default:
		if pid, err := lock.Holder(); err == nil {
			fmt.Fprintf(out, "Bot:     ✓ Running (pid %d)\n", pid)
		} else {
			fmt.Fprintln(out, "Bot:     ✓ Running")
		}
	}
}
