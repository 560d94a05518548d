package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/deeplbot/deeplbot/internal/config"
	"github.com/deeplbot/deeplbot/internal/profile"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and maintain user profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profile identities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLifecycle(func(ctx context.Context, store profile.Store, _ *profile.Lifecycle) error {
			ids, err := store.Identities(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		})
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseIdentity(args[0])
		if err != nil {
			return err
		}
		return withLifecycle(func(ctx context.Context, store profile.Store, _ *profile.Lifecycle) error {
			p, err := store.Load(ctx, id)
			if errors.Is(err, profile.ErrNotFound) {
				return fmt.Errorf("no profile for %d", id)
			}
			if err != nil {
				return err
			}
			writeProfile(cmd.OutOrStdout(), p)
			return nil
		})
	},
}

var profileMigrateCmd = &cobra.Command{
	Use:   "migrate <id>",
	Short: "Recreate a profile if its version is stale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseIdentity(args[0])
		if err != nil {
			return err
		}
		return withLifecycle(func(ctx context.Context, _ profile.Store, lc *profile.Lifecycle) error {
			migrated, err := lc.CheckVersion(ctx, id)
			if err != nil {
				return err
			}
			if migrated {
				fmt.Fprintf(cmd.OutOrStdout(), "Profile %d migrated to %s\n", id, lc.Version())
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Profile %d is up to date\n", id)
			}
			return nil
		})
	},
}

var profileResetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Recreate a profile with defaults, keeping its language",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseIdentity(args[0])
		if err != nil {
			return err
		}
		return withLifecycle(func(ctx context.Context, store profile.Store, lc *profile.Lifecycle) error {
			lang := lc.Language(ctx, id)
			if err := store.Delete(ctx, id); err != nil {
				return err
			}
			if err := lc.Init(ctx, id, lang); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile %d reset (lang %s)\n", id, lang)
			return nil
		})
	},
}

func init() {
	profileCmd.AddCommand(profileListCmd, profileShowCmd, profileMigrateCmd, profileResetCmd)
}

func parseIdentity(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identity %q: %w", s, err)
	}
	return id, nil
}

// withLifecycle opens the configured store for a one-shot maintenance command.
func withLifecycle(fn func(context.Context, profile.Store, *profile.Lifecycle) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	lc := profile.NewLifecycle(store, profile.LifecycleOptions{
		Owner:                cfg.Access.Owner,
		Version:              version,
		PreserveOwnerToggles: cfg.Profiles.PreserveOwnerToggles,
	})
	return fn(context.Background(), store, lc)
}

func writeProfile(w io.Writer, p *profile.Profile) {
	for i, section := range p.SectionNames() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%s]\n", section)
		for _, key := range p.Keys(section) {
			v, _ := p.Get(section, key)
			fmt.Fprintf(w, "%s = %s\n", key, v)
		}
	}
}
