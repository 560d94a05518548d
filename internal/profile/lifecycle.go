package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// LifecycleOptions configures profile creation and migration.
type LifecycleOptions struct {
	Owner   int64
	Version string
	// PreserveOwnerToggles carries forward/debug/public across a migration
	// of the owner's profile. By default migration resets them.
	PreserveOwnerToggles bool
}

// Lifecycle creates profiles and recreates them when their schema version
// differs from the running one.
type Lifecycle struct {
	store Store
	opts  LifecycleOptions
}

// NewLifecycle returns a Lifecycle over store.
func NewLifecycle(store Store, opts LifecycleOptions) *Lifecycle {
	return &Lifecycle{store: store, opts: opts}
}

// IsOwner reports whether id is the configured owner.
func (l *Lifecycle) IsOwner(id int64) bool {
	return id == l.opts.Owner
}

// Version returns the running schema version.
func (l *Lifecycle) Version() string {
	return l.opts.Version
}

// Defaults builds a fresh profile for id with the given language.
func (l *Lifecycle) Defaults(id int64, lang string) *Profile {
	if !IsLanguage(lang) {
		lang = DefaultLanguage
	}
	p := NewProfile()
	p.Set(SectionMain, KeyLang, lang)
	if l.IsOwner(id) {
		p.Set(SectionMain, KeyForward, FormatBool(true))
		p.Set(SectionMain, KeyDebug, FormatBool(false))
		p.Set(SectionMain, KeyPublic, FormatBool(true))
	}
	p.Set(SectionStat, KeyVersion, l.opts.Version)
	p.Set(SectionStat, KeyTotal, "0")
	return p
}

// Init writes a fresh profile for id, replacing any existing record.
func (l *Lifecycle) Init(ctx context.Context, id int64, lang string) error {
	if err := l.store.Replace(ctx, id, l.Defaults(id, lang)); err != nil {
		return fmt.Errorf("init profile %d: %w", id, err)
	}
	return nil
}

var errUpToDate = errors.New("profile up to date")

// CheckVersion recreates the profile when its stored version is missing or
// differs from the running one. Only lang survives; counters and (unless
// configured otherwise) owner toggles are reset. The check and the
// rewrite run under the identity's lock. It reports whether a migration
// happened.
func (l *Lifecycle) CheckVersion(ctx context.Context, id int64) (bool, error) {
	var from, lang string
	err := l.store.Update(ctx, id, func(p *Profile) error {
		if v, ok := p.Get(SectionStat, KeyVersion); ok && v == l.opts.Version {
			return errUpToDate
		}
		from, _ = p.Get(SectionStat, KeyVersion)
		lang = p.Lang()
		fresh := l.Defaults(id, lang)
		if l.opts.PreserveOwnerToggles && l.IsOwner(id) {
			for _, key := range []string{KeyForward, KeyDebug, KeyPublic} {
				if v, ok := p.Get(SectionMain, key); ok {
					fresh.Set(SectionMain, key, FormatBool(ParseBool(v)))
				}
			}
		}
		p.Sections = fresh.Sections
		return nil
	})
	if errors.Is(err, errUpToDate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("migrate profile %d: %w", id, err)
	}
	slog.Info("Profile migrated", "identity", id, "from", from, "to", l.opts.Version, "lang", lang)
	return true, nil
}

// Ensure creates the profile with defaults when absent, otherwise runs the
// version check. It reports whether the profile was newly created.
func (l *Lifecycle) Ensure(ctx context.Context, id int64) (bool, error) {
	ok, err := l.store.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		if err := l.Init(ctx, id, DefaultLanguage); err != nil {
			return false, err
		}
		slog.Info("Profile created", "identity", id)
		return true, nil
	}
	_, err = l.CheckVersion(ctx, id)
	return false, err
}

// Language returns the identity's target language, falling back to
// DefaultLanguage for missing profiles or unsupported codes.
func (l *Lifecycle) Language(ctx context.Context, id int64) string {
	v, err := l.store.Get(ctx, id, SectionMain, KeyLang)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("Profile language read failed", "identity", id, "error", err)
		}
		return DefaultLanguage
	}
	if !IsLanguage(v) {
		return DefaultLanguage
	}
	return v
}
