// Package settings keeps the owner's global toggles in memory.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/deeplbot/deeplbot/internal/profile"
)

// Flag names a global toggle. Its value doubles as the profile key and the
// admin panel callback payload.
type Flag string

const (
	Forward Flag = profile.KeyForward
	Debug   Flag = profile.KeyDebug
	Public  Flag = profile.KeyPublic
)

// Glyphs prefixed to labels.
const (
	GlyphOn  = "🔳 "
	GlyphOff = "⬜️ "
)

var (
	ErrUnknownFlag = errors.New("settings: unknown flag")
	ErrNotLoaded   = errors.New("settings: not loaded")
)

var order = []Flag{Forward, Debug, Public}

var names = map[Flag]string{
	Forward: "Forward",
	Debug:   "Debug",
	Public:  "Public",
}

// ParseFlag resolves a flag name.
func ParseFlag(s string) (Flag, error) {
	f := Flag(s)
	if _, ok := names[f]; !ok {
		return "", fmt.Errorf("%q: %w", s, ErrUnknownFlag)
	}
	return f, nil
}

// Backing is the profile access the cache needs.
type Backing interface {
	Get(ctx context.Context, id int64, section, key string) (string, error)
	Set(ctx context.Context, id int64, section, key, value string) error
}

// Cache mirrors the owner's forward/debug/public values. Reads never touch
// storage; Toggle writes through.
type Cache struct {
	store  Backing
	owner  int64
	mu     sync.RWMutex
	values map[Flag]bool
}

// New returns an unloaded cache for owner.
func New(store Backing, owner int64) *Cache {
	return &Cache{store: store, owner: owner}
}

// Load reads the three toggles from the owner's profile. Missing keys read
// as false.
func (c *Cache) Load(ctx context.Context) error {
	values := make(map[Flag]bool, len(order))
	for _, f := range order {
		v, err := c.store.Get(ctx, c.owner, profile.SectionMain, string(f))
		if err != nil && !errors.Is(err, profile.ErrNotFound) {
			return fmt.Errorf("load %s: %w", f, err)
		}
		values[f] = profile.ParseBool(v)
	}
	c.mu.Lock()
	c.values = values
	c.mu.Unlock()
	return nil
}

// IsEnabled reports the cached value. Unknown flags and an unloaded cache
// report false.
func (c *Cache) IsEnabled(f Flag) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[f]
}

// Label is the glyph-prefixed display name of f.
func (c *Cache) Label(f Flag) string {
	glyph := GlyphOff
	if c.IsEnabled(f) {
		glyph = GlyphOn
	}
	return glyph + names[f]
}

// Flags lists every flag in display order.
func (c *Cache) Flags() []Flag {
	out := make([]Flag, len(order))
	copy(out, order)
	return out
}

// Toggle flips f and persists only that field. The cached value is restored
// if the write fails.
func (c *Cache) Toggle(ctx context.Context, f Flag) (bool, error) {
	if _, ok := names[f]; !ok {
		return false, fmt.Errorf("%q: %w", f, ErrUnknownFlag)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		return false, ErrNotLoaded
	}

	prev := c.values[f]
	next := !prev
	c.values[f] = next
	if err := c.store.Set(ctx, c.owner, profile.SectionMain, string(f), profile.FormatBool(next)); err != nil {
		c.values[f] = prev
		return prev, fmt.Errorf("persist %s: %w", f, err)
	}
	return next, nil
}

// Snapshot returns a copy of the cached values.
func (c *Cache) Snapshot() map[Flag]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[Flag]bool, len(order))
	for _, f := range order {
		out[f] = c.values[f]
	}
	return out
}
