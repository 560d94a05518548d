package settings

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/deeplbot/deeplbot/internal/profile"
)

type failingBacking struct {
	profile.Store
	fail bool
}

func (f *failingBacking) Set(ctx context.Context, id int64, section, key, value string) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.Set(ctx, id, section, key, value)
}

func newStore(t *testing.T) profile.Store {
	t.Helper()
	s, err := profile.NewFileStore(filepath.Join(t.TempDir(), "p"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return s
}

func TestLoadAndLabels(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_ = s.Set(ctx, 1, profile.SectionMain, "forward", "yes")
	_ = s.Set(ctx, 1, profile.SectionMain, "debug", "no")

	c := New(s, 1)
	if c.IsEnabled(Forward) {
		t.Fatal("unloaded cache should report false")
	}
	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.IsEnabled(Forward) || c.IsEnabled(Debug) || c.IsEnabled(Public) {
		t.Fatalf("snapshot = %v", c.Snapshot())
	}
	if got := c.Label(Forward); got != "🔳 Forward" {
		t.Fatalf("label = %q", got)
	}
	if got := c.Label(Public); got != "⬜️ Public" {
		t.Fatalf("label = %q", got)
	}
	flags := c.Flags()
	if len(flags) != 3 || flags[0] != Forward || flags[2] != Public {
		t.Fatalf("flags = %v", flags)
	}
}

func TestTogglePersists(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	c := New(s, 1)
	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	on, err := c.Toggle(ctx, Debug)
	if err != nil || !on {
		t.Fatalf("toggle = %v, %v", on, err)
	}
	if v, _ := s.Get(ctx, 1, profile.SectionMain, "debug"); v != "yes" {
		t.Fatalf("stored debug = %q", v)
	}
	if _, err := s.Get(ctx, 1, profile.SectionMain, "public"); !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("only the toggled field should be written, got %v", err)
	}
	on, _ = c.Toggle(ctx, Debug)
	if on {
		t.Fatal("second toggle should switch off")
	}
}

func TestToggleRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	b := &failingBacking{Store: newStore(t)}
	c := New(b, 1)
	_ = c.Load(ctx)
	b.fail = true
	if _, err := c.Toggle(ctx, Public); err == nil {
		t.Fatal("expected error")
	}
	if c.IsEnabled(Public) {
		t.Fatal("cache should be rolled back")
	}
}

func TestToggleErrors(t *testing.T) {
	ctx := context.Background()
	c := New(newStore(t), 1)
	if _, err := c.Toggle(ctx, Debug); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	_ = c.Load(ctx)
	if _, err := c.Toggle(ctx, Flag("bogus")); !errors.Is(err, ErrUnknownFlag) {
		t.Fatalf("expected ErrUnknownFlag, got %v", err)
	}
	if _, err := ParseFlag("close"); !errors.Is(err, ErrUnknownFlag) {
		t.Fatalf("expected ErrUnknownFlag, got %v", err)
	}
	if f, err := ParseFlag("forward"); err != nil || f != Forward {
		t.Fatalf("parse = %v, %v", f, err)
	}
}

func TestConcurrentTogglesSerialise(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	c := New(s, 1)
	_ = c.Load(ctx)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Toggle(ctx, Forward)
		}()
	}
	wg.Wait()
	if c.IsEnabled(Forward) {
		t.Fatal("even number of toggles should end off")
	}
	if v, _ := s.Get(ctx, 1, profile.SectionMain, "forward"); v != "no" {
		t.Fatalf("stored = %q", v)
	}
}
