package profile

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestLifecycleInitOwnerAndUser(t *testing.T) {
	ctx := context.Background()
	s := newFileTestStore(t)
	lc := NewLifecycle(s, LifecycleOptions{Owner: 1, Version: "2.0"})

	if err := lc.Init(ctx, 1, "de"); err != nil {
		t.Fatalf("init owner: %v", err)
	}
	if err := lc.Init(ctx, 2, "fr"); err != nil {
		t.Fatalf("init user: %v", err)
	}

	owner, _ := s.Load(ctx, 1)
	for key, want := range map[string]string{KeyLang: "de", KeyForward: "yes", KeyDebug: "no", KeyPublic: "yes"} {
		if v, _ := owner.Get(SectionMain, key); v != want {
			t.Fatalf("owner %s = %q, want %q", key, v, want)
		}
	}
	user, _ := s.Load(ctx, 2)
	if _, ok := user.Get(SectionMain, KeyForward); ok {
		t.Fatal("non-owner profile must not carry owner toggles")
	}
	if v, _ := user.Get(SectionStat, KeyVersion); v != "2.0" {
		t.Fatalf("version = %q", v)
	}
	if v, _ := user.Get(SectionStat, KeyTotal); v != "0" {
		t.Fatalf("total = %q", v)
	}
}

func TestCheckVersionMigratesDestructively(t *testing.T) {
	ctx := context.Background()
	s := newFileTestStore(t)
	old := NewLifecycle(s, LifecycleOptions{Owner: 1, Version: "1.0"})
	if err := old.Init(ctx, 1, "ja"); err != nil {
		t.Fatalf("init: %v", err)
	}
	_ = s.Set(ctx, 1, SectionMain, KeyDebug, "yes")
	_ = s.Set(ctx, 1, SectionStat, KeyTotal, "41")

	lc := NewLifecycle(s, LifecycleOptions{Owner: 1, Version: "2.0"})
	migrated, err := lc.CheckVersion(ctx, 1)
	if err != nil || !migrated {
		t.Fatalf("check = %v, %v", migrated, err)
	}
	p, _ := s.Load(ctx, 1)
	if v, _ := p.Get(SectionMain, KeyLang); v != "ja" {
		t.Fatalf("lang not preserved: %q", v)
	}
	if v, _ := p.Get(SectionMain, KeyDebug); v != "no" {
		t.Fatalf("debug should reset, got %q", v)
	}
	if v, _ := p.Get(SectionStat, KeyTotal); v != "0" {
		t.Fatalf("total should reset, got %q", v)
	}

	migrated, err = lc.CheckVersion(ctx, 1)
	if err != nil || migrated {
		t.Fatalf("second check = %v, %v", migrated, err)
	}
}

func TestCheckVersionPreservesOwnerToggles(t *testing.T) {
	ctx := context.Background()
	s := newFileTestStore(t)
	_ = s.Set(ctx, 1, SectionMain, KeyLang, "es")
	_ = s.Set(ctx, 1, SectionMain, KeyDebug, "on")
	_ = s.Set(ctx, 1, SectionMain, KeyPublic, "no")

	lc := NewLifecycle(s, LifecycleOptions{Owner: 1, Version: "2.0", PreserveOwnerToggles: true})
	if _, err := lc.CheckVersion(ctx, 1); err != nil {
		t.Fatalf("check: %v", err)
	}
	p, _ := s.Load(ctx, 1)
	if v, _ := p.Get(SectionMain, KeyDebug); v != "yes" {
		t.Fatalf("debug = %q, want yes", v)
	}
	if v, _ := p.Get(SectionMain, KeyPublic); v != "no" {
		t.Fatalf("public = %q, want no", v)
	}
	if v, _ := p.Get(SectionMain, KeyForward); v != "yes" {
		t.Fatalf("forward default = %q", v)
	}
}

func TestCheckVersionKeepsConcurrentLanguageChange(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		old := NewLifecycle(s, LifecycleOptions{Version: "1"})
		lc := NewLifecycle(s, LifecycleOptions{Version: "2"})

		for id := int64(100); id < 140; id++ {
			if err := old.Init(ctx, id, "de"); err != nil {
				t.Fatalf("init %d: %v", id, err)
			}
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				if _, err := lc.CheckVersion(ctx, id); err != nil {
					t.Errorf("check %d: %v", id, err)
				}
			}()
			go func() {
				defer wg.Done()
				if err := s.Set(ctx, id, SectionMain, KeyLang, "ja"); err != nil {
					t.Errorf("set %d: %v", id, err)
				}
			}()
			wg.Wait()
			if got := lc.Language(ctx, id); got != "ja" {
				t.Fatalf("identity %d: lang = %q, concurrent change lost", id, got)
			}
			if v, _ := s.Get(ctx, id, SectionStat, KeyVersion); v != "2" {
				t.Fatalf("identity %d: version = %q", id, v)
			}
		}
	})
}

func TestCheckVersionMissingLangDefaults(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteTestStore(t)
	_ = s.Set(ctx, 8, SectionStat, KeyTotal, "5")

	lc := NewLifecycle(s, LifecycleOptions{Owner: 1, Version: "2.0"})
	migrated, err := lc.CheckVersion(ctx, 8)
	if err != nil || !migrated {
		t.Fatalf("check = %v, %v", migrated, err)
	}
	if v, _ := s.Get(ctx, 8, SectionMain, KeyLang); v != DefaultLanguage {
		t.Fatalf("lang = %q", v)
	}
}

func TestEnsure(t *testing.T) {
	ctx := context.Background()
	s := newFileTestStore(t)
	lc := NewLifecycle(s, LifecycleOptions{Owner: 1, Version: "2.0"})

	created, err := lc.Ensure(ctx, 6)
	if err != nil || !created {
		t.Fatalf("first ensure = %v, %v", created, err)
	}
	_ = s.Set(ctx, 6, SectionMain, KeyLang, "pt")
	created, err = lc.Ensure(ctx, 6)
	if err != nil || created {
		t.Fatalf("second ensure = %v, %v", created, err)
	}
	if got := lc.Language(ctx, 6); got != "pt" {
		t.Fatalf("language = %q", got)
	}
}

func TestLanguageFallbacks(t *testing.T) {
	ctx := context.Background()
	s := newFileTestStore(t)
	lc := NewLifecycle(s, LifecycleOptions{Owner: 1, Version: "2.0"})

	if got := lc.Language(ctx, 404); got != DefaultLanguage {
		t.Fatalf("missing profile language = %q", got)
	}
	_ = s.Set(ctx, 5, SectionMain, KeyLang, "xx")
	if got := lc.Language(ctx, 5); got != DefaultLanguage {
		t.Fatalf("unknown language = %q", got)
	}
	if _, err := s.Get(ctx, 404, SectionMain, KeyLang); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestValuesHelpers(t *testing.T) {
	for _, v := range []string{"true", "YES", "On", "1"} {
		if !ParseBool(v) {
			t.Fatalf("ParseBool(%q) = false", v)
		}
	}
	for _, v := range []string{"no", "0", "", "off", "maybe"} {
		if ParseBool(v) {
			t.Fatalf("ParseBool(%q) = true", v)
		}
	}
	if FormatBool(true) != "yes" || FormatBool(false) != "no" {
		t.Fatal("FormatBool")
	}
	langs := Languages()
	if len(langs) != 11 || langs[0] != "de" || langs[10] != "en" {
		t.Fatalf("languages = %v", langs)
	}
	if LanguageName("zh") != "Chinese" || LanguageName("xx") != "xx" {
		t.Fatal("LanguageName")
	}
	if !IsOwnerOnlyKey("Public") || IsOwnerOnlyKey(KeyLang) {
		t.Fatal("IsOwnerOnlyKey")
	}
}
