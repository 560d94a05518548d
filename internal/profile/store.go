// Package profile persists per-identity settings and handles profile
// creation and version migration.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

var (
	// ErrNotFound is returned when a profile, section or key does not exist.
	ErrNotFound = errors.New("profile: not found")
	// ErrOwnerOnly is returned when an owner-only key is written for another identity.
	ErrOwnerOnly = errors.New("profile: owner-only key")
)

// Store reads and writes identity profiles. Every call loads, mutates and
// rewrites the identity's record. Calls for the same identity are serialised
// within the process; a caller's separate Get then Set is not atomic, use
// Update for read-modify-write.
type Store interface {
	Get(ctx context.Context, id int64, section, key string) (string, error)
	Set(ctx context.Context, id int64, section, key, value string) error
	Remove(ctx context.Context, id int64, key string) error
	Exists(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
	Load(ctx context.Context, id int64) (*Profile, error)
	Replace(ctx context.Context, id int64, p *Profile) error
	Update(ctx context.Context, id int64, fn func(*Profile) error) error
	IncrStat(ctx context.Context, id int64, key string) (int64, error)
	Identities(ctx context.Context) ([]int64, error)
	Close() error
}

// backend is the storage-specific part of a Store.
type backend interface {
	load(ctx context.Context, id int64) (*Profile, error) // ErrNotFound when absent
	save(ctx context.Context, id int64, p *Profile) error
	remove(ctx context.Context, id int64) error
	list(ctx context.Context) ([]int64, error)
	close() error
}

type recordStore struct {
	b     backend
	locks keyedMutex
}

func newRecordStore(b backend) *recordStore {
	return &recordStore{b: b}
}

func (s *recordStore) Get(ctx context.Context, id int64, section, key string) (string, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.b.load(ctx, id)
	if err != nil {
		return "", err
	}
	v, ok := p.Get(section, key)
	if !ok {
		return "", fmt.Errorf("%s.%s: %w", section, key, ErrNotFound)
	}
	return v, nil
}

func (s *recordStore) Set(ctx context.Context, id int64, section, key, value string) error {
	return s.Update(ctx, id, func(p *Profile) error {
		p.Set(section, key, value)
		return nil
	})
}

func (s *recordStore) Remove(ctx context.Context, id int64, key string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.b.load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, ok := p.Get(SectionMain, key); !ok {
		return nil
	}
	p.Remove(SectionMain, key)
	return s.b.save(ctx, id, p)
}

func (s *recordStore) Exists(ctx context.Context, id int64) (bool, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	_, err := s.b.load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *recordStore) Delete(ctx context.Context, id int64) error {
	unlock := s.locks.lock(id)
	defer unlock()
	return s.b.remove(ctx, id)
}

func (s *recordStore) Load(ctx context.Context, id int64) (*Profile, error) {
	unlock := s.locks.lock(id)
	defer unlock()
	return s.b.load(ctx, id)
}

func (s *recordStore) Replace(ctx context.Context, id int64, p *Profile) error {
	unlock := s.locks.lock(id)
	defer unlock()
	return s.b.save(ctx, id, p.Clone())
}

// Update applies fn to the current record (or an empty one) and saves the
// result. Nothing is written when fn fails.
func (s *recordStore) Update(ctx context.Context, id int64, fn func(*Profile) error) error {
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.b.load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		p = NewProfile()
	} else if err != nil {
		return err
	}
	if err := fn(p); err != nil {
		return err
	}
	return s.b.save(ctx, id, p)
}

// IncrStat adds one to STAT.key, treating a missing value as zero.
func (s *recordStore) IncrStat(ctx context.Context, id int64, key string) (int64, error) {
	var n int64
	err := s.Update(ctx, id, func(p *Profile) error {
		if v, ok := p.Get(SectionStat, key); ok && v != "" {
			cur, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("profile %d: %s.%s: %w", id, SectionStat, key, err)
			}
			n = cur
		}
		n++
		p.Set(SectionStat, key, strconv.FormatInt(n, 10))
		return nil
	})
	return n, err
}

func (s *recordStore) Identities(ctx context.Context) ([]int64, error) {
	return s.b.list(ctx)
}

func (s *recordStore) Close() error {
	return s.b.close()
}

// GuardOwnerKeys wraps a Store so that owner-only keys can only be written
// to the owner's profile.
func GuardOwnerKeys(s Store, owner int64) Store {
	return &guardedStore{Store: s, owner: owner}
}

type guardedStore struct {
	Store
	owner int64
}

func (g *guardedStore) Set(ctx context.Context, id int64, section, key, value string) error {
	if id != g.owner && section == SectionMain && IsOwnerOnlyKey(key) {
		return fmt.Errorf("identity %d: %s: %w", id, key, ErrOwnerOnly)
	}
	return g.Store.Set(ctx, id, section, key, value)
}

func (g *guardedStore) Replace(ctx context.Context, id int64, p *Profile) error {
	if err := g.check(id, p); err != nil {
		return err
	}
	return g.Store.Replace(ctx, id, p)
}

func (g *guardedStore) Update(ctx context.Context, id int64, fn func(*Profile) error) error {
	return g.Store.Update(ctx, id, func(p *Profile) error {
		if err := fn(p); err != nil {
			return err
		}
		return g.check(id, p)
	})
}

func (g *guardedStore) check(id int64, p *Profile) error {
	if id == g.owner {
		return nil
	}
	for _, key := range p.Keys(SectionMain) {
		if IsOwnerOnlyKey(key) {
			return fmt.Errorf("identity %d: %s: %w", id, key, ErrOwnerOnly)
		}
	}
	return nil
}

// keyedMutex hands out one mutex per identity and drops it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id int64) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[int64]*refMutex{}
	}
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
