package profile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

var iniOptions = ini.LoadOptions{
	InsensitiveKeys:     true,
	IgnoreInlineComment: true,
}

// NewFileStore returns a Store that keeps one <identity>.ini file per
// profile in dir.
func NewFileStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	return newRecordStore(&fileBackend{dir: dir}), nil
}

type fileBackend struct {
	dir string
}

func (b *fileBackend) path(id int64) string {
	return filepath.Join(b.dir, strconv.FormatInt(id, 10)+".ini")
}

func (b *fileBackend) load(_ context.Context, id int64) (*Profile, error) {
	path := b.path(id)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("identity %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	f, err := ini.LoadSources(iniOptions, data)
	if err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	p := NewProfile()
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		if _, ok := p.Sections[sec.Name()]; !ok {
			p.Sections[sec.Name()] = map[string]string{}
		}
		for _, k := range sec.Keys() {
			p.Set(sec.Name(), k.Name(), k.Value())
		}
	}
	return p, nil
}

func (b *fileBackend) save(_ context.Context, id int64, p *Profile) error {
	f := ini.Empty(iniOptions)
	for _, name := range p.SectionNames() {
		sec, err := f.NewSection(name)
		if err != nil {
			return fmt.Errorf("profile %d: section %s: %w", id, name, err)
		}
		for _, key := range p.Keys(name) {
			if _, err := sec.NewKey(key, p.Sections[name][key]); err != nil {
				return fmt.Errorf("profile %d: key %s.%s: %w", id, name, key, err)
			}
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode profile %d: %w", id, err)
	}
	return writeAtomic(b.path(id), buf.Bytes())
}

func (b *fileBackend) remove(_ context.Context, id int64) error {
	err := os.Remove(b.path(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete profile %d: %w", id, err)
	}
	return nil
}

func (b *fileBackend) list(_ context.Context) ([]int64, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	var ids []int64
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".ini")
		if !ok || e.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (b *fileBackend) close() error { return nil }

// writeAtomic replaces path with data through a temp file in the same dir.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp for %s: %w", path, err)
	}
	return nil
}
