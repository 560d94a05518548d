package profile

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	identity   INTEGER PRIMARY KEY,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS profile_values (
	identity   INTEGER NOT NULL,
	section    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (identity, section, key)
);
`

// NewSQLiteStore opens (or creates) a SQLite profile database at path.
func NewSQLiteStore(path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open profile db: %w", err)
	}
	s, err := NewSQLiteStoreDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStoreDB builds a Store on an already opened database and applies
// the schema. The store owns db and closes it on Close.
func NewSQLiteStoreDB(db *sql.DB) (Store, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("init profile schema: %w", err)
	}
	return newRecordStore(&sqliteBackend{db: db, sq: sq.StatementBuilder}), nil
}

type sqliteBackend struct {
	db *sql.DB
	sq sq.StatementBuilderType
}

func (b *sqliteBackend) load(ctx context.Context, id int64) (*Profile, error) {
	var one int
	q, args, _ := b.sq.Select("1").From("profiles").Where(sq.Eq{"identity": id}).ToSql()
	if err := b.db.QueryRowContext(ctx, q, args...).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("identity %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load profile %d: %w", id, err)
	}

	q, args, _ = b.sq.Select("section", "key", "value").
		From("profile_values").
		Where(sq.Eq{"identity": id}).
		OrderBy("section", "key").
		ToSql()
	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("load profile %d: %w", id, err)
	}
	defer rows.Close()

	p := NewProfile()
	for rows.Next() {
		var section, key, value string
		if err := rows.Scan(&section, &key, &value); err != nil {
			return nil, fmt.Errorf("scan profile %d: %w", id, err)
		}
		p.Set(section, key, value)
	}
	return p, rows.Err()
}

func (b *sqliteBackend) save(ctx context.Context, id int64, p *Profile) error {
	now := time.Now().UTC().Format(time.RFC3339)
	return withTx(ctx, b.db, func(tx *sql.Tx) error {
		q, args, _ := b.sq.Insert("profiles").
			Columns("identity", "created_at").
			Values(id, now).
			Suffix("ON CONFLICT(identity) DO NOTHING").
			ToSql()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("save profile %d: %w", id, err)
		}

		q, args, _ = b.sq.Delete("profile_values").Where(sq.Eq{"identity": id}).ToSql()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("save profile %d: %w", id, err)
		}

		ins := b.sq.Insert("profile_values").Columns("identity", "section", "key", "value", "updated_at")
		n := 0
		for _, section := range p.SectionNames() {
			for _, key := range p.Keys(section) {
				ins = ins.Values(id, section, key, p.Sections[section][key], now)
				n++
			}
		}
		if n == 0 {
			return nil
		}
		q, args, _ = ins.ToSql()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("save profile %d: %w", id, err)
		}
		return nil
	})
}

func (b *sqliteBackend) remove(ctx context.Context, id int64) error {
	return withTx(ctx, b.db, func(tx *sql.Tx) error {
		for _, table := range []string{"profile_values", "profiles"} {
			q, args, _ := b.sq.Delete(table).Where(sq.Eq{"identity": id}).ToSql()
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("delete profile %d: %w", id, err)
			}
		}
		return nil
	})
}

func (b *sqliteBackend) list(ctx context.Context) ([]int64, error) {
	q, args, _ := b.sq.Select("identity").From("profiles").OrderBy("identity").ToSql()
	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (b *sqliteBackend) close() error {
	return b.db.Close()
}

func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
