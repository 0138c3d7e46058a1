// Package sqlite is an attribute store backed by a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver registration

	"xdao.co/trustring/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS attributes (
	owner      TEXT    NOT NULL,
	slot       TEXT    NOT NULL,
	value      BLOB,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (owner, slot)
);`

const upsert = `
INSERT INTO attributes (owner, slot, value, updated_at)
VALUES (:owner, :slot, :value, :updated_at)
ON CONFLICT (owner, slot) DO UPDATE SET
	value = excluded.value,
	updated_at = excluded.updated_at`

type row struct {
	Owner     string `db:"owner"`
	Slot      string `db:"slot"`
	Value     []byte `db:"value"`
	UpdatedAt int64  `db:"updated_at"`
}

// Store keeps attributes in SQLite. A row exists for every attribute that was
// ever set; a NULL or empty value reads back as an empty slice.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open opens or creates the database at dsn (a file path or any DSN the
// modernc driver accepts).
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlite: dsn is required")
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	// One writer at a time; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: creating schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Set(ctx context.Context, owner, slot string, value []byte) error {
	if err := checkNames(owner, slot); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	r := row{Owner: owner, Slot: slot, Value: value, UpdatedAt: s.now().UTC().Unix()}
	if _, err := s.db.NamedExecContext(ctx, upsert, r); err != nil {
		return fmt.Errorf("sqlite: set %s/%s: %w", owner, slot, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, owner, slot string) ([]byte, error) {
	if err := checkNames(owner, slot); err != nil {
		return nil, err
	}
	var r row
	err := s.db.GetContext(ctx, &r,
		`SELECT owner, slot, value, updated_at FROM attributes WHERE owner = ? AND slot = ?`,
		owner, slot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s/%s: %w", owner, slot, err)
	}
	if r.Value == nil {
		return []byte{}, nil
	}
	return r.Value, nil
}

// Slots lists the slot names stored for owner, sorted.
func (s *Store) Slots(ctx context.Context, owner string) ([]string, error) {
	if err := storage.CheckName(owner); err != nil {
		return nil, err
	}
	var out []string
	if err := s.db.SelectContext(ctx, &out,
		`SELECT slot FROM attributes WHERE owner = ? ORDER BY slot`, owner); err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", owner, err)
	}
	return out, nil
}

func checkNames(owner, slot string) error {
	if err := storage.CheckName(owner); err != nil {
		return err
	}
	return storage.CheckName(slot)
}
