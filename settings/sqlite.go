package settings

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"

	"promptlab/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	profile TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (profile, key)
);
`

// SQLite persists settings in a sqlite3 database. When a secret is given the
// credential is sealed with secretbox before it touches disk.
type SQLite struct {
	db     *sql.DB
	sealer *sealer
	path   string
}

// OpenSQLite opens (or creates) the database at path. ":memory:" is accepted.
func OpenSQLite(path, secret string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings schema: %w", err)
	}

	log.Printf("[SETTINGS] sqlite settings store at %s (sealed=%v)", path, secret != "")
	return &SQLite{db: db, sealer: newSealer(secret), path: path}, nil
}

func (b *SQLite) Name() string { return "sqlite" }

func (b *SQLite) Close() error { return b.db.Close() }

func (b *SQLite) Profile(id string) Store {
	return &sqliteStore{b: b, id: id}
}

type sqliteStore struct {
	b  *SQLite
	id string
}

func (s *sqliteStore) Load(ctx context.Context) (models.ConnectionSettings, error) {
	rows, err := s.b.db.QueryContext(ctx, `SELECT key, value FROM settings WHERE profile = ?`, s.id)
	if err != nil {
		return models.DefaultSettings(), fmt.Errorf("failed to load settings: %w", err)
	}
	defer rows.Close()

	stored := make(map[string]string, 3)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return models.DefaultSettings(), fmt.Errorf("failed to scan settings: %w", err)
		}
		stored[k] = v
	}
	if err := rows.Err(); err != nil {
		return models.DefaultSettings(), fmt.Errorf("failed to read settings: %w", err)
	}

	if sealed, ok := stored[KeyCredential]; ok {
		plain, err := s.b.sealer.open(sealed)
		if err != nil {
			log.Printf("[SETTINGS] profile=%s: dropping unreadable credential: %v", s.id, err)
			delete(stored, KeyCredential)
		} else {
			stored[KeyCredential] = plain
		}
	}
	return merge(stored), nil
}

func (s *sqliteStore) Save(ctx context.Context, cs models.ConnectionSettings) error {
	f := fields(cs)
	if len(f) == 0 {
		return nil
	}
	if v, ok := f[KeyCredential]; ok {
		sealed, err := s.b.sealer.seal(v)
		if err != nil {
			return err
		}
		f[KeyCredential] = sealed
	}

	tx, err := s.b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin settings transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range f {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (profile, key, value, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(profile, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
		`, s.id, k, v)
		if err != nil {
			return fmt.Errorf("failed to save %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	return nil
}

func (s *sqliteStore) Clear(ctx context.Context) (models.ConnectionSettings, error) {
	if _, err := s.b.db.ExecContext(ctx, `DELETE FROM settings WHERE profile = ?`, s.id); err != nil {
		return models.DefaultSettings(), fmt.Errorf("failed to clear settings: %w", err)
	}
	return models.DefaultSettings(), nil
}
