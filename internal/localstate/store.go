package localstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const lastSyncPrefix = "lastSync_"

// Store caches the last sync time the CLI observed per mapping, for display only
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init local state: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SetLastSync(ctx context.Context, mappingID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, lastSyncPrefix+mappingID, at.UTC().Format(time.RFC3339), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save last sync: %w", err)
	}
	return nil
}

// LastSync reports false when nothing was cached for the mapping
func (s *Store) LastSync(ctx context.Context, mappingID string) (time.Time, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, lastSyncPrefix+mappingID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load last sync: %w", err)
	}

	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt last sync for %s: %w", mappingID, err)
	}
	return at, true, nil
}

func (s *Store) Forget(ctx context.Context, mappingID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, lastSyncPrefix+mappingID)
	return err
}
