package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite keeps the registration set in a WAL-mode SQLite database.
type SQLite struct {
	db     *sql.DB
	closed atomic.Bool
}

// OpenSQLite opens (or creates) the database at path and initializes the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS registrations (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		app_id     TEXT NOT NULL UNIQUE,
		registered TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) List(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT app_id FROM registrations ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Add is idempotent via ON CONFLICT, keeping the original position.
func (s *SQLite) Add(ctx context.Context, id string) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var added bool
	err := retryOnContention(func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO registrations (app_id, registered) VALUES (?, ?)
			 ON CONFLICT(app_id) DO NOTHING`,
			id, now,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		added = n > 0
		return err
	})
	if err != nil {
		return false, fmt.Errorf("add registration %s: %w", id, err)
	}
	return added, nil
}

func (s *SQLite) Remove(ctx context.Context, id string) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	var removed bool
	err := retryOnContention(func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM registrations WHERE app_id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		removed = n > 0
		return err
	})
	if err != nil {
		return false, fmt.Errorf("remove registration %s: %w", id, err)
	}
	return removed, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
