package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/onramp/pkg/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
  user_id    TEXT PRIMARY KEY,
  version    INTEGER NOT NULL,
  payload    BLOB NOT NULL,
  updated_at TIMESTAMP NOT NULL
);`

// upsert only overwrites a row whose stored version directly precedes the
// incoming one.
const upsert = `
INSERT INTO sessions (user_id, version, payload, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  version    = excluded.version,
  payload    = excluded.payload,
  updated_at = excluded.updated_at
WHERE sessions.version = excluded.version - 1`

// Store implements ports.SessionStore backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a database at path and prepares the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// SQLite allows a single writer; in-memory databases are per connection.
	db.SetMaxOpenConns(1)

	store, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing handle and ensures the schema exists.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to init sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save persists the session. It fails with domain.ErrVersionConflict when the
// stored row was written by someone else since it was loaded.
func (s *Store) Save(ctx context.Context, userID string, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	res, err := s.db.ExecContext(ctx, upsert, userID, session.Version, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: user %s at version %d", domain.ErrVersionConflict, userID, session.Version)
	}
	return nil
}

// Load retrieves the session.
func (s *Store) Load(ctx context.Context, userID string) (*domain.Session, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE user_id = ?`, userID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete removes the session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns all stored user ids in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM sessions ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
