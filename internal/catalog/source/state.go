package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StateStore persists per-source refresh timestamps across restarts.
type StateStore interface {
	LoadAll(ctx context.Context) (map[string]time.Time, error)
	Save(ctx context.Context, id string, checkedAt time.Time) error
}

// SQLiteStateStore stores timestamps in the source_state table.
type SQLiteStateStore struct {
	db *sql.DB
}

// NewSQLiteStateStore creates a state store backed by db.
func NewSQLiteStateStore(db *sql.DB) *SQLiteStateStore {
	return &SQLiteStateStore{db: db}
}

// LoadAll returns every persisted timestamp keyed by source ID.
func (s *SQLiteStateStore) LoadAll(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source_id, last_checked_at FROM source_state")
	if err != nil {
		return nil, fmt.Errorf("querying source state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var id, at string
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("scanning source state: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parsing last_checked_at for %s: %w", id, err)
		}
		out[id] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source state: %w", err)
	}
	return out, nil
}

// Save upserts the timestamp for one source.
func (s *SQLiteStateStore) Save(ctx context.Context, id string, checkedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO source_state (source_id, last_checked_at) VALUES (?, ?)
		ON CONFLICT(source_id) DO UPDATE SET last_checked_at = excluded.last_checked_at`,
		id, checkedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving source state: %w", err)
	}
	return nil
}
