package favorites

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// DefaultRecordName is the name of the durable record holding the set.
const DefaultRecordName = "creature-favorites"

// PostgresRecordStore persists the favorite set as a single named row whose
// ids column is a JSON array in insertion order.
type PostgresRecordStore struct {
	db   *sql.DB
	name string
}

// NewPostgresRecordStore creates a record store bound to one named record.
// An empty name uses DefaultRecordName.
func NewPostgresRecordStore(db *sql.DB, name string) *PostgresRecordStore {
	if name == "" {
		name = DefaultRecordName
	}
	return &PostgresRecordStore{db: db, name: name}
}

// EnsureSchema creates the backing table if it does not exist yet.
func (s *PostgresRecordStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS browse_favorite_records (
			name TEXT PRIMARY KEY,
			ids JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("favorites: EnsureSchema failed: %w", err)
	}
	return nil
}

// LoadIDs reads the persisted id list. A missing record is not an error and
// yields (nil, nil); an unparseable record is treated the same way, logged
// but never surfaced.
func (s *PostgresRecordStore) LoadIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT ids FROM browse_favorite_records WHERE name = $1;`
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, s.name).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("favorites: LoadIDs failed to scan row: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		log.Printf("WARN: favorites: persisted record %q is unparseable, treating as empty: %v", s.name, err)
		return nil, nil
	}
	return ids, nil
}

// SaveIDs upserts the id list for the named record, preserving order.
func (s *PostgresRecordStore) SaveIDs(ctx context.Context, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("favorites: SaveIDs failed to encode ids: %w", err)
	}

	query := `
		INSERT INTO browse_favorite_records (name, ids, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE SET ids = EXCLUDED.ids, updated_at = CURRENT_TIMESTAMP;
	`
	if _, err := s.db.ExecContext(ctx, query, s.name, raw); err != nil {
		return fmt.Errorf("favorites: SaveIDs failed to upsert record: %w", err)
	}
	return nil
}
