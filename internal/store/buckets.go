package store

import (
	"context"
	"database/sql"
	"errors"
)

// GetBucket returns the raw payload stored under key, or nil when the bucket
// does not exist.
func (s *Store) GetBucket(ctx context.Context, key string) ([]byte, error) {
	var payload string
	err := s.DB.QueryRowContext(ctx, `SELECT payload FROM buckets WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

func (s *Store) PutBucket(ctx context.Context, key string, data []byte) error {
	query := `
		INSERT INTO buckets (key, payload, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP
	`
	_, err := s.DB.ExecContext(ctx, query, key, string(data))
	return err
}

// ListBucketKeys returns the bucket keys starting with prefix, sorted.
func (s *Store) ListBucketKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT key FROM buckets WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
