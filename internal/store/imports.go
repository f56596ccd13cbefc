package store

import (
	"context"
	"database/sql"
	"errors"
)

// IsImported reports whether a legacy source has already been migrated.
func (s *Store) IsImported(ctx context.Context, source string) (bool, error) {
	var records int
	err := s.DB.QueryRowContext(ctx, `SELECT records FROM legacy_imports WHERE source = ?`, source).Scan(&records)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) MarkImported(ctx context.Context, source string, records int) error {
	_, err := s.DB.ExecContext(ctx, `INSERT OR REPLACE INTO legacy_imports (source, records, imported_at) VALUES (?, ?, CURRENT_TIMESTAMP)`, source, records)
	return err
}
