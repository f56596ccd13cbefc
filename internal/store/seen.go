package store

import "context"

// LoadSeen returns the notification ids already announced to userKey.
func (s *Store) LoadSeen(ctx context.Context, userKey string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT notification_id FROM rejection_seen WHERE user_key = ? ORDER BY seen_at, notification_id`, userKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddSeen records ids as announced. Ids already present are ignored.
func (s *Store) AddSeen(ctx context.Context, userKey string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO rejection_seen (user_key, notification_id) VALUES (?, ?)`, userKey, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}
