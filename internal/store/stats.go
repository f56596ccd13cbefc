package store

import (
	"context"
	"database/sql"
	"errors"
)

// Summary is a quick look at what the local store holds, printed by the CLI.
type Summary struct {
	Users           int
	Bookings        int
	Buckets         int
	SeenRejections  int
	LegacyImports   int
	BookingsByEmail map[string]int
}

func (s *Store) GetSummary(ctx context.Context) (*Summary, error) {
	sum := &Summary{
		BookingsByEmail: make(map[string]int),
	}

	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM users", &sum.Users},
		{"SELECT COUNT(*) FROM bookings", &sum.Bookings},
		{"SELECT COUNT(*) FROM buckets", &sum.Buckets},
		{"SELECT COUNT(*) FROM rejection_seen", &sum.SeenRejections},
		{"SELECT COUNT(*) FROM legacy_imports", &sum.LegacyImports},
	}
	for _, c := range counts {
		err := s.DB.QueryRowContext(ctx, c.query).Scan(c.dst)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	rows, err := s.DB.QueryContext(ctx, "SELECT user_email, COUNT(*) FROM bookings GROUP BY user_email")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var email string
		var count int
		if err := rows.Scan(&email, &count); err != nil {
			return nil, err
		}
		if email == "" {
			email = "(guest)"
		}
		sum.BookingsByEmail[email] = count
	}

	return sum, rows.Err()
}
