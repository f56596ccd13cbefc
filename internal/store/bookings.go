package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/booking"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
)

const upsertBooking = `
		INSERT INTO bookings (identity, order_id, user_email, created_at, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(identity) DO UPDATE SET
			order_id = excluded.order_id,
			user_email = excluded.user_email,
			created_at = excluded.created_at,
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP
`

// SaveBooking upserts a booking under its identity key. Synthesized ids are
// not persisted; the record gets a fresh placeholder when read back.
func (s *Store) SaveBooking(ctx context.Context, b models.Booking) error {
	identity := booking.IdentityKey(b)
	if b.Synthetic {
		b.OrderID = ""
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode booking %s: %w", identity, err)
	}

	_, err = s.DB.ExecContext(ctx, upsertBooking, identity, b.OrderID, b.UserEmail, b.CreatedAt, string(payload))
	return err
}

// SaveBookings writes a batch in one transaction.
func (s *Store) SaveBookings(ctx context.Context, bookings []models.Booking) (int, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertBooking)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	saved := 0
	for _, b := range bookings {
		identity := booking.IdentityKey(b)
		if b.Synthetic {
			b.OrderID = ""
		}
		payload, err := json.Marshal(b)
		if err != nil {
			return 0, fmt.Errorf("encode booking %s: %w", identity, err)
		}
		if _, err := stmt.ExecContext(ctx, identity, b.OrderID, b.UserEmail, b.CreatedAt, string(payload)); err != nil {
			return 0, fmt.Errorf("save booking %s: %w", identity, err)
		}
		saved++
	}
	return saved, tx.Commit()
}

// ListBookings returns the stored records for a scope as raw records, so the
// local store feeds reconciliation the same way the API does. Pending and all
// scopes return everything; classification happens after the merge.
func (s *Store) ListBookings(ctx context.Context, scope models.Scope) ([]models.RawRecord, error) {
	query := `SELECT payload FROM bookings ORDER BY created_at DESC, identity`
	var args []any
	if scope.Kind == models.ScopeUser {
		query = `SELECT payload FROM bookings WHERE user_email = ? ORDER BY created_at DESC, identity`
		args = append(args, booking.NormalizeEmail(scope.UserEmail))
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.RawRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		decoded, err := booking.DecodeRecords([]byte(payload))
		if err != nil {
			return nil, err
		}
		records = append(records, decoded...)
	}
	return records, rows.Err()
}

func (s *Store) CountBookings(ctx context.Context) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) DeleteBooking(ctx context.Context, identity string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM bookings WHERE identity = ?`, identity)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
