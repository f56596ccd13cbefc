package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/booking"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
)

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, username FROM users WHERE email = ?`
	row := s.DB.QueryRowContext(ctx, query, booking.NormalizeEmail(email))

	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser registers an account. Registering the same email twice is a no-op.
func (s *Store) CreateUser(ctx context.Context, email, username string) error {
	query := `INSERT INTO users (email, username) VALUES (?, ?) ON CONFLICT(email) DO NOTHING`
	_, err := s.DB.ExecContext(ctx, query, booking.NormalizeEmail(email), username)
	return err
}

// CountUsers feeds the dashboard's registered-user total.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
