package booking

import (
	"context"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
)

// Repository lists raw booking records for a scope. The remote API and the
// local store both implement it.
type Repository interface {
	ListBookings(ctx context.Context, scope models.Scope) ([]models.RawRecord, error)
}

// ownedBy matches a booking against the requesting user. Without a current
// user only unscoped bookings are shown.
func ownedBy(b models.Booking, email string) bool {
	if email == "" {
		return b.UserEmail == ""
	}
	return b.UserEmail == email
}

func filter(bookings []models.Booking, keep func(models.Booking) bool) []models.Booking {
	out := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

// UserActive keeps the user's bookings that are neither cancelled nor rejected.
func UserActive(bookings []models.Booking, userEmail string) []models.Booking {
	email := NormalizeEmail(userEmail)
	return filter(bookings, func(b models.Booking) bool {
		return ownedBy(b, email) && !ClassifyBooking(b).Closed()
	})
}

// UserPending keeps the user's bookings still waiting for review.
func UserPending(bookings []models.Booking, userEmail string) []models.Booking {
	email := NormalizeEmail(userEmail)
	return filter(bookings, func(b models.Booking) bool {
		return ownedBy(b, email) && ClassifyBooking(b) == models.StatePending
	})
}

// AdminPending is the review queue.
func AdminPending(bookings []models.Booking) []models.Booking {
	return filter(bookings, func(b models.Booking) bool {
		return ClassifyBooking(b) == models.StatePending
	})
}

func AdminAll(bookings []models.Booking) []models.Booking {
	return filter(bookings, func(models.Booking) bool { return true })
}

// Schedulable keeps everything that belongs on the calendar: pending,
// approved and completed bookings.
func Schedulable(bookings []models.Booking) []models.Booking {
	return filter(bookings, func(b models.Booking) bool {
		return !ClassifyBooking(b).Closed()
	})
}

// OfUser keeps every booking owned by the user regardless of state.
func OfUser(bookings []models.Booking, userEmail string) []models.Booking {
	email := NormalizeEmail(userEmail)
	return filter(bookings, func(b models.Booking) bool { return ownedBy(b, email) })
}
