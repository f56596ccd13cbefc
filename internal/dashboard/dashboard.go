// Package dashboard rolls bookings up into the admin sales statistics.
package dashboard

import (
	"time"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/booking"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
	"github.com/shopspring/decimal"
)

// WindowMonths is the length of the trailing monthly series.
const WindowMonths = 12

type Stats struct {
	TotalSales    decimal.Decimal `json:"totalSales"`
	TotalBookings int             `json:"totalBookings"`
	Pending       int             `json:"pending"`
	Approved      int             `json:"approved"`
	Completed     int             `json:"completed"`
	Rejected      int             `json:"rejected"`
	Cancelled     int             `json:"cancelled"`
	TotalUsers    int             `json:"totalUsers"`
}

type Dashboard struct {
	Stats   Stats                `json:"stats"`
	Monthly []models.MonthBucket `json:"monthly"`
}

// Aggregate computes global totals and the trailing 12-month series ending
// in now's month. Sales only count successful bookings, completed ones
// included. Bookings created outside the window, or with an unreadable
// creation date, count toward the totals only.
func Aggregate(bookings []models.Booking, userCount int, now time.Time) Dashboard {
	monthly := Skeleton(now)
	index := make(map[string]int, len(monthly))
	for i, m := range monthly {
		index[m.Key] = i
	}

	stats := Stats{TotalSales: decimal.Zero, TotalUsers: userCount}
	for _, b := range bookings {
		state := booking.ClassifyBooking(b)
		stats.TotalBookings++
		switch state {
		case models.StatePending:
			stats.Pending++
		case models.StateApproved:
			stats.Approved++
		case models.StateCompleted:
			stats.Completed++
		case models.StateRejected:
			stats.Rejected++
		case models.StateCancelled:
			stats.Cancelled++
		}
		if state.Successful() {
			stats.TotalSales = stats.TotalSales.Add(b.Amount())
		}

		created, ok := booking.CreatedTime(b)
		if !ok {
			continue
		}
		i, ok := index[booking.MonthKey(created)]
		if !ok {
			continue
		}
		m := &monthly[i]
		m.Bookings++
		switch {
		case state.Successful():
			m.Approved++
			m.Sales = m.Sales.Add(b.Amount())
		case state == models.StateRejected:
			m.Rejected++
		case state == models.StateCancelled:
			m.Cancelled++
		default:
			m.Pending++
		}
	}

	return Dashboard{Stats: stats, Monthly: monthly}
}

// Skeleton returns the zero-filled window, oldest month first.
func Skeleton(now time.Time) []models.MonthBucket {
	year, month, _ := now.Date()
	anchor := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.MonthBucket, WindowMonths)
	for i := range out {
		t := anchor.AddDate(0, i-(WindowMonths-1), 0)
		out[i] = models.MonthBucket{
			Key:   booking.MonthKey(t),
			Label: t.Format("Jan 2006"),
			Sales: decimal.Zero,
		}
	}
	return out
}
