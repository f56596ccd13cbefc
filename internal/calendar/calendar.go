// Package calendar buckets schedulable bookings into the admin scheduling grid.
package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/booking"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
)

const (
	// DefaultCapacity is the number of bookings that fills a day.
	DefaultCapacity = 3
	// GridCells is six Monday-first weeks.
	GridCells = 42
)

type Options struct {
	Capacity int
}

type Option func(*Options)

// WithCapacity sets the per-day threshold; values below 1 keep the default.
func WithCapacity(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Capacity = n
		}
	}
}

type MonthSummary struct {
	Month       string `json:"month"` // YYYY-MM
	Total       int    `json:"total"`
	Installment int    `json:"installment"`
	FullPayment int    `json:"fullPayment"`
	FullDays    int    `json:"fullDays"`
}

type Calendar struct {
	Month    string                        `json:"month"`
	Capacity int                           `json:"capacity"`
	Grid     [GridCells]models.CalendarDay `json:"grid"`
	Summary  MonthSummary                  `json:"summary"`
}

// Aggregate builds the grid for the month containing monthCursor. Cells from
// the neighbouring months are filled for continuity but left out of Summary.
func Aggregate(bookings []models.Booking, monthCursor time.Time, opts ...Option) Calendar {
	o := Options{Capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(&o)
	}

	year, month, _ := monthCursor.Date()
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) + 6) % 7
	start := first.AddDate(0, 0, -offset)

	cal := Calendar{
		Month:    booking.MonthKey(first),
		Capacity: o.Capacity,
		Summary:  MonthSummary{Month: booking.MonthKey(first)},
	}
	index := make(map[string]int, GridCells)
	for i := 0; i < GridCells; i++ {
		day := start.AddDate(0, 0, i)
		key := booking.DateKey(day)
		cal.Grid[i] = models.CalendarDay{DateKey: key, InMonth: day.Month() == month}
		index[key] = i
	}

	for _, b := range booking.Schedulable(bookings) {
		s := booking.ResolveSchedule(b)
		if !s.HasDate {
			continue
		}
		i, ok := index[booking.DateKey(s.Date)]
		if !ok {
			continue
		}
		cell := &cal.Grid[i]
		cell.Total++
		if IsInstallment(b) {
			cell.InstallmentCount++
		} else {
			cell.FullPaymentCount++
		}
		cell.OrderIDs = append(cell.OrderIDs, b.OrderID)
	}

	for i := range cal.Grid {
		cell := &cal.Grid[i]
		cell.AtCapacity = cell.Total >= o.Capacity
		if !cell.InMonth {
			continue
		}
		cal.Summary.Total += cell.Total
		cal.Summary.Installment += cell.InstallmentCount
		cal.Summary.FullPayment += cell.FullPaymentCount
		if cell.AtCapacity {
			cal.Summary.FullDays++
		}
	}
	return cal
}

// IsInstallment reports whether the booking is paid in installments.
func IsInstallment(b models.Booking) bool {
	return strings.Contains(strings.ToLower(b.Payment), "installment") ||
		strings.Contains(strings.ToLower(b.Service), "installment")
}

// Rollup totals schedulable bookings per schedule month, oldest month first.
// Bookings without a parseable schedule are skipped.
func Rollup(bookings []models.Booking) []MonthSummary {
	byMonth := make(map[string]*MonthSummary)
	for _, b := range booking.Schedulable(bookings) {
		s := booking.ResolveSchedule(b)
		if !s.HasDate {
			continue
		}
		key := booking.MonthKey(s.Date)
		m, ok := byMonth[key]
		if !ok {
			m = &MonthSummary{Month: key}
			byMonth[key] = m
		}
		m.Total++
		if IsInstallment(b) {
			m.Installment++
		} else {
			m.FullPayment++
		}
	}

	out := make([]MonthSummary, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// ParseMonth reads a YYYY-MM cursor.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, want YYYY-MM: %w", s, err)
	}
	return t, nil
}
