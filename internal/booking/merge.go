package booking

import (
	"sort"
	"strings"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
)

// IdentityKey returns the merge key of a booking: its source order id, else
// the (model, createdAt, total, email) composite. Records with neither a real
// id nor any of model/createdAt/total are noise and keep their synthesized id
// so they never merge into an unrelated record.
func IdentityKey(b models.Booking) string {
	if !b.Synthetic && b.OrderID != "" {
		return "id:" + b.OrderID
	}
	model := foldText(strings.TrimSpace(b.Model))
	created := strings.TrimSpace(b.CreatedAt)
	if model == "" && created == "" && b.Amount().IsZero() {
		return "noise:" + b.OrderID
	}
	return strings.Join([]string{"fp", model, created, b.Amount().String(), b.UserEmail}, "|")
}

// Merger accumulates sources into one deduplicated booking list. Earlier
// sources win conflicts; later ones only fill fields that are still empty.
type Merger struct {
	norm  Normalizer
	index map[string]int
	out   []models.Booking
	seq   int
}

func NewMerger(n Normalizer) *Merger {
	return &Merger{norm: n, index: make(map[string]int)}
}

// Add merges one source. The fallback index used for synthesized ids runs
// across every source added to this Merger, so placeholders never collide.
func (m *Merger) Add(records []models.RawRecord) {
	for _, raw := range records {
		idx := m.seq
		m.seq++
		b, ok := m.norm.Normalize(raw, idx)
		if !ok {
			continue
		}
		key := IdentityKey(b)
		if pos, seen := m.index[key]; seen {
			backfill(&m.out[pos], b)
			continue
		}
		m.index[key] = len(m.out)
		m.out = append(m.out, b)
	}
}

// Bookings returns the merged list in first-seen order. The slice is a copy.
func (m *Merger) Bookings() []models.Booking {
	out := make([]models.Booking, len(m.out))
	copy(out, m.out)
	return out
}

// Merge deduplicates across all sources combined.
func Merge(sources ...[]models.RawRecord) []models.Booking {
	m := NewMerger(Normalizer{})
	for _, src := range sources {
		m.Add(src)
	}
	return m.Bookings()
}

func backfill(dst *models.Booking, src models.Booking) {
	fill(&dst.CreatedAt, src.CreatedAt)
	fill(&dst.UserEmail, src.UserEmail)
	fill(&dst.Model, src.Model)
	fill(&dst.Service, src.Service)
	fill(&dst.Payment, src.Payment)
	if !dst.Total.Valid && src.Total.Valid {
		dst.Total = src.Total
	}
	fill(&dst.ScheduleDate, src.ScheduleDate)
	fill(&dst.ScheduleTime, src.ScheduleTime)
	fill(&dst.ScheduledAt, src.ScheduledAt)
	fill(&dst.ScheduleLabel, src.ScheduleLabel)
	fill(&dst.Status, src.Status)
	fill(&dst.FulfillmentStatus, src.FulfillmentStatus)
	fill(&dst.ReviewDecision, src.ReviewDecision)
	fill(&dst.ShippingAddress, src.ShippingAddress)
	fill(&dst.ReceiptNumber, src.ReceiptNumber)
	fill(&dst.TrackingETA, src.TrackingETA)
	fill(&dst.TrackingLocation, src.TrackingLocation)
}

func fill(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}

// SortByCreatedDesc returns a copy ordered newest first. Bookings whose
// creation date does not parse go last, in their original order.
func SortByCreatedDesc(bookings []models.Booking) []models.Booking {
	out := make([]models.Booking, len(bookings))
	copy(out, bookings)
	sort.SliceStable(out, func(i, j int) bool {
		ti, okI := CreatedTime(out[i])
		tj, okJ := CreatedTime(out[j])
		switch {
		case okI && okJ:
			return ti.After(tj)
		case okI:
			return true
		default:
			return false
		}
	})
	return out
}

// IsNoise reports whether the booking carries no usable identity at all.
func IsNoise(b models.Booking) bool {
	return strings.HasPrefix(IdentityKey(b), "noise:")
}
