package handlers

import (
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/notify"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/reconcile"
)

// BookingHandler serves the signed-in customer's own bookings. Guests see
// bookings that carry no email.
type BookingHandler struct {
	Reconcilers  *reconcile.Registry
	SessionStore sessions.Store
}

type myBookingsResponse struct {
	CycleID       string           `json:"cycleId"`
	Stale         bool             `json:"stale,omitempty"`
	Degraded      []string         `json:"degraded,omitempty"`
	Active        []models.Booking `json:"active"`
	Pending       []models.Booking `json:"pending"`
	NewlyRejected []models.Booking `json:"newlyRejected"`
}

// ListBookings handles GET /api/bookings.
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	email, _ := currentUser(h.SessionStore, r)
	rec := h.Reconcilers.For(notify.UserKey(email))

	snap, stale, err := runCycle(r.Context(), rec, reconcile.Request{UserEmail: email})
	if err != nil {
		writeCycleError(w, r, err)
		return
	}

	resp := myBookingsResponse{
		CycleID:       snap.CycleID,
		Stale:         stale,
		Degraded:      snap.Degraded,
		Active:        nonNil(snap.UserActive),
		Pending:       nonNil(snap.UserPending),
		NewlyRejected: []models.Booking{},
	}
	// A reused snapshot's rejections were already announced.
	if !stale {
		resp.NewlyRejected = nonNil(snap.NewlyRejected)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Rejections handles GET /api/rejections: only the rejections never shown before.
func (h *BookingHandler) Rejections(w http.ResponseWriter, r *http.Request) {
	email, _ := currentUser(h.SessionStore, r)
	rec := h.Reconcilers.For(notify.UserKey(email))

	snap, stale, err := runCycle(r.Context(), rec, reconcile.Request{UserEmail: email})
	if err != nil {
		writeCycleError(w, r, err)
		return
	}
	fresh := []models.Booking{}
	if !stale {
		fresh = nonNil(snap.NewlyRejected)
	}
	writeJSON(w, http.StatusOK, map[string]any{"newlyRejected": fresh})
}

func nonNil(bs []models.Booking) []models.Booking {
	if bs == nil {
		return []models.Booking{}
	}
	return bs
}
