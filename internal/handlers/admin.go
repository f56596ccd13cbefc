package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/booking"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/calendar"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/reconcile"
)

type AdminHandler struct {
	Reconcilers  *reconcile.Registry
	SessionStore sessions.Store
	Now          func() time.Time
}

func (h *AdminHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *AdminHandler) reconciler() *reconcile.Reconciler {
	return h.Reconcilers.For(reconcile.AdminKey)
}

// AuthMiddleware ensures the session belongs to an admin
func (h *AdminHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := h.SessionStore.Get(r, SessionName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		if auth, ok := session.Values[sessionAuth].(bool); !ok || !auth {
			slog.Info("AuthMiddleware: User not authenticated", "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		if admin, _ := session.Values[sessionAdmin].(bool); !admin {
			slog.Warn("AuthMiddleware: Non-admin on admin route", "email", session.Values[sessionEmail], "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "admin only")
			return
		}
		// JSON clients read the token from here for the POST routes.
		w.Header().Set("X-CSRF-Token", csrf.Token(r))
		next(w, r)
	}
}

type adminBookingsResponse struct {
	CycleID  string     `json:"cycleId"`
	Stale    bool       `json:"stale,omitempty"`
	Degraded []string   `json:"degraded,omitempty"`
	View     string     `json:"view"`
	Bookings []adminRow `json:"bookings"`
}

// adminRow keeps approved and completed apart, unlike the dashboard totals.
type adminRow struct {
	models.Booking
	State     models.BookingState `json:"state"`
	Schedule  string              `json:"schedule"`
	CanCancel bool                `json:"canCancel"`
}

// ListBookings handles GET /admin/bookings?view=pending|all.
func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = "pending"
	}
	if view != "pending" && view != "all" {
		writeError(w, http.StatusBadRequest, "view must be pending or all")
		return
	}

	snap, stale, err := runCycle(r.Context(), h.reconciler(), reconcile.Request{Admin: true})
	if err != nil {
		writeCycleError(w, r, err)
		return
	}

	list := snap.AdminPending
	if view == "all" {
		list = snap.AdminAll
	}
	rows := make([]adminRow, 0, len(list))
	for _, b := range list {
		rows = append(rows, adminRow{
			Booking:   b,
			State:     booking.ClassifyBooking(b),
			Schedule:  booking.ScheduleLabel(b, booking.SentinelDash),
			CanCancel: booking.CanCancelBooking(b),
		})
	}

	writeJSON(w, http.StatusOK, adminBookingsResponse{
		CycleID:  snap.CycleID,
		Stale:    stale,
		Degraded: snap.Degraded,
		View:     view,
		Bookings: rows,
	})
}

// Calendar handles GET /admin/calendar?month=YYYY-MM.
func (h *AdminHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	month := h.now()
	if s := r.URL.Query().Get("month"); s != "" {
		m, err := calendar.ParseMonth(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		month = m
	}

	snap, stale, err := runCycle(r.Context(), h.reconciler(), reconcile.Request{Admin: true, Month: month})
	if err != nil {
		writeCycleError(w, r, err)
		return
	}
	if stale && (snap.Calendar == nil || snap.Calendar.Month != booking.MonthKey(month)) {
		writeCycleError(w, r, reconcile.ErrCycleInFlight)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cycleId":  snap.CycleID,
		"stale":    stale,
		"calendar": snap.Calendar,
		"months":   calendar.Rollup(snap.Bookings),
	})
}

// Dashboard handles GET /admin/dashboard.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	snap, stale, err := runCycle(r.Context(), h.reconciler(), reconcile.Request{Admin: true})
	if err != nil {
		writeCycleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cycleId":   snap.CycleID,
		"stale":     stale,
		"degraded":  snap.Degraded,
		"dashboard": snap.Dashboard,
	})
}

// Reconcile handles POST /admin/reconcile, sent by the admin UI after an
// approve or reject call succeeded. It never reuses a stale snapshot.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	snap, err := h.reconciler().Cycle(r.Context(), reconcile.Request{Admin: true})
	if err != nil {
		if errors.Is(err, reconcile.ErrCycleInFlight) {
			writeError(w, http.StatusConflict, "a reconciliation is already running")
			return
		}
		writeCycleError(w, r, err)
		return
	}

	slog.Info("Manual reconciliation", "cycle", snap.CycleID, "bookings", len(snap.Bookings), "degraded", snap.Degraded)
	writeJSON(w, http.StatusOK, map[string]any{
		"cycleId":  snap.CycleID,
		"bookings": len(snap.Bookings),
		"pending":  len(snap.AdminPending),
		"degraded": snap.Degraded,
	})
}
