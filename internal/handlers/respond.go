package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/reconcile"
)

// SessionName is the cookie the storefront's login flow writes. This
// service only reads it.
const SessionName = "booking-session"

// Session values.
const (
	sessionEmail = "email"
	sessionAuth  = "authenticated"
	sessionAdmin = "is_admin"
)

// currentUser returns the signed-in email ("" for guests) and whether the
// session belongs to an admin.
func currentUser(store sessions.Store, r *http.Request) (email string, admin bool) {
	session, err := store.Get(r, SessionName)
	if err != nil {
		// A cookie signed with an old key; treat as a guest.
		slog.Debug("Ignoring unreadable session", "error", err)
		return "", false
	}
	if auth, ok := session.Values[sessionAuth].(bool); !ok || !auth {
		return "", false
	}
	email, _ = session.Values[sessionEmail].(string)
	admin, _ = session.Values[sessionAdmin].(bool)
	return email, admin
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// runCycle runs a cycle, falling back to the previous snapshot when one is
// already in flight. stale reports that fallback.
func runCycle(ctx context.Context, rec *reconcile.Reconciler, req reconcile.Request) (snap *reconcile.Snapshot, stale bool, err error) {
	snap, err = rec.Cycle(ctx, req)
	if errors.Is(err, reconcile.ErrCycleInFlight) {
		if last := rec.Last(); last != nil {
			return last, true, nil
		}
	}
	return snap, false, err
}

// writeCycleError maps cycle failures to responses.
func writeCycleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, reconcile.ErrCycleInFlight) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "bookings are being refreshed, try again shortly")
		return
	}
	slog.ErrorContext(r.Context(), "Reconciliation failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusServiceUnavailable, "bookings unavailable")
}
