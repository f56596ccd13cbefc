package handlers

import "net/http"

// NewMux registers every route. limiter may be nil.
func NewMux(bookings *BookingHandler, admin *AdminHandler, health *HealthHandler, limiter *RateLimiter) *http.ServeMux {
	limit := func(h http.HandlerFunc) http.HandlerFunc {
		if limiter == nil {
			return h
		}
		return limiter.Middleware(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)

	// Customer routes
	mux.HandleFunc("GET /api/bookings", limit(bookings.ListBookings))
	mux.HandleFunc("GET /api/rejections", limit(bookings.Rejections))

	// Protected Routes
	mux.HandleFunc("GET /admin/bookings", admin.AuthMiddleware(admin.ListBookings))
	mux.HandleFunc("GET /admin/calendar", admin.AuthMiddleware(admin.Calendar))
	mux.HandleFunc("GET /admin/dashboard", admin.AuthMiddleware(admin.Dashboard))
	mux.HandleFunc("POST /admin/reconcile", admin.AuthMiddleware(limit(admin.Reconcile)))
	return mux
}
