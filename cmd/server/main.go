package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/config"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/handlers"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/legacy"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/notify"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/observability"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/reconcile"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/remote"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/store"
)

func main() {
	// The level is raised or lowered once the config is loaded.
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Init DB
	db, err := store.NewStore(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run Migrations
	if err := db.Migrate(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Move whatever is left in the legacy buckets into the bookings table.
	importer := legacy.FromConfig(cfg, db, db, logger)
	if _, err := importer.ImportBuckets(ctx); err != nil {
		slog.Warn("Legacy import failed, will retry on next start", "error", err)
	}

	// 3. Telemetry
	obsCfg := observability.DefaultConfig()
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	// 4. Reconciliation
	deps := reconcile.Deps{
		Local:     db,
		Buckets:   db,
		LatestKey: cfg.LatestBucket,
		Users:     db,
		Notifier:  notify.New(seenStore(ctx, cfg, db), logger),
		Obs:       obs,
		Logger:    logger,
		Capacity:  cfg.CapacityThreshold,
	}
	if cfg.APIBaseURL != "" {
		client, err := remote.NewClient(remote.Config{
			BaseURL: cfg.APIBaseURL,
			Timeout: cfg.APITimeout,
			RPS:     cfg.APIRPS,
			Burst:   2,
		})
		if err != nil {
			slog.Error("Invalid API configuration", "error", err)
			os.Exit(1)
		}
		deps.Remote = client
	} else {
		slog.Warn("API_BASE_URL not set, reconciling local sources only")
	}
	registry := reconcile.NewRegistry(deps)

	go func() {
		err := registry.For(reconcile.AdminKey).Poll(ctx, cfg.PollInterval, reconcile.Request{Admin: true}, func(s *reconcile.Snapshot) {
			slog.Debug("Admin snapshot refreshed", "cycle", s.CycleID, "bookings", len(s.Bookings), "pending", len(s.AdminPending), "degraded", s.Degraded)
		})
		if err != nil {
			slog.Error("Poller stopped", "error", err)
		}
	}()

	// 5. Session Setup
	sessionStore := sessions.NewCookieStore(cfg.SessionKey)
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.CookieSecure
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	sessionStore.Options.Path = "/"
	if cfg.CookieDomain != "" {
		sessionStore.Options.Domain = cfg.CookieDomain
	}

	// 6. Setup Handlers
	bookingHandler := &handlers.BookingHandler{Reconcilers: registry, SessionStore: sessionStore}
	adminHandler := &handlers.AdminHandler{Reconcilers: registry, SessionStore: sessionStore}
	healthHandler := &handlers.HealthHandler{Store: db}

	rateLimiter := handlers.NewRateLimiter(5, 10, 3*time.Minute)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rateLimiter.Cleanup(now)
			}
		}
	}()

	mux := handlers.NewMux(bookingHandler, adminHandler, healthHandler, rateLimiter)

	// 7. Middleware Setup
	CSRF := csrf.Protect(
		cfg.CSRFKey,
		csrf.Secure(cfg.CookieSecure),
		csrf.TrustedOrigins([]string{"localhost:" + cfg.Port, "127.0.0.1:" + cfg.Port, "localhost", "127.0.0.1"}),
	)

	// Chain: Logger -> Security Headers -> CSRF -> Mux
	handler := handlers.LoggingMiddleware(
		handlers.SecurityHeadersMiddleware(
			CSRF(mux),
		),
	)

	// 8. Start Server with Graceful Shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to listen and serve", "error", err)
			os.Exit(1)
		}
	}()

	// Block until a signal is received
	<-ctx.Done()

	slog.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited gracefully.")
}

// seenStore prefers Redis so every instance shares one seen-set, falling
// back to SQLite when Redis is not configured or not reachable.
func seenStore(ctx context.Context, cfg *config.Config, db *store.Store) notify.SeenStore {
	if cfg.RedisAddr == "" {
		return db
	}
	rs := notify.NewRedisSeenStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rs.Ping(pingCtx); err != nil {
		slog.Warn("Redis unreachable, keeping the rejection seen-set in SQLite", "addr", cfg.RedisAddr, "error", err)
		return db
	}
	slog.Info("Rejection seen-set stored in Redis", "addr", cfg.RedisAddr)
	return rs
}
