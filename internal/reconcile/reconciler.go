// Package reconcile runs reconciliation cycles: it pulls every booking
// source, merges them, and derives the views the handlers serve.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/booking"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/calendar"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/dashboard"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/notify"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/observability"
)

// ErrCycleInFlight is returned when a cycle is requested while another one
// on the same Reconciler has not finished. The request is dropped.
var ErrCycleInFlight = errors.New("reconcile: cycle already in flight")

// Source names used in logs and metrics.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
	SourceActive = "active_cache"
	SourceLatest = "latest"
)

// UserCounter reports the number of registered users.
type UserCounter interface {
	CountUsers(ctx context.Context) (int, error)
}

// Deps are the collaborators of a Reconciler. Only Local is required.
type Deps struct {
	Remote    booking.Repository
	Local     booking.Repository
	Buckets   notify.BucketStore // active-bookings cache and latest slot
	LatestKey string
	Users     UserCounter
	Notifier  *notify.Notifier
	Obs       *observability.Provider
	Logger    *slog.Logger
	Capacity  int
	Now       func() time.Time
}

// Request describes who a cycle is for.
type Request struct {
	UserEmail string    // empty for guests
	Admin     bool      // admin cycles list every booking and build calendar and dashboard
	Month     time.Time // calendar cursor; zero means the current month
}

// Snapshot is the result of one cycle. Every slice is freshly allocated;
// callers may keep it but must not expect later cycles to update it.
type Snapshot struct {
	CycleID     string    `json:"cycleId"`
	GeneratedAt time.Time `json:"generatedAt"`
	Degraded    []string  `json:"degraded,omitempty"`

	Bookings     []models.Booking `json:"bookings"`
	UserActive   []models.Booking `json:"userActive,omitempty"`
	UserPending  []models.Booking `json:"userPending,omitempty"`
	AdminPending []models.Booking `json:"adminPending,omitempty"`
	AdminAll     []models.Booking `json:"adminAll,omitempty"`

	Calendar  *calendar.Calendar   `json:"calendar,omitempty"`
	Dashboard *dashboard.Dashboard `json:"dashboard,omitempty"`

	NewlyRejected []models.Booking `json:"newlyRejected,omitempty"`
	Pruned        int              `json:"pruned,omitempty"`
}

// Reconciler owns the in-flight guard. Independent Reconcilers share no state.
type Reconciler struct {
	deps     Deps
	logger   *slog.Logger
	inFlight atomic.Bool
	last     atomic.Pointer[Snapshot]
}

func New(deps Deps) *Reconciler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Capacity <= 0 {
		deps.Capacity = calendar.DefaultCapacity
	}
	return &Reconciler{deps: deps, logger: logger.With("component", "reconcile")}
}

// InFlight reports whether a cycle is running.
func (r *Reconciler) InFlight() bool {
	return r.inFlight.Load()
}

// Last returns the most recent successful snapshot, nil before the first one.
func (r *Reconciler) Last() *Snapshot {
	return r.last.Load()
}

// Cycle runs one reconciliation. Failing sources contribute nothing and are
// listed in Snapshot.Degraded; only the in-flight guard and a cancelled
// context make Cycle fail.
func (r *Reconciler) Cycle(ctx context.Context, req Request) (_ *Snapshot, err error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.deps.Obs.RecordSkipped(ctx)
		return nil, ErrCycleInFlight
	}
	defer r.inFlight.Store(false)

	cycleID := uuid.NewString()
	ctx, done := r.deps.Obs.TrackCycle(ctx, cycleID)
	defer func() { done(err) }()
	logger := r.logger.With("cycle", cycleID)

	now := r.deps.Now()
	snap := &Snapshot{CycleID: cycleID, GeneratedAt: now}

	scope := models.Scope{Kind: models.ScopeUser, UserEmail: req.UserEmail}
	if req.Admin {
		scope = models.Scope{Kind: models.ScopeAll}
	}

	m := booking.NewMerger(booking.Normalizer{})
	for _, src := range r.sources(req) {
		records, err := src.list(ctx, scope)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			logger.WarnContext(ctx, "Booking source unavailable, continuing without it", "source", src.name, "error", err)
			r.deps.Obs.RecordSourceUnavailable(ctx, src.name)
			snap.Degraded = append(snap.Degraded, src.name)
			continue
		}
		m.Add(records)
	}

	merged := booking.SortByCreatedDesc(m.Bookings())
	r.deps.Obs.RecordMerged(ctx, len(merged))
	snap.Bookings = merged

	if req.Admin {
		snap.AdminPending = booking.AdminPending(merged)
		snap.AdminAll = booking.AdminAll(merged)

		month := req.Month
		if month.IsZero() {
			month = now
		}
		cal := calendar.Aggregate(merged, month, calendar.WithCapacity(r.deps.Capacity))
		snap.Calendar = &cal

		users := 0
		if r.deps.Users != nil {
			n, err := r.deps.Users.CountUsers(ctx)
			if err != nil {
				logger.WarnContext(ctx, "User count unavailable", "error", err)
			} else {
				users = n
			}
		}
		dash := dashboard.Aggregate(merged, users, now)
		snap.Dashboard = &dash
	} else {
		snap.UserActive = booking.UserActive(merged, req.UserEmail)
		snap.UserPending = booking.UserPending(merged, req.UserEmail)
		r.notifyUser(ctx, logger, snap, req.UserEmail)
	}

	logger.DebugContext(ctx, "Reconciliation cycle finished",
		"bookings", len(merged), "degraded", snap.Degraded, "newly_rejected", len(snap.NewlyRejected))
	r.last.Store(snap)
	return snap, nil
}

func (r *Reconciler) notifyUser(ctx context.Context, logger *slog.Logger, snap *Snapshot, email string) {
	if r.deps.Notifier == nil {
		return
	}
	mine := booking.OfUser(snap.Bookings, email)
	fresh, err := r.deps.Notifier.CaptureNewRejections(ctx, mine, email)
	if err != nil {
		logger.WarnContext(ctx, "Rejection seen-set unavailable", "error", err)
	} else {
		snap.NewlyRejected = fresh
		r.deps.Obs.RecordNewRejections(ctx, len(fresh))
	}

	if r.deps.Buckets == nil {
		return
	}
	pruned, err := r.deps.Notifier.PruneActiveCache(ctx, r.deps.Buckets, email)
	if err != nil {
		logger.WarnContext(ctx, "Active booking cache not pruned", "error", err)
		return
	}
	snap.Pruned = pruned
}

type source struct {
	name string
	list func(ctx context.Context, scope models.Scope) ([]models.RawRecord, error)
}

// sources returns the cycle's sources in precedence order: the API wins
// conflicts, local copies only backfill.
func (r *Reconciler) sources(req Request) []source {
	var out []source
	if r.deps.Remote != nil {
		out = append(out, source{SourceRemote, r.deps.Remote.ListBookings})
	}
	if r.deps.Local != nil {
		out = append(out, source{SourceLocal, r.deps.Local.ListBookings})
	}
	if r.deps.Buckets != nil && !req.Admin {
		key := notify.ActiveBucketKey(req.UserEmail)
		out = append(out, source{SourceActive, r.bucketSource(key, false)})
	}
	if r.deps.Buckets != nil && r.deps.LatestKey != "" {
		out = append(out, source{SourceLatest, r.bucketSource(r.deps.LatestKey, true)})
	}
	return out
}

// bucketSource reads a local bucket. The latest slot holds one record and
// is only offered to the cycle when it belongs to the requested scope.
func (r *Reconciler) bucketSource(key string, singleton bool) func(context.Context, models.Scope) ([]models.RawRecord, error) {
	return func(ctx context.Context, scope models.Scope) ([]models.RawRecord, error) {
		data, err := r.deps.Buckets.GetBucket(ctx, key)
		if err != nil {
			return nil, err
		}
		records, err := booking.DecodeRecords(data)
		if err != nil || !singleton || scope.Kind != models.ScopeUser {
			return records, err
		}
		if len(records) == 0 || records[0] == nil {
			return nil, nil
		}
		b, _ := booking.Normalize(records[0], 0)
		if b.UserEmail != booking.NormalizeEmail(scope.UserEmail) {
			return nil, nil
		}
		return booking.SingletonSource(records[0]), nil
	}
}

// Poll runs a cycle immediately and then every interval until ctx ends.
// Ticks that land while a cycle is still running are skipped.
func (r *Reconciler) Poll(ctx context.Context, interval time.Duration, req Request, fn func(*Snapshot)) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := r.Cycle(ctx, req)
		switch {
		case err == nil:
			if fn != nil {
				fn(snap)
			}
		case errors.Is(err, ErrCycleInFlight):
			r.logger.DebugContext(ctx, "Skipping poll tick, cycle in flight")
		case ctx.Err() != nil:
			return nil
		default:
			r.logger.ErrorContext(ctx, "Reconciliation cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
