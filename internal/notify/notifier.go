// Package notify surfaces rejected bookings to their owner exactly once.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/booking"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
)

// GuestKey owns the seen-set of visitors without an email.
const GuestKey = "guest"

// SeenStore persists the per-user set of notification ids already shown.
type SeenStore interface {
	LoadSeen(ctx context.Context, userKey string) ([]string, error)
	AddSeen(ctx context.Context, userKey string, ids []string) error
}

// BucketStore is the local key/value storage holding cached booking arrays.
// GetBucket returns nil data for a missing key.
type BucketStore interface {
	GetBucket(ctx context.Context, key string) ([]byte, error)
	PutBucket(ctx context.Context, key string, data []byte) error
}

// UserKey normalizes an email into a seen-set owner.
func UserKey(email string) string {
	if e := booking.NormalizeEmail(email); e != "" {
		return e
	}
	return GuestKey
}

// ActiveBucketPrefix starts every per-user active booking cache key.
const ActiveBucketPrefix = "active_bookings:"

// ActiveBucketKey names the user's locally cached active bookings.
func ActiveBucketKey(email string) string {
	return ActiveBucketPrefix + UserKey(email)
}

// NotificationID is stable across reconciliation cycles for any booking that
// has an order id or a usable composite identity.
func NotificationID(b models.Booking) string {
	return booking.IdentityKey(b)
}

type Notifier struct {
	store  SeenStore
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]map[string]struct{}
}

func New(store SeenStore, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		store:  store,
		logger: logger.With("component", "notify"),
		seen:   make(map[string]map[string]struct{}),
	}
}

// CaptureNewRejections returns the user's rejected bookings that were never
// announced before and records them as seen. A failed write is logged and
// the result still returned; the in-process copy of the seen-set keeps the
// same rejection from being announced again by this process. A failed read
// with nothing cached returns an error and announces nothing.
func (n *Notifier) CaptureNewRejections(ctx context.Context, bookings []models.Booking, userID string) ([]models.Booking, error) {
	key := UserKey(userID)

	n.mu.Lock()
	defer n.mu.Unlock()

	seen, err := n.loadLocked(ctx, key)
	if err != nil {
		return nil, err
	}

	var fresh []models.Booking
	var ids []string
	for _, b := range booking.OfUser(bookings, userID) {
		if booking.ClassifyBooking(b) != models.StateRejected {
			continue
		}
		id := NotificationID(b)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		fresh = append(fresh, b)
	}

	if len(ids) > 0 {
		if err := n.store.AddSeen(ctx, key, ids); err != nil {
			n.logger.WarnContext(ctx, "failed to persist rejection seen-set", "user", key, "count", len(ids), "error", err)
		}
	}
	return fresh, nil
}

// loadLocked unions the persisted seen-set into the process cache.
func (n *Notifier) loadLocked(ctx context.Context, key string) (map[string]struct{}, error) {
	cached, hasCache := n.seen[key]
	stored, err := n.store.LoadSeen(ctx, key)
	if err != nil {
		if !hasCache {
			return nil, fmt.Errorf("load seen-set for %s: %w", key, err)
		}
		n.logger.WarnContext(ctx, "seen-set unavailable, using cached copy", "user", key, "error", err)
		return cached, nil
	}
	if !hasCache {
		cached = make(map[string]struct{}, len(stored))
		n.seen[key] = cached
	}
	for _, id := range stored {
		cached[id] = struct{}{}
	}
	return cached, nil
}

// PruneActiveCache drops cancelled bookings, and rejected bookings whose
// rejection was already captured, from the user's active-bookings bucket.
// Records are written back in their original raw shape.
func (n *Notifier) PruneActiveCache(ctx context.Context, cache BucketStore, userID string) (int, error) {
	bucket := ActiveBucketKey(userID)
	data, err := cache.GetBucket(ctx, bucket)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", bucket, err)
	}
	records, err := booking.DecodeRecords(data)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", bucket, err)
	}

	kept := make([]models.RawRecord, 0, len(records))
	removed := 0
	n.mu.Lock()
	seen := n.seen[UserKey(userID)]
	for i, raw := range records {
		b, ok := booking.Normalize(raw, i)
		if !ok {
			removed++
			continue
		}
		switch booking.ClassifyBooking(b) {
		case models.StateCancelled:
			removed++
			continue
		case models.StateRejected:
			if _, captured := seen[NotificationID(b)]; captured {
				removed++
				continue
			}
		}
		kept = append(kept, raw)
	}
	n.mu.Unlock()
	if removed == 0 {
		return 0, nil
	}

	out, err := json.Marshal(kept)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", bucket, err)
	}
	if err := cache.PutBucket(ctx, bucket, out); err != nil {
		return 0, fmt.Errorf("write %s: %w", bucket, err)
	}
	n.logger.DebugContext(ctx, "pruned active bookings cache", "bucket", bucket, "removed", removed)
	return removed, nil
}
