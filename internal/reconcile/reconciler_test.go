package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/booking"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/dashboard"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
	"github.com/johnmichaeldizon211/apatech-sub001/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	records []models.RawRecord
	err     error
	block   chan struct{}
	started chan struct{}

	mu     sync.Mutex
	scopes []models.Scope
}

func (f *fakeRepo) ListBookings(ctx context.Context, scope models.Scope) ([]models.RawRecord, error) {
	f.mu.Lock()
	f.scopes = append(f.scopes, scope)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.records, f.err
}

type memSeen struct {
	mu   sync.Mutex
	sets map[string][]string
}

func (m *memSeen) LoadSeen(_ context.Context, user string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sets[user]...), nil
}

func (m *memSeen) AddSeen(_ context.Context, user string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[user] = append(m.sets[user], ids...)
	return nil
}

type memBuckets map[string][]byte

func (m memBuckets) GetBucket(_ context.Context, key string) ([]byte, error) { return m[key], nil }
func (m memBuckets) PutBucket(_ context.Context, key string, data []byte) error {
	m[key] = data
	return nil
}

type countUsers int

func (c countUsers) CountUsers(context.Context) (int, error) { return int(c), nil }

var fixedNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func TestCycle_RemoteWinsLocalBackfills(t *testing.T) {
	remote := &fakeRepo{records: []models.RawRecord{
		{"orderId": "A1", "total": 0, "status": "Pending", "email": "ann@x.io"},
	}}
	local := &fakeRepo{records: []models.RawRecord{
		{"orderId": "A1", "total": 1500, "shippingAddress": "123 Main"},
	}}
	r := New(Deps{Remote: remote, Local: local, Now: func() time.Time { return fixedNow }})

	snap, err := r.Cycle(context.Background(), Request{UserEmail: "Ann@x.io"})
	require.NoError(t, err)
	require.Len(t, snap.Bookings, 1)
	b := snap.Bookings[0]
	assert.True(t, b.Total.Valid)
	assert.True(t, b.Total.Decimal.IsZero())
	assert.Equal(t, "123 Main", b.ShippingAddress)
	assert.Len(t, snap.UserActive, 1)
	assert.Len(t, snap.UserPending, 1)
	assert.Nil(t, snap.Calendar)
	assert.NotEmpty(t, snap.CycleID)

	assert.Equal(t, models.Scope{Kind: models.ScopeUser, UserEmail: "Ann@x.io"}, remote.scopes[0])
}

func TestCycle_RemoteDownFallsBackToLocal(t *testing.T) {
	remote := &fakeRepo{err: errors.New("connection refused")}
	local := &fakeRepo{records: []models.RawRecord{{"orderId": "L1", "status": "Approved"}}}
	r := New(Deps{Remote: remote, Local: local})

	snap, err := r.Cycle(context.Background(), Request{Admin: true})
	require.NoError(t, err)
	assert.Equal(t, []string{SourceRemote}, snap.Degraded)
	require.Len(t, snap.AdminAll, 1)
	assert.Equal(t, "L1", snap.AdminAll[0].OrderID)
	assert.Empty(t, snap.AdminPending)
}

func TestCycle_InFlightGuard(t *testing.T) {
	remote := &fakeRepo{block: make(chan struct{}), started: make(chan struct{})}
	started := remote.started
	r := New(Deps{Remote: remote, Local: &fakeRepo{}})

	errc := make(chan error, 1)
	go func() {
		_, err := r.Cycle(context.Background(), Request{Admin: true})
		errc <- err
	}()

	<-started
	assert.True(t, r.InFlight())
	_, err := r.Cycle(context.Background(), Request{Admin: true})
	assert.ErrorIs(t, err, ErrCycleInFlight)

	// an independent reconciler is not blocked
	_, err = New(Deps{Local: &fakeRepo{}}).Cycle(context.Background(), Request{})
	assert.NoError(t, err)

	close(remote.block)
	require.NoError(t, <-errc)
	assert.False(t, r.InFlight())

	_, err = r.Cycle(context.Background(), Request{Admin: true})
	assert.NoError(t, err)
}

func TestCycle_CancelledContext(t *testing.T) {
	remote := &fakeRepo{block: make(chan struct{})}
	r := New(Deps{Remote: remote, Local: &fakeRepo{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Cycle(ctx, Request{Admin: true})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, r.InFlight())
}

func TestCycle_AdminViews(t *testing.T) {
	local := &fakeRepo{records: []models.RawRecord{
		{"orderId": "A", "status": "Approved", "total": 1000, "createdAt": "2024-03-02T10:00:00Z",
			"scheduleDate": "2024-03-15", "payment": "Installment"},
		{"orderId": "B", "status": "Pending", "createdAt": "2024-03-05T10:00:00Z", "scheduleDate": "2024-03-15"},
		{"orderId": "C", "status": "Rejected", "createdAt": "2024-02-01T10:00:00Z", "scheduleDate": "2024-03-15"},
	}}
	r := New(Deps{Local: local, Users: countUsers(4), Now: func() time.Time { return fixedNow }})

	snap, err := r.Cycle(context.Background(), Request{Admin: true})
	require.NoError(t, err)

	require.NotNil(t, snap.Calendar)
	assert.Equal(t, "2024-03", snap.Calendar.Summary.Month)
	assert.Equal(t, 2, snap.Calendar.Summary.Total)
	assert.Equal(t, 1, snap.Calendar.Summary.Installment)

	require.NotNil(t, snap.Dashboard)
	assert.Len(t, snap.Dashboard.Monthly, dashboard.WindowMonths)
	assert.Equal(t, 4, snap.Dashboard.Stats.TotalUsers)
	assert.Equal(t, "1000", snap.Dashboard.Stats.TotalSales.String())

	require.Len(t, snap.AdminPending, 1)
	assert.Equal(t, "B", snap.AdminPending[0].OrderID)
	assert.Equal(t, []string{"B", "A", "C"}, ids(snap.AdminAll))
}

func TestCycle_NotifiesOnceAndPrunes(t *testing.T) {
	seen := &memSeen{sets: map[string][]string{}}
	buckets := memBuckets{
		notify.ActiveBucketKey("ann@x.io"): []byte(`[{"orderId":"R1","status":"Rejected","email":"ann@x.io"}]`),
	}
	remote := &fakeRepo{records: []models.RawRecord{
		{"orderId": "R1", "status": "Pending", "fulfillmentStatus": "Rejected", "email": "ann@x.io"},
		{"orderId": "R2", "status": "Rejected", "email": "bob@x.io"},
	}}
	r := New(Deps{Remote: remote, Local: &fakeRepo{}, Buckets: buckets, Notifier: notify.New(seen, nil)})

	snap, err := r.Cycle(context.Background(), Request{UserEmail: "ann@x.io"})
	require.NoError(t, err)
	require.Len(t, snap.NewlyRejected, 1)
	assert.Equal(t, "R1", snap.NewlyRejected[0].OrderID)
	assert.Equal(t, 1, snap.Pruned)
	assert.Empty(t, snap.UserActive)

	snap, err = r.Cycle(context.Background(), Request{UserEmail: "ann@x.io"})
	require.NoError(t, err)
	assert.Empty(t, snap.NewlyRejected)
	assert.Equal(t, 0, snap.Pruned)
}

func TestCycle_LatestSlotScopedToUser(t *testing.T) {
	buckets := memBuckets{"latest": []byte(`{"orderId":"#EC-9","email":"bob@x.io","status":"Pending"}`)}
	r := New(Deps{Local: &fakeRepo{}, Buckets: buckets, LatestKey: "latest"})

	snap, err := r.Cycle(context.Background(), Request{UserEmail: "ann@x.io"})
	require.NoError(t, err)
	assert.Empty(t, snap.Bookings)

	snap, err = r.Cycle(context.Background(), Request{UserEmail: "bob@x.io"})
	require.NoError(t, err)
	assert.Equal(t, []string{"#EC-9"}, ids(snap.Bookings))

	snap, err = r.Cycle(context.Background(), Request{Admin: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"#EC-9"}, ids(snap.AdminPending))
}

func TestCycle_SnapshotsAreIndependent(t *testing.T) {
	local := &fakeRepo{records: []models.RawRecord{{"orderId": "A", "status": "Pending"}}}
	r := New(Deps{Local: local})

	first, err := r.Cycle(context.Background(), Request{Admin: true})
	require.NoError(t, err)
	first.AdminAll[0].Status = "mutated"

	second, err := r.Cycle(context.Background(), Request{Admin: true})
	require.NoError(t, err)
	assert.Equal(t, "Pending", second.AdminAll[0].Status)
	assert.Equal(t, "Pending", first.Bookings[0].Status)
}

func TestPoll(t *testing.T) {
	r := New(Deps{Local: &fakeRepo{records: []models.RawRecord{{"orderId": "A"}}}})

	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := r.Poll(ctx, 5*time.Millisecond, Request{Admin: true}, func(s *Snapshot) {
		calls++
		require.Len(t, s.AdminAll, 1)
		if calls == 3 {
			cancel()
		}
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func ids(bs []models.Booking) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.OrderID
	}
	return out
}

var _ booking.Repository = (*fakeRepo)(nil)

func TestRegistry(t *testing.T) {
	g := NewRegistry(Deps{Local: &fakeRepo{}})
	a := g.For("ann@x.io")
	assert.Same(t, a, g.For("ann@x.io"))
	assert.NotSame(t, a, g.For(AdminKey))

	assert.Nil(t, a.Last())
	snap, err := a.Cycle(context.Background(), Request{UserEmail: "ann@x.io"})
	require.NoError(t, err)
	assert.Same(t, snap, a.Last())
}
