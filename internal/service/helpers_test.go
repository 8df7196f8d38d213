package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-inventory-hold/internal/events"
	"go-inventory-hold/internal/model"
	"go-inventory-hold/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) ofType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc        ReservationService
	store      repository.Store
	reconciler *Reconciler
	clock      *fakeClock
	events     *recordingPublisher
}

func setupFixture(t *testing.T) *fixture {
	return setupFixtureWithStore(t, repository.NewMemoryStore())
}

func setupFixtureWithStore(t *testing.T, store repository.Store) *fixture {
	t.Helper()
	clock := newFakeClock()
	pub := &recordingPublisher{}
	log := zerolog.Nop()
	reconciler := NewReconciler(store, pub, log, clock.Now)
	svc := NewReservationService(store, reconciler, pub, log, ReservationConfig{
		HoldTTL: 15 * time.Minute,
		Now:     clock.Now,
	})
	t.Cleanup(func() { store.Close() })
	return &fixture{svc: svc, store: store, reconciler: reconciler, clock: clock, events: pub}
}

func (f *fixture) seed(t *testing.T, id string, stock int) {
	t.Helper()
	require.NoError(t, f.store.CreateSKU(context.Background(), &model.SKU{ID: id, Name: id, Stock: stock, IsActive: true}))
}

func (f *fixture) sku(t *testing.T, id string) *model.SKU {
	t.Helper()
	sku, err := f.store.FindSKU(context.Background(), id)
	require.NoError(t, err)
	return sku
}

var errConnectionReset = errors.New("connection reset by peer")

// flakyStore fails Reserve for one SKU and optionally Release, on top of a
// working store.
type flakyStore struct {
	repository.Store
	failReserveSKU string
	failRelease    bool
}

func (s *flakyStore) Reserve(ctx context.Context, hold *model.Reservation) (int, error) {
	if hold.SkuID == s.failReserveSKU {
		return 0, errConnectionReset
	}
	return s.Store.Reserve(ctx, hold)
}

func (s *flakyStore) Release(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	if s.failRelease {
		return nil, errConnectionReset
	}
	return s.Store.Release(ctx, id)
}

// stallingStore parks the first FindExpired call until release is closed, so
// a scheduled pass can be held in progress.
type stallingStore struct {
	repository.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStallingStore() *stallingStore {
	return &stallingStore{
		Store:   repository.NewMemoryStore(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *stallingStore) FindExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.Store.FindExpired(ctx, now, limit)
}
