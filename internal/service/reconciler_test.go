package service

import (
	"context"
	"testing"
	"time"

	"go-inventory-hold/internal/events"
	"go-inventory-hold/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupExpired_EvictsOnlyExpired(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.seed(t, "sku-1", 10)

	reserveOne(t, f, "sku-1", 2, ReserveOptions{TTL: time.Minute})
	reserveOne(t, f, "sku-1", 3, ReserveOptions{TTL: time.Hour})

	removed, err := f.reconciler.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	f.clock.Advance(2 * time.Minute)
	removed, err = f.reconciler.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 3, f.sku(t, "sku-1").ReservedStock)

	expired := f.events.ofType(events.HoldExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, 2, expired[0].Quantity)
	assert.Equal(t, "expiry", expired[0].Reason)
}

func TestCleanupExpired_HealsDrift(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.seed(t, "sku-1", 10)
	f.seed(t, "sku-2", 10)

	reserveOne(t, f, "sku-1", 4, ReserveOptions{Holder: model.Order("order-1")})
	// Counter bumped without a backing hold.
	require.NoError(t, f.store.IncrementReserved(ctx, "sku-1", 3))
	require.NoError(t, f.store.IncrementReserved(ctx, "sku-2", 2))
	assert.Equal(t, 7, f.sku(t, "sku-1").ReservedStock)

	removed, err := f.reconciler.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	assert.Equal(t, 4, f.sku(t, "sku-1").ReservedStock)
	assert.Equal(t, 0, f.sku(t, "sku-2").ReservedStock)

	corrected := f.events.ofType(events.CounterCorrected)
	require.Len(t, corrected, 2)
	assert.Equal(t, "sku-1", corrected[0].SkuID)
	assert.Equal(t, 7, *corrected[0].Stored)
	assert.Equal(t, 4, *corrected[0].Actual)
}

func TestCleanupExpired_CounterMatchesLiveHolds(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.seed(t, "sku-1", 20)

	for i := 0; i < 5; i++ {
		reserveOne(t, f, "sku-1", i+1, ReserveOptions{TTL: time.Duration(i+1) * time.Minute})
	}
	f.clock.Advance(3*time.Minute + time.Second)

	removed, err := f.reconciler.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	live, err := f.store.CountLive(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 2, live)
	assert.Equal(t, 4+5, f.sku(t, "sku-1").ReservedStock)
}

func TestCleanupExpired_ConcurrentCallerReturnsImmediately(t *testing.T) {
	f := setupFixture(t)
	f.reconciler.running.Lock()
	defer f.reconciler.running.Unlock()

	removed, err := f.reconciler.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestRefresh_ReconcilesRequestedSKUsDuringPass(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.seed(t, "sku-1", 5)
	f.seed(t, "sku-2", 5)
	reserveOne(t, f, "sku-1", 2, ReserveOptions{TTL: time.Minute})
	reserveOne(t, f, "sku-2", 3, ReserveOptions{TTL: time.Minute})
	f.clock.Advance(2 * time.Minute)

	f.reconciler.running.Lock()
	removed, err := f.reconciler.Refresh(ctx, []string{"sku-1", "missing"})
	f.reconciler.running.Unlock()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, f.sku(t, "sku-1").ReservedStock)
	// Left for the running pass.
	assert.Equal(t, 3, f.sku(t, "sku-2").ReservedStock)

	removed, err = f.reconciler.Refresh(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, f.sku(t, "sku-2").ReservedStock)
}

func TestReconciler_RunStopsOnCancel(t *testing.T) {
	f := setupFixture(t)
	f.seed(t, "sku-1", 5)
	reserveOne(t, f, "sku-1", 5, ReserveOptions{TTL: time.Minute})
	f.clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.reconciler.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		sku, err := f.store.FindSKU(context.Background(), "sku-1")
		return err == nil && sku.ReservedStock == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
