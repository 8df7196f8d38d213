package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-inventory-hold/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// base is millisecond aligned so every backend round-trips it exactly.
var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedSKU(t *testing.T, s Store, id string, stock int, active bool) {
	t.Helper()
	require.NoError(t, s.CreateSKU(context.Background(), &model.SKU{ID: id, Name: "Item " + id, Stock: stock, IsActive: active}))
}

func newHold(sku string, qty int, holder, session string, created time.Time, ttl time.Duration) *model.Reservation {
	h := &model.Reservation{
		ID:        uuid.New(),
		SkuID:     sku,
		Quantity:  qty,
		HolderID:  holder,
		SessionID: session,
		Status:    model.ReservationActive,
		ExpiresAt: created.Add(ttl),
	}
	h.CreatedAt = created
	h.UpdatedAt = created
	return h
}

func mustReserve(t *testing.T, s Store, h *model.Reservation) {
	t.Helper()
	_, err := s.Reserve(context.Background(), h)
	require.NoError(t, err)
}

func reservedOf(t *testing.T, s Store, id string) int {
	t.Helper()
	sku, err := s.FindSKU(context.Background(), id)
	require.NoError(t, err)
	return sku.ReservedStock
}

// runStoreSuite exercises the contract every backend must honour.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("CreateSKU_And_FindSKU", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 10, true)

		sku, err := s.FindSKU(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, 10, sku.Stock)
		assert.Equal(t, 0, sku.ReservedStock)
		assert.True(t, sku.IsActive)

		err = s.CreateSKU(ctx, &model.SKU{ID: "A", Stock: 1, IsActive: true})
		assert.ErrorIs(t, err, ErrSkuExists)

		_, err = s.FindSKU(ctx, "missing")
		assert.ErrorIs(t, err, ErrSkuNotFound)
	})

	t.Run("ListSKUs_SortedByID", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "B", 1, true)
		seedSKU(t, s, "A", 2, false)

		skus, err := s.ListSKUs(ctx)
		require.NoError(t, err)
		require.Len(t, skus, 2)
		assert.Equal(t, "A", skus[0].ID)
		assert.False(t, skus[0].IsActive)
		assert.Equal(t, "B", skus[1].ID)
	})

	t.Run("SetActive_And_Restock", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 5, true)

		require.NoError(t, s.SetActive(ctx, "A", false))
		sku, err := s.FindSKU(ctx, "A")
		require.NoError(t, err)
		assert.False(t, sku.IsActive)

		sku, err = s.Restock(ctx, "A", 7)
		require.NoError(t, err)
		assert.Equal(t, 12, sku.Stock)

		assert.ErrorIs(t, s.SetActive(ctx, "missing", true), ErrSkuNotFound)
		_, err = s.Restock(ctx, "missing", 1)
		assert.ErrorIs(t, err, ErrSkuNotFound)
		_, err = s.Restock(ctx, "A", 0)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("LedgerPrimitives", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 10, true)

		require.NoError(t, s.IncrementReserved(ctx, "A", 8))
		available, err := s.GetAvailable(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, 2, available)

		err = s.IncrementReserved(ctx, "A", 3)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		var short *InsufficientStockError
		require.True(t, errors.As(err, &short))
		assert.Equal(t, 2, short.Available)

		// stock may not drop below reserved
		assert.ErrorIs(t, s.DecrementStock(ctx, "A", 3), ErrInsufficientStock)
		require.NoError(t, s.DecrementStock(ctx, "A", 2))

		require.NoError(t, s.DecrementReserved(ctx, "A", 20))
		sku, err := s.FindSKU(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, 8, sku.Stock)
		assert.Equal(t, 0, sku.ReservedStock, "decrement clamps at zero")

		assert.ErrorIs(t, s.IncrementReserved(ctx, "missing", 1), ErrSkuNotFound)
		assert.ErrorIs(t, s.IncrementReserved(ctx, "A", 0), ErrInvalidQuantity)
		_, err = s.GetAvailable(ctx, "missing")
		assert.ErrorIs(t, err, ErrSkuNotFound)
	})

	t.Run("Reserve_Success", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 10, true)

		h := newHold("A", 4, model.PlaceholderHolderID, "sess-1", base, 15*time.Minute)
		available, err := s.Reserve(ctx, h)
		require.NoError(t, err)
		assert.Equal(t, 6, available)
		assert.Equal(t, 4, reservedOf(t, s, "A"))

		got, err := s.FindReservation(ctx, h.ID)
		require.NoError(t, err)
		assert.Equal(t, "A", got.SkuID)
		assert.Equal(t, 4, got.Quantity)
		assert.Equal(t, model.PlaceholderHolderID, got.HolderID)
		assert.Equal(t, "sess-1", got.SessionID)
		assert.True(t, got.ExpiresAt.Equal(base.Add(15*time.Minute)))
	})

	t.Run("Reserve_Failures", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 3, true)
		seedSKU(t, s, "OFF", 3, false)

		available, err := s.Reserve(ctx, newHold("A", 4, "o-1", "", base, time.Minute))
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Equal(t, 3, available)

		_, err = s.Reserve(ctx, newHold("missing", 1, "o-1", "", base, time.Minute))
		assert.ErrorIs(t, err, ErrSkuNotFound)

		_, err = s.Reserve(ctx, newHold("OFF", 1, "o-1", "", base, time.Minute))
		assert.ErrorIs(t, err, ErrSkuInactive)

		assert.Equal(t, 0, reservedOf(t, s, "A"))
		holds, err := s.FindByHolder(ctx, "o-1")
		require.NoError(t, err)
		assert.Empty(t, holds)
	})

	t.Run("Release_Is_NoOp_Second_Time", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 10, true)
		h := newHold("A", 3, "o-1", "", base, time.Minute)
		mustReserve(t, s, h)

		released, err := s.Release(ctx, h.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, released.Quantity)
		assert.Equal(t, 0, reservedOf(t, s, "A"))

		_, err = s.Release(ctx, h.ID)
		assert.ErrorIs(t, err, ErrReservationNotFound)
		_, err = s.FindReservation(ctx, h.ID)
		assert.ErrorIs(t, err, ErrReservationNotFound)
	})

	t.Run("Convert_TakesUnitsOutOfStock", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 10, true)
		h := newHold("A", 4, "o-1", "", base, time.Minute)
		mustReserve(t, s, h)

		converted, err := s.Convert(ctx, h.ID)
		require.NoError(t, err)
		assert.Equal(t, h.ID, converted.ID)

		sku, err := s.FindSKU(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, 6, sku.Stock)
		assert.Equal(t, 0, sku.ReservedStock)

		_, err = s.Convert(ctx, h.ID)
		assert.ErrorIs(t, err, ErrReservationNotFound)
	})

	t.Run("FindByHolder_OldestFirst", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 10, true)
		seedSKU(t, s, "B", 10, true)
		second := newHold("B", 1, "o-1", "", base.Add(time.Second), time.Minute)
		first := newHold("A", 2, "o-1", "", base, time.Minute)
		mustReserve(t, s, second)
		mustReserve(t, s, first)
		mustReserve(t, s, newHold("A", 1, "o-2", "", base, time.Minute))

		holds, err := s.FindByHolder(ctx, "o-1")
		require.NoError(t, err)
		require.Len(t, holds, 2)
		assert.Equal(t, first.ID, holds[0].ID)
		assert.Equal(t, second.ID, holds[1].ID)
	})

	t.Run("FindExpired_And_CountLive", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 10, true)
		expired := newHold("A", 1, "o-1", "", base, time.Minute)
		live := newHold("A", 2, "o-1", "", base, time.Hour)
		mustReserve(t, s, expired)
		mustReserve(t, s, live)

		now := base.Add(2 * time.Minute)
		got, err := s.FindExpired(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, expired.ID, got[0].ID)

		n, err := s.CountLive(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("TransferHolds_RebindsOldestFirst", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 10, true)
		older := newHold("A", 2, model.PlaceholderHolderID, "s1", base, time.Hour)
		newer := newHold("A", 2, model.PlaceholderHolderID, "s1", base.Add(time.Second), time.Hour)
		mustReserve(t, s, newer)
		mustReserve(t, s, older)

		moved, err := s.TransferHolds(ctx, HoldTransfer{
			SkuID: "A", FromHolderID: model.PlaceholderHolderID, ToHolderID: "order-1",
			SessionID: "s1", Quantity: 2, Now: base.Add(time.Minute),
		})
		require.NoError(t, err)
		require.Len(t, moved, 1)
		assert.Equal(t, older.ID, moved[0].ID)
		assert.Equal(t, "order-1", moved[0].HolderID)
		assert.Equal(t, 4, reservedOf(t, s, "A"), "transfer leaves the ledger alone")

		placeholder, err := s.FindByHolder(ctx, model.PlaceholderHolderID)
		require.NoError(t, err)
		require.Len(t, placeholder, 1)
		assert.Equal(t, newer.ID, placeholder[0].ID)
	})

	t.Run("TransferHolds_SplitsOvershootingHold", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 10, true)
		h := newHold("A", 5, model.PlaceholderHolderID, "s1", base, time.Hour)
		mustReserve(t, s, h)

		moved, err := s.TransferHolds(ctx, HoldTransfer{
			SkuID: "A", FromHolderID: model.PlaceholderHolderID, ToHolderID: "order-1",
			Quantity: 3, Now: base.Add(time.Minute),
		})
		require.NoError(t, err)
		require.Len(t, moved, 1)
		assert.Equal(t, 3, moved[0].Quantity)
		assert.NotEqual(t, h.ID, moved[0].ID)
		assert.True(t, moved[0].ExpiresAt.Equal(h.ExpiresAt))
		assert.Equal(t, "s1", moved[0].SessionID)

		rest, err := s.FindByHolder(ctx, model.PlaceholderHolderID)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, 2, rest[0].Quantity)
		assert.True(t, rest[0].ExpiresAt.Equal(h.ExpiresAt))

		_, err = s.FindReservation(ctx, h.ID)
		assert.ErrorIs(t, err, ErrReservationNotFound)
		assert.Equal(t, 5, reservedOf(t, s, "A"))
	})

	t.Run("TransferHolds_NotCovered", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 10, true)
		mustReserve(t, s, newHold("A", 2, model.PlaceholderHolderID, "s1", base, time.Hour))
		mustReserve(t, s, newHold("A", 2, model.PlaceholderHolderID, "s2", base, time.Hour))
		mustReserve(t, s, newHold("A", 5, model.PlaceholderHolderID, "s1", base.Add(-time.Hour), time.Minute))

		req := HoldTransfer{
			SkuID: "A", FromHolderID: model.PlaceholderHolderID, ToHolderID: "order-1",
			SessionID: "s1", Quantity: 3, Now: base,
		}
		_, err := s.TransferHolds(ctx, req)
		assert.ErrorIs(t, err, ErrHoldsNotCovered, "other sessions and expired holds do not count")
		var short *HoldsNotCoveredError
		require.ErrorAs(t, err, &short)
		assert.Equal(t, 2, short.Covered)
		assert.Equal(t, 3, short.Requested)

		orderHolds, err := s.FindByHolder(ctx, "order-1")
		require.NoError(t, err)
		assert.Empty(t, orderHolds)
	})

	t.Run("ReconcileSKU_EvictsExpiredAndHealsDrift", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 10, true)
		mustReserve(t, s, newHold("A", 3, "o-1", "", base, time.Minute))
		mustReserve(t, s, newHold("A", 2, "o-2", "", base, time.Hour))
		// drift: counter says 7 while live holds sum to 2
		require.NoError(t, s.IncrementReserved(ctx, "A", 2))

		rec, err := s.ReconcileSKU(ctx, "A", base.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 7, rec.Stored)
		assert.Equal(t, 2, rec.Actual)
		assert.True(t, rec.Drifted())
		require.Len(t, rec.Evicted, 1)
		assert.Equal(t, 3, rec.Evicted[0].Quantity)
		assert.Equal(t, "o-1", rec.Evicted[0].HolderID)
		assert.Equal(t, 2, reservedOf(t, s, "A"))

		rec, err = s.ReconcileSKU(ctx, "A", base.Add(2*time.Minute))
		require.NoError(t, err)
		assert.False(t, rec.Drifted())
		assert.Empty(t, rec.Evicted)

		_, err = s.ReconcileSKU(ctx, "missing", base)
		assert.ErrorIs(t, err, ErrSkuNotFound)
	})

	t.Run("ReconcileCandidates", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 10, true)
		seedSKU(t, s, "B", 10, true)
		seedSKU(t, s, "C", 10, true)
		mustReserve(t, s, newHold("A", 1, "o-1", "", base, time.Hour))
		require.NoError(t, s.IncrementReserved(ctx, "C", 1))

		ids, err := s.ReconcileCandidates(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "C"}, ids)
	})

	t.Run("Reserve_Concurrent_NeverOversells", func(t *testing.T) {
		s := newStore(t)
		seedSKU(t, s, "A", 10, true)

		const shoppers = 25
		var wg sync.WaitGroup
		var ok atomic.Int32
		for i := 0; i < shoppers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				h := newHold("A", 1, fmt.Sprintf("o-%d", i), "", base, time.Hour)
				if _, err := s.Reserve(ctx, h); err == nil {
					ok.Add(1)
				} else {
					assert.ErrorIs(t, err, ErrInsufficientStock)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(10), ok.Load())
		sku, err := s.FindSKU(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, 10, sku.ReservedStock)
		assert.Equal(t, 0, sku.Available())
	})
}
