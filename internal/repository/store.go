package repository

import (
	"context"
	"time"

	"go-inventory-hold/internal/model"

	"github.com/google/uuid"
)

// StockLedger owns the physical and reserved counters of every SKU.
// Every method is a single atomic read-modify-write on one SKU.
type StockLedger interface {
	CreateSKU(ctx context.Context, sku *model.SKU) error
	FindSKU(ctx context.Context, id string) (*model.SKU, error)
	ListSKUs(ctx context.Context) ([]model.SKU, error)
	SetActive(ctx context.Context, id string, active bool) error
	Restock(ctx context.Context, id string, delta int) (*model.SKU, error)

	// IncrementReserved fails with ErrInsufficientStock when reserved would exceed stock.
	IncrementReserved(ctx context.Context, id string, delta int) error
	// DecrementReserved clamps at zero.
	DecrementReserved(ctx context.Context, id string, delta int) error
	// DecrementStock fails with ErrInsufficientStock when stock would drop below reserved.
	DecrementStock(ctx context.Context, id string, delta int) error
	GetAvailable(ctx context.Context, id string) (int, error)
}

type ReservationStore interface {
	FindReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	// FindByHolder returns the holder's reservations oldest first.
	FindByHolder(ctx context.Context, holderID string) ([]model.Reservation, error)
	// FindExpired returns up to limit reservations with expires_at < now.
	FindExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)
	CountLive(ctx context.Context, now time.Time) (int64, error)
}

// HoldTransfer moves Quantity units of live holds on one SKU between holders.
type HoldTransfer struct {
	SkuID        string
	FromHolderID string
	ToHolderID   string
	// SessionID restricts the candidate holds when non-empty.
	SessionID string
	Quantity  int
	Now       time.Time
}

// Reconciliation reports one drift pass over a SKU.
type Reconciliation struct {
	SkuID   string
	Evicted []model.Reservation
	// Stored is reserved_stock before the pass, Actual the value it holds after.
	Stored int
	Actual int
}

func (r Reconciliation) Drifted() bool {
	return r.Stored != r.Actual
}

// Store is the storage contract of the reservation engine. The methods below
// the embedded interfaces are the atomic units the service composes: each runs
// under the lock of exactly one SKU and never spans two.
type Store interface {
	StockLedger
	ReservationStore

	// Reserve checks existence, active flag and availability, then inserts the
	// hold and increments reserved_stock. It returns the available quantity
	// left after the hold.
	Reserve(ctx context.Context, hold *model.Reservation) (int, error)
	// Release deletes the hold and decrements reserved_stock.
	Release(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	// Convert deletes the hold and decrements both stock and reserved_stock.
	Convert(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	// TransferHolds rebinds live holds oldest first, splitting the last one
	// when it overshoots. The ledger is not touched. It returns the holds now
	// owned by the target holder.
	TransferHolds(ctx context.Context, req HoldTransfer) ([]model.Reservation, error)
	// ReconcileSKU evicts expired holds of one SKU and rewrites reserved_stock
	// to the sum of the live holds.
	ReconcileSKU(ctx context.Context, skuID string, now time.Time) (*Reconciliation, error)
	// ReconcileCandidates lists SKUs with reserved_stock > 0 or with any hold.
	ReconcileCandidates(ctx context.Context) ([]string, error)

	Close() error
}
