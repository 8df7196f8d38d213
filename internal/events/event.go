package events

import (
	"context"
	"time"
)

type Type string

const (
	HoldCreated      Type = "hold.created"
	HoldReleased     Type = "hold.released"
	HoldExpired      Type = "hold.expired"
	HoldConverted    Type = "hold.converted"
	HoldTransferred  Type = "hold.transferred"
	CounterCorrected Type = "sku.counter_corrected"
	SKUChanged       Type = "sku.changed"
)

// Event describes one change to holds or to the ledger of a SKU.
type Event struct {
	Type          Type      `json:"type"`
	SkuID         string    `json:"sku_id"`
	ReservationID string    `json:"reservation_id,omitempty"`
	HolderID      string    `json:"holder_id,omitempty"`
	Quantity      int       `json:"quantity,omitempty"`
	// Reason says why a hold went away: release, holder, rollback or expiry.
	Reason     string    `json:"reason,omitempty"`
	Stored     *int      `json:"stored_reserved,omitempty"`
	Actual     *int      `json:"actual_reserved,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events on a best effort basis. Publish must not block
// the caller on a slow consumer and never reports failure.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Multi fans an event out to every publisher in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, e)
		}
	}
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
