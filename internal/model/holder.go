package model

import (
	"errors"
	"fmt"
)

// PlaceholderHolderID is the stored holder id shared by every hold that is not
// yet bound to a confirmed order.
const PlaceholderHolderID = "PLACEHOLDER"

var ErrInvalidHolder = errors.New("invalid holder")

type HolderKind uint8

const (
	HolderPlaceholder HolderKind = iota
	HolderOrder
)

// Holder owns reservations: either the shared placeholder or a confirmed order.
// The zero value is the placeholder.
type Holder struct {
	kind    HolderKind
	orderID string
}

func Placeholder() Holder {
	return Holder{kind: HolderPlaceholder}
}

func Order(orderID string) Holder {
	return Holder{kind: HolderOrder, orderID: orderID}
}

// ParseHolder maps a stored holder id back to its variant.
func ParseHolder(id string) Holder {
	if id == "" || id == PlaceholderHolderID {
		return Placeholder()
	}
	return Order(id)
}

func (h Holder) Kind() HolderKind {
	return h.kind
}

func (h Holder) IsPlaceholder() bool {
	return h.kind == HolderPlaceholder
}

// OrderID is empty for the placeholder.
func (h Holder) OrderID() string {
	return h.orderID
}

// ID is the value persisted in Reservation.HolderID.
func (h Holder) ID() string {
	if h.kind == HolderPlaceholder {
		return PlaceholderHolderID
	}
	return h.orderID
}

func (h Holder) String() string {
	if h.kind == HolderPlaceholder {
		return "placeholder"
	}
	return "order:" + h.orderID
}

func (h Holder) Validate() error {
	if h.kind == HolderPlaceholder {
		return nil
	}
	if h.orderID == "" {
		return fmt.Errorf("%w: empty order id", ErrInvalidHolder)
	}
	if h.orderID == PlaceholderHolderID {
		return fmt.Errorf("%w: order id %q is reserved", ErrInvalidHolder, h.orderID)
	}
	if len(h.orderID) > 128 {
		return fmt.Errorf("%w: order id longer than 128 characters", ErrInvalidHolder)
	}
	return nil
}
