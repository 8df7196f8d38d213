package repository

import (
	"errors"
	"fmt"
)

var (
	ErrSkuNotFound         = errors.New("sku not found")
	ErrSkuExists           = errors.New("sku already exists")
	ErrSkuInactive         = errors.New("sku is inactive")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	// ErrHoldsNotCovered is returned by TransferHolds when the source holder's
	// live holds for the SKU sum to less than the requested quantity.
	ErrHoldsNotCovered = errors.New("holds do not cover requested quantity")
)

// InsufficientStockError carries the shortfall of a failed reservation.
// errors.Is(err, ErrInsufficientStock) holds for it.
type InsufficientStockError struct {
	SkuID     string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for sku %s: requested %d, available %d", e.SkuID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// HoldsNotCoveredError reports how much of a transfer the source holder's
// live holds do cover. errors.Is(err, ErrHoldsNotCovered) holds for it.
type HoldsNotCoveredError struct {
	SkuID     string
	Requested int
	Covered   int
}

func (e *HoldsNotCoveredError) Error() string {
	return fmt.Sprintf("holds for sku %s cover %d of %d", e.SkuID, e.Covered, e.Requested)
}

func (e *HoldsNotCoveredError) Is(target error) bool {
	return target == ErrHoldsNotCovered
}
