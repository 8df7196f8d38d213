package service

import (
	"time"

	"go-inventory-hold/internal/model"
)

type ReserveItem struct {
	SkuID    string `json:"sku_id" validate:"required,max=64"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type reserveBatch struct {
	Items []ReserveItem `validate:"required,min=1,dive"`
}

type ReserveOptions struct {
	// Holder defaults to the placeholder.
	Holder    model.Holder
	SessionID string
	// TTL overrides the configured hold TTL when positive.
	TTL time.Duration
}

type ResultCode string

const (
	CodeReserved          ResultCode = "RESERVED"
	CodeSkuNotFound       ResultCode = "SKU_NOT_FOUND"
	CodeSkuInactive       ResultCode = "SKU_INACTIVE"
	CodeInsufficientStock ResultCode = "INSUFFICIENT_STOCK"
	CodeStorageFailure    ResultCode = "STORAGE_FAILURE"
	// CodeRolledBack marks an item that was held, then released because a
	// later item of the same batch failed.
	CodeRolledBack ResultCode = "ROLLED_BACK"
	// CodeRollbackFailed marks an item whose hold could not be released after
	// the batch failed. Its reservation id stays set; the hold lives until it
	// is released or expires.
	CodeRollbackFailed ResultCode = "ROLLBACK_FAILED"
	// CodeSkipped marks an item never attempted because an earlier one failed.
	CodeSkipped ResultCode = "SKIPPED"
)

// ItemResult reports one item of a reserve batch.
type ItemResult struct {
	SkuID          string     `json:"sku_id"`
	Quantity       int        `json:"quantity"`
	Success        bool       `json:"success"`
	Code           ResultCode `json:"code"`
	ReservationID  string     `json:"reservation_id,omitempty"`
	AvailableStock int        `json:"available_stock"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// BatchSucceeded reports whether every item of a batch holds stock.
func BatchSucceeded(results []ItemResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}

// FailedItem returns the item that caused a batch to fail, if any.
func FailedItem(results []ItemResult) (ItemResult, bool) {
	for _, r := range results {
		if !r.Success && r.Code != CodeRolledBack && r.Code != CodeRollbackFailed && r.Code != CodeSkipped {
			return r, true
		}
	}
	return ItemResult{}, false
}

type TransferRequest struct {
	// From defaults to the placeholder.
	From      model.Holder
	OrderID   string
	SessionID string
	Items     []ReserveItem
}

type TransferMode string

const (
	// TransferReused means existing holds were rebound to the order.
	TransferReused TransferMode = "REUSED"
	// TransferReserved means the item fell back to a fresh reservation.
	TransferReserved TransferMode = "RESERVED"
	// TransferPartial means the source's holds were rebound and only the
	// shortfall was reserved afresh.
	TransferPartial TransferMode = "PARTIAL"
)

type TransferResult struct {
	SkuID          string       `json:"sku_id"`
	Quantity       int          `json:"quantity"`
	Mode           TransferMode `json:"mode"`
	Success        bool         `json:"success"`
	ReservationIDs []string     `json:"reservation_ids,omitempty"`
	Reserve        *ItemResult  `json:"reserve,omitempty"`
}

type Shortage struct {
	SkuID     string `json:"sku_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type AvailabilityReport struct {
	Available bool       `json:"available"`
	Shortages []Shortage `json:"shortages"`
}
