package model

import (
	"time"
)

// BaseModel holds the audit timestamps shared by the ledger tables.
// Reservations are hard-deleted, so there is no soft delete column here.
type BaseModel struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
