package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationStatus string

// ReservationActive is the only persisted state; deletion marks the end of a hold.
const ReservationActive ReservationStatus = "ACTIVE"

// Reservation is a soft hold on Quantity units of a SKU.
// Quantity never changes after creation; only HolderID is rewritten on transfer.
type Reservation struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	SkuID     string            `gorm:"type:varchar(64);not null;index" json:"sku_id"`
	Quantity  int               `gorm:"not null;check:chk_reservations_quantity,quantity > 0" json:"quantity"`
	HolderID  string            `gorm:"type:varchar(128);not null;index" json:"holder_id"`
	SessionID string            `gorm:"type:varchar(128);index" json:"session_id,omitempty"`
	Status    ReservationStatus `gorm:"type:varchar(16);not null;default:'ACTIVE'" json:"status"`
	ExpiresAt time.Time         `gorm:"not null;index" json:"expires_at"`
	BaseModel
}

func (Reservation) TableName() string {
	return "reservations"
}

// BeforeCreate fills the id for rows inserted without one.
func (r *Reservation) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// IsExpired reports whether the hold is dead at now, even if still stored.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

func (r *Reservation) Holder() Holder {
	return ParseHolder(r.HolderID)
}
