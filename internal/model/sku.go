package model

// SKU is the stock ledger row for one purchasable unit.
// ReservedStock is a cache of the live reservations and is only written by the
// reservation engine, never by the catalog.
type SKU struct {
	ID            string `gorm:"type:varchar(64);primaryKey" json:"id" validate:"required,max=64"`
	Name          string `gorm:"type:varchar(255)" json:"name"`
	Stock         int    `gorm:"not null;default:0;check:chk_skus_stock,stock >= 0" json:"stock" validate:"gte=0"`
	ReservedStock int    `gorm:"not null;default:0;check:chk_skus_reserved,reserved_stock >= 0 AND reserved_stock <= stock" json:"reserved_stock"`
	IsActive      bool   `gorm:"not null" json:"is_active"`
	BaseModel

	Reservations []Reservation `gorm:"foreignKey:SkuID;constraint:OnDelete:CASCADE" json:"-"`
}

func (SKU) TableName() string {
	return "skus"
}

// Available is the only quantity ever offered to shoppers.
func (s *SKU) Available() int {
	return s.Stock - s.ReservedStock
}
