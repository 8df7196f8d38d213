package repository

import (
	"context"
	"errors"
	"time"

	"go-inventory-hold/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormStore struct {
	db *gorm.DB
}

// NewGormStore returns a Store backed by Postgres. Every atomic unit runs in
// one transaction that starts by locking the SKU row, so the lock order is
// always SKU first, reservations second.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db}
}

// AutoMigrate creates the ledger tables and their constraints.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.SKU{}, &model.Reservation{})
}

func lockSKU(tx *gorm.DB, id string) (*model.SKU, error) {
	var sku model.SKU
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sku, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSkuNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sku, nil
}

func (r *gormStore) CreateSKU(ctx context.Context, sku *model.SKU) error {
	sku.ReservedStock = 0
	err := r.db.WithContext(ctx).Create(sku).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrSkuExists
	}
	return err
}

func (r *gormStore) FindSKU(ctx context.Context, id string) (*model.SKU, error) {
	var sku model.SKU
	err := r.db.WithContext(ctx).First(&sku, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSkuNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sku, nil
}

func (r *gormStore) ListSKUs(ctx context.Context) ([]model.SKU, error) {
	var skus []model.SKU
	err := r.db.WithContext(ctx).Order("id").Find(&skus).Error
	return skus, err
}

func (r *gormStore) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(&model.SKU{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSkuNotFound
	}
	return nil
}

func (r *gormStore) Restock(ctx context.Context, id string, delta int) (*model.SKU, error) {
	if delta <= 0 {
		return nil, ErrInvalidQuantity
	}
	var sku model.SKU
	res := r.db.WithContext(ctx).Model(&sku).Clauses(clause.Returning{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrSkuNotFound
	}
	return &sku, nil
}

// IncrementReserved guards the invariant in the WHERE clause so the check and
// the write are one statement.
func (r *gormStore) IncrementReserved(ctx context.Context, id string, delta int) error {
	if delta <= 0 {
		return ErrInvalidQuantity
	}
	res := r.db.WithContext(ctx).Model(&model.SKU{}).
		Where("id = ? AND reserved_stock + ? <= stock", id, delta).
		Update("reserved_stock", gorm.Expr("reserved_stock + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.shortfall(ctx, id, delta)
	}
	return nil
}

func (r *gormStore) DecrementReserved(ctx context.Context, id string, delta int) error {
	if delta <= 0 {
		return ErrInvalidQuantity
	}
	res := r.db.WithContext(ctx).Model(&model.SKU{}).
		Where("id = ?", id).
		Update("reserved_stock", gorm.Expr("GREATEST(reserved_stock - ?, 0)", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSkuNotFound
	}
	return nil
}

func (r *gormStore) DecrementStock(ctx context.Context, id string, delta int) error {
	if delta <= 0 {
		return ErrInvalidQuantity
	}
	res := r.db.WithContext(ctx).Model(&model.SKU{}).
		Where("id = ? AND stock - ? >= reserved_stock", id, delta).
		Update("stock", gorm.Expr("stock - ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.shortfall(ctx, id, delta)
	}
	return nil
}

func (r *gormStore) shortfall(ctx context.Context, id string, delta int) error {
	sku, err := r.FindSKU(ctx, id)
	if err != nil {
		return err
	}
	return &InsufficientStockError{SkuID: id, Requested: delta, Available: sku.Available()}
}

func (r *gormStore) GetAvailable(ctx context.Context, id string) (int, error) {
	var available []int
	err := r.db.WithContext(ctx).Model(&model.SKU{}).
		Where("id = ?", id).
		Pluck("stock - reserved_stock", &available).Error
	if err != nil {
		return 0, err
	}
	if len(available) == 0 {
		return 0, ErrSkuNotFound
	}
	return available[0], nil
}

func (r *gormStore) FindReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	var hold model.Reservation
	err := r.db.WithContext(ctx).First(&hold, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *gormStore) FindByHolder(ctx context.Context, holderID string) ([]model.Reservation, error) {
	var holds []model.Reservation
	err := r.db.WithContext(ctx).
		Where("holder_id = ?", holderID).
		Order("created_at, id").
		Find(&holds).Error
	return holds, err
}

func (r *gormStore) FindExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	var holds []model.Reservation
	q := r.db.WithContext(ctx).Where("expires_at < ?", now).Order("expires_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&holds).Error
	return holds, err
}

func (r *gormStore) CountLive(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Reservation{}).Where("expires_at >= ?", now).Count(&n).Error
	return n, err
}

func (r *gormStore) Reserve(ctx context.Context, hold *model.Reservation) (int, error) {
	if hold.Quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	var available int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sku, err := lockSKU(tx, hold.SkuID)
		if err != nil {
			return err
		}
		if !sku.IsActive {
			return ErrSkuInactive
		}
		available = sku.Available()
		if available < hold.Quantity {
			return &InsufficientStockError{SkuID: sku.ID, Requested: hold.Quantity, Available: available}
		}

		if hold.Status == "" {
			hold.Status = model.ReservationActive
		}
		if err := tx.Create(hold).Error; err != nil {
			return err
		}
		if err := tx.Model(sku).Update("reserved_stock", gorm.Expr("reserved_stock + ?", hold.Quantity)).Error; err != nil {
			return err
		}
		available -= hold.Quantity
		return nil
	})
	return available, err
}

func (r *gormStore) Release(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return r.remove(ctx, id, false)
}

func (r *gormStore) Convert(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return r.remove(ctx, id, true)
}

// remove reads the hold once to learn its SKU, locks the SKU, then deletes the
// hold. A concurrent remover that got there first leaves RowsAffected at 0.
func (r *gormStore) remove(ctx context.Context, id uuid.UUID, sold bool) (*model.Reservation, error) {
	hold, err := r.FindReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sku, err := lockSKU(tx, hold.SkuID)
		if err != nil {
			return err
		}
		res := tx.Clauses(clause.Returning{}).Where("id = ?", id).Delete(hold)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrReservationNotFound
		}

		updates := map[string]interface{}{
			"reserved_stock": gorm.Expr("GREATEST(reserved_stock - ?, 0)", hold.Quantity),
		}
		if sold {
			updates["stock"] = gorm.Expr("GREATEST(stock - ?, 0)", hold.Quantity)
		}
		return tx.Model(sku).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

func (r *gormStore) TransferHolds(ctx context.Context, req HoldTransfer) ([]model.Reservation, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	var moved []model.Reservation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockSKU(tx, req.SkuID); err != nil {
			return err
		}

		q := tx.Where("sku_id = ? AND holder_id = ? AND expires_at >= ?", req.SkuID, req.FromHolderID, req.Now)
		if req.SessionID != "" {
			q = q.Where("session_id = ?", req.SessionID)
		}
		var candidates []model.Reservation
		if err := q.Order("created_at, id").Find(&candidates).Error; err != nil {
			return err
		}
		total := 0
		for _, c := range candidates {
			total += c.Quantity
		}
		if total < req.Quantity {
			return &HoldsNotCoveredError{SkuID: req.SkuID, Requested: req.Quantity, Covered: total}
		}

		remaining := req.Quantity
		for _, c := range candidates {
			if remaining == 0 {
				break
			}
			if c.Quantity <= remaining {
				err := tx.Model(&model.Reservation{}).Where("id = ?", c.ID).
					Updates(map[string]interface{}{"holder_id": req.ToHolderID, "updated_at": req.Now}).Error
				if err != nil {
					return err
				}
				c.HolderID = req.ToHolderID
				c.UpdatedAt = req.Now
				moved = append(moved, c)
				remaining -= c.Quantity
				continue
			}

			orderPart, rest := splitHold(c, remaining, req)
			if err := tx.Delete(&model.Reservation{}, "id = ?", c.ID).Error; err != nil {
				return err
			}
			if err := tx.Create([]*model.Reservation{&orderPart, &rest}).Error; err != nil {
				return err
			}
			moved = append(moved, orderPart)
			remaining = 0
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func (r *gormStore) ReconcileSKU(ctx context.Context, skuID string, now time.Time) (*Reconciliation, error) {
	var rec *Reconciliation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sku, err := lockSKU(tx, skuID)
		if err != nil {
			return err
		}
		rec = &Reconciliation{SkuID: skuID, Stored: sku.ReservedStock}

		if err := tx.Clauses(clause.Returning{}).
			Where("sku_id = ? AND expires_at < ?", skuID, now).
			Delete(&rec.Evicted).Error; err != nil {
			return err
		}

		var live int
		if err := tx.Model(&model.Reservation{}).
			Where("sku_id = ?", skuID).
			Select("COALESCE(SUM(quantity), 0)").
			Scan(&live).Error; err != nil {
			return err
		}

		rec.Actual = min(live, sku.Stock)
		if rec.Actual == rec.Stored {
			return nil
		}
		return tx.Model(sku).Update("reserved_stock", rec.Actual).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *gormStore) ReconcileCandidates(ctx context.Context) ([]string, error) {
	var reserved, held []string
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.SKU{}).Where("reserved_stock > 0").Pluck("id", &reserved).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Reservation{}).Distinct("sku_id").Pluck("sku_id", &held).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(reserved)+len(held))
	for _, id := range reserved {
		seen[id] = struct{}{}
	}
	for _, id := range held {
		seen[id] = struct{}{}
	}
	return sortedKeys(seen), nil
}

func (r *gormStore) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
