package service

import (
	"context"
	"time"

	"go-inventory-hold/internal/repository"
)

// DashboardStats untuk overview stats
type DashboardStats struct {
	TotalSKUs      int64 `json:"total_skus"`
	ActiveSKUs     int64 `json:"active_skus"`
	LowStockCount  int64 `json:"low_stock_count"`
	TotalStock     int64 `json:"total_stock"`
	TotalReserved  int64 `json:"total_reserved"`
	TotalAvailable int64 `json:"total_available"`
	LiveHolds      int64 `json:"live_holds"`
}

type DashboardService interface {
	GetDashboardStats(ctx context.Context, lowStockThreshold int) (*DashboardStats, error)
}

type dashboardService struct {
	store repository.Store
	now   func() time.Time
}

func NewDashboardService(store repository.Store, now func() time.Time) DashboardService {
	if now == nil {
		now = time.Now
	}
	return &dashboardService{store: store, now: now}
}

func (s *dashboardService) GetDashboardStats(ctx context.Context, lowStockThreshold int) (*DashboardStats, error) {
	skus, err := s.store.ListSKUs(ctx)
	if err != nil {
		return nil, storageFailure("list skus", err)
	}

	stats := &DashboardStats{TotalSKUs: int64(len(skus))}
	for _, sku := range skus {
		stats.TotalStock += int64(sku.Stock)
		stats.TotalReserved += int64(sku.ReservedStock)
		stats.TotalAvailable += int64(sku.Available())
		if sku.IsActive {
			stats.ActiveSKUs++
			if sku.Available() <= lowStockThreshold {
				stats.LowStockCount++
			}
		}
	}

	if stats.LiveHolds, err = s.store.CountLive(ctx, s.now()); err != nil {
		return nil, storageFailure("count live holds", err)
	}
	return stats, nil
}
