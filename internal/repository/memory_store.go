package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-inventory-hold/internal/model"

	"github.com/google/uuid"
)

// memoryStore keeps the ledger and the holds in process memory.
// A single mutex stands in for the per-SKU row lock.
type memoryStore struct {
	mu    sync.Mutex
	skus  map[string]*model.SKU
	holds map[uuid.UUID]*model.Reservation
	now   func() time.Time
}

// NewMemoryStore returns a Store that lives and dies with the process.
func NewMemoryStore() Store {
	return &memoryStore{
		skus:  make(map[string]*model.SKU),
		holds: make(map[uuid.UUID]*model.Reservation),
		now:   time.Now,
	}
}

func (s *memoryStore) CreateSKU(ctx context.Context, sku *model.SKU) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.skus[sku.ID]; exists {
		return ErrSkuExists
	}
	now := s.now()
	sku.ReservedStock = 0
	sku.CreatedAt = now
	sku.UpdatedAt = now
	stored := *sku
	stored.Reservations = nil
	s.skus[sku.ID] = &stored
	return nil
}

func (s *memoryStore) FindSKU(ctx context.Context, id string) (*model.SKU, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sku, ok := s.skus[id]
	if !ok {
		return nil, ErrSkuNotFound
	}
	out := *sku
	return &out, nil
}

func (s *memoryStore) ListSKUs(ctx context.Context) ([]model.SKU, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.SKU, 0, len(s.skus))
	for _, sku := range s.skus {
		out = append(out, *sku)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sku, ok := s.skus[id]
	if !ok {
		return ErrSkuNotFound
	}
	sku.IsActive = active
	sku.UpdatedAt = s.now()
	return nil
}

func (s *memoryStore) Restock(ctx context.Context, id string, delta int) (*model.SKU, error) {
	if delta <= 0 {
		return nil, ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sku, ok := s.skus[id]
	if !ok {
		return nil, ErrSkuNotFound
	}
	sku.Stock += delta
	sku.UpdatedAt = s.now()
	out := *sku
	return &out, nil
}

func (s *memoryStore) IncrementReserved(ctx context.Context, id string, delta int) error {
	if delta <= 0 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sku, ok := s.skus[id]
	if !ok {
		return ErrSkuNotFound
	}
	if sku.Available() < delta {
		return &InsufficientStockError{SkuID: id, Requested: delta, Available: sku.Available()}
	}
	sku.ReservedStock += delta
	return nil
}

func (s *memoryStore) DecrementReserved(ctx context.Context, id string, delta int) error {
	if delta <= 0 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sku, ok := s.skus[id]
	if !ok {
		return ErrSkuNotFound
	}
	sku.ReservedStock = max(sku.ReservedStock-delta, 0)
	return nil
}

func (s *memoryStore) DecrementStock(ctx context.Context, id string, delta int) error {
	if delta <= 0 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sku, ok := s.skus[id]
	if !ok {
		return ErrSkuNotFound
	}
	if sku.Stock-delta < sku.ReservedStock {
		return &InsufficientStockError{SkuID: id, Requested: delta, Available: sku.Available()}
	}
	sku.Stock -= delta
	return nil
}

func (s *memoryStore) GetAvailable(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sku, ok := s.skus[id]
	if !ok {
		return 0, ErrSkuNotFound
	}
	return sku.Available(), nil
}

func (s *memoryStore) FindReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hold, ok := s.holds[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	out := *hold
	return &out, nil
}

func (s *memoryStore) FindByHolder(ctx context.Context, holderID string) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collect(func(r *model.Reservation) bool { return r.HolderID == holderID }), nil
}

func (s *memoryStore) FindExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.collect(func(r *model.Reservation) bool { return r.IsExpired(now) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) CountLive(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, hold := range s.holds {
		if !hold.IsExpired(now) {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) Reserve(ctx context.Context, hold *model.Reservation) (int, error) {
	if hold.Quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sku, ok := s.skus[hold.SkuID]
	if !ok {
		return 0, ErrSkuNotFound
	}
	if !sku.IsActive {
		return 0, ErrSkuInactive
	}
	if sku.Available() < hold.Quantity {
		return sku.Available(), &InsufficientStockError{SkuID: sku.ID, Requested: hold.Quantity, Available: sku.Available()}
	}

	if hold.ID == uuid.Nil {
		hold.ID = uuid.New()
	}
	if hold.Status == "" {
		hold.Status = model.ReservationActive
	}
	stored := *hold
	s.holds[hold.ID] = &stored
	sku.ReservedStock += hold.Quantity
	return sku.Available(), nil
}

func (s *memoryStore) Release(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return s.remove(id, false)
}

func (s *memoryStore) Convert(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return s.remove(id, true)
}

func (s *memoryStore) remove(id uuid.UUID, sold bool) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hold, ok := s.holds[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	delete(s.holds, id)
	if sku, ok := s.skus[hold.SkuID]; ok {
		sku.ReservedStock = max(sku.ReservedStock-hold.Quantity, 0)
		if sold {
			sku.Stock = max(sku.Stock-hold.Quantity, 0)
			sku.UpdatedAt = s.now()
		}
	}
	return hold, nil
}

func (s *memoryStore) TransferHolds(ctx context.Context, req HoldTransfer) ([]model.Reservation, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.skus[req.SkuID]; !ok {
		return nil, ErrSkuNotFound
	}
	candidates := s.collect(func(r *model.Reservation) bool {
		return r.SkuID == req.SkuID && r.HolderID == req.FromHolderID && !r.IsExpired(req.Now) &&
			(req.SessionID == "" || r.SessionID == req.SessionID)
	})
	total := 0
	for _, c := range candidates {
		total += c.Quantity
	}
	if total < req.Quantity {
		return nil, &HoldsNotCoveredError{SkuID: req.SkuID, Requested: req.Quantity, Covered: total}
	}

	remaining := req.Quantity
	var moved []model.Reservation
	for _, c := range candidates {
		if remaining == 0 {
			break
		}
		if c.Quantity <= remaining {
			hold := s.holds[c.ID]
			hold.HolderID = req.ToHolderID
			hold.UpdatedAt = req.Now
			moved = append(moved, *hold)
			remaining -= c.Quantity
			continue
		}
		orderPart, rest := splitHold(c, remaining, req)
		delete(s.holds, c.ID)
		s.holds[orderPart.ID] = &orderPart
		s.holds[rest.ID] = &rest
		moved = append(moved, orderPart)
		remaining = 0
	}
	return moved, nil
}

func (s *memoryStore) ReconcileSKU(ctx context.Context, skuID string, now time.Time) (*Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sku, ok := s.skus[skuID]
	if !ok {
		return nil, ErrSkuNotFound
	}
	rec := &Reconciliation{SkuID: skuID, Stored: sku.ReservedStock}
	live := 0
	for id, hold := range s.holds {
		if hold.SkuID != skuID {
			continue
		}
		if hold.IsExpired(now) {
			rec.Evicted = append(rec.Evicted, *hold)
			delete(s.holds, id)
			continue
		}
		live += hold.Quantity
	}
	rec.Actual = min(live, sku.Stock)
	sku.ReservedStock = rec.Actual
	return rec, nil
}

func (s *memoryStore) ReconcileCandidates(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	for id, sku := range s.skus {
		if sku.ReservedStock > 0 {
			seen[id] = struct{}{}
		}
	}
	for _, hold := range s.holds {
		seen[hold.SkuID] = struct{}{}
	}
	return sortedKeys(seen), nil
}

func (s *memoryStore) Close() error {
	return nil
}

// collect returns matching holds oldest first. Callers hold s.mu.
func (s *memoryStore) collect(match func(*model.Reservation) bool) []model.Reservation {
	var out []model.Reservation
	for _, hold := range s.holds {
		if match(hold) {
			out = append(out, *hold)
		}
	}
	sortOldestFirst(out)
	return out
}
