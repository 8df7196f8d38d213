package service

import (
	"context"
	"errors"

	"go-inventory-hold/internal/events"
	"go-inventory-hold/internal/model"
	"go-inventory-hold/internal/repository"
	"go-inventory-hold/pkg/validator"

	"github.com/rs/zerolog"
)

// CatalogService is the catalog's write path into the ledger. It can create
// SKUs, toggle them and add physical stock, but never touches reserved_stock.
type CatalogService interface {
	CreateSKU(ctx context.Context, req *model.SKU) error
	GetSKU(ctx context.Context, id string) (*model.SKU, error)
	ListSKUs(ctx context.Context) ([]model.SKU, error)
	SetActive(ctx context.Context, id string, active bool) error
	Restock(ctx context.Context, id string, quantity int) (*model.SKU, error)
}

type catalogService struct {
	ledger    repository.StockLedger
	publisher events.Publisher
	log       zerolog.Logger
}

func NewCatalogService(ledger repository.StockLedger, publisher events.Publisher, log zerolog.Logger) CatalogService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &catalogService{
		ledger:    ledger,
		publisher: publisher,
		log:       log.With().Str("component", "catalog_service").Logger(),
	}
}

func (s *catalogService) CreateSKU(ctx context.Context, req *model.SKU) error {
	if err := validator.Validate(req); err != nil {
		return invalid("%v", err)
	}
	if err := s.ledger.CreateSKU(ctx, req); err != nil {
		if errors.Is(err, repository.ErrSkuExists) {
			return err
		}
		return storageFailure("create sku "+req.ID, err)
	}
	s.log.Info().Str("sku_id", req.ID).Int("stock", req.Stock).Bool("active", req.IsActive).Msg("sku created")
	s.changed(ctx, req.ID, req.Stock)
	return nil
}

func (s *catalogService) GetSKU(ctx context.Context, id string) (*model.SKU, error) {
	sku, err := s.ledger.FindSKU(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrSkuNotFound) {
		return nil, storageFailure("find sku "+id, err)
	}
	return sku, err
}

func (s *catalogService) ListSKUs(ctx context.Context) ([]model.SKU, error) {
	skus, err := s.ledger.ListSKUs(ctx)
	if err != nil {
		return nil, storageFailure("list skus", err)
	}
	return skus, nil
}

func (s *catalogService) SetActive(ctx context.Context, id string, active bool) error {
	err := s.ledger.SetActive(ctx, id, active)
	if errors.Is(err, repository.ErrSkuNotFound) {
		return err
	}
	if err != nil {
		return storageFailure("set active "+id, err)
	}
	s.log.Info().Str("sku_id", id).Bool("active", active).Msg("sku availability toggled")
	s.changed(ctx, id, 0)
	return nil
}

func (s *catalogService) Restock(ctx context.Context, id string, quantity int) (*model.SKU, error) {
	if quantity <= 0 {
		return nil, invalid("restock quantity must be positive")
	}
	sku, err := s.ledger.Restock(ctx, id, quantity)
	if errors.Is(err, repository.ErrSkuNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, storageFailure("restock "+id, err)
	}
	s.changed(ctx, id, quantity)
	return sku, nil
}

func (s *catalogService) changed(ctx context.Context, id string, qty int) {
	s.publisher.Publish(ctx, events.Event{Type: events.SKUChanged, SkuID: id, Quantity: qty})
}
