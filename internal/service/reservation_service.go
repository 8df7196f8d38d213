package service

import (
	"context"
	"errors"
	"time"

	"go-inventory-hold/internal/events"
	"go-inventory-hold/internal/metrics"
	"go-inventory-hold/internal/model"
	"go-inventory-hold/internal/repository"
	"go-inventory-hold/internal/tracing"
	"go-inventory-hold/pkg/validator"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultHoldTTL = 15 * time.Minute

type ReservationService interface {
	Reserve(ctx context.Context, items []ReserveItem, opts ReserveOptions) ([]ItemResult, error)
	Release(ctx context.Context, id uuid.UUID) (bool, error)
	ReleaseByHolder(ctx context.Context, holder model.Holder) (bool, error)
	ConvertToSale(ctx context.Context, orderID string) (bool, error)
	TransferOwnership(ctx context.Context, req TransferRequest) ([]TransferResult, error)
	CheckAvailability(ctx context.Context, items []ReserveItem) (*AvailabilityReport, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	ListByHolder(ctx context.Context, holder model.Holder) ([]model.Reservation, error)
}

type ReservationConfig struct {
	HoldTTL time.Duration
	// Now is the clock used for expiry; defaults to time.Now.
	Now func() time.Time
}

type reservationService struct {
	store      repository.Store
	reconciler *Reconciler
	publisher  events.Publisher
	log        zerolog.Logger
	holdTTL    time.Duration
	now        func() time.Time
}

func NewReservationService(store repository.Store, reconciler *Reconciler, publisher events.Publisher, log zerolog.Logger, cfg ReservationConfig) ReservationService {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = DefaultHoldTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &reservationService{
		store:      store,
		reconciler: reconciler,
		publisher:  publisher,
		log:        log.With().Str("component", "reservation_service").Logger(),
		holdTTL:    cfg.HoldTTL,
		now:        cfg.Now,
	}
}

func (s *reservationService) Reserve(ctx context.Context, items []ReserveItem, opts ReserveOptions) ([]ItemResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "ReservationService.Reserve", trace.WithAttributes(
		attribute.Int("items", len(items)),
		attribute.String("holder", opts.Holder.String()),
	))
	defer span.End()

	if err := validateItems(items); err != nil {
		return nil, err
	}
	if err := opts.Holder.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	s.cleanup(ctx, items)

	results, err := s.reserveBatch(ctx, items, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Bool("succeeded", BatchSucceeded(results)))
	return results, err
}

type createdHold struct {
	index int
	hold  model.Reservation
}

// reserveBatch holds every item in input order, one atomic unit per item. The
// first failure releases the holds created so far.
func (s *reservationService) reserveBatch(ctx context.Context, items []ReserveItem, opts ReserveOptions) ([]ItemResult, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.holdTTL
	}

	results := make([]ItemResult, len(items))
	created := make([]createdHold, 0, len(items))

	for i, item := range items {
		now := s.now()
		hold := &model.Reservation{
			ID:        uuid.New(),
			SkuID:     item.SkuID,
			Quantity:  item.Quantity,
			HolderID:  opts.Holder.ID(),
			SessionID: opts.SessionID,
			Status:    model.ReservationActive,
			ExpiresAt: now.Add(ttl),
		}
		hold.CreatedAt = now
		hold.UpdatedAt = now

		available, err := s.store.Reserve(ctx, hold)
		if err == nil {
			expiresAt := hold.ExpiresAt
			results[i] = ItemResult{
				SkuID:          item.SkuID,
				Quantity:       item.Quantity,
				Success:        true,
				Code:           CodeReserved,
				ReservationID:  hold.ID.String(),
				AvailableStock: available,
				ExpiresAt:      &expiresAt,
			}
			created = append(created, createdHold{index: i, hold: *hold})
			metrics.ReservationItems.WithLabelValues(string(CodeReserved)).Inc()
			continue
		}

		results[i] = failedResult(item, available, err)
		metrics.ReservationItems.WithLabelValues(string(results[i].Code)).Inc()
		for j := i + 1; j < len(items); j++ {
			results[j] = ItemResult{SkuID: items[j].SkuID, Quantity: items[j].Quantity, Code: CodeSkipped}
		}

		rollbackErr := s.rollback(ctx, created, results)
		if results[i].Code == CodeStorageFailure {
			s.log.Error().Err(err).Str("sku_id", item.SkuID).Msg("reserve failed on storage")
			return results, storageFailure("reserve "+item.SkuID, err)
		}
		if rollbackErr != nil {
			return results, rollbackErr
		}
		s.log.Debug().
			Str("sku_id", item.SkuID).
			Str("code", string(results[i].Code)).
			Int("rolled_back", len(created)).
			Msg("reserve batch failed")
		return results, nil
	}

	for _, c := range created {
		s.publish(ctx, events.Event{
			Type:          events.HoldCreated,
			SkuID:         c.hold.SkuID,
			ReservationID: c.hold.ID.String(),
			HolderID:      c.hold.HolderID,
			Quantity:      c.hold.Quantity,
		})
	}
	return results, nil
}

// rollback releases the holds of a failed batch, newest first. It runs on a
// context detached from cancellation so a dropped client does not strand
// holds. A hold it cannot release keeps its reservation id in a
// ROLLBACK_FAILED result and stays until released or evicted.
func (s *reservationService) rollback(ctx context.Context, created []createdHold, results []ItemResult) error {
	ctx = context.WithoutCancel(ctx)
	var firstErr error
	for i := len(created) - 1; i >= 0; i-- {
		c := created[i]
		results[c.index].Success = false

		_, err := s.store.Release(ctx, c.hold.ID)
		if err != nil && !errors.Is(err, repository.ErrReservationNotFound) {
			results[c.index].Code = CodeRollbackFailed
			s.log.Error().Err(err).
				Str("reservation_id", c.hold.ID.String()).
				Time("expires_at", c.hold.ExpiresAt).
				Msg("rollback release failed, hold left for expiry")
			if firstErr == nil {
				firstErr = storageFailure("rollback "+c.hold.ID.String(), err)
			}
			continue
		}
		results[c.index].Code = CodeRolledBack
		results[c.index].ReservationID = ""
		results[c.index].ExpiresAt = nil
		metrics.HoldsReleased.WithLabelValues("rollback").Inc()
	}
	return firstErr
}

func failedResult(item ReserveItem, available int, err error) ItemResult {
	res := ItemResult{SkuID: item.SkuID, Quantity: item.Quantity}
	var short *repository.InsufficientStockError
	switch {
	case errors.As(err, &short):
		res.Code = CodeInsufficientStock
		res.AvailableStock = short.Available
	case errors.Is(err, repository.ErrInsufficientStock):
		res.Code = CodeInsufficientStock
		res.AvailableStock = available
	case errors.Is(err, repository.ErrSkuNotFound):
		res.Code = CodeSkuNotFound
	case errors.Is(err, repository.ErrSkuInactive):
		res.Code = CodeSkuInactive
	default:
		res.Code = CodeStorageFailure
	}
	return res
}

func (s *reservationService) Release(ctx context.Context, id uuid.UUID) (bool, error) {
	hold, err := s.store.Release(ctx, id)
	if errors.Is(err, repository.ErrReservationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageFailure("release "+id.String(), err)
	}
	s.released(ctx, hold, "release")
	return true, nil
}

func (s *reservationService) ReleaseByHolder(ctx context.Context, holder model.Holder) (bool, error) {
	if err := holder.Validate(); err != nil {
		return false, invalid("%v", err)
	}
	holds, err := s.store.FindByHolder(ctx, holder.ID())
	if err != nil {
		return false, storageFailure("list holds of "+holder.String(), err)
	}

	released := 0
	for _, h := range holds {
		hold, err := s.store.Release(ctx, h.ID)
		if errors.Is(err, repository.ErrReservationNotFound) {
			continue
		}
		if err != nil {
			return released > 0, storageFailure("release "+h.ID.String(), err)
		}
		s.released(ctx, hold, "holder")
		released++
	}
	return released > 0, nil
}

func (s *reservationService) released(ctx context.Context, hold *model.Reservation, reason string) {
	metrics.HoldsReleased.WithLabelValues(reason).Inc()
	s.publish(ctx, events.Event{
		Type:          events.HoldReleased,
		SkuID:         hold.SkuID,
		ReservationID: hold.ID.String(),
		HolderID:      hold.HolderID,
		Quantity:      hold.Quantity,
		Reason:        reason,
	})
}

// ConvertToSale turns every hold of the order into a sale. Holds past their
// expiry that have not been evicted yet are still converted. Repeating the
// call on an order with no holds is a no-op that returns false.
func (s *reservationService) ConvertToSale(ctx context.Context, orderID string) (bool, error) {
	ctx, span := tracing.Tracer().Start(ctx, "ReservationService.ConvertToSale", trace.WithAttributes(
		attribute.String("order_id", orderID),
	))
	defer span.End()

	holder := model.Order(orderID)
	if err := holder.Validate(); err != nil {
		return false, invalid("%v", err)
	}
	holds, err := s.store.FindByHolder(ctx, holder.ID())
	if err != nil {
		return false, storageFailure("list holds of "+holder.String(), err)
	}

	converted := 0
	for _, h := range holds {
		hold, err := s.store.Convert(ctx, h.ID)
		if errors.Is(err, repository.ErrReservationNotFound) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			return converted > 0, storageFailure("convert "+h.ID.String(), err)
		}
		converted++
		metrics.HoldsConverted.Inc()
		metrics.UnitsSold.Add(float64(hold.Quantity))
		s.publish(ctx, events.Event{
			Type:          events.HoldConverted,
			SkuID:         hold.SkuID,
			ReservationID: hold.ID.String(),
			HolderID:      hold.HolderID,
			Quantity:      hold.Quantity,
		})
	}
	span.SetAttributes(attribute.Int("converted", converted))
	return converted > 0, nil
}

// TransferOwnership binds the source holder's live holds to the order. For an
// item the source covers only in part, those holds are bound and the rest is
// reserved afresh for the order, with batch semantics among the reserved
// items. Undoing a partial transfer is left to the caller through
// ReleaseByHolder.
func (s *reservationService) TransferOwnership(ctx context.Context, req TransferRequest) ([]TransferResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "ReservationService.TransferOwnership", trace.WithAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.Int("items", len(req.Items)),
	))
	defer span.End()

	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	if err := req.From.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	to := model.Order(req.OrderID)
	if err := to.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	if req.From.ID() == to.ID() {
		return nil, invalid("source and target holder are both %s", to)
	}

	s.cleanup(ctx, req.Items)

	now := s.now()
	results := make([]TransferResult, len(req.Items))
	rebound := make([][]string, len(req.Items))
	var fallback []ReserveItem
	var fallbackIdx []int

	for i, item := range req.Items {
		ids, err := s.rebind(ctx, req, to, item.SkuID, item.Quantity, now)
		var short *repository.HoldsNotCoveredError
		switch {
		case err == nil:
			results[i] = TransferResult{SkuID: item.SkuID, Quantity: item.Quantity, Mode: TransferReused, Success: true, ReservationIDs: ids}
			metrics.HoldsTransferred.WithLabelValues(string(TransferReused)).Inc()
			continue
		case errors.As(err, &short) && short.Covered > 0:
			// Take what the source holds and reserve only the rest, so the
			// source's own units do not count against the order.
			ids, err = s.rebind(ctx, req, to, item.SkuID, short.Covered, now)
			switch {
			case err == nil:
				rebound[i] = ids
				fallback = append(fallback, ReserveItem{SkuID: item.SkuID, Quantity: item.Quantity - short.Covered})
				fallbackIdx = append(fallbackIdx, i)
				continue
			case !errors.Is(err, repository.ErrHoldsNotCovered):
				span.RecordError(err)
				return results, storageFailure("transfer "+item.SkuID, err)
			}
			fallback = append(fallback, item)
			fallbackIdx = append(fallbackIdx, i)
		case errors.Is(err, repository.ErrHoldsNotCovered), errors.Is(err, repository.ErrSkuNotFound):
			fallback = append(fallback, item)
			fallbackIdx = append(fallbackIdx, i)
		default:
			span.RecordError(err)
			return results, storageFailure("transfer "+item.SkuID, err)
		}
	}

	if len(fallback) == 0 {
		return results, nil
	}

	reserved, err := s.reserveBatch(ctx, fallback, ReserveOptions{Holder: to, SessionID: req.SessionID})
	for j, idx := range fallbackIdx {
		if j >= len(reserved) {
			break
		}
		r := reserved[j]
		mode := TransferReserved
		if rebound[idx] != nil {
			mode = TransferPartial
		}
		results[idx] = TransferResult{
			SkuID:          r.SkuID,
			Quantity:       req.Items[idx].Quantity,
			Mode:           mode,
			Success:        r.Success,
			ReservationIDs: rebound[idx],
			Reserve:        &r,
		}
		if r.Success {
			results[idx].ReservationIDs = append(results[idx].ReservationIDs, r.ReservationID)
			metrics.HoldsTransferred.WithLabelValues(string(mode)).Inc()
		}
	}
	if err != nil {
		span.RecordError(err)
	}
	return results, err
}

// rebind moves qty units of the source's live holds on skuID to the order.
func (s *reservationService) rebind(ctx context.Context, req TransferRequest, to model.Holder, skuID string, qty int, now time.Time) ([]string, error) {
	moved, err := s.store.TransferHolds(ctx, repository.HoldTransfer{
		SkuID:        skuID,
		FromHolderID: req.From.ID(),
		ToHolderID:   to.ID(),
		SessionID:    req.SessionID,
		Quantity:     qty,
		Now:          now,
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(moved))
	for i, h := range moved {
		ids[i] = h.ID.String()
	}
	s.publish(ctx, events.Event{
		Type:     events.HoldTransferred,
		SkuID:    skuID,
		HolderID: to.ID(),
		Quantity: qty,
	})
	return ids, nil
}

// CheckAvailability answers whether the items could be reserved right now.
// Quantities of repeated SKUs are summed.
func (s *reservationService) CheckAvailability(ctx context.Context, items []ReserveItem) (*AvailabilityReport, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	s.cleanup(ctx, items)

	var order []string
	requested := make(map[string]int, len(items))
	for _, item := range items {
		if _, seen := requested[item.SkuID]; !seen {
			order = append(order, item.SkuID)
		}
		requested[item.SkuID] += item.Quantity
	}

	report := &AvailabilityReport{Available: true, Shortages: []Shortage{}}
	for _, skuID := range order {
		want := requested[skuID]
		available := 0
		sku, err := s.store.FindSKU(ctx, skuID)
		switch {
		case errors.Is(err, repository.ErrSkuNotFound):
		case err != nil:
			return nil, storageFailure("find sku "+skuID, err)
		case sku.IsActive:
			available = sku.Available()
		}
		if available < want {
			report.Available = false
			report.Shortages = append(report.Shortages, Shortage{SkuID: skuID, Requested: want, Available: available})
		}
	}
	return report, nil
}

func (s *reservationService) GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	hold, err := s.store.FindReservation(ctx, id)
	if errors.Is(err, repository.ErrReservationNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, storageFailure("find reservation "+id.String(), err)
	}
	return hold, nil
}

func (s *reservationService) ListByHolder(ctx context.Context, holder model.Holder) ([]model.Reservation, error) {
	if err := holder.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	holds, err := s.store.FindByHolder(ctx, holder.ID())
	if err != nil {
		return nil, storageFailure("list holds of "+holder.String(), err)
	}
	return holds, nil
}

// cleanup runs the same pass as the scheduler, or reconciles just the SKUs
// of items while a scheduled pass is running. A failure is logged and the
// caller proceeds; expired holds only make availability look lower.
func (s *reservationService) cleanup(ctx context.Context, items []ReserveItem) {
	if s.reconciler == nil {
		return
	}
	skuIDs := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.SkuID]; ok {
			continue
		}
		seen[item.SkuID] = struct{}{}
		skuIDs = append(skuIDs, item.SkuID)
	}
	if _, err := s.reconciler.Refresh(ctx, skuIDs); err != nil {
		s.log.Warn().Err(err).Msg("lazy cleanup failed")
	}
}

func (s *reservationService) publish(ctx context.Context, e events.Event) {
	e.OccurredAt = s.now()
	s.publisher.Publish(ctx, e)
}

func validateItems(items []ReserveItem) error {
	if len(items) == 0 {
		return invalid("at least one item is required")
	}
	if err := validator.Validate(reserveBatch{Items: items}); err != nil {
		return invalid("%v", err)
	}
	return nil
}
