package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go-inventory-hold/internal/events"
	"go-inventory-hold/internal/metrics"
	"go-inventory-hold/internal/repository"
	"go-inventory-hold/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const expiredBatchSize = 500

// Reconciler evicts expired holds and heals drift between reserved_stock and
// the holds that back it. The scheduler goes through CleanupExpired, the
// reservation service through Refresh; both run the same pass.
type Reconciler struct {
	store     repository.Store
	publisher events.Publisher
	log       zerolog.Logger
	now       func() time.Time

	// running admits one full pass at a time.
	running sync.Mutex
}

func NewReconciler(store repository.Store, publisher events.Publisher, log zerolog.Logger, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Reconciler{
		store:     store,
		publisher: publisher,
		log:       log.With().Str("component", "reconciler").Logger(),
		now:       now,
	}
}

// CleanupExpired releases every hold with expires_at < now, then rewrites
// reserved_stock of every SKU whose counter disagrees with its live holds.
// It returns the number of holds removed. A call made while another pass is
// running returns 0 without waiting for it.
func (r *Reconciler) CleanupExpired(ctx context.Context) (int, error) {
	if !r.running.TryLock() {
		return 0, nil
	}
	defer r.running.Unlock()
	return r.pass(ctx)
}

// Refresh makes the counters of skuIDs current before the caller reads them.
// With no pass in progress it runs a full one. Otherwise it reconciles just
// those SKUs, one atomic unit each, instead of waiting for the running pass
// to reach them.
func (r *Reconciler) Refresh(ctx context.Context, skuIDs []string) (int, error) {
	if r.running.TryLock() {
		defer r.running.Unlock()
		return r.pass(ctx)
	}

	now := r.now()
	removed := 0
	for _, skuID := range skuIDs {
		n, err := r.reconcileOne(ctx, skuID, now)
		removed += n
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (r *Reconciler) pass(ctx context.Context) (int, error) {
	ctx, span := tracing.Tracer().Start(ctx, "Reconciler.CleanupExpired")
	defer span.End()

	start := time.Now()
	defer func() { metrics.CleanupDuration.Observe(time.Since(start).Seconds()) }()

	now := r.now()
	removed, err := r.evictExpired(ctx, now)
	if err != nil {
		metrics.CleanupErrors.Inc()
		span.RecordError(err)
		return removed, err
	}
	evicted, err := r.healDrift(ctx, now)
	removed += evicted
	if err != nil {
		metrics.CleanupErrors.Inc()
		span.RecordError(err)
	}
	span.SetAttributes(attribute.Int("removed", removed))
	return removed, err
}

func (r *Reconciler) evictExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	for {
		expired, err := r.store.FindExpired(ctx, now, expiredBatchSize)
		if err != nil {
			return removed, storageFailure("find expired holds", err)
		}

		progress := 0
		for _, e := range expired {
			hold, err := r.store.Release(ctx, e.ID)
			if errors.Is(err, repository.ErrReservationNotFound) {
				continue
			}
			if err != nil {
				return removed, storageFailure("release expired hold "+e.ID.String(), err)
			}
			progress++
			metrics.HoldsReleased.WithLabelValues("expiry").Inc()
			r.publisher.Publish(ctx, events.Event{
				Type:          events.HoldExpired,
				SkuID:         hold.SkuID,
				ReservationID: hold.ID.String(),
				HolderID:      hold.HolderID,
				Quantity:      hold.Quantity,
				Reason:        "expiry",
				OccurredAt:    now,
			})
		}
		removed += progress

		if len(expired) < expiredBatchSize || progress == 0 {
			return removed, nil
		}
	}
}

func (r *Reconciler) healDrift(ctx context.Context, now time.Time) (int, error) {
	skus, err := r.store.ReconcileCandidates(ctx)
	if err != nil {
		return 0, storageFailure("list reconcile candidates", err)
	}

	removed := 0
	for _, skuID := range skus {
		n, err := r.reconcileOne(ctx, skuID, now)
		removed += n
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// reconcileOne evicts the expired holds of one SKU and rewrites its counter
// in a single atomic unit. Unknown SKUs are skipped.
func (r *Reconciler) reconcileOne(ctx context.Context, skuID string, now time.Time) (int, error) {
	rec, err := r.store.ReconcileSKU(ctx, skuID, now)
	if errors.Is(err, repository.ErrSkuNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storageFailure("reconcile "+skuID, err)
	}

	for _, hold := range rec.Evicted {
		metrics.HoldsReleased.WithLabelValues("expiry").Inc()
		r.publisher.Publish(ctx, events.Event{
			Type:          events.HoldExpired,
			SkuID:         hold.SkuID,
			ReservationID: hold.ID.String(),
			HolderID:      hold.HolderID,
			Quantity:      hold.Quantity,
			Reason:        "expiry",
			OccurredAt:    now,
		})
	}

	if rec.Drifted() {
		metrics.DriftCorrections.Inc()
		r.log.Warn().
			Str("sku_id", skuID).
			Int("stored", rec.Stored).
			Int("actual", rec.Actual).
			Msg("reserved_stock drift corrected")
		stored, actual := rec.Stored, rec.Actual
		r.publisher.Publish(ctx, events.Event{
			Type:       events.CounterCorrected,
			SkuID:      skuID,
			Stored:     &stored,
			Actual:     &actual,
			OccurredAt: now,
		})
	}
	return len(rec.Evicted), nil
}

// Run calls CleanupExpired every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		r.log.Info().Msg("scheduled cleanup disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", interval).Msg("scheduled cleanup started")
	for {
		select {
		case <-ticker.C:
			removed, err := r.CleanupExpired(ctx)
			if err != nil {
				r.log.Error().Err(err).Int("removed", removed).Msg("scheduled cleanup failed")
				continue
			}
			if removed > 0 {
				r.log.Info().Int("removed", removed).Msg("expired holds evicted")
			}
		case <-ctx.Done():
			r.log.Info().Msg("scheduled cleanup stopped")
			return
		}
	}
}
