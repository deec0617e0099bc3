package cancellation

import (
	"context"
	"time"

	"deliveroute-be/internal/logger"
	"deliveroute-be/internal/order"

	"go.uber.org/zap"
)

// timeoutCanceller is what the sweeper needs from the cancellation service.
type timeoutCanceller interface {
	SystemCancelTimeout(ctx context.Context, orderID string) error
}

// Sweeper periodically cancels pending orders the owner never answered
// within the SLA window. It goes through the regular cancellation path, so
// the versioned write decides any race against a late acceptance.
type Sweeper struct {
	orders   order.Repository
	cancels  timeoutCanceller
	sla      time.Duration
	interval time.Duration
	batch    int
}

func NewSweeper(orders order.Repository, cancels timeoutCanceller, sla, interval time.Duration) *Sweeper {
	return &Sweeper{
		orders:   orders,
		cancels:  cancels,
		sla:      sla,
		interval: interval,
		batch:    100,
	}
}

// Run blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce scans one batch of expired pending orders and cancels each.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	log := logger.L().With(zap.String("job", "pending_sla_sweep"))

	cutoff := time.Now().Add(-s.sla)
	stale, err := s.orders.ListPendingBefore(ctx, cutoff, s.batch)
	if err != nil {
		log.Error("failed to list expired pending orders", zap.Error(err))
		return
	}

	for _, o := range stale {
		err := s.cancels.SystemCancelTimeout(ctx, o.ID)
		switch {
		case err == nil:
			log.Info("auto-cancelled pending order", zap.String("order_id", o.ID))
		case order.IsValidationError(err) || IsValidationError(err):
			// The owner accepted (or another cancel won) between the scan
			// and our write. That outcome stands.
			log.Debug("order no longer pending, skipping", zap.String("order_id", o.ID))
		default:
			log.Error("auto-cancel failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
}
