package refund

import (
	"context"
	"fmt"
	"time"

	"deliveroute-be/internal/cancellation"
	"deliveroute-be/internal/logger"
	"deliveroute-be/internal/metrics"

	"go.uber.org/zap"
)

// Dispatcher pushes approved cancellations to the payment processor. The
// order is already cancelled by the time a record reaches here; only
// refund_status trails asynchronously.
type Dispatcher struct {
	gateway Gateway
	guard   Guard
	records cancellation.Repository
	timeout time.Duration
}

func NewDispatcher(gateway Gateway, guard Guard, records cancellation.Repository) *Dispatcher {
	return &Dispatcher{
		gateway: gateway,
		guard:   guard,
		records: records,
		timeout: 30 * time.Second,
	}
}

// DispatchAsync satisfies cancellation.RefundDispatcher. It returns
// immediately; the gateway call runs in the background with its own
// deadline, detached from the request context.
func (d *Dispatcher) DispatchAsync(rec *cancellation.Record, paymentID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.dispatch(ctx, rec, paymentID); err != nil {
			logger.L().Error("refund dispatch failed",
				zap.String("record_id", rec.ID.String()),
				zap.String("order_id", rec.OrderID),
				zap.Error(err),
			)
		}
	}()
}

func (d *Dispatcher) dispatch(ctx context.Context, rec *cancellation.Record, paymentID string) error {
	acquired, err := d.guard.Acquire(ctx, "refund:dispatch:"+rec.ID.String())
	if err != nil {
		return err
	}
	if !acquired {
		// Another dispatch already owns this record.
		return nil
	}

	if err := d.records.SetRefundStatus(ctx, rec.ID, cancellation.RefundProcessing, rec.CancelStatus, nil); err != nil {
		return err
	}

	if err := d.gateway.Refund(ctx, paymentID, rec.ID, rec.RefundAmount); err != nil {
		metrics.RefundsFailed.Inc()
		// The submission itself failed; there is no callback coming. Park
		// the record for manual admin resolution.
		if uerr := d.records.SetRefundStatus(ctx, rec.ID, cancellation.RefundFailed, rec.CancelStatus, nil); uerr != nil {
			logger.L().Error("failed to mark refund failed",
				zap.String("record_id", rec.ID.String()), zap.Error(uerr))
		}
		return fmt.Errorf("%w: %v", cancellation.ErrRefundGateway, err)
	}

	metrics.RefundsDispatched.Inc()
	return nil
}
