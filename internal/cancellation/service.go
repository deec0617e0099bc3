package cancellation

import (
	"context"
	"fmt"
	"time"

	"deliveroute-be/internal/actor"
	"deliveroute-be/internal/events"
	"deliveroute-be/internal/logger"
	"deliveroute-be/internal/metrics"
	"deliveroute-be/internal/order"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RefundDispatcher hands a refund to the payment processor. Must not block:
// implementations return after recording intent and run the gateway call in
// the background. Idempotent per record id.
type RefundDispatcher interface {
	DispatchAsync(rec *Record, paymentID string)
}

// LoyaltyClient restores points and coupons consumed by a cancelled order.
type LoyaltyClient interface {
	RestorePoints(ctx context.Context, customerID string, points int64) error
	RestoreCoupon(ctx context.Context, customerID, couponID string) error
}

type Service struct {
	orders  order.Repository
	records Repository
	policy  Policy
	emitter events.Emitter
	refunds RefundDispatcher
	loyalty LoyaltyClient

	now func() time.Time
}

func NewService(orders order.Repository, records Repository, policy Policy, emitter events.Emitter, refunds RefundDispatcher, loyalty LoyaltyClient) *Service {
	return &Service{
		orders:  orders,
		records: records,
		policy:  policy,
		emitter: emitter,
		refunds: refunds,
		loyalty: loyalty,
		now:     time.Now,
	}
}

type CancelRequest struct {
	OrderID        string
	ReasonCategory ReasonCategory
	ReasonDetail   *string

	// Admin override only.
	OverrideRate   *float64
	FeesRefundable bool
}

// CheckCancelability answers the read-only "can I cancel this right now"
// question without committing anything.
func (s *Service) CheckCancelability(ctx context.Context, act actor.Actor, orderID string) (*Eligibility, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	el := s.policy.Evaluate(o, act.Role, s.now())
	return &el, nil
}

// RequestCancellation runs the full cancel path: eligibility, refund
// computation, atomic versioned cancel + record insert, loyalty restoration,
// and asynchronous refund dispatch. A version conflict is retried once
// against a fresh snapshot; re-evaluation on the fresh snapshot means a
// racing transition legitimately changes the outcome.
func (s *Service) RequestCancellation(ctx context.Context, act actor.Actor, req CancelRequest) (*Record, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_id", req.OrderID),
		zap.String("actor_role", string(act.Role)),
		zap.String("reason_category", string(req.ReasonCategory)),
	)

	if !ValidReason(act.Role, req.ReasonCategory) {
		return nil, ErrInvalidReason
	}

	for attempt := 0; attempt < 2; attempt++ {
		o, err := s.orders.GetOrder(ctx, req.OrderID)
		if err != nil {
			return nil, err
		}
		if err := order.EnsureParticipant(o, act); err != nil {
			return nil, err
		}
		if o.Status.Terminal() {
			// Idempotency: a repeat call on a cancelled order reports the
			// terminal state and never creates a second record or refund.
			return nil, order.ErrAlreadyTerminal
		}

		rate, err := s.resolveRate(o, act, req)
		if err != nil {
			return nil, err
		}

		feesRefundable := req.FeesRefundable && act.Role == actor.RoleAdmin
		amount := ComputeRefund(o, rate, feesRefundable)

		rec := &Record{
			ID:             uuid.New(),
			OrderID:        o.ID,
			RequestedBy:    act.Role,
			ReasonCategory: req.ReasonCategory,
			ReasonDetail:   req.ReasonDetail,
			RefundRate:     rate,
			RefundAmount:   amount,
			CancelStatus:   CancelApproved,
			RefundStatus:   RefundPending,
			CreatedAt:      s.now().UTC(),
		}

		ok, err := s.records.CancelOrderTx(ctx, o, rec)
		if err != nil {
			return nil, err
		}
		if !ok {
			metrics.VersionConflicts.Inc()
			log.Debug("version conflict on cancel", zap.Int("attempt", attempt))
			continue
		}

		metrics.CancellationsApproved.Inc()
		if act.Role == actor.RoleAdmin {
			// Distinct audit trail for overrides vs self-service cancels.
			log.Info("admin override cancellation committed",
				zap.String("record_id", rec.ID.String()),
				zap.Float64("refund_rate", rate),
				zap.Int64("refund_amount", amount),
				zap.Stringp("reason_detail", req.ReasonDetail),
			)
		} else {
			log.Info("cancellation committed",
				zap.String("record_id", rec.ID.String()),
				zap.Float64("refund_rate", rate),
				zap.Int64("refund_amount", amount),
			)
		}

		s.emitStatusChanged(ctx, o, act.Role, log)
		s.restoreLoyalty(ctx, o, rate, log)
		s.settleRefund(ctx, o, rec, log)

		return rec, nil
	}
	return nil, order.ErrConcurrentModification
}

// SystemCancelTimeout is the sweeper entry point for pending orders whose
// owner never responded within the SLA window. It reuses the same handler
// path, so a late owner acceptance and the sweep cannot both win.
func (s *Service) SystemCancelTimeout(ctx context.Context, orderID string) error {
	sys := actor.Actor{ID: "sla-sweeper", Role: actor.RoleSystem}
	_, err := s.RequestCancellation(ctx, sys, CancelRequest{
		OrderID:        orderID,
		ReasonCategory: ReasonTimeout,
	})
	if err == nil {
		metrics.TimeoutCancellations.Inc()
	}
	return err
}

// HandleRefundResult applies the asynchronous gateway callback. Success
// completes both the refund and the cancellation; failure leaves the record
// approved with refund_status=failed for manual admin resolution.
func (s *Service) HandleRefundResult(ctx context.Context, recordID uuid.UUID, succeeded bool, gatewayRef string) error {
	log := logger.FromCtx(ctx).With(zap.String("record_id", recordID.String()))

	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	if rec.RefundStatus == RefundCompleted || rec.RefundStatus == RefundFailed {
		// Gateway retries replay the callback; the record is already final.
		return nil
	}

	var ref *string
	if gatewayRef != "" {
		ref = &gatewayRef
	}

	if !succeeded {
		metrics.RefundsFailed.Inc()
		log.Error("refund failed at gateway; queued for manual resolution",
			zap.String("order_id", rec.OrderID))
		return s.records.SetRefundStatus(ctx, recordID, RefundFailed, rec.CancelStatus, ref)
	}

	if err := s.records.SetRefundStatus(ctx, recordID, RefundCompleted, CancelCompleted, ref); err != nil {
		return err
	}

	ev := events.CancellationCompleted{
		OrderID:              rec.OrderID,
		CancellationRecordID: rec.ID.String(),
		RefundAmount:         rec.RefundAmount,
		OccurredAt:           s.now().UTC(),
	}
	if err := s.emitter.CancellationCompleted(ctx, ev); err != nil {
		log.Warn("failed to publish cancellation completed event", zap.Error(err))
	}
	return nil
}

func (s *Service) resolveRate(o *order.Order, act actor.Actor, req CancelRequest) (float64, error) {
	if act.Role == actor.RoleAdmin {
		if req.ReasonDetail == nil || *req.ReasonDetail == "" {
			return 0, ErrReasonRequired
		}
		if req.OverrideRate == nil || *req.OverrideRate < 0 || *req.OverrideRate > 1 {
			return 0, ErrInvalidRate
		}
		return *req.OverrideRate, nil
	}

	el := s.policy.Evaluate(o, act.Role, s.now())
	if !el.Allowed {
		return 0, fmt.Errorf("%w: %s", ErrNotEligible, el.Message)
	}
	return el.RefundRate, nil
}

func (s *Service) emitStatusChanged(ctx context.Context, o *order.Order, role actor.Role, log *zap.Logger) {
	ev := events.StatusChanged{
		OrderID:    o.ID,
		FromStatus: string(o.Status),
		ToStatus:   string(order.StatusCancelled),
		ActorRole:  string(role),
		OccurredAt: s.now().UTC(),
	}
	if err := s.emitter.StatusChanged(ctx, ev); err != nil {
		log.Warn("failed to publish status change event", zap.Error(err))
	}
}

func (s *Service) restoreLoyalty(ctx context.Context, o *order.Order, rate float64, log *zap.Logger) {
	if !s.policy.RestoresLoyalty(rate) {
		return
	}
	if o.PointsUsed > 0 {
		if err := s.loyalty.RestorePoints(ctx, o.CustomerID, o.PointsUsed); err != nil {
			log.Error("failed to restore points", zap.Int64("points", o.PointsUsed), zap.Error(err))
		}
	}
	if o.CouponID != nil {
		if err := s.loyalty.RestoreCoupon(ctx, o.CustomerID, *o.CouponID); err != nil {
			log.Error("failed to restore coupon", zap.Stringp("coupon_id", o.CouponID), zap.Error(err))
		}
	}
}

func (s *Service) settleRefund(ctx context.Context, o *order.Order, rec *Record, log *zap.Logger) {
	if rec.RefundAmount <= 0 {
		// Nothing to return to the processor; the cancellation is final now.
		if err := s.records.SetRefundStatus(ctx, rec.ID, RefundCompleted, CancelCompleted, nil); err != nil {
			log.Error("failed to complete zero-amount cancellation", zap.Error(err))
			return
		}
		ev := events.CancellationCompleted{
			OrderID:              rec.OrderID,
			CancellationRecordID: rec.ID.String(),
			RefundAmount:         0,
			OccurredAt:           s.now().UTC(),
		}
		if err := s.emitter.CancellationCompleted(ctx, ev); err != nil {
			log.Warn("failed to publish cancellation completed event", zap.Error(err))
		}
		return
	}

	s.refunds.DispatchAsync(rec, o.PaymentID)
}
