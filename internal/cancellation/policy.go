package cancellation

import (
	"math"
	"time"

	"deliveroute-be/internal/actor"
	"deliveroute-be/internal/order"
)

// Policy holds the configurable cancellation rules. The concrete rates and
// windows are product policy, injected from config rather than hard-coded.
type Policy struct {
	// PreparingGraceWindow is how long after confirmation a customer may
	// still cancel while the kitchen is preparing.
	PreparingGraceWindow time.Duration
	// PreparingRefundRate applies to cancellations inside that window.
	PreparingRefundRate float64
	// PartialRestoreLoyalty restores consumed points/coupons even on
	// partial-rate cancellations.
	PartialRestoreLoyalty bool
}

type Eligibility struct {
	Allowed    bool
	RefundRate float64
	Message    string
}

// Evaluate decides whether the requester may cancel the order right now and
// at which refund rate. Pure: the caller supplies the clock.
func (p Policy) Evaluate(o *order.Order, role actor.Role, now time.Time) Eligibility {
	if o.Status.Terminal() {
		return Eligibility{Message: "order already delivered or cancelled"}
	}

	switch role {
	case actor.RoleCustomer:
		switch o.Status {
		case order.StatusPending, order.StatusConfirmed:
			return Eligibility{Allowed: true, RefundRate: 1.0, Message: "full refund"}
		case order.StatusPreparing:
			if o.ConfirmedAt != nil && now.Sub(*o.ConfirmedAt) <= p.PreparingGraceWindow {
				return Eligibility{Allowed: true, RefundRate: p.PreparingRefundRate, Message: "partial refund within grace window"}
			}
			return Eligibility{Message: "preparation is under way; please raise a dispute instead"}
		default:
			return Eligibility{Message: "only an administrator can cancel at this stage"}
		}

	case actor.RoleOwner:
		if o.Status == order.StatusPending {
			return Eligibility{Allowed: true, RefundRate: 1.0, Message: "order declined before acceptance"}
		}
		return Eligibility{Message: "owners may only decline orders that are still pending"}

	case actor.RoleSystem:
		if o.Status == order.StatusPending {
			return Eligibility{Allowed: true, RefundRate: 1.0, Message: "no owner response within the acceptance window"}
		}
		return Eligibility{Message: "automatic cancellation applies to pending orders only"}

	case actor.RoleAdmin:
		// Admins bypass the rate table; the override rate comes with the
		// request and the service enforces the mandatory reason detail.
		return Eligibility{Allowed: true, RefundRate: 1.0, Message: "admin override; refund rate supplied on request"}
	}

	return Eligibility{Message: "role may not cancel orders"}
}

// ComputeRefund returns round(totalPaid * rate) clamped to [0, totalPaid].
// Once the order has been picked up, delivery and platform fees cover work
// already rendered and are excluded unless the admin override explicitly
// marks them refundable.
func ComputeRefund(o *order.Order, rate float64, feesRefundable bool) int64 {
	totalPaid := o.TotalAmount
	if o.PickedUpAt != nil && !feesRefundable {
		totalPaid -= o.DeliveryFee + o.PlatformFee
	}
	if totalPaid < 0 {
		totalPaid = 0
	}

	amount := int64(math.Round(float64(totalPaid) * rate))
	if amount < 0 {
		return 0
	}
	if amount > totalPaid {
		return totalPaid
	}
	return amount
}

// RestoresLoyalty reports whether consumed points and coupons go back to
// the customer for a cancellation at the given rate.
func (p Policy) RestoresLoyalty(rate float64) bool {
	if rate >= 1.0 {
		return true
	}
	return rate > 0 && p.PartialRestoreLoyalty
}
