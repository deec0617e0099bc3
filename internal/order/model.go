package order

import (
	"time"

	"deliveroute-be/internal/actor"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusPreparing  Status = "preparing"
	StatusReady      Status = "ready"
	StatusPickedUp   Status = "picked_up"
	StatusDelivering Status = "delivering"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Order is the canonical persisted record of one customer purchase.
// Version is the optimistic-concurrency token: every committed transition
// increments it, and writes carry the expected value.
type Order struct {
	ID           string
	CustomerID   string
	RestaurantID string
	RiderID      *string

	Status  Status
	Version int64

	// Monetary breakdown, immutable once the order is placed. Amounts are
	// in the smallest currency unit.
	MenuAmount     int64
	DiscountAmount int64
	PointsUsed     int64
	DeliveryFee    int64
	PlatformFee    int64
	TotalAmount    int64
	CouponID       *string
	PaymentID      string

	EstimatedPrepMinutes *int

	// Phase timestamps, each settable at most once.
	ConfirmedAt *time.Time
	PreparedAt  *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time

	CancelledReason *string
	CancelledBy     *string
	RejectionReason *string
	DeliveryProof   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EnsureParticipant rejects actors operating on orders they are not a party
// to. Owner identities carry the restaurant id; a rider matches only once
// assigned, so any rider may claim an unassigned pickup. Admin and system
// actors are exempt.
func EnsureParticipant(o *Order, act actor.Actor) error {
	switch act.Role {
	case actor.RoleCustomer:
		if o.CustomerID != act.ID {
			return ErrForbidden
		}
	case actor.RoleOwner:
		if o.RestaurantID != act.ID {
			return ErrForbidden
		}
	case actor.RoleRider:
		if o.RiderID != nil && *o.RiderID != act.ID {
			return ErrForbidden
		}
	}
	return nil
}
