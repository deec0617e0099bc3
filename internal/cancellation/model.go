package cancellation

import (
	"time"

	"deliveroute-be/internal/actor"

	"github.com/google/uuid"
)

type CancelStatus string

const (
	CancelRequested CancelStatus = "requested"
	CancelApproved  CancelStatus = "approved"
	CancelRejected  CancelStatus = "rejected"
	CancelCompleted CancelStatus = "completed"
)

type RefundStatus string

const (
	RefundPending    RefundStatus = "pending"
	RefundProcessing RefundStatus = "processing"
	RefundCompleted  RefundStatus = "completed"
	RefundFailed     RefundStatus = "failed"
)

type ReasonCategory string

const (
	ReasonCustomerChangedMind ReasonCategory = "customer_changed_mind"
	ReasonCustomerOrderError  ReasonCategory = "customer_order_error"
	ReasonOwnerOutOfStock     ReasonCategory = "owner_out_of_stock"
	ReasonOwnerClosed         ReasonCategory = "owner_closed"
	ReasonOwnerRejected       ReasonCategory = "owner_rejected"
	ReasonTimeout             ReasonCategory = "timeout"
	ReasonAdminOverride       ReasonCategory = "admin_override"
)

// reasonsByRole enumerates the categories each role may submit.
var reasonsByRole = map[actor.Role][]ReasonCategory{
	actor.RoleCustomer: {ReasonCustomerChangedMind, ReasonCustomerOrderError},
	actor.RoleOwner:    {ReasonOwnerOutOfStock, ReasonOwnerClosed, ReasonOwnerRejected},
	actor.RoleSystem:   {ReasonTimeout},
	actor.RoleAdmin:    {ReasonAdminOverride},
}

// ValidReason reports whether the category is one the role may use.
func ValidReason(role actor.Role, category ReasonCategory) bool {
	for _, c := range reasonsByRole[role] {
		if c == category {
			return true
		}
	}
	return false
}

// Record is written once per cancellation that reaches a decision. Exactly
// one exists per cancelled order (unique index on order_id); it is never
// deleted, and is immutable once completed or failed.
type Record struct {
	ID             uuid.UUID
	OrderID        string
	RequestedBy    actor.Role
	ReasonCategory ReasonCategory
	ReasonDetail   *string
	RefundRate     float64
	RefundAmount   int64
	CancelStatus   CancelStatus
	RefundStatus   RefundStatus
	GatewayRef     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
