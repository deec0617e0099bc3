package events

import (
	"context"
	"time"
)

// StatusChanged is published on every committed order transition.
type StatusChanged struct {
	OrderID    string    `json:"order_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ActorRole  string    `json:"actor_role"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CancellationCompleted is published once a cancellation's refund has
// settled, for the notification dispatcher and settlement reader.
type CancellationCompleted struct {
	OrderID              string    `json:"order_id"`
	CancellationRecordID string    `json:"cancellation_record_id"`
	RefundAmount         int64     `json:"refund_amount"`
	OccurredAt           time.Time `json:"occurred_at"`
}

type Emitter interface {
	StatusChanged(ctx context.Context, ev StatusChanged) error
	CancellationCompleted(ctx context.Context, ev CancellationCompleted) error
}

// Nop discards events; used when no broker is configured.
type Nop struct{}

func (Nop) StatusChanged(context.Context, StatusChanged) error                 { return nil }
func (Nop) CancellationCompleted(context.Context, CancellationCompleted) error { return nil }
