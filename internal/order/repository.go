package order

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Repository interface {
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// UpdateStatusCAS commits a forward transition iff the stored version
	// still matches expectedVersion. Phase timestamps are set exactly once
	// inside the same statement. Returns false on version conflict.
	UpdateStatusCAS(ctx context.Context, orderID string, expectedVersion int64, to Status, patch TransitionPatch) (bool, error)

	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Order, error)
	ListTerminalSince(ctx context.Context, since time.Time, limit int) ([]*Order, error)
}

// TransitionPatch carries the optional columns a transition may set.
type TransitionPatch struct {
	RiderID              *string
	EstimatedPrepMinutes *int
	DeliveryProof        *string
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `
	id, customer_id, restaurant_id, rider_id, status, version,
	menu_amount, discount_amount, points_used, delivery_fee, platform_fee, total_amount,
	coupon_id, payment_id, estimated_prep_minutes,
	confirmed_at, prepared_at, picked_up_at, delivered_at, cancelled_at,
	cancelled_reason, cancelled_by, rejection_reason, delivery_proof, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var riderID, couponID, cancelledReason, cancelledBy, rejectionReason, deliveryProof sql.NullString
	var estMinutes sql.NullInt64
	var confirmedAt, preparedAt, pickedUpAt, deliveredAt, cancelledAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.CustomerID, &o.RestaurantID, &riderID, &o.Status, &o.Version,
		&o.MenuAmount, &o.DiscountAmount, &o.PointsUsed, &o.DeliveryFee, &o.PlatformFee, &o.TotalAmount,
		&couponID, &o.PaymentID, &estMinutes,
		&confirmedAt, &preparedAt, &pickedUpAt, &deliveredAt, &cancelledAt,
		&cancelledReason, &cancelledBy, &rejectionReason, &deliveryProof, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.RiderID = strPtr(riderID)
	o.CouponID = strPtr(couponID)
	o.CancelledReason = strPtr(cancelledReason)
	o.CancelledBy = strPtr(cancelledBy)
	o.RejectionReason = strPtr(rejectionReason)
	o.DeliveryProof = strPtr(deliveryProof)
	if estMinutes.Valid {
		v := int(estMinutes.Int64)
		o.EstimatedPrepMinutes = &v
	}
	o.ConfirmedAt = timePtr(confirmedAt)
	o.PreparedAt = timePtr(preparedAt)
	o.PickedUpAt = timePtr(pickedUpAt)
	o.DeliveredAt = timePtr(deliveredAt)
	o.CancelledAt = timePtr(cancelledAt)
	return &o, nil
}

func (r *repository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, orderID)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) UpdateStatusCAS(ctx context.Context, orderID string, expectedVersion int64, to Status, patch TransitionPatch) (bool, error) {
	var estMinutes *int64
	if patch.EstimatedPrepMinutes != nil {
		v := int64(*patch.EstimatedPrepMinutes)
		estMinutes = &v
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
			version = version + 1,
			rider_id = COALESCE($2, rider_id),
			estimated_prep_minutes = COALESCE($3, estimated_prep_minutes),
			delivery_proof = COALESCE($4, delivery_proof),
			confirmed_at = CASE WHEN $1 = 'confirmed'  THEN COALESCE(confirmed_at, now())  ELSE confirmed_at END,
			prepared_at  = CASE WHEN $1 = 'ready'      THEN COALESCE(prepared_at, now())   ELSE prepared_at END,
			picked_up_at = CASE WHEN $1 = 'picked_up'  THEN COALESCE(picked_up_at, now())  ELSE picked_up_at END,
			delivered_at = CASE WHEN $1 = 'delivered'  THEN COALESCE(delivered_at, now())  ELSE delivered_at END,
			updated_at = now()
		WHERE id = $5 AND version = $6 AND status NOT IN ('delivered', 'cancelled')
	`, string(to), patch.RiderID, estMinutes, patch.DeliveryProof, orderID, expectedVersion)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+orderColumns+`
		FROM orders
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *repository) ListTerminalSince(ctx context.Context, since time.Time, limit int) ([]*Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+orderColumns+`
		FROM orders
		WHERE status IN ('delivered', 'cancelled') AND updated_at >= $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]*Order, error) {
	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
