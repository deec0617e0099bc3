package cancellation

import (
	"context"
	"database/sql"
	"errors"

	"deliveroute-be/internal/order"

	"github.com/google/uuid"
)

type Repository interface {
	// CancelOrderTx atomically moves the order to cancelled (guarded by its
	// version) and inserts the cancellation record. Returns false without
	// writing anything on version conflict.
	CancelOrderTx(ctx context.Context, o *order.Order, rec *Record) (bool, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	GetByOrderID(ctx context.Context, orderID string) (*Record, error)

	// SetRefundStatus advances the async refund state on the record.
	SetRefundStatus(ctx context.Context, id uuid.UUID, refundStatus RefundStatus, cancelStatus CancelStatus, gatewayRef *string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CancelOrderTx(ctx context.Context, o *order.Order, rec *Record) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var rejectionReason *string
	if rec.ReasonCategory == ReasonOwnerRejected {
		rejectionReason = rec.ReasonDetail
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = 'cancelled',
			version = version + 1,
			cancelled_at = COALESCE(cancelled_at, now()),
			cancelled_reason = $2,
			cancelled_by = $3,
			rejection_reason = $4,
			updated_at = now()
		WHERE id = $1 AND version = $5 AND status NOT IN ('delivered', 'cancelled')
	`, o.ID, string(rec.ReasonCategory), string(rec.RequestedBy), rejectionReason, o.Version)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cancellation_records (
			id, order_id, requested_by, reason_category, reason_detail,
			refund_rate, refund_amount, cancel_status, refund_status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		rec.ID, rec.OrderID, string(rec.RequestedBy), string(rec.ReasonCategory), rec.ReasonDetail,
		rec.RefundRate, rec.RefundAmount, string(rec.CancelStatus), string(rec.RefundStatus), rec.CreatedAt,
	)
	if err != nil {
		return false, err
	}

	return true, tx.Commit()
}

const recordColumns = `
	id, order_id, requested_by, reason_category, reason_detail,
	refund_rate, refund_amount, cancel_status, refund_status, gateway_ref,
	created_at, updated_at`

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+recordColumns+` FROM cancellation_records WHERE id = $1`, id)
	return scanRecord(row)
}

func (r *repository) GetByOrderID(ctx context.Context, orderID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+recordColumns+` FROM cancellation_records WHERE order_id = $1`, orderID)
	return scanRecord(row)
}

func scanRecord(row *sql.Row) (*Record, error) {
	var rec Record
	var reasonDetail, gatewayRef sql.NullString

	err := row.Scan(
		&rec.ID, &rec.OrderID, &rec.RequestedBy, &rec.ReasonCategory, &reasonDetail,
		&rec.RefundRate, &rec.RefundAmount, &rec.CancelStatus, &rec.RefundStatus, &gatewayRef,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	if reasonDetail.Valid {
		v := reasonDetail.String
		rec.ReasonDetail = &v
	}
	if gatewayRef.Valid {
		v := gatewayRef.String
		rec.GatewayRef = &v
	}
	return &rec, nil
}

func (r *repository) SetRefundStatus(ctx context.Context, id uuid.UUID, refundStatus RefundStatus, cancelStatus CancelStatus, gatewayRef *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE cancellation_records
		SET refund_status = $2,
			cancel_status = $3,
			gateway_ref = COALESCE($4, gateway_ref),
			updated_at = now()
		WHERE id = $1
	`, id, string(refundStatus), string(cancelStatus), gatewayRef)
	return err
}
