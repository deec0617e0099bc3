package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"deliveroute-be/internal/actor"
	"deliveroute-be/internal/cancellation"
	"deliveroute-be/internal/order"

	"github.com/gin-gonic/gin"
)

type OrderService interface {
	Advance(ctx context.Context, act actor.Actor, orderID string, action order.Action, params order.AdvanceParams) (*order.Order, error)
	Get(ctx context.Context, orderID string) (*order.Order, error)
	TerminalOrders(ctx context.Context, since time.Time, limit int) ([]*order.Order, error)
}

type CancellationService interface {
	CheckCancelability(ctx context.Context, act actor.Actor, orderID string) (*cancellation.Eligibility, error)
	RequestCancellation(ctx context.Context, act actor.Actor, req cancellation.CancelRequest) (*cancellation.Record, error)
}

type Handler struct {
	Orders  OrderService
	Cancels CancellationService
}

func NewHandler(orders OrderService, cancels CancellationService) *Handler {
	return &Handler{Orders: orders, Cancels: cancels}
}

type advanceRequest struct {
	Action           string  `json:"action" binding:"required"`
	EstimatedMinutes *int    `json:"estimated_minutes,omitempty"`
	DeliveryProof    *string `json:"delivery_proof,omitempty"`
}

type cancelRequest struct {
	ReasonCategory string   `json:"reason_category" binding:"required"`
	ReasonDetail   *string  `json:"reason_detail,omitempty"`
	RefundRate     *float64 `json:"refund_rate,omitempty"`
	FeesRefundable bool     `json:"fees_refundable,omitempty"`
}

func (h *Handler) AdvanceStatus(c *gin.Context) {
	act, ok := actor.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no authenticated actor"})
		return
	}

	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := h.Orders.Advance(c.Request.Context(), act, c.Param("id"), order.Action(req.Action), order.AdvanceParams{
		EstimatedMinutes: req.EstimatedMinutes,
		DeliveryProof:    req.DeliveryProof,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":   o.ID,
		"new_status": o.Status,
		"version":    o.Version,
	})
}

func (h *Handler) GetOrder(c *gin.Context) {
	act, ok := actor.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no authenticated actor"})
		return
	}

	o, err := h.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := order.EnsureParticipant(o, act); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":               o.ID,
		"status":                 o.Status,
		"version":                o.Version,
		"total_amount":           o.TotalAmount,
		"estimated_prep_minutes": o.EstimatedPrepMinutes,
		"confirmed_at":           o.ConfirmedAt,
		"prepared_at":            o.PreparedAt,
		"picked_up_at":           o.PickedUpAt,
		"delivered_at":           o.DeliveredAt,
		"cancelled_at":           o.CancelledAt,
		"cancelled_reason":       o.CancelledReason,
		"delivery_proof":         o.DeliveryProof,
	})
}

func (h *Handler) CheckCancelability(c *gin.Context) {
	act, ok := actor.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no authenticated actor"})
		return
	}

	el, err := h.Cancels.CheckCancelability(c.Request.Context(), act, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"can_cancel":  el.Allowed,
		"refund_rate": el.RefundRate,
		"message":     el.Message,
	})
}

func (h *Handler) RequestCancellation(c *gin.Context) {
	act, ok := actor.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no authenticated actor"})
		return
	}

	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.Cancels.RequestCancellation(c.Request.Context(), act, cancellation.CancelRequest{
		OrderID:        c.Param("id"),
		ReasonCategory: cancellation.ReasonCategory(req.ReasonCategory),
		ReasonDetail:   req.ReasonDetail,
		OverrideRate:   req.RefundRate,
		FeesRefundable: req.FeesRefundable,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cancellation_record_id": rec.ID,
		"cancel_status":          rec.CancelStatus,
		"refund_status":          rec.RefundStatus,
		"refund_rate":            rec.RefundRate,
		"refund_amount":          rec.RefundAmount,
	})
}

// TerminalOrders serves the settlement reader: terminal-state orders since
// a timestamp, for payout computation.
func (h *Handler) TerminalOrders(c *gin.Context) {
	act, ok := actor.FromContext(c.Request.Context())
	if !ok || act.Role != actor.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "settlement listing is admin-only"})
		return
	}

	since := time.Time{}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		since = t
	}

	orders, err := h.Orders.TerminalOrders(c.Request.Context(), since, 500)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]gin.H, 0, len(orders))
	for _, o := range orders {
		out = append(out, gin.H{
			"order_id":      o.ID,
			"restaurant_id": o.RestaurantID,
			"rider_id":      o.RiderID,
			"status":        o.Status,
			"total_amount":  o.TotalAmount,
			"delivery_fee":  o.DeliveryFee,
			"platform_fee":  o.PlatformFee,
			"delivered_at":  o.DeliveredAt,
			"cancelled_at":  o.CancelledAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

// writeError maps engine errors onto HTTP statuses: validation rejections
// are user-correctable, conflicts invite a fresh read, the rest are
// infrastructure failures.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, order.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case order.IsValidationError(err) || cancellation.IsValidationError(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, order.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, cancellation.ErrRefundGateway):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
