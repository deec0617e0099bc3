package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deliveroute-be/internal/actor"
	"deliveroute-be/internal/cancellation"
	"deliveroute-be/internal/order"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOrderService is a mock implementation of OrderService
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Advance(ctx context.Context, act actor.Actor, orderID string, action order.Action, params order.AdvanceParams) (*order.Order, error) {
	args := m.Called(ctx, act, orderID, action, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) Get(ctx context.Context, orderID string) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) TerminalOrders(ctx context.Context, since time.Time, limit int) ([]*order.Order, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

// MockCancellationService is a mock implementation of CancellationService
type MockCancellationService struct {
	mock.Mock
}

func (m *MockCancellationService) CheckCancelability(ctx context.Context, act actor.Actor, orderID string) (*cancellation.Eligibility, error) {
	args := m.Called(ctx, act, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cancellation.Eligibility), args.Error(1)
}

func (m *MockCancellationService) RequestCancellation(ctx context.Context, act actor.Actor, req cancellation.CancelRequest) (*cancellation.Record, error) {
	args := m.Called(ctx, act, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cancellation.Record), args.Error(1)
}

// testRouter wires the handlers behind a middleware that injects a fixed
// actor, standing in for the JWT layer.
func testRouter(h *Handler, act *actor.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if act != nil {
			c.Request = c.Request.WithContext(actor.WithActor(c.Request.Context(), *act))
		}
		c.Next()
	})
	r.POST("/api/orders/:id/status", h.AdvanceStatus)
	r.GET("/api/orders/:id", h.GetOrder)
	r.GET("/api/orders/:id/cancelability", h.CheckCancelability)
	r.POST("/api/orders/:id/cancellation", h.RequestCancellation)
	r.GET("/api/settlement/orders", h.TerminalOrders)
	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandler_AdvanceStatus(t *testing.T) {
	owner := actor.Actor{ID: "owner-1", Role: actor.RoleOwner}

	t.Run("Success", func(t *testing.T) {
		orders := new(MockOrderService)
		h := NewHandler(orders, new(MockCancellationService))
		r := testRouter(h, &owner)

		orders.On("Advance", mock.Anything, owner, "ord-1", order.ActionAccept, mock.MatchedBy(func(p order.AdvanceParams) bool {
			return p.EstimatedMinutes != nil && *p.EstimatedMinutes == 20
		})).Return(&order.Order{ID: "ord-1", Status: order.StatusPreparing, Version: 2}, nil).Once()

		rr := doJSON(r, "POST", "/api/orders/ord-1/status", `{"action": "accept", "estimated_minutes": 20}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "ord-1", resp["order_id"])
		assert.Equal(t, "preparing", resp["new_status"])
		assert.Equal(t, float64(2), resp["version"])
		orders.AssertExpectations(t)
	})

	t.Run("NoActor", func(t *testing.T) {
		h := NewHandler(new(MockOrderService), new(MockCancellationService))
		r := testRouter(h, nil)

		rr := doJSON(r, "POST", "/api/orders/ord-1/status", `{"action": "accept"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("MissingAction", func(t *testing.T) {
		h := NewHandler(new(MockOrderService), new(MockCancellationService))
		r := testRouter(h, &owner)

		rr := doJSON(r, "POST", "/api/orders/ord-1/status", `{}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("ErrorMapping", func(t *testing.T) {
		tests := []struct {
			name     string
			err      error
			wantCode int
		}{
			{"NotFound", order.ErrOrderNotFound, http.StatusNotFound},
			{"Forbidden", order.ErrForbidden, http.StatusForbidden},
			{"InvalidTransition", order.ErrInvalidTransition, http.StatusUnprocessableEntity},
			{"AlreadyTerminal", order.ErrAlreadyTerminal, http.StatusUnprocessableEntity},
			{"ProofRequired", order.ErrProofRequired, http.StatusUnprocessableEntity},
			{"Conflict", order.ErrConcurrentModification, http.StatusConflict},
			{"Internal", errors.New("db down"), http.StatusInternalServerError},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				orders := new(MockOrderService)
				h := NewHandler(orders, new(MockCancellationService))
				r := testRouter(h, &owner)

				orders.On("Advance", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err).Once()

				rr := doJSON(r, "POST", "/api/orders/ord-1/status", `{"action": "accept"}`)
				assert.Equal(t, tt.wantCode, rr.Code)
			})
		}
	})
}

func TestHandler_GetOrder(t *testing.T) {
	t.Run("OwnOrder", func(t *testing.T) {
		customer := actor.Actor{ID: "cust-1", Role: actor.RoleCustomer}
		orders := new(MockOrderService)
		h := NewHandler(orders, new(MockCancellationService))
		r := testRouter(h, &customer)

		orders.On("Get", mock.Anything, "ord-1").
			Return(&order.Order{ID: "ord-1", CustomerID: "cust-1", Status: order.StatusConfirmed, Version: 1, TotalAmount: 11500}, nil).Once()

		rr := doJSON(r, "GET", "/api/orders/ord-1", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "confirmed", resp["status"])
		assert.Equal(t, float64(11500), resp["total_amount"])
	})

	t.Run("OtherCustomersOrder", func(t *testing.T) {
		customer := actor.Actor{ID: "cust-2", Role: actor.RoleCustomer}
		orders := new(MockOrderService)
		h := NewHandler(orders, new(MockCancellationService))
		r := testRouter(h, &customer)

		orders.On("Get", mock.Anything, "ord-1").
			Return(&order.Order{ID: "ord-1", CustomerID: "cust-1"}, nil).Once()

		rr := doJSON(r, "GET", "/api/orders/ord-1", "")
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		admin := actor.Actor{ID: "admin-1", Role: actor.RoleAdmin}
		orders := new(MockOrderService)
		h := NewHandler(orders, new(MockCancellationService))
		r := testRouter(h, &admin)

		orders.On("Get", mock.Anything, "missing").Return(nil, order.ErrOrderNotFound).Once()

		rr := doJSON(r, "GET", "/api/orders/missing", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestHandler_CheckCancelability(t *testing.T) {
	customer := actor.Actor{ID: "cust-1", Role: actor.RoleCustomer}

	t.Run("Allowed", func(t *testing.T) {
		cancels := new(MockCancellationService)
		h := NewHandler(new(MockOrderService), cancels)
		r := testRouter(h, &customer)

		cancels.On("CheckCancelability", mock.Anything, customer, "ord-1").
			Return(&cancellation.Eligibility{Allowed: true, RefundRate: 1.0, Message: "full refund"}, nil).Once()

		rr := doJSON(r, "GET", "/api/orders/ord-1/cancelability", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["can_cancel"])
		assert.Equal(t, 1.0, resp["refund_rate"])
		assert.Equal(t, "full refund", resp["message"])
	})

	t.Run("NotFound", func(t *testing.T) {
		cancels := new(MockCancellationService)
		h := NewHandler(new(MockOrderService), cancels)
		r := testRouter(h, &customer)

		cancels.On("CheckCancelability", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, order.ErrOrderNotFound).Once()

		rr := doJSON(r, "GET", "/api/orders/missing/cancelability", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestHandler_RequestCancellation(t *testing.T) {
	customer := actor.Actor{ID: "cust-1", Role: actor.RoleCustomer}

	t.Run("Success", func(t *testing.T) {
		cancels := new(MockCancellationService)
		h := NewHandler(new(MockOrderService), cancels)
		r := testRouter(h, &customer)

		rec := &cancellation.Record{
			ID:           uuid.New(),
			OrderID:      "ord-1",
			RefundRate:   1.0,
			RefundAmount: 11500,
			CancelStatus: cancellation.CancelApproved,
			RefundStatus: cancellation.RefundPending,
		}
		cancels.On("RequestCancellation", mock.Anything, customer, mock.MatchedBy(func(req cancellation.CancelRequest) bool {
			return req.OrderID == "ord-1" && req.ReasonCategory == cancellation.ReasonCustomerChangedMind
		})).Return(rec, nil).Once()

		rr := doJSON(r, "POST", "/api/orders/ord-1/cancellation", `{"reason_category": "customer_changed_mind"}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, rec.ID.String(), resp["cancellation_record_id"])
		assert.Equal(t, "approved", resp["cancel_status"])
		assert.Equal(t, float64(11500), resp["refund_amount"])
	})

	t.Run("MissingReason", func(t *testing.T) {
		h := NewHandler(new(MockOrderService), new(MockCancellationService))
		r := testRouter(h, &customer)

		rr := doJSON(r, "POST", "/api/orders/ord-1/cancellation", `{}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("NotEligible", func(t *testing.T) {
		cancels := new(MockCancellationService)
		h := NewHandler(new(MockOrderService), cancels)
		r := testRouter(h, &customer)

		cancels.On("RequestCancellation", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, cancellation.ErrNotEligible).Once()

		rr := doJSON(r, "POST", "/api/orders/ord-1/cancellation", `{"reason_category": "customer_changed_mind"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("AdminOverridePassesRate", func(t *testing.T) {
		admin := actor.Actor{ID: "admin-1", Role: actor.RoleAdmin}
		cancels := new(MockCancellationService)
		h := NewHandler(new(MockOrderService), cancels)
		r := testRouter(h, &admin)

		cancels.On("RequestCancellation", mock.Anything, admin, mock.MatchedBy(func(req cancellation.CancelRequest) bool {
			return req.OverrideRate != nil && *req.OverrideRate == 0.8 &&
				req.ReasonDetail != nil && req.FeesRefundable
		})).Return(&cancellation.Record{ID: uuid.New()}, nil).Once()

		rr := doJSON(r, "POST", "/api/orders/ord-1/cancellation",
			`{"reason_category": "admin_override", "reason_detail": "dispute upheld", "refund_rate": 0.8, "fees_refundable": true}`)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestHandler_TerminalOrders(t *testing.T) {
	admin := actor.Actor{ID: "admin-1", Role: actor.RoleAdmin}

	t.Run("AdminOnly", func(t *testing.T) {
		customer := actor.Actor{ID: "cust-1", Role: actor.RoleCustomer}
		h := NewHandler(new(MockOrderService), new(MockCancellationService))
		r := testRouter(h, &customer)

		rr := doJSON(r, "GET", "/api/settlement/orders", "")
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("Success", func(t *testing.T) {
		orders := new(MockOrderService)
		h := NewHandler(orders, new(MockCancellationService))
		r := testRouter(h, &admin)

		since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		delivered := since.Add(2 * time.Hour)
		orders.On("TerminalOrders", mock.Anything, since, 500).Return([]*order.Order{
			{ID: "ord-1", RestaurantID: "rest-1", Status: order.StatusDelivered, TotalAmount: 11500, DeliveredAt: &delivered},
		}, nil).Once()

		rr := doJSON(r, "GET", "/api/settlement/orders?since=2026-03-01T00:00:00Z", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Orders []map[string]any `json:"orders"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Orders, 1)
		assert.Equal(t, "ord-1", resp.Orders[0]["order_id"])
		assert.Equal(t, "delivered", resp.Orders[0]["status"])
	})

	t.Run("BadSince", func(t *testing.T) {
		h := NewHandler(new(MockOrderService), new(MockCancellationService))
		r := testRouter(h, &admin)

		rr := doJSON(r, "GET", "/api/settlement/orders?since=yesterday", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
