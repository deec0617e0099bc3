package webhook

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockCancellationService is a mock implementation of CancellationService
type MockCancellationService struct {
	mock.Mock
}

func (m *MockCancellationService) HandleRefundResult(ctx context.Context, recordID uuid.UUID, succeeded bool, gatewayRef string) error {
	args := m.Called(ctx, recordID, succeeded, gatewayRef)
	return args.Error(0)
}

// MockGateway only needs callback verification here.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Refund(ctx context.Context, paymentID string, referenceID uuid.UUID, amount int64) error {
	args := m.Called(ctx, paymentID, referenceID, amount)
	return args.Error(0)
}

func (m *MockGateway) VerifyCallback(r *http.Request) error {
	args := m.Called(r)
	return args.Error(0)
}

func postCallback(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhooks/refund", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	h.Handle(rr, req)
	return rr
}

func TestHandler_Handle(t *testing.T) {
	recID := uuid.New()

	t.Run("Succeeded", func(t *testing.T) {
		svc := new(MockCancellationService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyCallback", mock.Anything).Return(nil).Once()
		svc.On("HandleRefundResult", mock.Anything, recID, true, "rfd-001").Return(nil).Once()

		rr := postCallback(h, `{"reference_id": "`+recID.String()+`", "refund_id": "rfd-001", "status": "SUCCEEDED"}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Failed", func(t *testing.T) {
		svc := new(MockCancellationService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyCallback", mock.Anything).Return(nil).Once()
		svc.On("HandleRefundResult", mock.Anything, recID, false, "rfd-001").Return(nil).Once()

		rr := postCallback(h, `{"reference_id": "`+recID.String()+`", "refund_id": "rfd-001", "status": "FAILED"}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("IntermediateStatusAcked", func(t *testing.T) {
		svc := new(MockCancellationService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyCallback", mock.Anything).Return(nil).Once()

		rr := postCallback(h, `{"reference_id": "`+recID.String()+`", "status": "PENDING"}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertNotCalled(t, "HandleRefundResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InvalidSignature", func(t *testing.T) {
		svc := new(MockCancellationService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyCallback", mock.Anything).Return(errors.New("invalid webhook signature")).Once()

		rr := postCallback(h, `{}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		svc.AssertNotCalled(t, "HandleRefundResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		svc := new(MockCancellationService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyCallback", mock.Anything).Return(nil).Once()

		rr := postCallback(h, `{invalid`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("InvalidReferenceID", func(t *testing.T) {
		svc := new(MockCancellationService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyCallback", mock.Anything).Return(nil).Once()

		rr := postCallback(h, `{"reference_id": "not-a-uuid", "status": "SUCCEEDED"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("ServiceError", func(t *testing.T) {
		svc := new(MockCancellationService)
		gw := new(MockGateway)
		h := NewHandler(svc, gw)

		gw.On("VerifyCallback", mock.Anything).Return(nil).Once()
		svc.On("HandleRefundResult", mock.Anything, recID, true, "").Return(errors.New("db down")).Once()

		rr := postCallback(h, `{"reference_id": "`+recID.String()+`", "status": "SUCCEEDED"}`)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
