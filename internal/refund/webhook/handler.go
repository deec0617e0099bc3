package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"deliveroute-be/internal/logger"
	"deliveroute-be/internal/refund"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CallbackPayload is what the payment processor posts back once a refund
// has settled on its side.
type CallbackPayload struct {
	ReferenceID string `json:"reference_id"`
	RefundID    string `json:"refund_id"`
	Status      string `json:"status"`
}

type CancellationService interface {
	HandleRefundResult(ctx context.Context, recordID uuid.UUID, succeeded bool, gatewayRef string) error
}

type Handler struct {
	Svc     CancellationService
	Gateway refund.Gateway
}

func NewHandler(svc CancellationService, gateway refund.Gateway) *Handler {
	return &Handler{Svc: svc, Gateway: gateway}
}

// Handle is the refund callback route. The processor retries until it gets
// a 2xx, so everything downstream must be idempotent.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	if err := h.Gateway.VerifyCallback(r); err != nil {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var payload CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	recordID, err := uuid.Parse(payload.ReferenceID)
	if err != nil {
		http.Error(w, "invalid reference id", http.StatusBadRequest)
		return
	}

	log := logger.FromCtx(r.Context()).With(
		zap.String("record_id", payload.ReferenceID),
		zap.String("status", payload.Status),
	)

	var succeeded bool
	switch payload.Status {
	case "SUCCEEDED":
		succeeded = true
	case "FAILED":
		succeeded = false
	default:
		// Intermediate statuses are not interesting; ack so the processor
		// stops retrying.
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.Svc.HandleRefundResult(r.Context(), recordID, succeeded, payload.RefundID); err != nil {
		log.Error("failed to apply refund result", zap.Error(err))
		http.Error(w, "failed to apply refund result", http.StatusInternalServerError)
		return
	}

	log.Info("refund callback applied")
	w.WriteHeader(http.StatusOK)
}
