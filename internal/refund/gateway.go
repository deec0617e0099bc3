package refund

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"deliveroute-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway is the async boundary to the external payment processor. A call
// to Refund only submits the request; final state arrives on the callback
// webhook. Submissions are idempotent per reference id on the processor
// side, and the dispatcher additionally guards against double dispatch.
type Gateway interface {
	Refund(ctx context.Context, paymentID string, referenceID uuid.UUID, amount int64) error
	VerifyCallback(r *http.Request) error
}

type httpGateway struct {
	apiKey        string
	baseURL       string
	callbackToken string
	httpClient    *http.Client
}

func NewHTTPGateway(baseURL, apiKey, callbackToken string) Gateway {
	if apiKey == "" {
		logger.L().Warn("refund gateway API key is empty")
	}

	return &httpGateway{
		apiKey:        apiKey,
		baseURL:       baseURL,
		callbackToken: callbackToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type refundRequest struct {
	PaymentID   string `json:"payment_id"`
	ReferenceID string `json:"reference_id"`
	Amount      int64  `json:"amount"`
}

type refundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

func (g *httpGateway) Refund(ctx context.Context, paymentID string, referenceID uuid.UUID, amount int64) error {
	log := logger.L().With(
		zap.String("payment_id", paymentID),
		zap.String("reference_id", referenceID.String()),
		zap.Int64("amount", amount),
	)

	body, err := json.Marshal(refundRequest{
		PaymentID:   paymentID,
		ReferenceID: referenceID.String(),
		Amount:      amount,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/v1/refunds", bytes.NewBuffer(body))
	if err != nil {
		log.Error("failed creating refund request", zap.Error(err))
		return err
	}

	req.SetBasicAuth(g.apiKey, "")
	req.Header.Add("Content-Type", "application/json")
	// The processor de-duplicates on this key across its own retries.
	req.Header.Add("Idempotency-Key", referenceID.String())

	log.Info("submitting refund to processor")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Error("refund request failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read refund response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		log.Error("refund processor returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", respBytes),
		)
		return fmt.Errorf("refund gateway error: %s", string(respBytes))
	}

	var res refundResponse
	if err := json.Unmarshal(respBytes, &res); err != nil {
		log.Error("failed decoding refund response", zap.Error(err))
		return err
	}

	log.Info("refund submitted",
		zap.String("refund_id", res.RefundID),
		zap.String("status", res.Status),
	)
	return nil
}

func (g *httpGateway) VerifyCallback(r *http.Request) error {
	sig := r.Header.Get("x-callback-token")

	if g.callbackToken == "" {
		return nil // skip in dev
	}

	if sig != g.callbackToken {
		return errors.New("invalid webhook signature")
	}
	return nil
}
