package loyalty

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"deliveroute-be/internal/logger"

	"go.uber.org/zap"
)

// Client talks to the loyalty/points subsystem. The engine only calls it to
// give back what a cancelled order consumed.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) RestorePoints(ctx context.Context, customerID string, points int64) error {
	return c.post(ctx, "/v1/points/restore", map[string]any{
		"customer_id": customerID,
		"points":      points,
	})
}

func (c *Client) RestoreCoupon(ctx context.Context, customerID, couponID string) error {
	return c.post(ctx, "/v1/coupons/restore", map[string]any{
		"customer_id": customerID,
		"coupon_id":   couponID,
	})
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Add("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.L().Error("loyalty request failed", zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("loyalty error (%s): %s", path, string(respBytes))
	}
	return nil
}
