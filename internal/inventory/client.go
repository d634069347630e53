package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pulse-erp/fulfillment/internal/httpx"
)

// Client is the order service's view of the inventory store. Reserve and
// Release are idempotent per (sku, order_id) on the server, so callers may
// retry after timeouts without double-reserving.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) Reserve(ctx context.Context, sku, orderID string, qty int) error {
	body := map[string]any{"order_id": orderID, "qty": qty}
	return c.post(ctx, fmt.Sprintf("%s/inventory/%s/reserve", c.BaseURL, sku), sku, qty, body)
}

func (c *Client) Release(ctx context.Context, sku, orderID string) error {
	body := map[string]any{"order_id": orderID}
	return c.post(ctx, fmt.Sprintf("%s/inventory/%s/release", c.BaseURL, sku), sku, 0, body)
}

func (c *Client) post(ctx context.Context, url, sku string, qty int, body map[string]any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return nil
	}

	var e struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&e)

	switch e.Error.Kind {
	case httpx.KindInsufficientStock:
		return &InsufficientStockError{SKU: sku, Requested: qty}
	case httpx.KindNotFound:
		return fmt.Errorf("sku %s: %w", sku, ErrNotFound)
	default:
		return fmt.Errorf("inventory call %s: status %d kind %q: %s",
			url, resp.StatusCode, e.Error.Kind, e.Error.Message)
	}
}
