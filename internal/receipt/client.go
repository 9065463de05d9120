// Package receipt fetches digital purchase receipts from the retailer's
// customer API. Authentication uses the session token cookie the retailer
// issues to logged-in shoppers.
package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mkessler-dev/pantrysync/internal/errors"
	"github.com/mkessler-dev/pantrysync/internal/logging"
)

// Config holds the receipt API connection settings.
type Config struct {
	BaseURL string        // receipt list endpoint, receipt ids are appended
	Token   string        // session token sent as the rstp cookie
	Timeout time.Duration // per-request timeout
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://shop.rewe.de/api/receipts/",
		Timeout: 10 * time.Second,
	}
}

// Summary describes one receipt in the account's purchase history. The
// timestamp is kept as the API's own string, the format is not stable
// enough across store systems to parse.
type Summary struct {
	ID         string `json:"receiptId"`
	Timestamp  string `json:"receiptTimestamp"`
	TotalMinor int    `json:"receiptTotalPrice"` // total in cents
}

// Total returns the receipt total in major currency units.
func (s Summary) Total() float64 {
	return float64(s.TotalMinor) / 100
}

// LineItem is one purchased article on a receipt.
type LineItem struct {
	ProductName  string  // label as printed on the receipt
	RetailerCode string  // retailer-internal article number
	Quantity     int     // units purchased
	UnitPrice    float64 // price per unit in major currency units
}

// receiptListResponse wraps the purchase history payload.
type receiptListResponse struct {
	Items []Summary `json:"items"`
}

// article mirrors one raw line item as the API serializes it.
type article struct {
	ProductName string          `json:"productName"`
	Nan         json.RawMessage `json:"nan"` // article number, string or number
	Quantity    int             `json:"quantity"`
	UnitPrice   int             `json:"unitPrice"` // cents
}

// receiptDetailResponse wraps a single receipt's contents.
type receiptDetailResponse struct {
	Articles []article `json:"articles"`
}

// Client retrieves receipts from the retailer API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new receipt API client.
func NewClient(config Config) (*Client, error) {
	if config.Token == "" {
		return nil, errors.New(fmt.Errorf("receipt API token is required")).
			Component("receipt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logging.ForService("receipt"),
	}, nil
}

// get issues an authenticated GET and returns the response body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("receipt").
			Category(errors.CategoryNetwork).
			Context("url", url).
			Build()
	}
	// The endpoint rejects non-browser user agents.
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.AddCookie(&http.Cookie{Name: "rstp", Value: c.config.Token})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("receipt").
			Category(errors.CategoryNetwork).
			Context("url", url).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(fmt.Errorf("receipt API returned status %d", resp.StatusCode)).
			Component("receipt").
			Category(errors.CategoryHTTP).
			Context("url", url).
			Context("status_code", resp.StatusCode).
			Build()
	}

	return io.ReadAll(resp.Body)
}

// ListReceipts returns the account's recent receipts, most recent first,
// capped at limit entries. A limit of 0 or less returns all entries.
func (c *Client) ListReceipts(ctx context.Context, limit int) ([]Summary, error) {
	body, err := c.get(ctx, c.config.BaseURL)
	if err != nil {
		return nil, err
	}

	var payload receiptListResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.New(err).
			Component("receipt").
			Category(errors.CategoryHTTP).
			Context("url", c.config.BaseURL).
			Build()
	}
	if payload.Items == nil {
		return nil, errors.New(fmt.Errorf("receipt list response has no items field")).
			Component("receipt").
			Category(errors.CategoryHTTP).
			Context("url", c.config.BaseURL).
			Build()
	}

	items := payload.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// FetchLineItems returns the purchased articles of one receipt with unit
// prices converted from cents. Articles without a product name are skipped
// with a warning.
func (c *Client) FetchLineItems(ctx context.Context, receiptID string) ([]LineItem, error) {
	body, err := c.get(ctx, c.config.BaseURL+receiptID)
	if err != nil {
		return nil, err
	}

	var payload receiptDetailResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.New(err).
			Component("receipt").
			Category(errors.CategoryHTTP).
			Context("receipt_id", receiptID).
			Build()
	}

	items := make([]LineItem, 0, len(payload.Articles))
	for i := range payload.Articles {
		a := &payload.Articles[i]
		if a.ProductName == "" {
			c.logger.Warn("Skipping article without product name",
				"receipt_id", receiptID,
				"retailer_code", decodeArticleNumber(a.Nan))
			continue
		}
		items = append(items, LineItem{
			ProductName:  a.ProductName,
			RetailerCode: decodeArticleNumber(a.Nan),
			Quantity:     a.Quantity,
			UnitPrice:    float64(a.UnitPrice) / 100,
		})
	}
	return items, nil
}

// decodeArticleNumber normalizes the article number field, which the API
// serializes as either a JSON string or a bare number.
func decodeArticleNumber(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
