// Package foodfacts provides a client for the Open Food Facts public API,
// used to fill in product names and images the local catalog cannot supply.
package foodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/mkessler-dev/pantrysync/internal/errors"
	"github.com/mkessler-dev/pantrysync/internal/logging"
)

// Config holds the client configuration.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:  "https://world.openfoodfacts.org",
		Timeout:  10 * time.Second,
		CacheTTL: 24 * time.Hour,
	}
}

// Product holds the subset of the API payload the synchronizer uses.
type Product struct {
	Name     string
	ImageURL string
}

// apiResponse mirrors the v0 product endpoint payload.
type apiResponse struct {
	Status  int `json:"status"`
	Product struct {
		ProductName  string `json:"product_name"`
		ProductNameD string `json:"product_name_de"`
		ImageURL     string `json:"image_url"`
	} `json:"product"`
}

// Client queries Open Food Facts with a per-barcode response cache so
// repeated syncs of the same receipt do not hammer the public API.
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *cache.Cache
	logger     *slog.Logger
}

// NewClient creates a new Open Food Facts client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultConfig().CacheTTL
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		cache:      cache.New(config.CacheTTL, config.CacheTTL*2),
		logger:     logging.ForService("foodfacts"),
	}
}

// GetProduct looks up a product by barcode. Returns nil without error when
// the database has no entry for the barcode, so callers can fall through to
// their next data source.
func (c *Client) GetProduct(ctx context.Context, barcode string) (*Product, error) {
	if cached, found := c.cache.Get(barcode); found {
		if product, ok := cached.(*Product); ok {
			return product, nil
		}
	}

	url := fmt.Sprintf("%s/api/v0/product/%s.json", strings.TrimRight(c.config.BaseURL, "/"), barcode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("foodfacts").
			Category(errors.CategoryNetwork).
			Context("barcode", barcode).
			Build()
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("foodfacts").
			Category(errors.CategoryNetwork).
			Context("barcode", barcode).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		c.cache.Set(barcode, (*Product)(nil), cache.DefaultExpiration)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(fmt.Errorf("food facts API returned status %d", resp.StatusCode)).
			Component("foodfacts").
			Category(errors.CategoryHTTP).
			Context("barcode", barcode).
			Context("status_code", resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(err).
			Component("foodfacts").
			Category(errors.CategoryNetwork).
			Context("barcode", barcode).
			Build()
	}

	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.New(err).
			Component("foodfacts").
			Category(errors.CategoryHTTP).
			Context("barcode", barcode).
			Build()
	}

	// status 0 means "product not found" even on HTTP 200
	if payload.Status == 0 {
		c.cache.Set(barcode, (*Product)(nil), cache.DefaultExpiration)
		return nil, nil
	}

	name := payload.Product.ProductNameD
	if name == "" {
		name = payload.Product.ProductName
	}
	product := &Product{
		Name:     name,
		ImageURL: payload.Product.ImageURL,
	}
	c.cache.Set(barcode, product, cache.DefaultExpiration)
	return product, nil
}

// FetchImage downloads the image behind a previously resolved image URL.
func (c *Client) FetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("foodfacts").
			Category(errors.CategoryImageFetch).
			Context("url", url).
			Build()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("foodfacts").
			Category(errors.CategoryImageFetch).
			Context("url", url).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(fmt.Errorf("image fetch returned status %d", resp.StatusCode)).
			Component("foodfacts").
			Category(errors.CategoryImageFetch).
			Context("url", url).
			Context("status_code", resp.StatusCode).
			Build()
	}

	return io.ReadAll(resp.Body)
}
