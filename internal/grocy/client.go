// Package grocy provides a client for the Grocy inventory system REST API.
package grocy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mkessler-dev/pantrysync/internal/errors"
	"github.com/mkessler-dev/pantrysync/internal/logging"
)

// Client handles interactions with the inventory system API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new inventory API client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New(fmt.Errorf("inventory API base URL is required")).
			Component("grocy").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.APIKey == "" {
		return nil, errors.New(fmt.Errorf("inventory API key is required")).
			Component("grocy").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logging.ForService("grocy"),
	}, nil
}

// apiURL joins the base URL with an API path.
func (c *Client) apiURL(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + "/api" + path
}

// newRequest builds a request with the credential and content headers set.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL(path), body)
	if err != nil {
		return nil, errors.New(err).
			Component("grocy").
			Category(errors.CategoryNetwork).
			Context("path", path).
			Build()
	}
	req.Header.Set("GROCY-API-KEY", c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes a request and returns the response body for accepted status
// codes. Any other status is reported as an HTTP error with the status and
// a body excerpt in the context.
func (c *Client) do(req *http.Request, accepted ...int) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("grocy").
			Category(errors.CategoryNetwork).
			Context("path", req.URL.Path).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(err).
			Component("grocy").
			Category(errors.CategoryNetwork).
			Context("path", req.URL.Path).
			Build()
	}

	for _, code := range accepted {
		if resp.StatusCode == code {
			return body, nil
		}
	}

	excerpt := string(body)
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}
	return nil, errors.New(fmt.Errorf("inventory API returned status %d", resp.StatusCode)).
		Component("grocy").
		Category(errors.CategoryHTTP).
		Context("path", req.URL.Path).
		Context("status_code", resp.StatusCode).
		Context("body", excerpt).
		Build()
}

// GetProductByBarcode looks up the inventory product registered under the
// given barcode. A definitive "no such barcode" answer from the API yields
// (nil, nil); transport failures and unexpected statuses yield an error so
// callers do not mistake an outage for an absent product.
func (c *Client) GetProductByBarcode(ctx context.Context, barcode string) (*ProductDetails, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/stock/products/by-barcode/"+barcode, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("grocy").
			Category(errors.CategoryNetwork).
			Context("barcode", barcode).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	// The API answers 400 for unknown barcodes on this endpoint.
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(fmt.Errorf("inventory API returned status %d", resp.StatusCode)).
			Component("grocy").
			Category(errors.CategoryHTTP).
			Context("barcode", barcode).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var payload stockByBarcodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.New(err).
			Component("grocy").
			Category(errors.CategoryHTTP).
			Context("barcode", barcode).
			Build()
	}
	if payload.Product == nil {
		return nil, nil
	}
	return payload.Product, nil
}

// FindProductByName returns the id of the product whose name matches the
// given name, ignoring case and surrounding whitespace. Returns 0 when no
// product matches.
func (c *Client) FindProductByName(ctx context.Context, name string) (int, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/objects/products", nil)
	if err != nil {
		return 0, err
	}

	body, err := c.do(req, http.StatusOK)
	if err != nil {
		return 0, err
	}

	var products []ProductDetails
	if err := json.Unmarshal(body, &products); err != nil {
		return 0, errors.New(err).
			Component("grocy").
			Category(errors.CategoryHTTP).
			Context("path", "/objects/products").
			Build()
	}

	want := strings.ToLower(strings.TrimSpace(name))
	for i := range products {
		if strings.ToLower(strings.TrimSpace(products[i].Name)) == want {
			return products[i].ID, nil
		}
	}
	return 0, nil
}

// CreateProduct creates a new inventory product and returns its id.
func (c *Client) CreateProduct(ctx context.Context, product NewProduct) (int, error) {
	payload, err := json.Marshal(product)
	if err != nil {
		return 0, errors.New(err).
			Component("grocy").
			Category(errors.CategoryValidation).
			Context("product_name", product.Name).
			Build()
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/objects/products", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}

	body, err := c.do(req, http.StatusOK)
	if err != nil {
		return 0, err
	}

	var created createdObjectResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return 0, errors.New(err).
			Component("grocy").
			Category(errors.CategoryHTTP).
			Context("product_name", product.Name).
			Build()
	}

	id, err := created.CreatedObjectID.Int64()
	if err != nil {
		return 0, errors.New(fmt.Errorf("invalid created object id %q: %w", created.CreatedObjectID.String(), err)).
			Component("grocy").
			Category(errors.CategoryHTTP).
			Context("product_name", product.Name).
			Build()
	}

	c.logger.Info("Created inventory product", "product_id", id, "name", product.Name)
	return int(id), nil
}

// AddBarcode registers a barcode alias on an existing product.
func (c *Client) AddBarcode(ctx context.Context, productID int, barcode string) error {
	payload, err := json.Marshal(barcodeAssignment{
		Barcode:   barcode,
		ProductID: productID,
		Amount:    1,
	})
	if err != nil {
		return errors.New(err).
			Component("grocy").
			Category(errors.CategoryValidation).
			Context("barcode", barcode).
			Build()
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/objects/product_barcodes", bytes.NewReader(payload))
	if err != nil {
		return err
	}

	_, err = c.do(req, http.StatusOK)
	return err
}

// AddStock records a stock increase on a product, booked as a purchase at
// the given unit price.
func (c *Client) AddStock(ctx context.Context, productID, amount int, price float64) error {
	payload, err := json.Marshal(stockTransaction{
		Amount:          amount,
		TransactionType: "purchase",
		Price:           price,
	})
	if err != nil {
		return errors.New(err).
			Component("grocy").
			Category(errors.CategoryValidation).
			Context("product_id", productID).
			Build()
	}

	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/stock/products/%d/add", productID), bytes.NewReader(payload))
	if err != nil {
		return err
	}

	_, err = c.do(req, http.StatusOK)
	if err == nil {
		c.logger.Info("Added stock", "product_id", productID, "amount", amount, "price", price)
	}
	return err
}

// UploadProductPicture uploads image bytes under the given file name. The
// file name is base64 url-encoded into the path as the API requires.
func (c *Client) UploadProductPicture(ctx context.Context, fileName string, data []byte) error {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(fileName))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.apiURL("/files/productpictures/"+encoded), bytes.NewReader(data))
	if err != nil {
		return errors.New(err).
			Component("grocy").
			Category(errors.CategoryNetwork).
			Context("file_name", fileName).
			Build()
	}
	req.Header.Set("GROCY-API-KEY", c.config.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	_, err = c.do(req, http.StatusOK, http.StatusNoContent)
	return err
}

// SetProductPicture points a product at a previously uploaded picture file.
func (c *Client) SetProductPicture(ctx context.Context, productID int, fileName string) error {
	payload, err := json.Marshal(map[string]string{"picture_file_name": fileName})
	if err != nil {
		return errors.New(err).
			Component("grocy").
			Category(errors.CategoryValidation).
			Context("product_id", productID).
			Build()
	}

	req, err := c.newRequest(ctx, http.MethodPut, fmt.Sprintf("/objects/products/%d", productID), bytes.NewReader(payload))
	if err != nil {
		return err
	}

	_, err = c.do(req, http.StatusOK, http.StatusNoContent)
	return err
}
