package grocy

import (
	"encoding/json"
	"time"
)

// Config holds the inventory system connection settings.
type Config struct {
	BaseURL string        // https://host[:port], without the /api suffix
	APIKey  string        // static credential sent as GROCY-API-KEY
	Timeout time.Duration // per-request timeout
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
	}
}

// ProductDetails is the inventory system's own product entity.
type ProductDetails struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// stockByBarcodeResponse wraps the lookup-by-barcode payload.
type stockByBarcodeResponse struct {
	Product *ProductDetails `json:"product"`
}

// NewProduct carries the fields for creating an inventory entry.
type NewProduct struct {
	Name                  string `json:"name"`
	QuantityUnitStock     int    `json:"qu_id_stock"`
	QuantityUnitPurchase  int    `json:"qu_id_purchase"`
	QuantityUnitPrice     int    `json:"qu_id_price"`
	DefaultBestBeforeDays int    `json:"default_best_before_days"`
	LocationID            int    `json:"location_id"`
	ShoppingLocationID    int    `json:"shopping_location_id"`
	MinStockAmount        int    `json:"min_stock_amount"`
}

// createdObjectResponse wraps the id of a newly created object. The API
// serializes the id inconsistently (number or string), json.Number
// covers both.
type createdObjectResponse struct {
	CreatedObjectID json.Number `json:"created_object_id"`
}

// barcodeAssignment registers an EAN as a barcode alias on a product.
type barcodeAssignment struct {
	Barcode   string `json:"barcode"`
	ProductID int    `json:"product_id"`
	Amount    int    `json:"amount"`
}

// stockTransaction records a stock increase at a purchase price.
type stockTransaction struct {
	Amount          int     `json:"amount"`
	TransactionType string  `json:"transaction_type"`
	Price           float64 `json:"price"`
}
