// Package sync pushes receipt line items into the inventory system,
// creating product entries on first sight and booking stock otherwise.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mkessler-dev/pantrysync/internal/catalog"
	"github.com/mkessler-dev/pantrysync/internal/conf"
	"github.com/mkessler-dev/pantrysync/internal/errors"
	"github.com/mkessler-dev/pantrysync/internal/foodfacts"
	"github.com/mkessler-dev/pantrysync/internal/grocy"
	"github.com/mkessler-dev/pantrysync/internal/logging"
	"github.com/mkessler-dev/pantrysync/internal/receipt"
)

// Inventory is the subset of the inventory API the synchronizer needs.
type Inventory interface {
	GetProductByBarcode(ctx context.Context, barcode string) (*grocy.ProductDetails, error)
	FindProductByName(ctx context.Context, name string) (int, error)
	CreateProduct(ctx context.Context, product grocy.NewProduct) (int, error)
	AddBarcode(ctx context.Context, productID int, barcode string) error
	AddStock(ctx context.Context, productID, amount int, price float64) error
	UploadProductPicture(ctx context.Context, fileName string, data []byte) error
	SetProductPicture(ctx context.Context, productID int, fileName string) error
}

// AuxLookup supplies product names and images for barcodes the local
// catalog does not know. Implemented by the foodfacts client; nil-safe.
type AuxLookup interface {
	GetProduct(ctx context.Context, barcode string) (*foodfacts.Product, error)
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Stats summarizes one receipt sync run.
type Stats struct {
	ItemsSynced  int
	ItemsCreated int
	ItemsFailed  int
}

// Synchronizer drives the idempotent create-or-update flow for receipt
// line items.
type Synchronizer struct {
	resolver  *catalog.Resolver
	store     catalog.Interface
	inventory Inventory
	aux       AuxLookup
	settings  *conf.GrocySettings
	logger    *slog.Logger
}

// New creates a synchronizer.
func New(store catalog.Interface, resolver *catalog.Resolver, inventory Inventory, aux AuxLookup, settings *conf.GrocySettings) *Synchronizer {
	return &Synchronizer{
		resolver:  resolver,
		store:     store,
		inventory: inventory,
		aux:       aux,
		settings:  settings,
		logger:    logging.ForService("sync"),
	}
}

// ProcessReceipt syncs every line item of a receipt. A failing item is
// logged and counted, the loop continues with the next item.
func (s *Synchronizer) ProcessReceipt(ctx context.Context, items []receipt.LineItem) Stats {
	var stats Stats
	for i := range items {
		item := &items[i]
		created, err := s.SyncLineItem(ctx, item)
		if err != nil {
			stats.ItemsFailed++
			s.logger.Error("Failed to sync line item",
				"product_name", item.ProductName,
				"retailer_code", item.RetailerCode,
				"error", err)
			continue
		}
		stats.ItemsSynced++
		if created {
			stats.ItemsCreated++
		}
	}
	return stats
}

// SyncLineItem pushes one line item into the inventory. Returns true when
// a new inventory entry was created for it.
func (s *Synchronizer) SyncLineItem(ctx context.Context, item *receipt.LineItem) (bool, error) {
	ean, tier, err := s.resolver.Resolve(item.ProductName, item.RetailerCode)
	if err != nil {
		return false, err
	}
	if ean == "" {
		return false, errors.New(fmt.Errorf("no identifier for line item")).
			Component("sync").
			Category(errors.CategoryValidation).
			Context("product_name", item.ProductName).
			Build()
	}
	s.logger.Debug("Resolved line item",
		"product_name", item.ProductName,
		"ean", ean,
		"tier", string(tier))

	// A transport failure here must abort the item. Treating an outage
	// as "product absent" would create duplicate inventory entries.
	existing, err := s.inventory.GetProductByBarcode(ctx, ean)
	if err != nil {
		return false, err
	}
	if existing != nil {
		s.logger.Info("Product already in inventory, adding stock",
			"product_id", existing.ID,
			"name", existing.Name,
			"ean", ean,
			"quantity", item.Quantity)
		return false, s.inventory.AddStock(ctx, existing.ID, item.Quantity, item.UnitPrice)
	}

	name := s.displayName(ctx, item, ean)

	// A prior run may have created the product and died before the
	// barcode registration. Reuse the entry instead of duplicating it.
	productID, err := s.inventory.FindProductByName(ctx, name)
	if err != nil {
		return false, err
	}

	created := false
	if productID == 0 {
		productID, err = s.inventory.CreateProduct(ctx, grocy.NewProduct{
			Name:                  name,
			QuantityUnitStock:     s.settings.QuantityUnitID,
			QuantityUnitPurchase:  s.settings.QuantityUnitID,
			QuantityUnitPrice:     s.settings.QuantityUnitID,
			DefaultBestBeforeDays: s.settings.DefaultBestBeforeDays,
			LocationID:            s.settings.LocationID,
			ShoppingLocationID:    s.settings.ShoppingLocationID,
			MinStockAmount:        s.settings.MinStockAmount,
		})
		if err != nil {
			return false, err
		}
		created = true

		s.attachImage(ctx, productID, ean)
	} else {
		s.logger.Info("Reusing existing inventory entry found by name",
			"product_id", productID,
			"name", name)
	}

	if err := s.inventory.AddBarcode(ctx, productID, ean); err != nil {
		return created, err
	}
	if err := s.inventory.AddStock(ctx, productID, item.Quantity, item.UnitPrice); err != nil {
		return created, err
	}

	s.logger.Info("Synced line item",
		"product_id", productID,
		"name", name,
		"ean", ean,
		"quantity", item.Quantity,
		"unit_price", item.UnitPrice)
	return created, nil
}

// displayName picks the inventory entry name for a new product: the
// receipt label without its quantity suffix, else the aux database name,
// else the bare identifier.
func (s *Synchronizer) displayName(ctx context.Context, item *receipt.LineItem, ean string) string {
	if item.ProductName != "" {
		return catalog.StripQuantitySuffix(item.ProductName)
	}
	if s.aux != nil {
		if product, err := s.aux.GetProduct(ctx, ean); err != nil {
			s.logger.Warn("Aux product lookup failed", "ean", ean, "error", err)
		} else if product != nil && product.Name != "" {
			return catalog.StripQuantitySuffix(product.Name)
		}
	}
	return ean
}

// attachImage attaches a product picture on a best-effort basis. The
// catalog's image URL wins over the aux database. Failures are logged
// and swallowed, a missing picture never blocks the sync.
func (s *Synchronizer) attachImage(ctx context.Context, productID int, ean string) {
	url := s.imageURL(ctx, ean)
	if url == "" {
		return
	}

	data, err := s.fetchImage(ctx, url)
	if err != nil {
		s.logger.Warn("Failed to download product image",
			"product_id", productID, "url", url, "error", err)
		return
	}

	fileName := uuid.New().String() + ".jpg"
	if err := s.inventory.UploadProductPicture(ctx, fileName, data); err != nil {
		s.logger.Warn("Failed to upload product image",
			"product_id", productID, "file_name", fileName, "error", err)
		return
	}
	if err := s.inventory.SetProductPicture(ctx, productID, fileName); err != nil {
		s.logger.Warn("Failed to assign product image",
			"product_id", productID, "file_name", fileName, "error", err)
		return
	}

	s.logger.Info("Attached product image", "product_id", productID, "file_name", fileName)
}

// imageURL finds an image URL for the barcode, catalog first.
func (s *Synchronizer) imageURL(ctx context.Context, ean string) string {
	if url, err := s.store.FindImageByEAN(ean); err != nil {
		s.logger.Warn("Catalog image lookup failed", "ean", ean, "error", err)
	} else if url != "" {
		return url
	}

	if s.aux != nil {
		if product, err := s.aux.GetProduct(ctx, ean); err != nil {
			s.logger.Warn("Aux image lookup failed", "ean", ean, "error", err)
		} else if product != nil {
			return product.ImageURL
		}
	}
	return ""
}

// fetchImage downloads image bytes through a spool file so partial
// downloads never reach the upload call.
func (s *Synchronizer) fetchImage(ctx context.Context, url string) ([]byte, error) {
	if s.aux == nil {
		return nil, errors.New(fmt.Errorf("no image fetcher configured")).
			Component("sync").
			Category(errors.CategoryImageFetch).
			Build()
	}

	data, err := s.aux.FetchImage(ctx, url)
	if err != nil {
		return nil, err
	}

	spool := filepath.Join(os.TempDir(), uuid.New().String()+".img")
	if err := os.WriteFile(spool, data, 0o600); err != nil {
		return nil, errors.New(err).
			Component("sync").
			Category(errors.CategoryFileIO).
			Context("path", spool).
			Build()
	}
	defer func() {
		if err := os.Remove(spool); err != nil {
			s.logger.Warn("Failed to remove image spool file", "path", spool, "error", err)
		}
	}()

	return os.ReadFile(spool)
}
