// interfaces.go: this code defines the interface for the catalog store operations
package catalog

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mkessler-dev/pantrysync/internal/conf"
)

// Interface abstracts the underlying database implementation and defines
// the catalog store operations. Absence of a record is a nil result, not
// an error.
type Interface interface {
	Open() error
	Close() error
	UpsertObserved(product *Product) error
	FindByName(name string) (*Product, error)
	FindByNameFuzzy(name string, cutoff float64) (*Product, error)
	FindByRetailerCode(code string) (*Product, error)
	FindImageByEAN(ean string) (string, error)
	LatestObservedDate() (string, error)
	AllProducts() ([]Product, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new catalog store instance based on the provided settings.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Catalog.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Catalog.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// UpsertObserved inserts a product on first observation of its EAN and
// updates only the price and observed date on re-observation. Name,
// brand, category and image are treated as settled once known, the
// export is the attribution source of truth on first sight.
func (ds *DataStore) UpsertObserved(product *Product) error {
	if product.EAN == "" {
		return fmt.Errorf("upsert requires an EAN")
	}

	var existing Product
	err := ds.DB.Where("ean = ?", product.EAN).First(&existing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			product.NameNorm = NormalizeName(product.Name)
			if err := ds.DB.Create(product).Error; err != nil {
				return fmt.Errorf("inserting product %s: %w", product.EAN, err)
			}
			return nil
		}
		return fmt.Errorf("looking up product %s: %w", product.EAN, err)
	}

	updates := map[string]any{
		"price":         product.Price,
		"observed_date": product.ObservedDate,
	}
	if err := ds.DB.Model(&Product{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("updating product %s: %w", product.EAN, err)
	}
	return nil
}

// FindByName retrieves a product by exact normalized name match.
// Returns nil when no product matches.
func (ds *DataStore) FindByName(name string) (*Product, error) {
	var product Product
	err := ds.DB.Where("name_norm = ?", NormalizeName(name)).
		Order("observed_date DESC").
		First(&product).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("finding product by name: %w", err)
	}
	return &product, nil
}

// FindByNameFuzzy retrieves the single product whose normalized name is
// closest to the given name, provided the similarity ratio reaches the
// cutoff. Returns nil when no candidate reaches it.
func (ds *DataStore) FindByNameFuzzy(name string, cutoff float64) (*Product, error) {
	products, err := ds.AllProducts()
	if err != nil {
		return nil, err
	}

	target := NormalizeName(name)
	bestRatio := 0.0
	bestIndex := -1
	for i := range products {
		ratio := Ratio(target, products[i].NameNorm)
		if ratio > bestRatio {
			bestRatio = ratio
			bestIndex = i
		}
	}

	if bestIndex < 0 || bestRatio < cutoff {
		return nil, nil
	}
	return &products[bestIndex], nil
}

// FindByRetailerCode retrieves a product by its trimmed retailer code.
// Export identifiers double as retailer codes for store-brand rows, so
// the lookup matches either column. The most recently observed mapping
// wins since codes can be reused over time.
func (ds *DataStore) FindByRetailerCode(code string) (*Product, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, nil
	}

	var product Product
	err := ds.DB.Where("retailer_code = ? OR ean = ?", trimmed, trimmed).
		Order("observed_date DESC").
		First(&product).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("finding product by retailer code: %w", err)
	}
	return &product, nil
}

// FindImageByEAN returns the stored image reference for an EAN, or an
// empty string when the product or its image is unknown.
func (ds *DataStore) FindImageByEAN(ean string) (string, error) {
	var product Product
	err := ds.DB.Select("image_url").Where("ean = ?", strings.TrimSpace(ean)).First(&product).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", fmt.Errorf("finding image for %s: %w", ean, err)
	}
	return product.ImageURL, nil
}

// LatestObservedDate returns the most recent observed date present in
// the store, or an empty string when the store holds no products.
func (ds *DataStore) LatestObservedDate() (string, error) {
	var result struct {
		MaxDate *string
	}
	err := ds.DB.Model(&Product{}).Select("MAX(observed_date) as max_date").Scan(&result).Error
	if err != nil {
		return "", fmt.Errorf("querying latest observed date: %w", err)
	}
	if result.MaxDate == nil {
		return "", nil
	}
	return *result.MaxDate, nil
}

// AllProducts retrieves all products from the store.
func (ds *DataStore) AllProducts() ([]Product, error) {
	var products []Product
	if result := ds.DB.Find(&products); result.Error != nil {
		return nil, fmt.Errorf("error getting all products: %w", result.Error)
	}
	return products, nil
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Product{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
