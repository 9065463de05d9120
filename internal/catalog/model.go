// model.go this code defines the data model for the reference catalog
package catalog

// Product represents one known retail product observation from the
// daily price export. At most one active row exists per EAN; repeated
// observations update Price and ObservedDate only.
type Product struct {
	ID           uint   `gorm:"primaryKey"`
	EAN          string `gorm:"uniqueIndex:idx_products_ean;not null"`
	Name         string
	NameNorm     string `gorm:"index:idx_products_name_norm"` // normalized form of Name, precomputed for exact lookups
	Brand        string
	RetailerCode string `gorm:"index:idx_products_retailer_code"`
	Price        float64
	Grammage     string
	Category     string
	Sale         string
	ImageURL     string
	ObservedDate string `gorm:"index:idx_products_observed_date"` // YYYY-MM-DD of the export that last observed this EAN
}

// eanMinLength separates EAN-shaped identifiers from short retailer
// article codes in the export's identifier column.
const eanMinLength = 8

// IsRetailerCode reports whether an export identifier looks like a
// retailer-internal article code rather than an EAN.
func IsRetailerCode(identifier string) bool {
	return identifier != "" && len(identifier) < eanMinLength
}
