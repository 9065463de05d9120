package catalog

import (
	"log/slog"
	"strings"

	"github.com/mkessler-dev/pantrysync/internal/logging"
)

// Tier identifies which resolution tier produced a match.
type Tier string

const (
	TierExactName    Tier = "exact-name"
	TierFuzzyName    Tier = "fuzzy-name"
	TierRetailerCode Tier = "retailer-code"
	TierFallback     Tier = "fallback"
	TierNone         Tier = "none"
)

// Resolver maps a receipt line item to a canonical EAN using the
// reference catalog. Name matches rank above code matches: retailer
// codes are retailer-internal and unstable across product
// reformulations, while normalized names are the most stable signal a
// receipt carries. The fuzzy tier covers receipt printers abbreviating
// names inconsistently relative to the catalog export.
type Resolver struct {
	store  Interface
	cutoff float64
	logger *slog.Logger
}

// NewResolver creates a resolver against the given catalog store.
func NewResolver(store Interface, cutoff float64) *Resolver {
	return &Resolver{
		store:  store,
		cutoff: cutoff,
		logger: logging.ForService("resolver"),
	}
}

// Resolve returns the best-known EAN for a free-text label and a
// retailer code, applying tiers in strict order and returning on the
// first hit: exact normalized name, fuzzy name, retailer code lookup,
// then the trimmed retailer code itself as a best-effort identifier.
// An empty EAN with TierNone means nothing at all was resolvable.
func (r *Resolver) Resolve(label, retailerCode string) (string, Tier, error) {
	if label != "" {
		product, err := r.store.FindByName(label)
		if err != nil {
			return "", TierNone, err
		}
		if product != nil {
			r.logger.Debug("exact name hit", "label", label, "ean", product.EAN)
			return product.EAN, TierExactName, nil
		}

		product, err = r.store.FindByNameFuzzy(label, r.cutoff)
		if err != nil {
			return "", TierNone, err
		}
		if product != nil {
			r.logger.Debug("fuzzy name hit", "label", label, "matched", product.Name, "ean", product.EAN)
			return product.EAN, TierFuzzyName, nil
		}
	}

	product, err := r.store.FindByRetailerCode(retailerCode)
	if err != nil {
		return "", TierNone, err
	}
	if product != nil {
		r.logger.Debug("retailer code hit", "code", retailerCode, "ean", product.EAN)
		return product.EAN, TierRetailerCode, nil
	}

	fallback := strings.TrimSpace(retailerCode)
	if fallback == "" {
		r.logger.Debug("nothing resolved", "label", label)
		return "", TierNone, nil
	}
	r.logger.Debug("falling back to retailer code as identifier", "label", label, "code", fallback)
	return fallback, TierFallback, nil
}
