package catalog

import (
	"regexp"
	"strings"
)

// Trailing quantity and unit annotations as printed on receipts, e.g.
// "191g", "1kg", "1 Stück", "ca. 200g", "0,25l", "8x100g", "1,5kg".
// Order matters; the first matching rule wins.
var quantitySuffixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*\d+[.,]?\d*\s*([xX]\s*\d+)?\s*(Stück|Stk\.?|kg|g|l|ml|cl|dl|mg|µg|Packung|Becher|Dose|Flasche|Tüte|Bund|Pck|Pckg|Paket)\.?$`),
	regexp.MustCompile(`(?i)\s*ca\.\s*\d+[.,]?\d*\s*(g|kg|l|ml|Stück)\.?$`),
	regexp.MustCompile(`(?i)\s*\d+[.,]?\d*\s*(g|kg|l|ml|Stück)\.?$`),
	regexp.MustCompile(`(?i)\s*\d+\s*x\s*\d+\s*(g|ml|Stück)\.?$`),
	regexp.MustCompile(`(?i)\s*\d+[.,]?\d*\s*(%|vol|Vol)\.?$`),
}

// StripQuantitySuffix removes a trailing quantity/unit annotation from a
// receipt label when constructing a display name for a newly created
// product. It is never applied before matching, the annotation is part
// of the signal the fuzzy matcher needs. Only the first matching rule
// is applied so that a remaining mid-name annotation (e.g. a fat
// percentage) survives. Strings without a trailing unit are returned
// unchanged.
func StripQuantitySuffix(label string) string {
	for _, pattern := range quantitySuffixPatterns {
		if pattern.MatchString(label) {
			return strings.TrimSpace(pattern.ReplaceAllString(label, ""))
		}
	}
	return strings.TrimSpace(label)
}
