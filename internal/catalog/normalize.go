package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nameNormalizer decomposes to NFKD and strips combining marks so that
// accented and unaccented spellings compare equal.
var nameNormalizer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

var quoteFolder = strings.NewReplacer("’", "'", "‘", "'")

// NormalizeName prepares a product name for comparison: Unicode
// decomposition with diacritic removal, smart-quote folding,
// lowercasing and trimming. Every name comparison in the store runs on
// both sides through this function.
func NormalizeName(name string) string {
	normalized, _, err := transform.String(nameNormalizer, name)
	if err != nil {
		// Fall back to the raw input, case folding still applies.
		normalized = name
	}
	normalized = quoteFolder.Replace(normalized)
	return strings.TrimSpace(strings.ToLower(normalized))
}
