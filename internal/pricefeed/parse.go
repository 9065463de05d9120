package pricefeed

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mkessler-dev/pantrysync/internal/catalog"
)

// ParsePrice converts an export price cell into a value. The export
// uses a comma decimal separator and "NA" for promotions without a
// regular price; both the sentinel and anything unparseable map to 0.
func ParsePrice(raw string) float64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "NA") {
		return 0
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(trimmed, ",", "."))
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// parseExport reads one day's CSV export into catalog products.
// Malformed rows are skipped individually and counted, never fatal to
// the batch. Rows without an identifier are skipped as well.
func parseExport(r io.Reader, dateStr string) (products []catalog.Product, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, err
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		ean := strings.TrimSpace(field(row, "ean"))
		if ean == "" {
			skipped++
			continue
		}

		product := catalog.Product{
			EAN:          ean,
			Name:         field(row, "name"),
			Brand:        field(row, "brand"),
			Price:        ParsePrice(field(row, "price")),
			Grammage:     field(row, "grammage"),
			Category:     field(row, "category"),
			Sale:         field(row, "sale"),
			ImageURL:     field(row, "image"),
			ObservedDate: dateStr,
		}
		if catalog.IsRetailerCode(ean) {
			product.RetailerCode = ean
		}
		products = append(products, product)
	}

	return products, skipped, nil
}
