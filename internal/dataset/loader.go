package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingColumn marks a contract violation: a required column is absent
// from the source. Loading fails outright rather than producing a partial
// snapshot.
var ErrMissingColumn = errors.New("required column missing")

// Canonical column names. Source headers are normalized and aliased onto
// these before parsing.
const (
	colOrderID      = "order_id"
	colOrderDate    = "order_date"
	colShipDate     = "ship_date"
	colCustomerID   = "customer_id"
	colProductID    = "product_id"
	colProductName  = "product_name"
	colCategory     = "category"
	colRegion       = "region"
	colSegment      = "segment"
	colSales        = "sales"
	colQuantity     = "quantity"
	colDiscount     = "discount"
	colProfit       = "profit"
	colShippingCost = "shipping_cost"
)

// requiredColumns must all be present; the rest default to zero values.
var requiredColumns = []string{
	colOrderDate, colCustomerID, colCategory, colRegion,
	colSales, colQuantity, colDiscount, colProfit,
}

var headerAliases = map[string]string{
	"date":     colOrderDate,
	"customer": colCustomerID,
	"product":  colProductName,
	"revenue":  colSales,
	"amount":   colSales,
	"qty":      colQuantity,
}

// LoadCSV reads a sales CSV into a snapshot. Rows with an unparseable
// order date are skipped and counted in Metadata.SkippedRows; numeric
// fields parse leniently (currency symbols and thousands separators are
// stripped, blanks become zero).
func LoadCSV(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, record)
	}

	records, skipped, err := ParseRows(headers, rows)
	if err != nil {
		return nil, err
	}

	ds := New(records)
	ds.meta.SkippedRows = skipped
	return ds, nil
}

// ParseRows converts raw string rows into Records using the column
// contract. It returns the number of rows skipped for unparseable dates.
func ParseRows(headers []string, rows [][]string) ([]Record, int, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		name := normalizeHeader(h)
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if _, exists := index[name]; !exists {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	get := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]Record, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		orderDate, ok := parseDate(get(row, colOrderDate))
		if !ok {
			skipped++
			continue
		}
		shipDate, _ := parseDate(get(row, colShipDate))

		r := Record{
			OrderID:      get(row, colOrderID),
			OrderDate:    orderDate,
			ShipDate:     shipDate,
			CustomerID:   get(row, colCustomerID),
			ProductID:    get(row, colProductID),
			ProductName:  get(row, colProductName),
			Category:     get(row, colCategory),
			Region:       get(row, colRegion),
			Segment:      get(row, colSegment),
			Sales:        parseNumber(get(row, colSales)),
			Quantity:     int(parseNumber(get(row, colQuantity))),
			Discount:     parseNumber(get(row, colDiscount)),
			Profit:       parseNumber(get(row, colProfit)),
			ShippingCost: parseNumber(get(row, colShippingCost)),
		}
		records = append(records, r)
	}

	return records, skipped, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, f := range dateFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumber is lenient: "$1,234.50" parses as 1234.5, blanks and garbage
// as 0.
func parseNumber(s string) float64 {
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
