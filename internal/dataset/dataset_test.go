package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDerivedFields(t *testing.T) {
	r := Record{
		OrderDate: date("2024-05-15"),
		ShipDate:  date("2024-05-18"),
		Sales:     200,
		Quantity:  4,
		Discount:  0.1,
		Profit:    50,
	}
	r.derive()

	assert.Equal(t, 2024, r.Year)
	assert.Equal(t, 5, r.Month)
	assert.Equal(t, 2, r.Quarter)
	assert.Equal(t, time.Wednesday, r.Weekday)
	assert.InDelta(t, 25.0, r.ProfitMargin, 1e-9)
	assert.InDelta(t, 150.0, r.Cost, 1e-9)
	assert.InDelta(t, 20.0, r.DiscountAmount, 1e-9)
	assert.Equal(t, 3, r.DaysToShip)
	assert.InDelta(t, 50.0, r.UnitPrice, 1e-9)
}

func TestDerivedFieldsZeroSales(t *testing.T) {
	r := Record{OrderDate: date("2024-01-01"), Sales: 0, Profit: 10}
	r.derive()

	// Margin stays zero rather than blowing up on division by zero.
	assert.Equal(t, 0.0, r.ProfitMargin)
	assert.Equal(t, 0.0, r.UnitPrice)
}

func TestCustomerAggregates(t *testing.T) {
	records := []Record{
		{OrderDate: date("2024-01-10"), CustomerID: "C1", Sales: 100, Profit: 20, Quantity: 1},
		{OrderDate: date("2024-03-10"), CustomerID: "C1", Sales: 300, Profit: 60, Quantity: 2},
		{OrderDate: date("2024-02-01"), CustomerID: "C2", Sales: 50, Profit: 5, Quantity: 1},
	}
	ds := New(records)

	// AsOf defaults to the latest order date.
	assert.Equal(t, date("2024-03-10"), ds.AsOf())

	c1, ok := ds.Customer("C1")
	require.True(t, ok)
	assert.Equal(t, 2, c1.Orders)
	assert.InDelta(t, 400.0, c1.Sales, 1e-9)
	assert.InDelta(t, 200.0, c1.AvgOrderValue, 1e-9)
	assert.Equal(t, 0, c1.RecencyDays)
	assert.Equal(t, date("2024-01-10"), c1.FirstOrder)

	c2, ok := ds.Customer("C2")
	require.True(t, ok)
	assert.Equal(t, 38, c2.RecencyDays)

	_, ok = ds.Customer("missing")
	assert.False(t, ok)
}

func TestMetadata(t *testing.T) {
	records := []Record{
		{OrderDate: date("2024-01-01"), CustomerID: "C1", ProductID: "P1", Category: "Tech", Region: "West", Segment: "Consumer", Sales: 100, Profit: 10},
		{OrderDate: date("2024-06-01"), CustomerID: "C2", ProductID: "P2", Category: "Office", Region: "East", Segment: "Corporate", Sales: 200, Profit: 40},
	}
	ds := New(records)
	meta := ds.Meta()

	want := Metadata{
		Rows:        2,
		DateStart:   date("2024-01-01"),
		DateEnd:     date("2024-06-01"),
		Customers:   2,
		Products:    2,
		Categories:  []string{"Office", "Tech"},
		Regions:     []string{"East", "West"},
		Segments:    []string{"Consumer", "Corporate"},
		TotalSales:  300,
		TotalProfit: 50,
	}
	if diff := cmp.Diff(want, meta); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRowsContractViolation(t *testing.T) {
	headers := []string{"Order Date", "Sales"} // missing customer, category, ...
	_, _, err := ParseRows(headers, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "customer_id")
}

func TestParseRowsLenientNumbers(t *testing.T) {
	headers := []string{"Order Date", "Customer ID", "Category", "Region", "Sales", "Quantity", "Discount", "Profit"}
	rows := [][]string{
		{"2024-01-05", "C1", "Tech", "West", "$1,234.50", "3", "0.2", "100.5"},
		{"not-a-date", "C2", "Tech", "West", "10", "1", "0", "1"},
		{"2024-01-06", "C3", "Office", "East", "", "2", "", "-5"},
	}

	records, skipped, err := ParseRows(headers, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, records, 2)

	assert.InDelta(t, 1234.5, records[0].Sales, 1e-9)
	assert.Equal(t, 3, records[0].Quantity)
	assert.Equal(t, 0.0, records[1].Sales)
	assert.InDelta(t, -5.0, records[1].Profit, 1e-9)
}

func TestParseRowsHeaderAliases(t *testing.T) {
	headers := []string{"date", "customer", "category", "region", "revenue", "qty", "discount", "profit"}
	rows := [][]string{{"01/15/2024", "C1", "Tech", "West", "99", "1", "0", "9"}}

	records, skipped, err := ParseRows(headers, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, records, 1)
	assert.Equal(t, date("2024-01-15"), records[0].OrderDate)
	assert.InDelta(t, 99.0, records[0].Sales, 1e-9)
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sales.csv")
	content := `Order ID,Order Date,Ship Date,Customer ID,Product ID,Product Name,Category,Region,Segment,Sales,Quantity,Discount,Profit,Shipping Cost
O1,2024-01-05,2024-01-08,C1,P1,Widget,Technology,West,Consumer,100,2,0.1,20,5
O2,2024-02-10,2024-02-12,C2,P2,Gadget,Furniture,East,Corporate,250.5,1,0,60,8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, 0, ds.Meta().SkippedRows)
	assert.InDelta(t, 350.5, ds.Meta().TotalSales, 1e-9)
	assert.Equal(t, 3, ds.Records()[0].DaysToShip)
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV("/nonexistent/sales.csv")
	assert.Error(t, err)
}

func TestStoreSwap(t *testing.T) {
	first := New([]Record{{OrderDate: date("2024-01-01"), CustomerID: "C1", Sales: 1}})
	store := NewStore(first)
	assert.Same(t, first, store.Current())

	second := New([]Record{{OrderDate: date("2024-02-01"), CustomerID: "C2", Sales: 2}})
	prev := store.Swap(second)
	assert.Same(t, first, prev)
	assert.Same(t, second, store.Current())

	// A nil store is a valid "no data loaded yet" state.
	empty := NewStore(nil)
	assert.Nil(t, empty.Current())
}
