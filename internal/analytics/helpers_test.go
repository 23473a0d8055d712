package analytics

import (
	"fmt"
	"time"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/config"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
)

func testCfg() config.AnalyticsConfig {
	return config.Default().Analytics
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// monthlySales builds one record per month starting at 2023-01, with the
// given sales values.
func monthlySales(values ...float64) *dataset.Dataset {
	start := day("2023-01-15")
	records := make([]dataset.Record, len(values))
	for i, v := range values {
		records[i] = dataset.Record{
			OrderID:    fmt.Sprintf("O%03d", i),
			OrderDate:  start.AddDate(0, i, 0),
			CustomerID: fmt.Sprintf("C%03d", i),
			Category:   "Technology",
			Region:     "West",
			Sales:      v,
			Quantity:   1,
			Profit:     v * 0.2,
		}
	}
	return dataset.New(records)
}

// tableColumn pulls one column of a result table as a float slice.
func tableColumn(t Table, name string) []float64 {
	out := make([]float64, 0, len(t.Rows))
	for _, row := range t.Rows {
		if v, ok := row[name].(float64); ok {
			out = append(out, v)
		}
	}
	return out
}
