package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
)

// salesValues builds a single-day-per-record dataset with the given sales.
func salesValues(values ...float64) *dataset.Dataset {
	records := make([]dataset.Record, len(values))
	for i, v := range values {
		records[i] = dataset.Record{
			OrderID:    fmt.Sprintf("O%03d", i),
			OrderDate:  day("2024-01-02").AddDate(0, 0, i%28),
			CustomerID: fmt.Sprintf("C%03d", i),
			Category:   "Technology",
			Region:     "West",
			Sales:      v,
			Quantity:   1,
			Profit:     v * 0.1,
		}
	}
	return dataset.New(records)
}

func TestDetectAnomaliesBothMethodsAgree(t *testing.T) {
	// A tight 90..110 base plus one value 10x the mean. Both detectors
	// must flag exactly that point.
	values := make([]float64, 0, 22)
	for v := 90.0; v <= 110; v++ {
		values = append(values, v)
	}
	values = append(values, 1000)
	ds := salesValues(values...)
	engine := NewDiagnosticEngine(testCfg())

	for _, method := range []string{"zscore", "iqr"} {
		t.Run(method, func(t *testing.T) {
			res, err := engine.DetectAnomalies(ds, "sales", method, 0)
			require.NoError(t, err)
			assert.Equal(t, 1.0, res.Metrics["total_anomalies"])

			table := res.Tables["anomalies"]
			require.Len(t, table.Rows, 1)
			assert.InDelta(t, 1000.0, table.Rows[0]["value"].(float64), 1e-9)
			assert.Equal(t, "high", table.Rows[0]["direction"])
		})
	}
}

func TestDetectAnomaliesDegenerate(t *testing.T) {
	ds := salesValues(100, 100, 100, 100, 100)
	engine := NewDiagnosticEngine(testCfg())

	for _, method := range []string{"zscore", "iqr"} {
		res, err := engine.DetectAnomalies(ds, "sales", method, 0)
		require.NoError(t, err)
		assert.True(t, res.HasFlag(FlagDegenerateStatistic), method)
		assert.Equal(t, 0.0, res.Metrics["total_anomalies"], method)
	}
}

func TestDetectAnomaliesUnknownMethod(t *testing.T) {
	engine := NewDiagnosticEngine(testCfg())
	_, err := engine.DetectAnomalies(salesValues(1, 2, 3), "sales", "dbscan", 0)
	assert.Error(t, err)
}

func TestCorrelationAnalysisPerfectPair(t *testing.T) {
	// Sales is exactly 10x quantity, so the pair is perfectly correlated.
	records := make([]dataset.Record, 10)
	for i := range records {
		q := i + 1
		records[i] = dataset.Record{
			OrderDate:  day("2024-01-02").AddDate(0, 0, i),
			CustomerID: "C1",
			Category:   "Tech",
			Region:     "West",
			Sales:      float64(q) * 10,
			Quantity:   q,
			Profit:     float64(q) * 5,
		}
	}
	engine := NewDiagnosticEngine(testCfg())

	res, err := engine.CorrelationAnalysis(dataset.New(records), "pearson")
	require.NoError(t, err)

	matrix := res.Tables["correlation_matrix"]
	require.Len(t, matrix.Rows, len(correlationMetrics))
	for _, row := range matrix.Rows {
		for _, metric := range correlationMetrics {
			r := row[metric].(float64)
			assert.GreaterOrEqual(t, r, -1.0)
			assert.LessOrEqual(t, r, 1.0)
		}
	}

	notable := res.Tables["notable_correlations"]
	require.NotEmpty(t, notable.Rows)
	found := false
	for _, row := range notable.Rows {
		if row["metric_a"] == "sales" && row["metric_b"] == "quantity" {
			found = true
			assert.InDelta(t, 1.0, row["correlation"].(float64), 1e-9)
			assert.Equal(t, "strong", row["strength"])
		}
	}
	assert.True(t, found, "sales/quantity pair should be reported")
}

func TestCorrelationAnalysisSpearmanAndErrors(t *testing.T) {
	engine := NewDiagnosticEngine(testCfg())

	res, err := engine.CorrelationAnalysis(monthlySales(10, 20, 30, 40), "spearman")
	require.NoError(t, err)
	assert.Equal(t, "spearman", res.Label("method"))

	_, err = engine.CorrelationAnalysis(monthlySales(10, 20, 30), "kendall")
	assert.Error(t, err)

	res, err = engine.CorrelationAnalysis(monthlySales(10, 20), "pearson")
	require.NoError(t, err)
	assert.True(t, res.HasFlag(FlagInsufficientData))
}

func TestVarianceAnalysisSignificant(t *testing.T) {
	var records []dataset.Record
	for i := 0; i < 6; i++ {
		records = append(records, dataset.Record{
			OrderDate: day("2024-01-02").AddDate(0, 0, i), CustomerID: "C1",
			Category: "Tech", Region: "West", Sales: 100 + float64(i), Quantity: 1,
		})
		records = append(records, dataset.Record{
			OrderDate: day("2024-01-02").AddDate(0, 0, i), CustomerID: "C2",
			Category: "Tech", Region: "East", Sales: 500 + float64(i), Quantity: 1,
		})
	}
	engine := NewDiagnosticEngine(testCfg())

	res, err := engine.VarianceAnalysis(dataset.New(records), "region", "sales")
	require.NoError(t, err)
	assert.Equal(t, "significant", res.Label("significance"))
	assert.Greater(t, res.Metrics["f_statistic"], 100.0)
	assert.Less(t, res.Metrics["p_value"], 0.001)
	assert.Equal(t, 2.0, res.Metrics["groups"])
}

func TestVarianceAnalysisDegenerate(t *testing.T) {
	// One region only: nothing to compare.
	engine := NewDiagnosticEngine(testCfg())
	res, err := engine.VarianceAnalysis(monthlySales(10, 20, 30), "region", "sales")
	require.NoError(t, err)
	assert.True(t, res.HasFlag(FlagDegenerateStatistic))
	assert.Equal(t, "degenerate", res.Label("significance"))
}

func TestDiscountImpactRecommendation(t *testing.T) {
	// Margins by bin: none=40%, 0-10%=30%, 10-20%=20%, 20-30%=5%.
	// The floor (10%) breaks at the 20-30% bin.
	var records []dataset.Record
	add := func(discount, sales, profit float64, n int) {
		for i := 0; i < n; i++ {
			records = append(records, dataset.Record{
				OrderDate: day("2024-01-02").AddDate(0, 0, len(records)%28), CustomerID: "C1",
				Category: "Tech", Region: "West",
				Sales: sales, Quantity: 1, Discount: discount, Profit: profit,
			})
		}
	}
	add(0.0, 100, 40, 5)
	add(0.05, 100, 30, 5)
	add(0.15, 100, 20, 5)
	add(0.25, 100, 5, 5)

	engine := NewDiagnosticEngine(testCfg())
	res, err := engine.DiscountImpact(dataset.New(records))
	require.NoError(t, err)

	assert.Equal(t, "no_discount", res.Label("optimal_bin"))
	assert.Equal(t, "20-30%", res.Label("floor_breach_bin"))
	assert.Contains(t, res.Label("recommendation"), "20-30%")

	table := res.Tables["discount_bins"]
	require.Len(t, table.Rows, 5)
	assert.Equal(t, "no_discount", table.Rows[0]["bin"])
	assert.InDelta(t, 40.0, table.Rows[0]["profit_margin"].(float64), 1e-9)
}

func TestDiscountImpactNoBreach(t *testing.T) {
	var records []dataset.Record
	for i := 0; i < 10; i++ {
		records = append(records, dataset.Record{
			OrderDate: day("2024-01-02"), CustomerID: "C1", Category: "Tech", Region: "West",
			Sales: 100, Quantity: 1, Discount: 0, Profit: 30,
		})
	}
	engine := NewDiagnosticEngine(testCfg())
	res, err := engine.DiscountImpact(dataset.New(records))
	require.NoError(t, err)
	assert.Empty(t, res.Label("floor_breach_bin"))
	assert.Empty(t, res.Label("recommendation"))
}

func TestSeasonalityDetection(t *testing.T) {
	// Two years of data with a strong December spike.
	var records []dataset.Record
	for year := 2023; year <= 2024; year++ {
		for m := 1; m <= 12; m++ {
			sales := 100.0
			if m == 12 {
				sales = 500
			}
			records = append(records, dataset.Record{
				OrderDate:  day(fmt.Sprintf("%d-%02d-15", year, m)),
				CustomerID: "C1", Category: "Tech", Region: "West",
				Sales: sales, Quantity: 1,
			})
		}
	}
	engine := NewDiagnosticEngine(testCfg())

	res, err := engine.Seasonality(dataset.New(records), "sales")
	require.NoError(t, err)
	assert.Equal(t, "present", res.Label("seasonality"))
	assert.Equal(t, "December", res.Label("peak_month"))
	assert.Equal(t, "Q4", res.Label("peak_quarter"))
	require.Len(t, res.Tables["monthly"].Rows, 12)
	require.Len(t, res.Tables["quarterly"].Rows, 4)
}
