package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/config"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
)

// DiagnosticEngine answers "why did it happen": outlier detection,
// correlation structure, variance decomposition, and discount impact.
type DiagnosticEngine struct {
	cfg config.AnalyticsConfig
}

func NewDiagnosticEngine(cfg config.AnalyticsConfig) *DiagnosticEngine {
	return &DiagnosticEngine{cfg: cfg}
}

// DetectAnomalies flags records whose metric deviates beyond the
// threshold, by z-score (population σ) or IQR fences. Zero spread is a
// degenerate statistic: no anomalies, flagged as such.
func (e *DiagnosticEngine) DetectAnomalies(ds *dataset.Dataset, metric, method string, threshold float64) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	value, ok := metricSelector(metric)
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		method = "zscore"
	}

	res := NewResult("detect_anomalies", CategoryDiagnostic)
	res.SetLabel("metric", canonicalMetric(metric))
	res.SetLabel("method", method)

	records := ds.Records()
	if len(records) == 0 {
		res.AddFlag(FlagEmptyDataset)
		res.SetMetric("total_anomalies", 0)
		res.SetMetric("anomaly_rate", 0)
		return res, nil
	}

	values := make([]float64, len(records))
	for i := range records {
		values[i] = value(&records[i])
	}

	type hit struct {
		index int
		score float64
		high  bool
	}
	var hits []hit

	switch method {
	case "zscore":
		if threshold <= 0 {
			threshold = e.cfg.ZScoreThreshold
		}
		m := mean(values)
		s := stdDevPop(values)
		if s == 0 {
			res.AddFlag(FlagDegenerateStatistic)
			res.SetMetric("total_anomalies", 0)
			res.SetMetric("anomaly_rate", 0)
			res.SetMetric("threshold", threshold)
			return res, nil
		}
		for i, v := range values {
			z := (v - m) / s
			if absFloat(z) > threshold {
				hits = append(hits, hit{index: i, score: absFloat(z), high: z > 0})
			}
		}
	case "iqr":
		if threshold <= 0 {
			threshold = e.cfg.IQRMultiplier
		}
		q1 := quantile(values, 0.25)
		q3 := quantile(values, 0.75)
		iqr := q3 - q1
		if iqr == 0 {
			res.AddFlag(FlagDegenerateStatistic)
			res.SetMetric("total_anomalies", 0)
			res.SetMetric("anomaly_rate", 0)
			res.SetMetric("threshold", threshold)
			return res, nil
		}
		lo := q1 - threshold*iqr
		hi := q3 + threshold*iqr
		for i, v := range values {
			if v < lo {
				hits = append(hits, hit{index: i, score: (lo - v) / iqr, high: false})
			} else if v > hi {
				hits = append(hits, hit{index: i, score: (v - hi) / iqr, high: true})
			}
		}
	default:
		return nil, fmt.Errorf("unknown anomaly method %q", method)
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	limit := 20
	if limit > len(hits) {
		limit = len(hits)
	}
	rows := make([]map[string]interface{}, limit)
	highCount := 0
	for _, h := range hits {
		if h.high {
			highCount++
		}
	}
	for i := 0; i < limit; i++ {
		r := &records[hits[i].index]
		direction := "low"
		if hits[i].high {
			direction = "high"
		}
		rows[i] = map[string]interface{}{
			"order_id":    r.OrderID,
			"order_date":  r.OrderDate.Format("2006-01-02"),
			"customer_id": r.CustomerID,
			"category":    r.Category,
			"region":      r.Region,
			"value":       values[hits[i].index],
			"score":       hits[i].score,
			"direction":   direction,
		}
	}
	res.AddTable("anomalies", Table{
		Columns: []string{"order_id", "order_date", "customer_id", "category", "region", "value", "score", "direction"},
		Rows:    rows,
	})

	res.SetMetric("total_anomalies", float64(len(hits)))
	res.SetMetric("anomaly_rate", float64(len(hits))/float64(len(records))*100)
	res.SetMetric("high_side", float64(highCount))
	res.SetMetric("low_side", float64(len(hits)-highCount))
	res.SetMetric("threshold", threshold)
	return res, nil
}

var correlationMetrics = []string{"sales", "profit", "quantity", "discount", "shipping_cost"}

// CorrelationAnalysis computes the pairwise correlation matrix across the
// numeric fields and reports pairs at or above the moderate tier.
func (e *DiagnosticEngine) CorrelationAnalysis(ds *dataset.Dataset, method string) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		method = "pearson"
	}
	var corr func(x, y []float64) float64
	switch method {
	case "pearson":
		corr = pearson
	case "spearman":
		corr = spearman
	default:
		return nil, fmt.Errorf("unknown correlation method %q", method)
	}

	res := NewResult("correlation_analysis", CategoryDiagnostic)
	res.SetLabel("method", method)

	records := ds.Records()
	if len(records) < 3 {
		res.AddFlag(FlagInsufficientData)
		res.SetMetric("pairs_evaluated", 0)
		return res, nil
	}

	vectors := make(map[string][]float64, len(correlationMetrics))
	for _, name := range correlationMetrics {
		sel, _ := metricSelector(name)
		vec := make([]float64, len(records))
		for i := range records {
			vec[i] = sel(&records[i])
		}
		vectors[name] = vec
	}

	matrixRows := make([]map[string]interface{}, len(correlationMetrics))
	type pairCorr struct {
		a, b string
		r    float64
	}
	var pairs []pairCorr
	for i, a := range correlationMetrics {
		row := map[string]interface{}{"metric": a}
		for j, b := range correlationMetrics {
			r := 1.0
			if i != j {
				r = corr(vectors[a], vectors[b])
			}
			row[b] = r
			if j > i {
				pairs = append(pairs, pairCorr{a: a, b: b, r: r})
			}
		}
		matrixRows[i] = row
	}
	res.AddTable("correlation_matrix", Table{
		Columns: append([]string{"metric"}, correlationMetrics...),
		Rows:    matrixRows,
	})

	sort.Slice(pairs, func(i, j int) bool { return absFloat(pairs[i].r) > absFloat(pairs[j].r) })

	var notable []map[string]interface{}
	for _, p := range pairs {
		if absFloat(p.r) < e.cfg.ModerateCorrelation {
			continue
		}
		notable = append(notable, map[string]interface{}{
			"metric_a":    p.a,
			"metric_b":    p.b,
			"correlation": p.r,
			"strength":    e.correlationStrength(p.r),
		})
	}
	res.AddTable("notable_correlations", Table{
		Columns: []string{"metric_a", "metric_b", "correlation", "strength"},
		Rows:    notable,
	})

	res.SetMetric("pairs_evaluated", float64(len(pairs)))
	res.SetMetric("notable_pairs", float64(len(notable)))
	if len(pairs) > 0 {
		res.SetLabel("strongest_pair", pairs[0].a+"/"+pairs[0].b)
		res.SetMetric("strongest_correlation", pairs[0].r)
	}
	return res, nil
}

func (e *DiagnosticEngine) correlationStrength(r float64) string {
	a := absFloat(r)
	switch {
	case a > e.cfg.StrongCorrelation:
		return "strong"
	case a >= e.cfg.ModerateCorrelation:
		return "moderate"
	default:
		return "weak"
	}
}

// VarianceAnalysis decomposes a metric across a dimension and tests group
// mean differences with one-way ANOVA at the configured significance
// level.
func (e *DiagnosticEngine) VarianceAnalysis(ds *dataset.Dataset, dimension, metric string) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	key, ok := dimensionSelector(dimension)
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dimension)
	}
	value, ok := metricSelector(metric)
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}

	res := NewResult("variance_analysis", CategoryDiagnostic)
	res.SetLabel("dimension", strings.ToLower(dimension))
	res.SetLabel("metric", canonicalMetric(metric))

	records := ds.Records()
	if len(records) == 0 {
		res.AddFlag(FlagEmptyDataset)
		return res, nil
	}

	groups := make(map[string][]float64)
	var all []float64
	for i := range records {
		name := key(&records[i])
		if name == "" {
			name = "Unknown"
		}
		v := value(&records[i])
		groups[name] = append(groups[name], v)
		all = append(all, v)
	}
	overallMean := mean(all)

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]map[string]interface{}, 0, len(names))
	groupValues := make([][]float64, 0, len(names))
	for _, name := range names {
		vals := groups[name]
		groupValues = append(groupValues, vals)
		gm := mean(vals)
		deviation := 0.0
		if overallMean != 0 {
			deviation = (gm - overallMean) / overallMean * 100
		}
		lo, hi := minMax(vals)
		rows = append(rows, map[string]interface{}{
			"name":          name,
			"mean":          gm,
			"std":           stdDev(vals),
			"count":         len(vals),
			"min":           lo,
			"max":           hi,
			"deviation_pct": deviation,
		})
	}
	res.AddTable("groups", Table{
		Columns: []string{"name", "mean", "std", "count", "min", "max", "deviation_pct"},
		Rows:    rows,
	})
	res.SetMetric("groups", float64(len(names)))

	f, p, ok := anovaOneWay(groupValues)
	if !ok {
		res.AddFlag(FlagDegenerateStatistic)
		res.SetLabel("significance", "degenerate")
		return res, nil
	}
	res.SetMetric("f_statistic", f)
	res.SetMetric("p_value", p)
	if p < e.cfg.AnovaAlpha {
		res.SetLabel("significance", "significant")
	} else {
		res.SetLabel("significance", "not_significant")
	}
	return res, nil
}

// discountBins are the fixed discount-rate intervals, (lo, hi] each.
var discountBins = []struct {
	label string
	lo    float64
	hi    float64
}{
	{"no_discount", -0.01, 0},
	{"0-10%", 0, 0.10},
	{"10-20%", 0.10, 0.20},
	{"20-30%", 0.20, 0.30},
	{"30%+", 0.30, 1.00},
}

// DiscountImpact profiles profitability by discount band and recommends
// pulling back discounts once margin falls through the configured floor.
func (e *DiagnosticEngine) DiscountImpact(ds *dataset.Dataset) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	res := NewResult("discount_impact", CategoryDiagnostic)

	records := ds.Records()
	if len(records) == 0 {
		res.AddFlag(FlagEmptyDataset)
		return res, nil
	}

	type binAgg struct {
		sales    float64
		profit   float64
		quantity int
		orders   int
	}
	aggs := make([]binAgg, len(discountBins))
	for i := range records {
		r := &records[i]
		for b := range discountBins {
			if r.Discount > discountBins[b].lo && r.Discount <= discountBins[b].hi {
				aggs[b].sales += r.Sales
				aggs[b].profit += r.Profit
				aggs[b].quantity += r.Quantity
				aggs[b].orders++
				break
			}
		}
	}

	rows := make([]map[string]interface{}, 0, len(discountBins))
	margins := make([]float64, len(discountBins))
	populated := make([]bool, len(discountBins))
	for b := range discountBins {
		agg := aggs[b]
		margin := 0.0
		avgSales := 0.0
		avgProfit := 0.0
		if agg.orders > 0 {
			populated[b] = true
			avgSales = agg.sales / float64(agg.orders)
			avgProfit = agg.profit / float64(agg.orders)
		}
		if agg.sales != 0 {
			margin = agg.profit / agg.sales * 100
		}
		margins[b] = margin
		rows = append(rows, map[string]interface{}{
			"bin":            discountBins[b].label,
			"total_sales":    agg.sales,
			"avg_sales":      avgSales,
			"orders":         agg.orders,
			"total_profit":   agg.profit,
			"avg_profit":     avgProfit,
			"profit_margin":  margin,
			"total_quantity": agg.quantity,
		})
	}
	res.AddTable("discount_bins", Table{
		Columns: []string{"bin", "total_sales", "avg_sales", "orders", "total_profit", "avg_profit", "profit_margin", "total_quantity"},
		Rows:    rows,
	})

	// Best-performing bin by margin, among populated bins.
	best := -1
	for b := range discountBins {
		if populated[b] && (best == -1 || margins[b] > margins[best]) {
			best = b
		}
	}
	if best >= 0 {
		res.SetLabel("optimal_bin", discountBins[best].label)
		res.SetMetric("optimal_margin", margins[best])
	}

	// First populated bin whose margin breaks the floor after a healthier
	// bin. Everything at that discount level and deeper is suspect.
	breach := -1
	seenHealthy := false
	for b := range discountBins {
		if !populated[b] {
			continue
		}
		if margins[b] >= e.cfg.MarginFloor {
			seenHealthy = true
			continue
		}
		if seenHealthy {
			breach = b
			break
		}
	}
	if breach >= 0 {
		res.SetLabel("floor_breach_bin", discountBins[breach].label)
		res.SetLabel("recommendation", fmt.Sprintf("reduce discounts of %s and above", discountBins[breach].label))
		res.SetMetric("breach_margin", margins[breach])
	}

	res.SetMetric("margin_floor", e.cfg.MarginFloor)
	return res, nil
}

// Seasonality reports average and total metric values by calendar month,
// quarter, and weekday.
func (e *DiagnosticEngine) Seasonality(ds *dataset.Dataset, metric string) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	value, ok := metricSelector(metric)
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}

	res := NewResult("seasonality_analysis", CategoryDiagnostic)
	res.SetLabel("metric", canonicalMetric(metric))

	records := ds.Records()
	if len(records) == 0 {
		res.AddFlag(FlagEmptyDataset)
		return res, nil
	}

	monthTotals := make([]float64, 13)
	monthCounts := make([]int, 13)
	quarterTotals := make([]float64, 5)
	quarterCounts := make([]int, 5)
	weekdayTotals := make([]float64, 7)
	weekdayCounts := make([]int, 7)

	for i := range records {
		r := &records[i]
		v := value(r)
		monthTotals[r.Month] += v
		monthCounts[r.Month]++
		quarterTotals[r.Quarter] += v
		quarterCounts[r.Quarter]++
		weekdayTotals[int(r.Weekday)] += v
		weekdayCounts[int(r.Weekday)]++
	}

	var monthRows []map[string]interface{}
	var monthlyMeans []float64
	peakMonth := 0
	for m := 1; m <= 12; m++ {
		if monthCounts[m] == 0 {
			continue
		}
		avg := monthTotals[m] / float64(monthCounts[m])
		monthlyMeans = append(monthlyMeans, monthTotals[m])
		if peakMonth == 0 || monthTotals[m] > monthTotals[peakMonth] {
			peakMonth = m
		}
		monthRows = append(monthRows, map[string]interface{}{
			"month":   time.Month(m).String(),
			"total":   monthTotals[m],
			"average": avg,
			"orders":  monthCounts[m],
		})
	}
	res.AddTable("monthly", Table{Columns: []string{"month", "total", "average", "orders"}, Rows: monthRows})

	var quarterRows []map[string]interface{}
	peakQuarter := 0
	for q := 1; q <= 4; q++ {
		if quarterCounts[q] == 0 {
			continue
		}
		if peakQuarter == 0 || quarterTotals[q] > quarterTotals[peakQuarter] {
			peakQuarter = q
		}
		quarterRows = append(quarterRows, map[string]interface{}{
			"quarter": fmt.Sprintf("Q%d", q),
			"total":   quarterTotals[q],
			"average": quarterTotals[q] / float64(quarterCounts[q]),
			"orders":  quarterCounts[q],
		})
	}
	res.AddTable("quarterly", Table{Columns: []string{"quarter", "total", "average", "orders"}, Rows: quarterRows})

	var weekdayRows []map[string]interface{}
	for d := 0; d < 7; d++ {
		if weekdayCounts[d] == 0 {
			continue
		}
		weekdayRows = append(weekdayRows, map[string]interface{}{
			"weekday": time.Weekday(d).String(),
			"total":   weekdayTotals[d],
			"average": weekdayTotals[d] / float64(weekdayCounts[d]),
			"orders":  weekdayCounts[d],
		})
	}
	res.AddTable("weekday", Table{Columns: []string{"weekday", "total", "average", "orders"}, Rows: weekdayRows})

	// Coefficient of variation across monthly totals decides whether the
	// series shows meaningful seasonality.
	if len(monthlyMeans) >= 2 && mean(monthlyMeans) != 0 {
		cv := stdDev(monthlyMeans) / absFloat(mean(monthlyMeans))
		res.SetMetric("monthly_cv", cv)
		if cv > 0.1 {
			res.SetLabel("seasonality", "present")
		} else {
			res.SetLabel("seasonality", "weak")
		}
	} else {
		res.AddFlag(FlagInsufficientData)
		res.SetLabel("seasonality", "insufficient_data")
	}
	if peakMonth > 0 {
		res.SetLabel("peak_month", time.Month(peakMonth).String())
	}
	if peakQuarter > 0 {
		res.SetLabel("peak_quarter", fmt.Sprintf("Q%d", peakQuarter))
	}
	return res, nil
}
