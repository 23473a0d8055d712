package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/config"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
)

// DescriptiveEngine answers "what happened": dataset-wide summary
// statistics, calendar time series, and dimensional breakdowns.
type DescriptiveEngine struct {
	cfg config.AnalyticsConfig
}

func NewDescriptiveEngine(cfg config.AnalyticsConfig) *DescriptiveEngine {
	return &DescriptiveEngine{cfg: cfg}
}

// SummaryStatistics aggregates the whole snapshot. An empty dataset
// produces explicit zeros with a flag rather than an error.
func (e *DescriptiveEngine) SummaryStatistics(ds *dataset.Dataset) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	res := NewResult("summary_statistics", CategoryDescriptive)

	records := ds.Records()
	if len(records) == 0 {
		res.AddFlag(FlagEmptyDataset)
		for _, name := range []string{"total_sales", "total_profit", "total_orders", "total_customers", "avg_order_value", "profit_margin"} {
			res.SetMetric(name, 0)
		}
		return res, nil
	}

	sales := make([]float64, len(records))
	profit := make([]float64, len(records))
	for i := range records {
		sales[i] = records[i].Sales
		profit[i] = records[i].Profit
	}

	meta := ds.Meta()
	res.SetMetric("total_sales", meta.TotalSales)
	res.SetMetric("total_profit", meta.TotalProfit)
	res.SetMetric("total_orders", float64(len(records)))
	res.SetMetric("total_customers", float64(meta.Customers))
	res.SetMetric("total_products", float64(meta.Products))
	res.SetMetric("avg_order_value", mean(sales))
	if meta.TotalSales != 0 {
		res.SetMetric("profit_margin", meta.TotalProfit/meta.TotalSales*100)
	} else {
		res.SetMetric("profit_margin", 0)
	}

	salesMin, salesMax := minMax(sales)
	res.SetMetric("sales_mean", mean(sales))
	res.SetMetric("sales_median", median(sales))
	res.SetMetric("sales_std", stdDev(sales))
	res.SetMetric("sales_min", salesMin)
	res.SetMetric("sales_max", salesMax)
	res.SetMetric("sales_q1", quantile(sales, 0.25))
	res.SetMetric("sales_q3", quantile(sales, 0.75))

	profitMin, profitMax := minMax(profit)
	res.SetMetric("profit_mean", mean(profit))
	res.SetMetric("profit_median", median(profit))
	res.SetMetric("profit_std", stdDev(profit))
	res.SetMetric("profit_min", profitMin)
	res.SetMetric("profit_max", profitMax)

	res.SetLabel("date_start", meta.DateStart.Format("2006-01-02"))
	res.SetLabel("date_end", meta.DateEnd.Format("2006-01-02"))
	return res, nil
}

// TimeSeries buckets the metric by calendar period and classifies the
// overall trend. A slope within FlatSlopeRatio of the per-period mean
// counts as flat.
func (e *DescriptiveEngine) TimeSeries(ds *dataset.Dataset, metric string, freq Frequency) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	value, ok := metricSelector(metric)
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}

	res := NewResult("time_series_analysis", CategoryDescriptive)
	res.SetLabel("metric", canonicalMetric(metric))
	res.SetLabel("frequency", string(freq))

	points := aggregateSeries(ds.Records(), freq, value)
	if len(points) == 0 {
		res.AddFlag(FlagEmptyDataset)
		res.SetLabel("trend", "insufficient_data")
		return res, nil
	}

	sums := make([]float64, len(points))
	for i, p := range points {
		sums[i] = p.Sum
	}
	growth := pctChanges(sums)
	ma3 := movingAverage(sums, 3)
	ma6 := movingAverage(sums, 6)

	rows := make([]map[string]interface{}, len(points))
	var cumulative float64
	for i, p := range points {
		cumulative += p.Sum
		row := map[string]interface{}{
			"period":     p.Key,
			"total":      p.Sum,
			"average":    p.Mean(),
			"orders":     p.Count,
			"cumulative": cumulative,
			"ma_3":       ma3[i],
			"ma_6":       ma6[i],
		}
		if i > 0 && sums[i-1] != 0 {
			row["growth_rate"] = (sums[i] - sums[i-1]) / sums[i-1] * 100
		}
		rows[i] = row
	}
	res.AddTable("time_series", Table{
		Columns: []string{"period", "total", "average", "orders", "growth_rate", "cumulative", "ma_3", "ma_6"},
		Rows:    rows,
	})

	res.SetLabel("trend", e.classifyTrend(sums))
	res.SetMetric("periods", float64(len(points)))
	res.SetMetric("average_growth_rate", mean(growth))
	res.SetMetric("volatility", stdDev(sums))

	best, worst := 0, 0
	for i := range sums {
		if sums[i] > sums[best] {
			best = i
		}
		if sums[i] < sums[worst] {
			worst = i
		}
	}
	res.SetLabel("peak_period", points[best].Key)
	res.SetLabel("lowest_period", points[worst].Key)

	if len(points) < 2 {
		res.AddFlag(FlagInsufficientData)
	}
	return res, nil
}

// classifyTrend fits a line over bucket indices and compares the slope to
// the flatness threshold relative to the series mean.
func (e *DescriptiveEngine) classifyTrend(sums []float64) string {
	if len(sums) < 2 {
		return "insufficient_data"
	}
	xs := make([]float64, len(sums))
	for i := range xs {
		xs[i] = float64(i)
	}
	fit, ok := fitOLS(xs, sums)
	if !ok {
		return "insufficient_data"
	}
	m := mean(sums)
	threshold := e.cfg.FlatSlopeRatio * absFloat(m)
	if absFloat(fit.slope) <= threshold {
		return "flat"
	}
	if fit.slope > 0 {
		return "increasing"
	}
	return "decreasing"
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// GroupBreakdown aggregates sales and profit per value of a dimension
// (category, region, or segment), sorted by total sales.
func (e *DescriptiveEngine) GroupBreakdown(ds *dataset.Dataset, dimension string) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	key, ok := dimensionSelector(dimension)
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dimension)
	}

	res := NewResult("group_breakdown", CategoryDescriptive)
	res.SetLabel("dimension", strings.ToLower(dimension))

	type groupAgg struct {
		name      string
		sales     float64
		profit    float64
		quantity  int
		discount  float64
		orders    int
		customers map[string]bool
	}
	groups := make(map[string]*groupAgg)
	records := ds.Records()
	for i := range records {
		r := &records[i]
		name := key(r)
		if name == "" {
			name = "Unknown"
		}
		g, exists := groups[name]
		if !exists {
			g = &groupAgg{name: name, customers: make(map[string]bool)}
			groups[name] = g
		}
		g.sales += r.Sales
		g.profit += r.Profit
		g.quantity += r.Quantity
		g.discount += r.Discount
		g.orders++
		if r.CustomerID != "" {
			g.customers[r.CustomerID] = true
		}
	}

	if len(groups) == 0 {
		res.AddFlag(FlagEmptyDataset)
		res.SetMetric("groups", 0)
		return res, nil
	}

	ordered := make([]*groupAgg, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].sales > ordered[j].sales })

	var totalSales float64
	for _, g := range ordered {
		totalSales += g.sales
	}

	rows := make([]map[string]interface{}, len(ordered))
	for i, g := range ordered {
		margin := 0.0
		if g.sales != 0 {
			margin = g.profit / g.sales * 100
		}
		salesPerCustomer := 0.0
		if len(g.customers) > 0 {
			salesPerCustomer = g.sales / float64(len(g.customers))
		}
		share := 0.0
		if totalSales != 0 {
			share = g.sales / totalSales * 100
		}
		rows[i] = map[string]interface{}{
			"name":               g.name,
			"total_sales":        g.sales,
			"avg_sales":          g.sales / float64(g.orders),
			"orders":             g.orders,
			"total_profit":       g.profit,
			"profit_margin":      margin,
			"total_quantity":     g.quantity,
			"avg_discount":       g.discount / float64(g.orders),
			"customers":          len(g.customers),
			"sales_per_customer": salesPerCustomer,
			"sales_share":        share,
		}
	}
	res.AddTable("breakdown", Table{
		Columns: []string{"name", "total_sales", "avg_sales", "orders", "total_profit", "profit_margin", "total_quantity", "avg_discount", "customers", "sales_per_customer", "sales_share"},
		Rows:    rows,
	})

	res.SetMetric("groups", float64(len(ordered)))
	res.SetLabel("top_group", ordered[0].name)
	if totalSales != 0 {
		res.SetMetric("top_share", ordered[0].sales/totalSales*100)
	}
	return res, nil
}

// ProductPerformance ranks products by revenue and reports both ends of
// the ranking.
func (e *DescriptiveEngine) ProductPerformance(ds *dataset.Dataset, topN int) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	if topN <= 0 {
		topN = 10
	}

	res := NewResult("product_performance", CategoryDescriptive)

	type productAgg struct {
		name     string
		sales    float64
		profit   float64
		quantity int
		orders   int
	}
	products := make(map[string]*productAgg)
	records := ds.Records()
	for i := range records {
		r := &records[i]
		name := r.ProductName
		if name == "" {
			name = r.ProductID
		}
		if name == "" {
			continue
		}
		p, exists := products[name]
		if !exists {
			p = &productAgg{name: name}
			products[name] = p
		}
		p.sales += r.Sales
		p.profit += r.Profit
		p.quantity += r.Quantity
		p.orders++
	}

	if len(products) == 0 {
		res.AddFlag(FlagEmptyDataset)
		res.SetMetric("products", 0)
		return res, nil
	}

	ordered := make([]*productAgg, 0, len(products))
	for _, p := range products {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].sales > ordered[j].sales })

	toRows := func(subset []*productAgg) []map[string]interface{} {
		rows := make([]map[string]interface{}, len(subset))
		for i, p := range subset {
			margin := 0.0
			if p.sales != 0 {
				margin = p.profit / p.sales * 100
			}
			rows[i] = map[string]interface{}{
				"product":        p.name,
				"total_sales":    p.sales,
				"total_profit":   p.profit,
				"profit_margin":  margin,
				"total_quantity": p.quantity,
				"orders":         p.orders,
			}
		}
		return rows
	}
	columns := []string{"product", "total_sales", "total_profit", "profit_margin", "total_quantity", "orders"}

	n := topN
	if n > len(ordered) {
		n = len(ordered)
	}
	res.AddTable("top_products", Table{Columns: columns, Rows: toRows(ordered[:n])})

	bottom := make([]*productAgg, 0, n)
	for i := len(ordered) - 1; i >= 0 && len(bottom) < n; i-- {
		bottom = append(bottom, ordered[i])
	}
	res.AddTable("bottom_products", Table{Columns: columns, Rows: toRows(bottom)})

	res.SetMetric("products", float64(len(ordered)))
	res.SetLabel("top_product", ordered[0].name)
	return res, nil
}

// dimensionSelector maps a dimension name onto the record field it groups
// by.
func dimensionSelector(name string) (func(*dataset.Record) string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "category":
		return func(r *dataset.Record) string { return r.Category }, true
	case "region":
		return func(r *dataset.Record) string { return r.Region }, true
	case "segment":
		return func(r *dataset.Record) string { return r.Segment }, true
	}
	return nil, false
}

func canonicalMetric(name string) string {
	if name == "" {
		return "sales"
	}
	return strings.ToLower(strings.TrimSpace(name))
}
