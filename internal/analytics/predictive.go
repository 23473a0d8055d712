package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/config"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
)

// ChurnRisk is a customer's churn tier.
type ChurnRisk string

const (
	ChurnLow    ChurnRisk = "low"
	ChurnMedium ChurnRisk = "medium"
	ChurnHigh   ChurnRisk = "high"
)

// ChurnScorer assigns a churn tier from recency (days since last order,
// relative to the snapshot's AsOf) and frequency (orders inside the
// lookback window). Implementations must be pure.
type ChurnScorer interface {
	Score(recencyDays, ordersInWindow int) ChurnRisk
}

// RuleChurnScorer is the default threshold-based scorer. A customer past
// HighDays is high risk; one past MediumDays is medium unless they also
// ordered at most MinActiveOrders times in the window, which bumps them
// to high.
type RuleChurnScorer struct {
	HighDays        int
	MediumDays      int
	MinActiveOrders int
}

func (s RuleChurnScorer) Score(recencyDays, ordersInWindow int) ChurnRisk {
	switch {
	case recencyDays > s.HighDays:
		return ChurnHigh
	case recencyDays > s.MediumDays:
		if ordersInWindow <= s.MinActiveOrders {
			return ChurnHigh
		}
		return ChurnMedium
	default:
		return ChurnLow
	}
}

// PredictiveEngine answers "what will happen": metric forecasts, churn
// risk, and growth opportunity ranking.
type PredictiveEngine struct {
	cfg    config.AnalyticsConfig
	scorer ChurnScorer
}

func NewPredictiveEngine(cfg config.AnalyticsConfig) *PredictiveEngine {
	return &PredictiveEngine{
		cfg: cfg,
		scorer: RuleChurnScorer{
			HighDays:        cfg.ChurnHighDays,
			MediumDays:      cfg.ChurnMediumDays,
			MinActiveOrders: 1,
		},
	}
}

// WithScorer swaps the churn scoring strategy.
func (e *PredictiveEngine) WithScorer(s ChurnScorer) *PredictiveEngine {
	if s != nil {
		e.scorer = s
	}
	return e
}

// Forecast projects the metric forward. The linear method fits a
// least-squares line over bucket indices; moving_average extrapolates the
// trailing window compounded by recent growth. Bands are symmetric,
// z-scaled, and widen with horizon. History shorter than
// MinForecastHistory falls back to a flat projection and says so via
// flags.
func (e *PredictiveEngine) Forecast(ds *dataset.Dataset, metric string, periods int, freq Frequency, method string) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	value, ok := metricSelector(metric)
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		method = "linear"
	}
	if method != "linear" && method != "moving_average" {
		return nil, fmt.Errorf("unknown forecast method %q", method)
	}
	if periods <= 0 {
		periods = e.cfg.ForecastPeriods
	}

	res := NewResult("forecast", CategoryPredictive)
	res.SetLabel("metric", canonicalMetric(metric))
	res.SetLabel("frequency", string(freq))
	res.SetLabel("method", method)

	points := aggregateSeries(ds.Records(), freq, value)
	if len(points) == 0 {
		res.AddFlag(FlagEmptyDataset)
		res.SetMetric("history_periods", 0)
		return res, nil
	}

	sums := make([]float64, len(points))
	for i, p := range points {
		sums[i] = p.Sum
	}
	n := len(sums)
	z := zMultiplier(e.cfg.ConfidenceLevel)
	res.SetMetric("history_periods", float64(n))
	res.SetMetric("forecast_periods", float64(periods))
	res.SetMetric("confidence_level", e.cfg.ConfidenceLevel)

	type forecastPoint struct {
		label    string
		estimate float64
		lower    float64
		upper    float64
	}
	forecasts := make([]forecastPoint, periods)
	last := points[n-1].Start

	if n < e.cfg.MinForecastHistory {
		// Too little history to fit anything; project the historical mean
		// flat and make the uncertainty explicit.
		res.AddFlag(FlagForecastFallback)
		res.AddFlag(FlagInsufficientData)
		res.SetLabel("trend", "flat")
		base := mean(sums)
		spread := stdDev(sums)
		for h := 0; h < periods; h++ {
			last = nextPeriod(last, freq)
			band := z * spread
			forecasts[h] = forecastPoint{
				label:    periodLabel(last, freq),
				estimate: base,
				lower:    base - band,
				upper:    base + band,
			}
		}
	} else if method == "linear" {
		xs := make([]float64, n)
		for i := range xs {
			xs[i] = float64(i)
		}
		fit, ok := fitOLS(xs, sums)
		if !ok {
			res.AddFlag(FlagDegenerateStatistic)
			res.SetLabel("trend", "flat")
			return res, nil
		}
		res.SetMetric("slope", fit.slope)
		res.SetMetric("r_squared", fit.r2)
		res.SetMetric("std_error", fit.residualStd)
		res.SetLabel("trend", e.trendLabel(fit.slope, mean(sums)))

		for h := 0; h < periods; h++ {
			last = nextPeriod(last, freq)
			x := float64(n + h)
			est := fit.predict(x)
			band := z * fit.predictionStd(x)
			forecasts[h] = forecastPoint{
				label:    periodLabel(last, freq),
				estimate: est,
				lower:    est - band,
				upper:    est + band,
			}
		}
	} else {
		w := e.cfg.MovingAvgWindow
		if w > n {
			w = n
		}
		ma := movingAverage(sums, w)
		base := ma[n-1]

		// Mean growth over the trailing window drives the compounding.
		tail := sums
		if len(tail) > w+1 {
			tail = tail[len(tail)-w-1:]
		}
		growth := mean(pctChanges(tail)) / 100

		residuals := make([]float64, n)
		for i := range sums {
			residuals[i] = sums[i] - ma[i]
		}
		sigma := stdDevPop(residuals)

		res.SetMetric("window", float64(w))
		res.SetMetric("recent_growth", growth*100)
		res.SetMetric("std_error", sigma)
		slopeProxy := base * growth
		res.SetLabel("trend", e.trendLabel(slopeProxy, mean(sums)))

		est := base
		for h := 0; h < periods; h++ {
			last = nextPeriod(last, freq)
			est *= 1 + growth
			band := z * sigma * math.Sqrt(float64(h+1))
			forecasts[h] = forecastPoint{
				label:    periodLabel(last, freq),
				estimate: est,
				lower:    est - band,
				upper:    est + band,
			}
		}
	}

	rows := make([]map[string]interface{}, len(forecasts))
	for i, f := range forecasts {
		rows[i] = map[string]interface{}{
			"period":   f.label,
			"forecast": f.estimate,
			"lower":    f.lower,
			"upper":    f.upper,
		}
	}
	res.AddTable("forecast", Table{
		Columns: []string{"period", "forecast", "lower", "upper"},
		Rows:    rows,
	})
	return res, nil
}

func (e *PredictiveEngine) trendLabel(slope, seriesMean float64) string {
	threshold := e.cfg.FlatSlopeRatio * absFloat(seriesMean)
	if absFloat(slope) <= threshold {
		return "flat"
	}
	if slope > 0 {
		return "increasing"
	}
	return "decreasing"
}

// PredictChurn scores every customer and aggregates tier counts. The
// churn rate is the high-risk share of all customers.
func (e *PredictiveEngine) PredictChurn(ds *dataset.Dataset) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	res := NewResult("predict_churn", CategoryPredictive)

	customers := ds.Customers()
	if len(customers) == 0 {
		res.AddFlag(FlagEmptyDataset)
		res.SetMetric("customers", 0)
		res.SetMetric("churn_rate", 0)
		return res, nil
	}

	windowStart := ds.AsOf().AddDate(0, 0, -e.cfg.ChurnLookbackDays)
	inWindow := make(map[string]int)
	records := ds.Records()
	for i := range records {
		if records[i].OrderDate.After(windowStart) {
			inWindow[records[i].CustomerID]++
		}
	}

	counts := map[ChurnRisk]int{}
	type atRisk struct {
		cs   dataset.CustomerStats
		risk ChurnRisk
	}
	var high []atRisk
	for _, cs := range customers {
		risk := e.scorer.Score(cs.RecencyDays, inWindow[cs.CustomerID])
		counts[risk]++
		if risk == ChurnHigh {
			high = append(high, atRisk{cs: cs, risk: risk})
		}
	}

	// Most valuable at-risk customers first.
	sort.Slice(high, func(i, j int) bool { return high[i].cs.Sales > high[j].cs.Sales })
	limit := 20
	if limit > len(high) {
		limit = len(high)
	}
	rows := make([]map[string]interface{}, limit)
	for i := 0; i < limit; i++ {
		cs := high[i].cs
		rows[i] = map[string]interface{}{
			"customer_id":     cs.CustomerID,
			"recency_days":    cs.RecencyDays,
			"orders":          cs.Orders,
			"total_sales":     cs.Sales,
			"avg_order_value": cs.AvgOrderValue,
			"risk":            string(high[i].risk),
		}
	}
	res.AddTable("at_risk_customers", Table{
		Columns: []string{"customer_id", "recency_days", "orders", "total_sales", "avg_order_value", "risk"},
		Rows:    rows,
	})

	total := float64(len(customers))
	res.SetMetric("customers", total)
	res.SetMetric("high_risk", float64(counts[ChurnHigh]))
	res.SetMetric("medium_risk", float64(counts[ChurnMedium]))
	res.SetMetric("low_risk", float64(counts[ChurnLow]))
	res.SetMetric("churn_rate", float64(counts[ChurnHigh])/total*100)
	res.SetMetric("lookback_days", float64(e.cfg.ChurnLookbackDays))
	return res, nil
}

// GrowthOpportunities scores categories and regions by a blend of mean
// year-over-year growth and revenue share, then appends the smallest
// regions as market-penetration candidates.
func (e *PredictiveEngine) GrowthOpportunities(ds *dataset.Dataset, topN int) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	if topN <= 0 {
		topN = e.cfg.TopN
	}

	res := NewResult("identify_growth_opportunities", CategoryPredictive)

	records := ds.Records()
	if len(records) == 0 {
		res.AddFlag(FlagEmptyDataset)
		return res, nil
	}

	type candidate struct {
		kind   string
		name   string
		growth float64
		grown  bool
		share  float64
		sales  float64
		score  float64
	}

	collect := func(kind string, key func(*dataset.Record) string) []candidate {
		yearly := make(map[string]map[int]float64)
		totals := make(map[string]float64)
		var grandTotal float64
		for i := range records {
			r := &records[i]
			name := key(r)
			if name == "" {
				continue
			}
			if yearly[name] == nil {
				yearly[name] = make(map[int]float64)
			}
			yearly[name][r.Year] += r.Sales
			totals[name] += r.Sales
			grandTotal += r.Sales
		}

		var out []candidate
		for name, byYear := range yearly {
			years := make([]int, 0, len(byYear))
			for y := range byYear {
				years = append(years, y)
			}
			sort.Ints(years)

			var growths []float64
			for i := 1; i < len(years); i++ {
				prev := byYear[years[i-1]]
				if prev == 0 {
					continue
				}
				growths = append(growths, (byYear[years[i]]-prev)/prev*100)
			}

			c := candidate{kind: kind, name: name, sales: totals[name]}
			if len(growths) > 0 {
				c.growth = mean(growths)
				c.grown = true
			}
			if grandTotal != 0 {
				c.share = totals[name] / grandTotal * 100
			}
			out = append(out, c)
		}
		return out
	}

	categoryKey, _ := dimensionSelector("category")
	regionKey, _ := dimensionSelector("region")
	candidates := append(collect("category", categoryKey), collect("region", regionKey)...)
	if len(candidates) == 0 {
		res.AddFlag(FlagEmptyDataset)
		return res, nil
	}

	anyGrowth := false
	for _, c := range candidates {
		if c.grown {
			anyGrowth = true
			break
		}
	}
	if !anyGrowth {
		// Single year of history: share alone has to carry the score.
		res.AddFlag(FlagInsufficientData)
	}

	// Normalize growth to 0-100 across candidates so the two components
	// blend on the same scale.
	minG, maxG := math.Inf(1), math.Inf(-1)
	for _, c := range candidates {
		if c.growth < minG {
			minG = c.growth
		}
		if c.growth > maxG {
			maxG = c.growth
		}
	}
	span := maxG - minG
	for i := range candidates {
		normalized := 0.0
		if span > 0 {
			normalized = (candidates[i].growth - minG) / span * 100
		}
		candidates[i].score = 0.6*normalized + 0.4*candidates[i].share
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	limit := topN
	if limit > len(candidates) {
		limit = len(candidates)
	}
	rows := make([]map[string]interface{}, 0, limit+2)
	for _, c := range candidates[:limit] {
		recommendation := fmt.Sprintf("defend and grow share in %s", c.name)
		if c.grown && c.growth > 0 && c.score > c.share {
			recommendation = fmt.Sprintf("expand investment in %s", c.name)
		}
		rows = append(rows, map[string]interface{}{
			"type":           c.kind,
			"name":           c.name,
			"growth_rate":    c.growth,
			"revenue_share":  c.share,
			"score":          c.score,
			"recommendation": recommendation,
		})
	}

	// The two smallest regions by revenue are underserved markets worth a
	// penetration push.
	var regions []candidate
	for _, c := range candidates {
		if c.kind == "region" {
			regions = append(regions, c)
		}
	}
	if len(regions) > 2 {
		sort.Slice(regions, func(i, j int) bool { return regions[i].sales < regions[j].sales })
		for _, c := range regions[:2] {
			rows = append(rows, map[string]interface{}{
				"type":           "region_penetration",
				"name":           c.name,
				"growth_rate":    c.growth,
				"revenue_share":  c.share,
				"score":          c.score,
				"recommendation": fmt.Sprintf("increase market penetration in %s", c.name),
			})
		}
	}

	res.AddTable("opportunities", Table{
		Columns: []string{"type", "name", "growth_rate", "revenue_share", "score", "recommendation"},
		Rows:    rows,
	})
	res.SetMetric("candidates", float64(len(candidates)))
	if len(candidates) > 0 {
		res.SetLabel("top_opportunity", candidates[0].name)
		res.SetMetric("top_score", candidates[0].score)
	}
	return res, nil
}
