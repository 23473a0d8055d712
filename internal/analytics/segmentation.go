package analytics

import (
	"sort"
	"strings"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
)

// rfmCustomer is one customer with quintile scores attached.
type rfmCustomer struct {
	stats   dataset.CustomerStats
	r, f, m int
	segment string
}

// quintileScores assigns 1-5 by rank. With invert, smaller raw values earn
// higher scores (recency: fresher is better). Rank binning keeps the five
// groups equal-sized up to rounding on ties-free input.
func quintileScores(values []float64, invert bool) []int {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	scores := make([]int, n)
	for rank, i := range idx {
		s := rank*5/n + 1
		if invert {
			s = 6 - s
		}
		scores[i] = s
	}
	return scores
}

// rfmSegments is the ordered score-range lookup. The first matching rule
// names the segment; every tuple falls through to Needs Attention.
var rfmSegments = []struct {
	name  string
	match func(r, f, m int) bool
}{
	{"Champions", func(r, f, m int) bool { return r >= 4 && f >= 4 && m >= 4 }},
	{"Loyal Customers", func(r, f, m int) bool { return r >= 3 && f >= 3 }},
	{"At Risk", func(r, f, m int) bool { return r <= 2 && (f >= 3 || m >= 3) }},
	{"Big Spenders", func(r, f, m int) bool { return m >= 4 }},
	{"Promising", func(r, f, m int) bool { return r >= 4 }},
	{"Lost", func(r, f, m int) bool { return r <= 1 }},
}

const segmentDefault = "Needs Attention"

func segmentFor(r, f, m int) string {
	for _, s := range rfmSegments {
		if s.match(r, f, m) {
			return s.name
		}
	}
	return segmentDefault
}

// scoreCustomers computes R/F/M quintiles and segments for every customer
// in the snapshot.
func scoreCustomers(ds *dataset.Dataset) []rfmCustomer {
	customers := ds.Customers()
	n := len(customers)
	if n == 0 {
		return nil
	}

	recency := make([]float64, n)
	frequency := make([]float64, n)
	monetary := make([]float64, n)
	for i, cs := range customers {
		recency[i] = float64(cs.RecencyDays)
		frequency[i] = float64(cs.Orders)
		monetary[i] = cs.Sales
	}

	rScores := quintileScores(recency, true)
	fScores := quintileScores(frequency, false)
	mScores := quintileScores(monetary, false)

	out := make([]rfmCustomer, n)
	for i, cs := range customers {
		out[i] = rfmCustomer{
			stats:   cs,
			r:       rScores[i],
			f:       fScores[i],
			m:       mScores[i],
			segment: segmentFor(rScores[i], fScores[i], mScores[i]),
		}
	}
	return out
}

// RFMSegmentation scores every customer on recency, frequency, and
// monetary quintiles and groups them into named segments.
func (e *PrescriptiveEngine) RFMSegmentation(ds *dataset.Dataset) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	res := NewResult("rfm_segmentation", CategoryPrescriptive)

	scored := scoreCustomers(ds)
	if len(scored) == 0 {
		res.AddFlag(FlagEmptyDataset)
		res.SetMetric("customers", 0)
		return res, nil
	}

	type segmentAgg struct {
		name      string
		customers int
		sales     float64
		profit    float64
		recency   float64
		orders    float64
	}
	segments := make(map[string]*segmentAgg)
	for _, c := range scored {
		s, ok := segments[c.segment]
		if !ok {
			s = &segmentAgg{name: c.segment}
			segments[c.segment] = s
		}
		s.customers++
		s.sales += c.stats.Sales
		s.profit += c.stats.Profit
		s.recency += float64(c.stats.RecencyDays)
		s.orders += float64(c.stats.Orders)
	}

	ordered := make([]*segmentAgg, 0, len(segments))
	for _, s := range segments {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].sales > ordered[j].sales })

	total := float64(len(scored))
	segmentRows := make([]map[string]interface{}, len(ordered))
	for i, s := range ordered {
		segmentRows[i] = map[string]interface{}{
			"segment":       s.name,
			"customers":     s.customers,
			"share_pct":     float64(s.customers) / total * 100,
			"total_sales":   s.sales,
			"total_profit":  s.profit,
			"avg_recency":   s.recency / float64(s.customers),
			"avg_frequency": s.orders / float64(s.customers),
		}
	}
	res.AddTable("segments", Table{
		Columns: []string{"segment", "customers", "share_pct", "total_sales", "total_profit", "avg_recency", "avg_frequency"},
		Rows:    segmentRows,
	})

	// Highest-value customers with their scores, for spot checks.
	top := append([]rfmCustomer(nil), scored...)
	sort.Slice(top, func(i, j int) bool { return top[i].stats.Sales > top[j].stats.Sales })
	limit := 20
	if limit > len(top) {
		limit = len(top)
	}
	customerRows := make([]map[string]interface{}, limit)
	for i := 0; i < limit; i++ {
		c := top[i]
		customerRows[i] = map[string]interface{}{
			"customer_id":  c.stats.CustomerID,
			"recency_days": c.stats.RecencyDays,
			"frequency":    c.stats.Orders,
			"monetary":     c.stats.Sales,
			"r_score":      c.r,
			"f_score":      c.f,
			"m_score":      c.m,
			"segment":      c.segment,
		}
	}
	res.AddTable("top_customers", Table{
		Columns: []string{"customer_id", "recency_days", "frequency", "monetary", "r_score", "f_score", "m_score", "segment"},
		Rows:    customerRows,
	})

	res.SetMetric("customers", total)
	res.SetMetric("segments", float64(len(ordered)))
	largest := ordered[0]
	for _, s := range ordered {
		if s.customers > largest.customers {
			largest = s
		}
	}
	res.SetLabel("largest_segment", largest.name)
	res.SetLabel("top_value_segment", ordered[0].name)
	return res, nil
}

// retentionPlays maps each segment to its strategy and concrete actions.
var retentionPlays = map[string]struct {
	strategy string
	actions  []string
}{
	"Champions": {"reward and retain", []string{
		"exclusive early access to new products",
		"referral incentives",
		"dedicated account touchpoints",
	}},
	"Loyal Customers": {"deepen engagement", []string{
		"cross-category offers",
		"loyalty point accelerators",
		"volume upgrade suggestions",
	}},
	"Big Spenders": {"premium treatment", []string{
		"premium support tier",
		"bundle upgrades on large orders",
	}},
	"Promising": {"nurture", []string{
		"structured onboarding emails",
		"second-purchase incentive",
	}},
	"At Risk": {"re-engage", []string{
		"personalized win-back offer",
		"limited-time discount",
		"satisfaction survey",
	}},
	"Lost": {"reactivate", []string{
		"reactivation campaign",
		"deep one-time discount",
		"exit survey to learn the cause",
	}},
	segmentDefault: {"investigate", []string{
		"engagement survey",
		"lightweight targeted content",
	}},
}

// RetentionStrategy attaches the retention playbook to the current RFM
// segment mix and quantifies the revenue sitting in at-risk segments.
func (e *PrescriptiveEngine) RetentionStrategy(ds *dataset.Dataset) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	res := NewResult("recommend_retention_strategy", CategoryPrescriptive)

	scored := scoreCustomers(ds)
	if len(scored) == 0 {
		res.AddFlag(FlagEmptyDataset)
		res.SetMetric("customers", 0)
		return res, nil
	}

	type segmentAgg struct {
		name      string
		customers int
		sales     float64
	}
	segments := make(map[string]*segmentAgg)
	for _, c := range scored {
		s, ok := segments[c.segment]
		if !ok {
			s = &segmentAgg{name: c.segment}
			segments[c.segment] = s
		}
		s.customers++
		s.sales += c.stats.Sales
	}

	ordered := make([]*segmentAgg, 0, len(segments))
	for _, s := range segments {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].sales > ordered[j].sales })

	rows := make([]map[string]interface{}, len(ordered))
	var atRiskCustomers int
	var revenueAtRisk float64
	for i, s := range ordered {
		play := retentionPlays[s.name]
		rows[i] = map[string]interface{}{
			"segment":     s.name,
			"customers":   s.customers,
			"total_sales": s.sales,
			"strategy":    play.strategy,
			"actions":     strings.Join(play.actions, "; "),
		}
		if s.name == "At Risk" || s.name == "Lost" {
			atRiskCustomers += s.customers
			revenueAtRisk += s.sales
		}
	}
	res.AddTable("retention_strategies", Table{
		Columns: []string{"segment", "customers", "total_sales", "strategy", "actions"},
		Rows:    rows,
	})

	res.SetMetric("customers", float64(len(scored)))
	res.SetMetric("at_risk_customers", float64(atRiskCustomers))
	res.SetMetric("revenue_at_risk", revenueAtRisk)
	res.SetLabel("priority_segments", "At Risk, Lost")
	return res, nil
}

// ProductBundles counts how often product pairs share an order and
// surfaces the most frequent combinations.
func (e *PrescriptiveEngine) ProductBundles(ds *dataset.Dataset, topN int) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	if topN <= 0 {
		topN = e.cfg.TopN
	}
	res := NewResult("product_bundles", CategoryPrescriptive)

	records := ds.Records()
	if len(records) == 0 {
		res.AddFlag(FlagEmptyDataset)
		return res, nil
	}

	orders := make(map[string]map[string]bool)
	for i := range records {
		r := &records[i]
		if r.OrderID == "" {
			continue
		}
		name := r.ProductName
		if name == "" {
			name = r.ProductID
		}
		if name == "" {
			continue
		}
		if orders[r.OrderID] == nil {
			orders[r.OrderID] = make(map[string]bool)
		}
		orders[r.OrderID][name] = true
	}
	if len(orders) == 0 {
		// Without order ids there is nothing to pair on.
		res.AddFlag(FlagInsufficientData)
		res.SetMetric("pairs", 0)
		return res, nil
	}

	type pairKey struct{ a, b string }
	pairCounts := make(map[pairKey]int)
	for _, products := range orders {
		if len(products) < 2 {
			continue
		}
		names := make([]string, 0, len(products))
		for name := range products {
			names = append(names, name)
		}
		sort.Strings(names)
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				pairCounts[pairKey{names[i], names[j]}]++
			}
		}
	}

	type pair struct {
		key   pairKey
		count int
	}
	var pairs []pair
	for k, c := range pairCounts {
		if c >= 2 {
			pairs = append(pairs, pair{k, c})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		if pairs[i].key.a != pairs[j].key.a {
			return pairs[i].key.a < pairs[j].key.a
		}
		return pairs[i].key.b < pairs[j].key.b
	})

	limit := topN
	if limit > len(pairs) {
		limit = len(pairs)
	}
	rows := make([]map[string]interface{}, limit)
	for i := 0; i < limit; i++ {
		rows[i] = map[string]interface{}{
			"product_a":       pairs[i].key.a,
			"product_b":       pairs[i].key.b,
			"orders_together": pairs[i].count,
		}
	}
	res.AddTable("bundles", Table{
		Columns: []string{"product_a", "product_b", "orders_together"},
		Rows:    rows,
	})

	res.SetMetric("pairs", float64(len(pairs)))
	res.SetMetric("multi_product_orders", float64(countMultiProductOrders(orders)))
	if len(pairs) == 0 {
		res.AddFlag(FlagInsufficientData)
	}
	return res, nil
}

func countMultiProductOrders(orders map[string]map[string]bool) int {
	n := 0
	for _, products := range orders {
		if len(products) >= 2 {
			n++
		}
	}
	return n
}
