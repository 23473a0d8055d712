package analytics

import (
	"fmt"
	"sort"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/config"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
)

// PrescriptiveEngine answers "what should we do": pricing and inventory
// actions, budget allocation, customer segmentation plays, and the merged
// action plan.
type PrescriptiveEngine struct {
	cfg config.AnalyticsConfig
}

func NewPrescriptiveEngine(cfg config.AnalyticsConfig) *PrescriptiveEngine {
	return &PrescriptiveEngine{cfg: cfg}
}

// OptimizePricing derives a directional price action per category from
// margin, discount depth, and a discount-quantity elasticity proxy.
func (e *PrescriptiveEngine) OptimizePricing(ds *dataset.Dataset) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	res := NewResult("optimize_pricing", CategoryPrescriptive)

	records := ds.Records()
	if len(records) == 0 {
		res.AddFlag(FlagEmptyDataset)
		return res, nil
	}

	type categoryAgg struct {
		name      string
		sales     float64
		profit    float64
		quantity  int
		discounts []float64
		qtys      []float64
	}
	categories := make(map[string]*categoryAgg)
	for i := range records {
		r := &records[i]
		name := r.Category
		if name == "" {
			name = "Unknown"
		}
		c, ok := categories[name]
		if !ok {
			c = &categoryAgg{name: name}
			categories[name] = c
		}
		c.sales += r.Sales
		c.profit += r.Profit
		c.quantity += r.Quantity
		c.discounts = append(c.discounts, r.Discount)
		c.qtys = append(c.qtys, float64(r.Quantity))
	}

	ordered := make([]*categoryAgg, 0, len(categories))
	for _, c := range categories {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].sales > ordered[j].sales })

	rows := make([]map[string]interface{}, 0, len(ordered))
	var raises, lowers, holds int
	for _, c := range ordered {
		margin := 0.0
		if c.sales != 0 {
			margin = c.profit / c.sales * 100
		}
		avgDiscount := mean(c.discounts)
		avgPrice := 0.0
		if c.quantity > 0 {
			avgPrice = c.sales / float64(c.quantity)
		}

		// Point elasticity proxy: slope of quantity on discount, scaled to
		// relative terms. Zero when discounts never vary.
		elasticity := 0.0
		if fit, ok := fitOLS(c.discounts, c.qtys); ok {
			meanQty := mean(c.qtys)
			if meanQty != 0 {
				elasticity = fit.slope * avgDiscount / meanQty
			}
		}

		action := "hold"
		impact := 0.0
		basis := ""
		switch {
		case margin < 20 && avgDiscount > 0.15:
			// Discounts are eating a thin margin; pulling them back
			// recovers roughly their excess depth in revenue.
			action = "raise"
			impact = c.sales * 0.05
			basis = "revenue"
			raises++
		case margin > 40:
			// Room to buy volume with price.
			action = "lower"
			impact = float64(c.quantity) * 0.125
			basis = "volume"
			lowers++
		default:
			holds++
		}

		rows = append(rows, map[string]interface{}{
			"category":        c.name,
			"total_sales":     c.sales,
			"profit_margin":   margin,
			"avg_discount":    avgDiscount,
			"avg_unit_price":  avgPrice,
			"elasticity":      elasticity,
			"action":          action,
			"expected_impact": impact,
			"impact_basis":    basis,
		})
	}

	res.AddTable("pricing_actions", Table{
		Columns: []string{"category", "total_sales", "profit_margin", "avg_discount", "avg_unit_price", "elasticity", "action", "expected_impact", "impact_basis"},
		Rows:    rows,
	})
	res.SetMetric("categories", float64(len(ordered)))
	res.SetMetric("raise_actions", float64(raises))
	res.SetMetric("lower_actions", float64(lowers))
	res.SetMetric("hold_actions", float64(holds))
	return res, nil
}

// OptimizeInventory classifies products by sales velocity quartile:
// fast movers risk stockouts, slow movers tie up capital.
func (e *PrescriptiveEngine) OptimizeInventory(ds *dataset.Dataset) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	res := NewResult("optimize_inventory", CategoryPrescriptive)

	records := ds.Records()
	if len(records) == 0 {
		res.AddFlag(FlagEmptyDataset)
		return res, nil
	}

	type productAgg struct {
		name     string
		quantity int
		sales    float64
		profit   float64
		first    int64
		last     int64
		velocity float64
		margin   float64
	}
	products := make(map[string]*productAgg)
	for i := range records {
		r := &records[i]
		name := r.ProductName
		if name == "" {
			name = r.ProductID
		}
		if name == "" {
			continue
		}
		p, ok := products[name]
		ts := r.OrderDate.Unix()
		if !ok {
			p = &productAgg{name: name, first: ts, last: ts}
			products[name] = p
		}
		p.quantity += r.Quantity
		p.sales += r.Sales
		p.profit += r.Profit
		if ts < p.first {
			p.first = ts
		}
		if ts > p.last {
			p.last = ts
		}
	}
	if len(products) == 0 {
		res.AddFlag(FlagEmptyDataset)
		return res, nil
	}

	ordered := make([]*productAgg, 0, len(products))
	velocities := make([]float64, 0, len(products))
	margins := make([]float64, 0, len(products))
	for _, p := range products {
		activeDays := float64(p.last-p.first)/86400 + 1
		if activeDays < 1 {
			activeDays = 1
		}
		p.velocity = float64(p.quantity) / activeDays
		if p.sales != 0 {
			p.margin = p.profit / p.sales * 100
		}
		ordered = append(ordered, p)
		velocities = append(velocities, p.velocity)
		margins = append(margins, p.margin)
	}

	q1 := quantile(velocities, 0.25)
	q3 := quantile(velocities, 0.75)
	medianMargin := median(margins)
	if q3 == q1 {
		res.AddFlag(FlagDegenerateStatistic)
	}

	toRow := func(p *productAgg, action, priority string) map[string]interface{} {
		return map[string]interface{}{
			"product":        p.name,
			"daily_velocity": p.velocity,
			"total_quantity": p.quantity,
			"total_sales":    p.sales,
			"profit_margin":  p.margin,
			"action":         action,
			"priority":       priority,
		}
	}
	columns := []string{"product", "daily_velocity", "total_quantity", "total_sales", "profit_margin", "action", "priority"}

	var understocked, overstocked []*productAgg
	var maintain int
	for _, p := range ordered {
		switch {
		case q3 > q1 && p.velocity > q3:
			understocked = append(understocked, p)
		case q3 > q1 && p.velocity < q1:
			overstocked = append(overstocked, p)
		default:
			maintain++
		}
	}

	sort.Slice(understocked, func(i, j int) bool { return understocked[i].velocity > understocked[j].velocity })
	sort.Slice(overstocked, func(i, j int) bool { return overstocked[i].velocity < overstocked[j].velocity })

	underRows := make([]map[string]interface{}, 0, 10)
	for _, p := range understocked {
		if len(underRows) == 10 {
			break
		}
		priority := "normal"
		if p.margin > medianMargin {
			priority = "high"
		}
		underRows = append(underRows, toRow(p, "increase_stock", priority))
	}
	overRows := make([]map[string]interface{}, 0, 10)
	for _, p := range overstocked {
		if len(overRows) == 10 {
			break
		}
		priority := "normal"
		if p.margin < 0 {
			priority = "high"
		}
		overRows = append(overRows, toRow(p, "reduce_stock", priority))
	}

	res.AddTable("understocked", Table{Columns: columns, Rows: underRows})
	res.AddTable("overstocked", Table{Columns: columns, Rows: overRows})

	res.SetMetric("products", float64(len(ordered)))
	res.SetMetric("increase_stock", float64(len(understocked)))
	res.SetMetric("reduce_stock", float64(len(overstocked)))
	res.SetMetric("maintain", float64(maintain))
	res.SetMetric("velocity_q1", q1)
	res.SetMetric("velocity_q3", q3)
	return res, nil
}

// MarketingStrategy allocates budget across regions in proportion to an
// ROI score (margin times sales-per-customer). Allocations always total
// 100 percent; negative-ROI regions get zero.
func (e *PrescriptiveEngine) MarketingStrategy(ds *dataset.Dataset) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	res := NewResult("recommend_marketing_strategy", CategoryPrescriptive)

	records := ds.Records()
	if len(records) == 0 {
		res.AddFlag(FlagEmptyDataset)
		return res, nil
	}

	type regionAgg struct {
		name      string
		sales     float64
		profit    float64
		customers map[string]bool
		roi       float64
	}
	regions := make(map[string]*regionAgg)
	for i := range records {
		r := &records[i]
		name := r.Region
		if name == "" {
			name = "Unknown"
		}
		g, ok := regions[name]
		if !ok {
			g = &regionAgg{name: name, customers: make(map[string]bool)}
			regions[name] = g
		}
		g.sales += r.Sales
		g.profit += r.Profit
		if r.CustomerID != "" {
			g.customers[r.CustomerID] = true
		}
	}

	ordered := make([]*regionAgg, 0, len(regions))
	var roiSum float64
	var roiValues []float64
	for _, g := range regions {
		margin := 0.0
		if g.sales != 0 {
			margin = g.profit / g.sales * 100
		}
		perCustomer := 0.0
		if len(g.customers) > 0 {
			perCustomer = g.sales / float64(len(g.customers))
		}
		g.roi = margin * perCustomer / 100
		if g.roi < 0 {
			g.roi = 0
		}
		roiSum += g.roi
		roiValues = append(roiValues, g.roi)
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].roi > ordered[j].roi })

	medianROI := median(roiValues)
	equalShare := 100.0 / float64(len(ordered))

	rows := make([]map[string]interface{}, len(ordered))
	for i, g := range ordered {
		allocation := equalShare
		if roiSum > 0 {
			allocation = g.roi / roiSum * 100
		}
		priority := "standard"
		if g.roi > medianROI {
			priority = "high"
		}
		margin := 0.0
		if g.sales != 0 {
			margin = g.profit / g.sales * 100
		}
		perCustomer := 0.0
		if len(g.customers) > 0 {
			perCustomer = g.sales / float64(len(g.customers))
		}
		rows[i] = map[string]interface{}{
			"region":             g.name,
			"roi_score":          g.roi,
			"budget_allocation":  allocation,
			"priority":           priority,
			"profit_margin":      margin,
			"sales_per_customer": perCustomer,
			"customers":          len(g.customers),
		}
	}
	res.AddTable("marketing_allocations", Table{
		Columns: []string{"region", "roi_score", "budget_allocation", "priority", "profit_margin", "sales_per_customer", "customers"},
		Rows:    rows,
	})

	res.SetMetric("regions", float64(len(ordered)))
	res.SetLabel("top_region", ordered[0].name)
	res.SetLabel("allocation_basis", "roi_proportional")
	if roiSum == 0 {
		res.SetLabel("allocation_basis", "equal_split")
		res.AddFlag(FlagDegenerateStatistic)
	}
	return res, nil
}

// ActionPlan merges the prescriptive outputs into three horizons:
// pricing and budget moves now, segmentation and stock rebalancing next
// quarter, structural growth bets beyond that.
func (e *PrescriptiveEngine) ActionPlan(ds *dataset.Dataset) (*Result, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	res := NewResult("get_action_plan", CategoryPrescriptive)

	records := ds.Records()
	if len(records) == 0 {
		res.AddFlag(FlagEmptyDataset)
		return res, nil
	}

	pricing, err := e.OptimizePricing(ds)
	if err != nil {
		return nil, err
	}
	marketing, err := e.MarketingStrategy(ds)
	if err != nil {
		return nil, err
	}
	retention, err := e.RetentionStrategy(ds)
	if err != nil {
		return nil, err
	}
	inventory, err := e.OptimizeInventory(ds)
	if err != nil {
		return nil, err
	}

	type action struct {
		horizon string
		source  string
		text    string
	}
	var actions []action

	// Immediate (0-30 days): pricing corrections and budget shifts.
	for _, row := range pricing.Tables["pricing_actions"].Rows {
		switch row["action"] {
		case "raise":
			actions = append(actions, action{"immediate", "optimize_pricing",
				fmt.Sprintf("cut discount depth in %v to recover margin", row["category"])})
		case "lower":
			actions = append(actions, action{"immediate", "optimize_pricing",
				fmt.Sprintf("trial a price reduction in %v to buy volume", row["category"])})
		}
	}
	if top := marketing.Label("top_region"); top != "" {
		actions = append(actions, action{"immediate", "recommend_marketing_strategy",
			fmt.Sprintf("shift marketing budget toward %s per ROI-proportional allocation", top)})
	}

	// Short term (30-90 days): segmentation-driven campaigns and stock
	// rebalancing.
	if atRisk, ok := retention.Metric("at_risk_customers"); ok && atRisk > 0 {
		actions = append(actions, action{"short_term", "recommend_retention_strategy",
			fmt.Sprintf("launch win-back campaigns for %.0f at-risk or lost customers", atRisk)})
	}
	actions = append(actions, action{"short_term", "recommend_retention_strategy",
		"roll out segment-specific offers from the RFM playbook"})
	if inc, ok := inventory.Metric("increase_stock"); ok {
		if red, _ := inventory.Metric("reduce_stock"); inc > 0 || red > 0 {
			actions = append(actions, action{"short_term", "optimize_inventory",
				fmt.Sprintf("rebalance stock: raise cover on %.0f fast movers, run down %.0f slow movers", inc, red)})
		}
	}

	// Long term (90+ days): structural growth initiatives.
	if growthTarget := e.topGrowthCategory(ds); growthTarget != "" {
		actions = append(actions, action{"long_term", "identify_growth_opportunities",
			fmt.Sprintf("build the product roadmap around %s, the fastest-growing category", growthTarget)})
	}
	actions = append(actions, action{"long_term", "recommend_retention_strategy",
		"stand up a loyalty program for Champions and Big Spenders"})
	actions = append(actions, action{"long_term", "forecast",
		"plan capacity and purchasing against the rolling sales forecast"})

	rows := make([]map[string]interface{}, len(actions))
	horizonCounts := map[string]int{}
	for i, a := range actions {
		rows[i] = map[string]interface{}{
			"horizon": a.horizon,
			"action":  a.text,
			"source":  a.source,
		}
		horizonCounts[a.horizon]++
	}
	res.AddTable("action_plan", Table{
		Columns: []string{"horizon", "action", "source"},
		Rows:    rows,
	})

	res.AddTable("metrics_to_track", Table{
		Columns: []string{"metric"},
		Rows: []map[string]interface{}{
			{"metric": "daily revenue vs forecast"},
			{"metric": "churn rate by segment"},
			{"metric": "profit margin by category"},
			{"metric": "campaign ROI by region"},
			{"metric": "inventory turnover for flagged products"},
		},
	})

	res.SetMetric("immediate_actions", float64(horizonCounts["immediate"]))
	res.SetMetric("short_term_actions", float64(horizonCounts["short_term"]))
	res.SetMetric("long_term_actions", float64(horizonCounts["long_term"]))
	res.SetLabel("immediate_window", "0-30 days")
	res.SetLabel("short_term_window", "30-90 days")
	res.SetLabel("long_term_window", "90+ days")

	// Carry data-quality flags up from the merged analyses.
	for _, sub := range []*Result{pricing, marketing, retention, inventory} {
		for _, f := range sub.Flags {
			res.AddFlag(f)
		}
	}
	return res, nil
}

// topGrowthCategory returns the category with the best mean year-over-year
// sales growth, or "" when under two years of history exist.
func (e *PrescriptiveEngine) topGrowthCategory(ds *dataset.Dataset) string {
	yearly := make(map[string]map[int]float64)
	records := ds.Records()
	for i := range records {
		r := &records[i]
		if r.Category == "" {
			continue
		}
		if yearly[r.Category] == nil {
			yearly[r.Category] = make(map[int]float64)
		}
		yearly[r.Category][r.Year] += r.Sales
	}

	best := ""
	bestGrowth := 0.0
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
		if len(growths) == 0 {
			continue
		}
		g := mean(growths)
		if best == "" || g > bestGrowth {
			best = name
			bestGrowth = g
		}
	}
	return best
}
