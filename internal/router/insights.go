package router

import (
	"fmt"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/analytics"
)

// Bullet lists stay scannable even when several capabilities ran.
const (
	maxInsights        = 12
	maxRecommendations = 8
)

// Insights derives terse key = value bullets from the structured fields
// of each result. Nothing here parses generated text; every line reads a
// metric, label, or table cell directly.
func Insights(results []*analytics.Result) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(lines ...string) {
		for _, l := range lines {
			if l == "" || seen[l] {
				continue
			}
			seen[l] = true
			out = append(out, l)
		}
	}

	for _, res := range results {
		add(resultInsights(res)...)
	}
	for _, res := range results {
		for _, f := range res.Flags {
			add(fmt.Sprintf("data_quality = %s", f))
		}
	}

	if len(out) > maxInsights {
		out = out[:maxInsights]
	}
	return out
}

func resultInsights(res *analytics.Result) []string {
	var lines []string
	metric := func(format, name string) {
		if v, ok := res.Metric(name); ok {
			lines = append(lines, fmt.Sprintf(format, v))
		}
	}
	label := func(format, name string) {
		if v := res.Label(name); v != "" {
			lines = append(lines, fmt.Sprintf(format, v))
		}
	}

	switch res.Capability {
	case "summary_statistics":
		metric("total_sales = $%.2f", "total_sales")
		metric("total_orders = %.0f", "total_orders")
		metric("profit_margin = %.1f%%", "profit_margin")
		metric("avg_order_value = $%.2f", "avg_order_value")

	case "time_series_analysis":
		label("trend = %s", "trend")
		label("peak_period = %s", "peak_period")
		metric("average_growth_rate = %.1f%%", "average_growth_rate")

	case "group_breakdown":
		if top := res.Label("top_group"); top != "" {
			if share, ok := res.Metric("top_share"); ok {
				lines = append(lines, fmt.Sprintf("top_%s = %s (%.1f%% of sales)", res.Label("dimension"), top, share))
			} else {
				lines = append(lines, fmt.Sprintf("top_%s = %s", res.Label("dimension"), top))
			}
		}

	case "product_performance":
		label("top_product = %s", "top_product")

	case "detect_anomalies":
		if n, ok := res.Metric("total_anomalies"); ok {
			rate, _ := res.Metric("anomaly_rate")
			lines = append(lines, fmt.Sprintf("anomalies = %.0f (%.1f%% of records)", n, rate))
		}

	case "correlation_analysis":
		if pair := res.Label("strongest_pair"); pair != "" {
			if r, ok := res.Metric("strongest_correlation"); ok {
				lines = append(lines, fmt.Sprintf("strongest_correlation = %s (r = %.2f)", pair, r))
			}
		}
		metric("notable_pairs = %.0f", "notable_pairs")

	case "variance_analysis":
		if sig := res.Label("significance"); sig != "" {
			if f, ok := res.Metric("f_statistic"); ok {
				lines = append(lines, fmt.Sprintf("%s_variance = %s (F = %.2f)", res.Label("dimension"), sig, f))
			} else {
				lines = append(lines, fmt.Sprintf("%s_variance = %s", res.Label("dimension"), sig))
			}
		}

	case "discount_impact":
		if bin := res.Label("optimal_bin"); bin != "" {
			margin, _ := res.Metric("optimal_margin")
			lines = append(lines, fmt.Sprintf("optimal_discount_bin = %s (margin %.1f%%)", bin, margin))
		}
		label("margin_floor_breach = %s", "floor_breach_bin")

	case "seasonality_analysis":
		label("seasonality = %s", "seasonality")
		label("peak_month = %s", "peak_month")
		label("peak_quarter = %s", "peak_quarter")

	case "forecast":
		label("trend = %s", "trend")
		if rows := res.Tables["forecast"].Rows; len(rows) > 0 {
			if est, ok := rows[0]["forecast"].(float64); ok {
				lines = append(lines, fmt.Sprintf("next_period_estimate = %.2f (%v)", est, rows[0]["period"]))
			}
		}
		metric("r_squared = %.2f", "r_squared")

	case "predict_churn":
		metric("churn_rate = %.1f%%", "churn_rate")
		if high, ok := res.Metric("high_risk"); ok {
			total, _ := res.Metric("customers")
			lines = append(lines, fmt.Sprintf("high_risk_customers = %.0f of %.0f", high, total))
		}

	case "identify_growth_opportunities":
		label("top_opportunity = %s", "top_opportunity")

	case "optimize_pricing":
		raise, _ := res.Metric("raise_actions")
		lower, _ := res.Metric("lower_actions")
		hold, _ := res.Metric("hold_actions")
		lines = append(lines, fmt.Sprintf("price_actions = %.0f raise / %.0f lower / %.0f hold", raise, lower, hold))

	case "optimize_inventory":
		inc, _ := res.Metric("increase_stock")
		red, _ := res.Metric("reduce_stock")
		keep, _ := res.Metric("maintain")
		lines = append(lines, fmt.Sprintf("stock_actions = %.0f increase / %.0f reduce / %.0f maintain", inc, red, keep))

	case "rfm_segmentation":
		label("largest_segment = %s", "largest_segment")
		label("top_value_segment = %s", "top_value_segment")

	case "recommend_marketing_strategy":
		label("top_region = %s", "top_region")
		label("allocation_basis = %s", "allocation_basis")

	case "recommend_retention_strategy":
		if rev, ok := res.Metric("revenue_at_risk"); ok {
			atRisk, _ := res.Metric("at_risk_customers")
			lines = append(lines, fmt.Sprintf("revenue_at_risk = $%.2f (%.0f customers)", rev, atRisk))
		}

	case "product_bundles":
		metric("bundle_candidates = %.0f", "pairs")

	case "get_action_plan":
		imm, _ := res.Metric("immediate_actions")
		short, _ := res.Metric("short_term_actions")
		long, _ := res.Metric("long_term_actions")
		lines = append(lines, fmt.Sprintf("planned_actions = %.0f immediate / %.0f short-term / %.0f long-term", imm, short, long))
	}
	return lines
}

// Recommendations collects directive statements the engines already
// emitted as structured fields: recommendation labels, action rows, and
// strategy columns. The router never invents advice of its own.
func Recommendations(results []*analytics.Result) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(lines ...string) {
		for _, l := range lines {
			if l == "" || seen[l] {
				continue
			}
			seen[l] = true
			out = append(out, l)
		}
	}

	for _, res := range results {
		switch res.Capability {
		case "discount_impact":
			add(res.Label("recommendation"))

		case "identify_growth_opportunities":
			rows := res.Tables["opportunities"].Rows
			for i := 0; i < len(rows) && i < 2; i++ {
				if rec, ok := rows[i]["recommendation"].(string); ok {
					add(rec)
				}
			}

		case "optimize_pricing":
			for _, row := range res.Tables["pricing_actions"].Rows {
				switch row["action"] {
				case "raise":
					add(fmt.Sprintf("raise effective prices in %v by cutting discounts", row["category"]))
				case "lower":
					add(fmt.Sprintf("trial a price reduction in %v", row["category"]))
				}
			}

		case "optimize_inventory":
			if inc, ok := res.Metric("increase_stock"); ok && inc > 0 {
				add(fmt.Sprintf("raise stock cover on %.0f fast-moving products", inc))
			}
			if red, ok := res.Metric("reduce_stock"); ok && red > 0 {
				add(fmt.Sprintf("run down stock on %.0f slow movers", red))
			}

		case "recommend_marketing_strategy":
			if top := res.Label("top_region"); top != "" && res.Label("allocation_basis") == "roi_proportional" {
				add(fmt.Sprintf("shift marketing budget toward %s", top))
			}

		case "recommend_retention_strategy":
			for _, row := range res.Tables["retention_strategies"].Rows {
				seg, _ := row["segment"].(string)
				if seg != "At Risk" && seg != "Lost" {
					continue
				}
				if strategy, ok := row["strategy"].(string); ok {
					add(fmt.Sprintf("%s: %s", seg, strategy))
				}
			}

		case "predict_churn":
			if high, ok := res.Metric("high_risk"); ok && high > 0 {
				add(fmt.Sprintf("prioritize win-back outreach for %.0f high-risk customers", high))
			}

		case "get_action_plan":
			for _, row := range res.Tables["action_plan"].Rows {
				if action, ok := row["action"].(string); ok {
					add(action)
				}
			}
		}
	}

	if len(out) > maxRecommendations {
		out = out[:maxRecommendations]
	}
	return out
}
