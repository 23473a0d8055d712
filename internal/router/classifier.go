package router

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/analytics"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/capability"
)

// categoryRule maps trigger keywords to an analytics category.
type categoryRule struct {
	category analytics.Category
	keywords []string
}

// classificationRules is checked in order and the first hit wins, so a
// query mixing predictive and prescriptive phrasing classifies as
// predictive. Descriptive is the fallback when nothing matches.
var classificationRules = []categoryRule{
	{analytics.CategoryPredictive, []string{"forecast", "predict", "future", "will", "likely"}},
	{analytics.CategoryPrescriptive, []string{"recommend", "should", "optimize", "action", "strategy"}},
	{analytics.CategoryDiagnostic, []string{"why", "cause", "reason", "impact", "correlation"}},
}

// Classify assigns a query to the analytics category whose rule matches
// first.
func Classify(query string) analytics.Category {
	q := strings.ToLower(query)
	for _, rule := range classificationRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.category
			}
		}
	}
	return analytics.CategoryDescriptive
}

// maxPlanned caps how many matched capabilities one query dispatches.
// The conversation iteration budget still applies on top.
const maxPlanned = 3

// selectCapabilities picks the capabilities to run for a classified
// query: every capability in the category whose keywords hit the query,
// best match first. When nothing matches, the category's
// highest-priority capability runs alone.
func selectCapabilities(reg *capability.Registry, category analytics.Category, query string) []*capability.Capability {
	candidates := reg.ByCategory(category)
	if len(candidates) == 0 {
		return nil
	}

	type scored struct {
		c     *capability.Capability
		score int
	}
	var matched []scored
	for _, c := range candidates {
		if s := c.MatchScore(query); s > 0 {
			matched = append(matched, scored{c, s})
		}
	}
	if len(matched) == 0 {
		return candidates[:1]
	}

	// Candidates arrive priority-ordered; a stable sort on score keeps
	// that order within equal scores.
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].score > matched[j].score })

	n := len(matched)
	if n > maxPlanned {
		n = maxPlanned
	}
	out := make([]*capability.Capability, n)
	for i := 0; i < n; i++ {
		out[i] = matched[i].c
	}
	return out
}

var (
	horizonPattern   = regexp.MustCompile(`next\s+(\d+)?\s*(day|week|month|quarter|year)s?`)
	dimensionPattern = regexp.MustCompile(`(?:by|per|across|between)\s+(categor|region|segment)`)
	topNPattern      = regexp.MustCompile(`top\s+(\d+)`)
)

// queryParams carries the arguments extracted from the query text. The
// planner forwards only the fields each capability declares.
type queryParams struct {
	metric            string
	frequency         string
	periods           int
	dimension         string
	topN              int
	anomalyMethod     string
	correlationMethod string
	forecastMethod    string
}

// extractParams pulls explicit sub-intents out of a lowercased query:
// horizons like "next 12 months", groupings like "by region", metric
// and method names. Absent fields stay zero so capability defaults
// apply.
func extractParams(q string) queryParams {
	var p queryParams

	if m := horizonPattern.FindStringSubmatch(q); m != nil {
		n := 1
		if m[1] != "" {
			if parsed, err := strconv.Atoi(m[1]); err == nil && parsed > 0 {
				n = parsed
			}
		}
		switch m[2] {
		case "year":
			// Years forecast as monthly periods.
			p.periods = n * 12
			p.frequency = "month"
		default:
			p.periods = n
			p.frequency = m[2]
		}
	} else {
		switch {
		case strings.Contains(q, "daily"):
			p.frequency = "day"
		case strings.Contains(q, "weekly"):
			p.frequency = "week"
		case strings.Contains(q, "quarterly"):
			p.frequency = "quarter"
		case strings.Contains(q, "monthly"):
			p.frequency = "month"
		}
	}

	if m := dimensionPattern.FindStringSubmatch(q); m != nil {
		switch m[1] {
		case "categor":
			p.dimension = "category"
		default:
			p.dimension = m[1]
		}
	}

	if m := topNPattern.FindStringSubmatch(q); m != nil {
		if parsed, err := strconv.Atoi(m[1]); err == nil && parsed > 0 {
			p.topN = parsed
		}
	}

	switch {
	case strings.Contains(q, "shipping"):
		p.metric = "shipping_cost"
	case strings.Contains(q, "profit"):
		p.metric = "profit"
	case strings.Contains(q, "quantity") || strings.Contains(q, "units"):
		p.metric = "quantity"
	}

	if strings.Contains(q, "iqr") {
		p.anomalyMethod = "iqr"
	}
	if strings.Contains(q, "spearman") {
		p.correlationMethod = "spearman"
	}
	if strings.Contains(q, "moving average") {
		p.forecastMethod = "moving_average"
	}
	return p
}

// argsFor builds the argument map for one planned capability from the
// extracted parameters. Unset extractions are omitted so the registry
// fills declared defaults.
func argsFor(c *capability.Capability, p queryParams) map[string]interface{} {
	args := make(map[string]interface{})
	switch c.Name {
	case "time_series_analysis":
		if p.metric != "" {
			args["metric"] = p.metric
		}
		if p.frequency != "" {
			args["frequency"] = p.frequency
		}
	case "group_breakdown":
		if p.dimension != "" {
			args["dimension"] = p.dimension
		}
	case "product_performance":
		if p.topN > 0 {
			args["top_n"] = p.topN
		}
	case "detect_anomalies":
		if p.metric != "" {
			args["metric"] = p.metric
		}
		if p.anomalyMethod != "" {
			args["method"] = p.anomalyMethod
		}
	case "correlation_analysis":
		if p.correlationMethod != "" {
			args["method"] = p.correlationMethod
		}
	case "variance_analysis":
		if p.dimension != "" {
			args["dimension"] = p.dimension
		}
		if p.metric != "" {
			args["metric"] = p.metric
		}
	case "seasonality_analysis":
		if p.metric != "" {
			args["metric"] = p.metric
		}
	case "forecast":
		if p.metric != "" {
			args["metric"] = p.metric
		}
		if p.periods > 0 {
			args["periods"] = p.periods
		}
		if p.frequency != "" {
			args["frequency"] = p.frequency
		}
		if p.forecastMethod != "" {
			args["method"] = p.forecastMethod
		}
	case "identify_growth_opportunities", "product_bundles":
		if p.topN > 0 {
			args["top_n"] = p.topN
		}
	}
	return args
}
