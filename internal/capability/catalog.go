package capability

import (
	"context"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/analytics"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/config"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
)

// Engines bundles the four analytics engines the catalog binds to.
type Engines struct {
	Descriptive  *analytics.DescriptiveEngine
	Diagnostic   *analytics.DiagnosticEngine
	Predictive   *analytics.PredictiveEngine
	Prescriptive *analytics.PrescriptiveEngine
}

// NewEngines constructs all engines from one analytics configuration.
func NewEngines(cfg config.AnalyticsConfig) Engines {
	return Engines{
		Descriptive:  analytics.NewDescriptiveEngine(cfg),
		Diagnostic:   analytics.NewDiagnosticEngine(cfg),
		Predictive:   analytics.NewPredictiveEngine(cfg),
		Prescriptive: analytics.NewPrescriptiveEngine(cfg),
	}
}

// Post-validation argument readers. Values are already coerced to their
// declared types, so a failed assertion just means the argument is absent.

func stringArg(args map[string]interface{}, key, fallback string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return fallback
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	if v, ok := args[key].(int); ok {
		return v
	}
	return fallback
}

func floatArg(args map[string]interface{}, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

func frequencyArg(args map[string]interface{}) analytics.Frequency {
	f, _ := analytics.ParseFrequency(stringArg(args, "frequency", ""))
	return f
}

// Catalog builds the full capability registry over the given engines.
// Registration is explicit so the set of capabilities is readable in one
// place.
func Catalog(e Engines) *Registry {
	reg := NewRegistry()

	metricParam := Param{
		Name: "metric", Type: TypeString, Default: "sales",
		Description: "Numeric field to analyze (sales, profit, quantity, discount, shipping_cost).",
	}
	frequencyParam := Param{
		Name: "frequency", Type: TypeString, Default: "month",
		Description: "Calendar bucket size (day, week, month, quarter).",
	}
	dimensionEnum := []string{"category", "region", "segment"}

	// ========================================================================
	// Descriptive: what happened
	// ========================================================================

	reg.MustRegister(&Capability{
		Name:        "summary_statistics",
		Description: "Dataset-wide sales, profit, and order KPIs with distribution statistics.",
		Category:    analytics.CategoryDescriptive,
		Keywords:    []string{"summary", "overview", "statistic", "describe", "kpi", "how much", "total sales"},
		Priority:    90,
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Descriptive.SummaryStatistics(ds)
		},
	})

	reg.MustRegister(&Capability{
		Name:        "time_series_analysis",
		Description: "Metric aggregated over calendar periods with trend, growth, and moving averages.",
		Category:    analytics.CategoryDescriptive,
		Keywords:    []string{"trend", "over time", "time series", "timeline", "history", "by month", "monthly", "weekly", "quarterly"},
		Priority:    70,
		Params:      []Param{metricParam, frequencyParam},
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Descriptive.TimeSeries(ds, stringArg(args, "metric", "sales"), frequencyArg(args))
		},
	})

	reg.MustRegister(&Capability{
		Name:        "group_breakdown",
		Description: "Sales, profit, and customer counts broken down by a dimension.",
		Category:    analytics.CategoryDescriptive,
		Keywords:    []string{"breakdown", "by category", "by region", "by segment", "compare", "across", "split"},
		Priority:    60,
		Params: []Param{{
			Name: "dimension", Type: TypeString, Default: "category", Enum: dimensionEnum,
			Description: "Grouping dimension.",
		}},
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Descriptive.GroupBreakdown(ds, stringArg(args, "dimension", "category"))
		},
	})

	reg.MustRegister(&Capability{
		Name:        "product_performance",
		Description: "Top and bottom products by revenue with margin and quantity detail.",
		Category:    analytics.CategoryDescriptive,
		Keywords:    []string{"product", "top sell", "best sell", "worst", "performer", "sku"},
		Priority:    60,
		Params: []Param{{
			Name: "top_n", Type: TypeInt, Default: 10,
			Description: "How many products per ranking.",
		}},
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Descriptive.ProductPerformance(ds, intArg(args, "top_n", 10))
		},
	})

	// ========================================================================
	// Diagnostic: why it happened
	// ========================================================================

	reg.MustRegister(&Capability{
		Name:        "detect_anomalies",
		Description: "Records whose metric deviates beyond a z-score or IQR threshold.",
		Category:    analytics.CategoryDiagnostic,
		Keywords:    []string{"anomal", "outlier", "unusual", "spike", "irregular", "weird"},
		Priority:    80,
		Params: []Param{
			metricParam,
			{Name: "method", Type: TypeString, Default: "zscore", Enum: []string{"zscore", "iqr"},
				Description: "Detection method."},
			{Name: "threshold", Type: TypeFloat,
				Description: "Detection threshold; zero uses the configured default."},
		},
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Diagnostic.DetectAnomalies(ds,
				stringArg(args, "metric", "sales"),
				stringArg(args, "method", "zscore"),
				floatArg(args, "threshold", 0))
		},
	})

	reg.MustRegister(&Capability{
		Name:        "correlation_analysis",
		Description: "Pairwise correlations across the numeric fields, with notable pairs called out.",
		Category:    analytics.CategoryDiagnostic,
		Keywords:    []string{"correlat", "relationship", "related", "driver", "depend"},
		Priority:    70,
		Params: []Param{{
			Name: "method", Type: TypeString, Default: "pearson", Enum: []string{"pearson", "spearman"},
			Description: "Correlation coefficient.",
		}},
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Diagnostic.CorrelationAnalysis(ds, stringArg(args, "method", "pearson"))
		},
	})

	reg.MustRegister(&Capability{
		Name:        "variance_analysis",
		Description: "Group means across a dimension with a one-way ANOVA significance test.",
		Category:    analytics.CategoryDiagnostic,
		Keywords:    []string{"variance", "anova", "differ", "deviation", "significant"},
		Priority:    60,
		Params: []Param{
			{Name: "dimension", Type: TypeString, Default: "region", Enum: dimensionEnum,
				Description: "Grouping dimension."},
			metricParam,
		},
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Diagnostic.VarianceAnalysis(ds,
				stringArg(args, "dimension", "region"),
				stringArg(args, "metric", "sales"))
		},
	})

	reg.MustRegister(&Capability{
		Name:        "discount_impact",
		Description: "Profitability by discount band with a pullback recommendation past the margin floor.",
		Category:    analytics.CategoryDiagnostic,
		Keywords:    []string{"discount", "markdown", "promotion", "price cut"},
		Priority:    70,
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Diagnostic.DiscountImpact(ds)
		},
	})

	reg.MustRegister(&Capability{
		Name:        "seasonality_analysis",
		Description: "Metric profile by calendar month, quarter, and weekday.",
		Category:    analytics.CategoryDiagnostic,
		Keywords:    []string{"seasonal", "season", "time of year", "holiday", "peak month"},
		Priority:    60,
		Params:      []Param{metricParam},
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Diagnostic.Seasonality(ds, stringArg(args, "metric", "sales"))
		},
	})

	// ========================================================================
	// Predictive: what will happen
	// ========================================================================

	reg.MustRegister(&Capability{
		Name:        "forecast",
		Description: "Metric projection with confidence bands that widen over the horizon.",
		Category:    analytics.CategoryPredictive,
		Keywords:    []string{"forecast", "project", "predict sales", "next month", "next quarter", "next year", "future", "expect"},
		Priority:    90,
		Params: []Param{
			metricParam,
			{Name: "periods", Type: TypeInt,
				Description: "Periods ahead; zero uses the configured horizon."},
			frequencyParam,
			{Name: "method", Type: TypeString, Default: "linear", Enum: []string{"linear", "moving_average"},
				Description: "Projection method."},
		},
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Predictive.Forecast(ds,
				stringArg(args, "metric", "sales"),
				intArg(args, "periods", 0),
				frequencyArg(args),
				stringArg(args, "method", "linear"))
		},
	})

	reg.MustRegister(&Capability{
		Name:        "predict_churn",
		Description: "Churn tiers per customer from recency and order frequency.",
		Category:    analytics.CategoryPredictive,
		Keywords:    []string{"churn", "attrition", "losing customers", "stop buying", "at risk"},
		Priority:    80,
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Predictive.PredictChurn(ds)
		},
	})

	reg.MustRegister(&Capability{
		Name:        "identify_growth_opportunities",
		Description: "Categories and regions ranked by year-over-year growth blended with revenue share.",
		Category:    analytics.CategoryPredictive,
		Keywords:    []string{"growth", "opportunit", "expand", "invest", "potential"},
		Priority:    70,
		Params: []Param{{
			Name: "top_n", Type: TypeInt,
			Description: "How many opportunities to rank; zero uses the configured default.",
		}},
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Predictive.GrowthOpportunities(ds, intArg(args, "top_n", 0))
		},
	})

	// ========================================================================
	// Prescriptive: what to do about it
	// ========================================================================

	reg.MustRegister(&Capability{
		Name:        "optimize_pricing",
		Description: "Per-category price actions from margin, discount depth, and elasticity.",
		Category:    analytics.CategoryPrescriptive,
		Keywords:    []string{"pricing", "price", "margin improvement"},
		Priority:    70,
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Prescriptive.OptimizePricing(ds)
		},
	})

	reg.MustRegister(&Capability{
		Name:        "optimize_inventory",
		Description: "Stock actions per product from sales velocity quartiles.",
		Category:    analytics.CategoryPrescriptive,
		Keywords:    []string{"inventory", "stock", "restock", "warehouse"},
		Priority:    70,
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Prescriptive.OptimizeInventory(ds)
		},
	})

	reg.MustRegister(&Capability{
		Name:        "rfm_segmentation",
		Description: "Customers grouped by recency, frequency, and monetary quintiles.",
		Category:    analytics.CategoryPrescriptive,
		Keywords:    []string{"rfm", "segment", "customer group", "cohort"},
		Priority:    70,
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Prescriptive.RFMSegmentation(ds)
		},
	})

	reg.MustRegister(&Capability{
		Name:        "recommend_marketing_strategy",
		Description: "Budget allocation across regions proportional to ROI.",
		Category:    analytics.CategoryPrescriptive,
		Keywords:    []string{"marketing", "budget", "campaign", "advertis", "spend"},
		Priority:    60,
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Prescriptive.MarketingStrategy(ds)
		},
	})

	reg.MustRegister(&Capability{
		Name:        "recommend_retention_strategy",
		Description: "Retention playbook per RFM segment with the revenue at risk.",
		Category:    analytics.CategoryPrescriptive,
		Keywords:    []string{"retention", "retain", "win back", "keep customers", "loyalty"},
		Priority:    60,
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Prescriptive.RetentionStrategy(ds)
		},
	})

	reg.MustRegister(&Capability{
		Name:        "product_bundles",
		Description: "Product pairs that co-occur in orders often enough to bundle.",
		Category:    analytics.CategoryPrescriptive,
		Keywords:    []string{"bundle", "bought together", "cross-sell", "combination", "pair"},
		Priority:    50,
		Params: []Param{{
			Name: "top_n", Type: TypeInt,
			Description: "How many bundles to return; zero uses the configured default.",
		}},
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Prescriptive.ProductBundles(ds, intArg(args, "top_n", 0))
		},
	})

	reg.MustRegister(&Capability{
		Name:        "get_action_plan",
		Description: "Merged pricing, marketing, retention, and inventory actions across three horizons.",
		Category:    analytics.CategoryPrescriptive,
		Keywords:    []string{"action plan", "plan of action", "what should", "roadmap", "next steps", "improve"},
		Priority:    90,
		Run: func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error) {
			return e.Prescriptive.ActionPlan(ds)
		},
	})

	return reg
}
