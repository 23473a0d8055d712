package models

import (
	"time"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/analytics"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/capability"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/router"
)

// HealthResponse is returned by /health
type HealthResponse struct {
	Status     string    `json:"status"`
	Version    string    `json:"version"`
	DataLoaded bool      `json:"data_loaded"`
	Rows       int       `json:"rows"`
	Timestamp  time.Time `json:"timestamp"`
}

// QueryResponse is returned by /api/query. Answer is only set when the
// synthesis layer is enabled and reachable; the structured routing
// payload is always present.
type QueryResponse struct {
	*router.Response
	Answer string `json:"answer,omitempty"`
}

// SalesMetrics is returned by /api/metrics/summary
type SalesMetrics struct {
	TotalSales     float64    `json:"total_sales"`
	TotalProfit    float64    `json:"total_profit"`
	TotalOrders    int        `json:"total_orders"`
	TotalCustomers int        `json:"total_customers"`
	AvgOrderValue  float64    `json:"avg_order_value"`
	ProfitMargin   float64    `json:"profit_margin"`
	PeriodStart    *time.Time `json:"period_start,omitempty"`
	PeriodEnd      *time.Time `json:"period_end,omitempty"`
}

// ForecastResponse is returned by /api/forecast
type ForecastResponse struct {
	Metric       string                   `json:"metric"`
	Frequency    string                   `json:"frequency"`
	Method       string                   `json:"method"`
	Trend        string                   `json:"trend"`
	Forecast     []map[string]interface{} `json:"forecast"`
	ModelMetrics map[string]float64       `json:"model_metrics"`
	Flags        []analytics.Flag         `json:"flags,omitempty"`
}

// DashboardResponse is returned by /api/dashboard, keyed by capability
type DashboardResponse struct {
	GeneratedAt time.Time                    `json:"generated_at"`
	Results     map[string]*analytics.Result `json:"results"`
}

// BundleResponse is returned by /api/analytics/{category}
type BundleResponse struct {
	Category string                       `json:"category"`
	Results  map[string]*analytics.Result `json:"results"`
}

// CapabilityInfo describes one registered capability
type CapabilityInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Category    analytics.Category `json:"category"`
	Priority    int                `json:"priority"`
	Keywords    []string           `json:"keywords"`
	Params      []capability.Param `json:"params,omitempty"`
}

// CapabilitiesResponse is returned by /api/capabilities
type CapabilitiesResponse struct {
	Count        int              `json:"count"`
	Capabilities []CapabilityInfo `json:"capabilities"`
}

// ReloadResponse is returned by /api/data/reload
type ReloadResponse struct {
	Message  string           `json:"message"`
	Metadata dataset.Metadata `json:"metadata"`
}

// MessageResponse is a generic acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}
