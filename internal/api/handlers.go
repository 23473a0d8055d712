package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/analytics"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/capability"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/config"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/models"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/router"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/synthesis"
)

// Handler exposes the analytics service over HTTP. Synth may be nil,
// which disables narrated answers without affecting the structured
// payload.
type Handler struct {
	Data     *dataset.Store
	Registry *capability.Registry
	Router   *router.Router
	Synth    *synthesis.Client
	Config   *config.Config
	Log      *zap.Logger
	Version  string

	reloadMu sync.Mutex // one reload builds and swaps a snapshot at a time
}

func NewHandler(data *dataset.Store, registry *capability.Registry, rt *router.Router, synth *synthesis.Client, cfg *config.Config, log *zap.Logger, version string) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if version == "" {
		version = "dev"
	}
	return &Handler{
		Data:     data,
		Registry: registry,
		Router:   rt,
		Synth:    synth,
		Config:   cfg,
		Log:      log,
		Version:  version,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)

	// Query and analytics routes
	r.Post("/api/query", h.Query)
	r.Get("/api/metrics/summary", h.MetricsSummary)
	r.Post("/api/forecast", h.Forecast)
	r.Get("/api/dashboard", h.Dashboard)
	r.Get("/api/analytics/{category}", h.AnalyticsBundle)
	r.Get("/api/capabilities", h.Capabilities)

	// Data and session management
	r.Get("/api/data/metadata", h.DataMetadata)
	r.Post("/api/data/reload", h.ReloadData)
	r.Post("/api/session/reset", h.ResetSession)
}

// ============================================================================
// Health
// ============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ds := h.Data.Current()

	resp := models.HealthResponse{
		Status:     "healthy",
		Version:    h.Version,
		DataLoaded: ds != nil && ds.Len() > 0,
		Timestamp:  time.Now().UTC(),
	}
	if ds != nil {
		resp.Rows = ds.Len()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ============================================================================
// Query
// ============================================================================

// Query routes a natural-language question through the orchestrator and
// optionally narrates the structured results.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	routed, err := h.Router.Route(r.Context(), req.Query, req.SessionID)
	if err != nil {
		if errors.Is(err, analytics.ErrNoDataset) {
			http.Error(w, "No data loaded", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Error processing query: %v", err), http.StatusInternalServerError)
		return
	}

	resp := models.QueryResponse{Response: routed}
	if h.Synth != nil {
		answer, err := h.Synth.Narrate(r.Context(), req.Query, routed)
		if err != nil {
			// Narration is best effort; the structured payload stands alone.
			h.Log.Warn("synthesis unavailable", zap.Error(err))
		} else {
			resp.Answer = answer
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ============================================================================
// Direct analytics
// ============================================================================

func (h *Handler) MetricsSummary(w http.ResponseWriter, r *http.Request) {
	ds := h.Data.Current()
	if ds == nil {
		http.Error(w, "No data loaded", http.StatusNotFound)
		return
	}

	inv, err := h.Registry.Invoke(r.Context(), ds, "summary_statistics", nil)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error computing summary: %v", err), http.StatusInternalServerError)
		return
	}

	res := inv.Result
	resp := models.SalesMetrics{
		TotalSales:     res.Metrics["total_sales"],
		TotalProfit:    res.Metrics["total_profit"],
		TotalOrders:    int(res.Metrics["total_orders"]),
		TotalCustomers: int(res.Metrics["total_customers"]),
		AvgOrderValue:  res.Metrics["avg_order_value"],
		ProfitMargin:   res.Metrics["profit_margin"],
	}
	if t, err := time.Parse("2006-01-02", res.Label("date_start")); err == nil {
		resp.PeriodStart = &t
	}
	if t, err := time.Parse("2006-01-02", res.Label("date_end")); err == nil {
		resp.PeriodEnd = &t
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	ds := h.Data.Current()
	if ds == nil {
		http.Error(w, "No data loaded", http.StatusNotFound)
		return
	}

	// An empty body means defaults for everything.
	var req models.ForecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	args := map[string]interface{}{}
	if req.Metric != "" {
		args["metric"] = req.Metric
	}
	if req.Periods > 0 {
		args["periods"] = req.Periods
	}
	if req.Frequency != "" {
		args["frequency"] = req.Frequency
	}
	if req.Method != "" {
		args["method"] = req.Method
	}

	inv, err := h.Registry.Invoke(r.Context(), ds, "forecast", args)
	if err != nil {
		if errors.Is(err, capability.ErrInvalidParameter) {
			http.Error(w, fmt.Sprintf("Invalid forecast request: %v", err), http.StatusBadRequest)
			return
		}
		http.Error(w, fmt.Sprintf("Error forecasting: %v", err), http.StatusInternalServerError)
		return
	}

	res := inv.Result
	resp := models.ForecastResponse{
		Metric:       res.Label("metric"),
		Frequency:    res.Label("frequency"),
		Method:       res.Label("method"),
		Trend:        res.Label("trend"),
		Forecast:     res.Tables["forecast"].Rows,
		ModelMetrics: res.Metrics,
		Flags:        res.Flags,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	results, err := h.Router.Dashboard(r.Context())
	if err != nil {
		if errors.Is(err, analytics.ErrNoDataset) {
			http.Error(w, "No data loaded", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Error building dashboard: %v", err), http.StatusInternalServerError)
		return
	}

	keyed := make(map[string]*analytics.Result, len(results))
	for _, res := range results {
		keyed[res.Capability] = res
	}

	resp := models.DashboardResponse{
		GeneratedAt: time.Now().UTC(),
		Results:     keyed,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// AnalyticsBundle runs every capability of one category with default
// arguments and returns the results keyed by capability name.
func (h *Handler) AnalyticsBundle(w http.ResponseWriter, r *http.Request) {
	category := analytics.Category(chi.URLParam(r, "category"))
	switch category {
	case analytics.CategoryDescriptive, analytics.CategoryDiagnostic,
		analytics.CategoryPredictive, analytics.CategoryPrescriptive:
	default:
		http.Error(w, fmt.Sprintf("Unknown analytics category %q", category), http.StatusBadRequest)
		return
	}

	ds := h.Data.Current()
	if ds == nil {
		http.Error(w, "No data loaded", http.StatusNotFound)
		return
	}

	results := make(map[string]*analytics.Result)
	for _, c := range h.Registry.ByCategory(category) {
		inv, err := h.Registry.Invoke(r.Context(), ds, c.Name, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("Error running %s: %v", c.Name, err), http.StatusInternalServerError)
			return
		}
		results[c.Name] = inv.Result
	}

	resp := models.BundleResponse{
		Category: string(category),
		Results:  results,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) Capabilities(w http.ResponseWriter, r *http.Request) {
	all := h.Registry.All()

	infos := make([]models.CapabilityInfo, 0, len(all))
	for _, c := range all {
		infos = append(infos, models.CapabilityInfo{
			Name:        c.Name,
			Description: c.Description,
			Category:    c.Category,
			Priority:    c.Priority,
			Keywords:    c.Keywords,
			Params:      c.Params,
		})
	}

	resp := models.CapabilitiesResponse{
		Count:        len(infos),
		Capabilities: infos,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ============================================================================
// Data and session management
// ============================================================================

func (h *Handler) DataMetadata(w http.ResponseWriter, r *http.Request) {
	ds := h.Data.Current()
	if ds == nil {
		http.Error(w, "No data loaded", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ds.Meta())
}

func (h *Handler) ReloadData(w http.ResponseWriter, r *http.Request) {
	var req models.ReloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	ds, err := h.loadDataset(req)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to reload data: %v", err), http.StatusInternalServerError)
		return
	}

	h.Data.Swap(ds)
	h.Log.Info("dataset reloaded",
		zap.Int("rows", ds.Len()),
		zap.Int("skipped_rows", ds.Meta().SkippedRows))

	resp := models.ReloadResponse{
		Message:  "Dataset reloaded successfully",
		Metadata: ds.Meta(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) loadDataset(req models.ReloadRequest) (*dataset.Dataset, error) {
	switch h.Config.Data.Source {
	case "postgres":
		src, err := dataset.ConnectPostgres(h.Config.Data.Postgres)
		if err != nil {
			return nil, err
		}
		defer src.Close()

		table := req.Table
		if table == "" {
			table = h.Config.Data.Postgres.Table
		}
		return src.Load(table)
	default:
		path := req.Path
		if path == "" {
			path = h.Config.Data.CSVPath
		}
		return dataset.LoadCSV(path)
	}
}

func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	var req models.ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	if err := h.Router.ResetSession(r.Context(), req.SessionID); err != nil {
		http.Error(w, fmt.Sprintf("Error resetting session: %v", err), http.StatusInternalServerError)
		return
	}

	resp := models.MessageResponse{
		Message: fmt.Sprintf("Session '%s' reset successfully", req.SessionID),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
