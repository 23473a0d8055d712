package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/capability"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/config"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/models"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/router"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/synthesis"
)

// sampleRecords builds two years of monthly orders with a steady upward
// sales trend, six customers, and four products.
func sampleRecords() []dataset.Record {
	base := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	categories := []string{"Technology", "Furniture"}
	regions := []string{"West", "East", "South"}
	segments := []string{"Consumer", "Corporate"}

	records := make([]dataset.Record, 24)
	for i := range records {
		sales := 1000 + 50*float64(i)
		records[i] = dataset.Record{
			OrderID:     fmt.Sprintf("O%03d", i+1),
			OrderDate:   base.AddDate(0, i, 0),
			ShipDate:    base.AddDate(0, i, 2),
			CustomerID:  fmt.Sprintf("C%d", i%6+1),
			ProductID:   fmt.Sprintf("P%d", i%4+1),
			ProductName: fmt.Sprintf("Product %d", i%4+1),
			Category:    categories[i%2],
			Region:      regions[i%3],
			Segment:     segments[i%2],
			Sales:       sales,
			Quantity:    2 + i%3,
			Discount:    0.1,
			Profit:      sales * 0.3,
		}
	}
	return records
}

func newTestAPI(t *testing.T, ds *dataset.Dataset, synth *synthesis.Client) (*Handler, *chi.Mux) {
	t.Helper()

	cfg := config.Default()
	registry := capability.Catalog(capability.NewEngines(cfg.Analytics))
	store := dataset.NewStore(ds)
	rt := router.New(store, registry, nil, cfg.Router, nil)

	h := NewHandler(store, registry, rt, synth, cfg, nil, "test")
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return h, r
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.True(t, resp.DataLoaded)
	assert.Equal(t, 24, resp.Rows)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestHealthNoData(t *testing.T) {
	_, r := newTestAPI(t, nil, nil)

	rec := doRequest(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.False(t, resp.DataLoaded)
	assert.Zero(t, resp.Rows)
}

func TestQueryEndpoint(t *testing.T) {
	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodPost, "/api/query", models.QueryRequest{
		Query:     "Forecast sales for next 6 months",
		SessionID: "s1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		QueryID    string   `json:"query_id"`
		SessionID  string   `json:"session_id"`
		Category   string   `json:"category"`
		State      string   `json:"state"`
		Insights   []string `json:"insights"`
		Confidence float64  `json:"confidence"`
		Answer     string   `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.QueryID)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "predictive", resp.Category)
	assert.Equal(t, "completed", resp.State)
	assert.NotEmpty(t, resp.Insights)
	assert.InDelta(t, 1.0, resp.Confidence, 1e-9)
	assert.Empty(t, resp.Answer, "no answer without a synthesis client")
}

func TestQueryValidation(t *testing.T) {
	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodPost, "/api/query", models.QueryRequest{Query: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("{not json"))
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestQueryNoData(t *testing.T) {
	_, r := newTestAPI(t, nil, nil)

	rec := doRequest(t, r, http.MethodPost, "/api/query", models.QueryRequest{Query: "summary of sales"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuerySynthesisAnswer(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"response": "Sales look strong."})
	}))
	defer ollama.Close()

	synth := synthesis.NewClient(config.SynthesisConfig{
		BaseURL: ollama.URL,
		Model:   "test-model",
		Timeout: time.Second,
	})
	_, r := newTestAPI(t, dataset.New(sampleRecords()), synth)

	rec := doRequest(t, r, http.MethodPost, "/api/query", models.QueryRequest{Query: "summary of sales"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State  string `json:"state"`
		Answer string `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.State)
	assert.Equal(t, "Sales look strong.", resp.Answer)
}

func TestQuerySynthesisFailureDegrades(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer ollama.Close()

	synth := synthesis.NewClient(config.SynthesisConfig{
		BaseURL: ollama.URL,
		Model:   "test-model",
		Timeout: time.Second,
	})
	_, r := newTestAPI(t, dataset.New(sampleRecords()), synth)

	rec := doRequest(t, r, http.MethodPost, "/api/query", models.QueryRequest{Query: "summary of sales"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State    string   `json:"state"`
		Insights []string `json:"insights"`
		Answer   string   `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.State)
	assert.NotEmpty(t, resp.Insights, "structured payload survives a narration failure")
	assert.Empty(t, resp.Answer)
}

func TestMetricsSummary(t *testing.T) {
	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodGet, "/api/metrics/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.SalesMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 37800, resp.TotalSales, 1e-6)
	assert.InDelta(t, 11340, resp.TotalProfit, 1e-6)
	assert.Equal(t, 24, resp.TotalOrders)
	assert.Equal(t, 6, resp.TotalCustomers)
	assert.InDelta(t, 1575, resp.AvgOrderValue, 1e-6)
	assert.InDelta(t, 30, resp.ProfitMargin, 1e-6)

	require.NotNil(t, resp.PeriodStart)
	require.NotNil(t, resp.PeriodEnd)
	assert.Equal(t, time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), *resp.PeriodStart)
	assert.Equal(t, time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC), *resp.PeriodEnd)
}

func TestForecastEndpoint(t *testing.T) {
	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodPost, "/api/forecast", models.ForecastRequest{
		Periods:   6,
		Frequency: "month",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sales", resp.Metric)
	assert.Equal(t, "month", resp.Frequency)
	assert.Equal(t, "linear", resp.Method)
	assert.Equal(t, "increasing", resp.Trend)
	assert.Len(t, resp.Forecast, 6)
	assert.InDelta(t, 1.0, resp.ModelMetrics["r_squared"], 1e-6)
}

func TestForecastEmptyBodyUsesDefaults(t *testing.T) {
	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodPost, "/api/forecast", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Forecast, config.Default().Analytics.ForecastPeriods)
}

func TestForecastRejectsUnknownMethod(t *testing.T) {
	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodPost, "/api/forecast", models.ForecastRequest{Method: "arima"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardEndpoint(t *testing.T) {
	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.DashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 5)
	for _, name := range []string{
		"summary_statistics", "time_series_analysis", "group_breakdown",
		"product_performance", "detect_anomalies",
	} {
		assert.Contains(t, resp.Results, name)
	}
}

func TestAnalyticsBundle(t *testing.T) {
	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodGet, "/api/analytics/predictive", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.BundleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "predictive", resp.Category)
	require.Len(t, resp.Results, 3)
	assert.Contains(t, resp.Results, "forecast")
	assert.Contains(t, resp.Results, "predict_churn")
	assert.Contains(t, resp.Results, "identify_growth_opportunities")
}

func TestAnalyticsBundleUnknownCategory(t *testing.T) {
	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodGet, "/api/analytics/fictional", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCapabilitiesEndpoint(t *testing.T) {
	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodGet, "/api/capabilities", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.CapabilitiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 19, resp.Count)
	require.Len(t, resp.Capabilities, 19)

	var forecast *models.CapabilityInfo
	for i := range resp.Capabilities {
		if resp.Capabilities[i].Name == "forecast" {
			forecast = &resp.Capabilities[i]
		}
	}
	require.NotNil(t, forecast)
	assert.Equal(t, "predictive", string(forecast.Category))
	assert.NotEmpty(t, forecast.Keywords)

	names := make([]string, 0, 4)
	for _, p := range forecast.Params {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "periods")
	assert.Contains(t, names, "method")
}

func TestDataMetadata(t *testing.T) {
	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodGet, "/api/data/metadata", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var meta dataset.Metadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, 24, meta.Rows)
	assert.Equal(t, 6, meta.Customers)
	assert.Equal(t, []string{"Furniture", "Technology"}, meta.Categories)
}

func TestReloadData(t *testing.T) {
	csvContent := strings.Join([]string{
		"Order ID,Order Date,Customer ID,Product Name,Category,Region,Segment,Sales,Quantity,Discount,Profit",
		"O1,2024-01-05,C1,Desk,Furniture,West,Consumer,100,1,0,30",
		"O2,2024-02-05,C2,Chair,Furniture,East,Consumer,200,2,0.1,50",
		"O3,2024-03-05,C1,Lamp,Technology,West,Corporate,300,3,0,90",
		"O4,not-a-date,C3,Mouse,Technology,East,Consumer,50,1,0,10",
	}, "\n")
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvContent), 0o644))

	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodPost, "/api/data/reload", models.ReloadRequest{Path: path})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ReloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Metadata.Rows)
	assert.Equal(t, 1, resp.Metadata.SkippedRows)

	// The swapped snapshot serves subsequent requests.
	health := doRequest(t, r, http.MethodGet, "/health", nil)
	var hr models.HealthResponse
	require.NoError(t, json.Unmarshal(health.Body.Bytes(), &hr))
	assert.Equal(t, 3, hr.Rows)
}

func TestReloadDataMissingFile(t *testing.T) {
	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodPost, "/api/data/reload", models.ReloadRequest{
		Path: filepath.Join(t.TempDir(), "nope.csv"),
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResetSessionEndpoint(t *testing.T) {
	_, r := newTestAPI(t, dataset.New(sampleRecords()), nil)

	rec := doRequest(t, r, http.MethodPost, "/api/session/reset", models.ResetRequest{SessionID: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "s1")

	missing := doRequest(t, r, http.MethodPost, "/api/session/reset", models.ResetRequest{})
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}
