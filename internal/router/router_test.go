package router

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/analytics"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/config"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// trendingRecords builds two years of monthly orders with a steady
// upward sales trend and healthy margins.
func trendingRecords() []dataset.Record {
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

func newTestRouter(t *testing.T, cfg config.RouterConfig) (*Router, session.Store) {
	t.Helper()
	sessions := session.NewMemoryStore()
	r := New(
		dataset.NewStore(dataset.New(trendingRecords())),
		testRegistry(),
		sessions,
		cfg,
		zap.NewNop(),
	)
	return r, sessions
}

func TestRouteForecastQuery(t *testing.T) {
	r, _ := newTestRouter(t, config.Default().Router)

	resp, err := r.Route(context.Background(), "Forecast sales for next 12 months", "s-forecast")
	require.NoError(t, err)

	assert.Equal(t, analytics.CategoryPredictive, resp.Category)
	assert.Equal(t, StateCompleted, resp.State)
	assert.False(t, resp.Partial)
	assert.Equal(t, 1, resp.IterationsUsed)
	assert.InDelta(t, 1.0, resp.Confidence, 1e-9)

	_, err = uuid.Parse(resp.QueryID)
	assert.NoError(t, err)
	assert.Equal(t, "s-forecast", resp.SessionID)

	require.Len(t, resp.Results, 1)
	res := resp.Results[0]
	assert.Equal(t, "forecast", res.Capability)
	assert.Equal(t, "increasing", res.Label("trend"))

	rows := res.Tables["forecast"].Rows
	require.Len(t, rows, 12)
	prev := math.Inf(-1)
	for _, row := range rows {
		est, ok := row["forecast"].(float64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, est, prev)
		prev = est
	}

	assert.Contains(t, resp.Insights, "trend = increasing")
}

func TestRouteDefaultsToSummary(t *testing.T) {
	r, _ := newTestRouter(t, config.Default().Router)

	resp, err := r.Route(context.Background(), "hello there", "")
	require.NoError(t, err)

	assert.Equal(t, analytics.CategoryDescriptive, resp.Category)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "summary_statistics", resp.Results[0].Capability)
	assert.InDelta(t, 1.0, resp.Confidence, 1e-9)

	// Anonymous queries get a budget keyed by the query id.
	assert.Equal(t, resp.QueryID, resp.SessionID)
}

func TestRouteSubIntents(t *testing.T) {
	cases := []struct {
		query    string
		category analytics.Category
		first    string
	}{
		{"How likely are customers to churn?", analytics.CategoryPredictive, "predict_churn"},
		{"Why did sales spike, any unusual outliers?", analytics.CategoryDiagnostic, "detect_anomalies"},
		{"Recommend a retention strategy for lapsed customers", analytics.CategoryPrescriptive, "recommend_retention_strategy"},
		{"What should we do to improve?", analytics.CategoryPrescriptive, "get_action_plan"},
		{"Show me the monthly trend of profit", analytics.CategoryDescriptive, "time_series_analysis"},
	}

	r, _ := newTestRouter(t, config.Default().Router)
	for _, tc := range cases {
		t.Run(tc.first, func(t *testing.T) {
			resp, err := r.Route(context.Background(), tc.query, "")
			require.NoError(t, err)
			assert.Equal(t, tc.category, resp.Category)
			require.NotEmpty(t, resp.Results)
			assert.Equal(t, tc.first, resp.Results[0].Capability)
			assert.Equal(t, StateCompleted, resp.State)
		})
	}
}

func TestRouteMultiCapabilityDispatch(t *testing.T) {
	r, _ := newTestRouter(t, config.Default().Router)

	resp, err := r.Route(context.Background(), "Recommend pricing, inventory and marketing strategy", "s-multi")
	require.NoError(t, err)

	assert.Equal(t, analytics.CategoryPrescriptive, resp.Category)
	assert.Equal(t, 3, resp.IterationsUsed)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "optimize_pricing", resp.Results[0].Capability)
	assert.Equal(t, "optimize_inventory", resp.Results[1].Capability)
	assert.Equal(t, "recommend_marketing_strategy", resp.Results[2].Capability)
	assert.InDelta(t, 1.0, resp.Confidence, 1e-9)

	found := false
	for _, rec := range resp.Recommendations {
		if strings.HasPrefix(rec, "shift marketing budget toward ") {
			found = true
		}
	}
	assert.True(t, found, "marketing recommendation missing: %v", resp.Recommendations)
}

func TestRouteExhaustsIterationBudget(t *testing.T) {
	r, _ := newTestRouter(t, config.RouterConfig{MaxIterations: 1})

	resp, err := r.Route(context.Background(), "Recommend pricing, inventory and marketing strategy", "s-tight")
	require.NoError(t, err)

	// The budget admits one invocation; the rest of the plan is cut and
	// the response is a penalized partial, not a failure.
	assert.True(t, resp.Partial)
	assert.Equal(t, StateCompleted, resp.State)
	assert.Equal(t, 1, resp.IterationsUsed)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "optimize_pricing", resp.Results[0].Capability)
	assert.InDelta(t, 0.75, resp.Confidence, 1e-9)
}

func TestRouteBudgetSpansConversation(t *testing.T) {
	r, sessions := newTestRouter(t, config.RouterConfig{MaxIterations: 3})
	ctx := context.Background()
	const sid = "s-conversation"

	for i := 0; i < 3; i++ {
		resp, err := r.Route(ctx, "summary of sales", sid)
		require.NoError(t, err)
		assert.False(t, resp.Partial)
		require.Len(t, resp.Results, 1)
	}

	// Fourth query in the same conversation finds the budget spent.
	resp, err := r.Route(ctx, "summary of sales", sid)
	require.NoError(t, err)
	assert.True(t, resp.Partial)
	assert.Equal(t, StateCompleted, resp.State)
	assert.Zero(t, resp.IterationsUsed)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.Confidence)

	// Resetting the session restores it.
	require.NoError(t, r.ResetSession(ctx, sid))
	resp, err = r.Route(ctx, "summary of sales", sid)
	require.NoError(t, err)
	assert.False(t, resp.Partial)
	require.Len(t, resp.Results, 1)

	used, err := sessions.Iterations(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestRouteNoDataset(t *testing.T) {
	r := New(dataset.NewStore(nil), testRegistry(), session.NewMemoryStore(), config.Default().Router, nil)

	resp, err := r.Route(context.Background(), "summary of sales", "")
	require.ErrorIs(t, err, analytics.ErrNoDataset)
	assert.Equal(t, StateFailed, resp.State)
}

func TestRouteCancelledContext(t *testing.T) {
	r, _ := newTestRouter(t, config.Default().Router)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := r.Route(ctx, "summary of sales", "")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, resp.State)
}

func TestConfidence(t *testing.T) {
	cases := []struct {
		name      string
		attempted int
		succeeded int
		flags     int
		exhausted bool
		want      float64
	}{
		{"all clean", 4, 4, 0, false, 1.0},
		{"one failure", 4, 3, 0, false, 0.75},
		{"flags discount", 4, 4, 2, false, 0.9},
		{"exhaustion penalty", 1, 1, 0, true, 0.75},
		{"stacked penalties", 2, 1, 3, true, 0.1},
		{"nothing attempted", 0, 0, 0, true, 0},
		{"clamped at zero", 1, 0, 4, true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := confidence(tc.attempted, tc.succeeded, tc.flags, tc.exhausted)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestDashboard(t *testing.T) {
	r, _ := newTestRouter(t, config.Default().Router)

	results, err := r.Dashboard(context.Background())
	require.NoError(t, err)
	require.Len(t, results, len(dashboardCapabilities))
	for i, name := range dashboardCapabilities {
		require.NotNil(t, results[i], name)
		assert.Equal(t, name, results[i].Capability)
	}
}

func TestDashboardNoDataset(t *testing.T) {
	r := New(dataset.NewStore(nil), testRegistry(), nil, config.Default().Router, nil)

	_, err := r.Dashboard(context.Background())
	require.ErrorIs(t, err, analytics.ErrNoDataset)
}
