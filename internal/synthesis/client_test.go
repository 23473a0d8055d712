package synthesis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/analytics"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/config"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/router"
)

func testConfig(url string) config.SynthesisConfig {
	return config.SynthesisConfig{
		Enabled: true,
		BaseURL: url,
		Model:   "test-model",
		Timeout: 5 * time.Second,
	}
}

func TestNarrateEmbedsFindings(t *testing.T) {
	var gotPath, gotPrompt, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt, _ = req["prompt"].(string)
		gotModel, _ = req["model"].(string)
		assert.Equal(t, false, req["stream"])
		json.NewEncoder(w).Encode(map[string]string{"response": " Sales are trending up. "})
	}))
	defer srv.Close()

	res := analytics.NewResult("forecast", analytics.CategoryPredictive)
	res.SetLabel("trend", "increasing")
	res.SetMetric("r_squared", 0.97)

	resp := &router.Response{
		Category:   analytics.CategoryPredictive,
		Results:    []*analytics.Result{res},
		Insights:   []string{"trend = increasing"},
		Confidence: 1,
	}

	client := NewClient(testConfig(srv.URL))
	answer, err := client.Narrate(context.Background(), "forecast sales", resp)
	require.NoError(t, err)

	assert.Equal(t, "Sales are trending up.", answer)
	assert.Equal(t, "/api/generate", gotPath)
	assert.Equal(t, "test-model", gotModel)
	assert.Contains(t, gotPrompt, "forecast sales")
	assert.Contains(t, gotPrompt, "trend = increasing")
	assert.Contains(t, gotPrompt, `"r_squared"`)
}

func TestGenerateRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	_, err := client.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestGenerateHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"response": "late"})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(testConfig(srv.URL))
	_, err := client.Generate(ctx, "hello")
	require.Error(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(config.SynthesisConfig{})
	assert.Equal(t, "http://localhost:11434", client.baseURL)
	assert.Equal(t, "qwen3-vl:2b", client.model)
	assert.Equal(t, 30*time.Second, client.client.Timeout)

	trimmed := NewClient(config.SynthesisConfig{BaseURL: "http://model:11434/"})
	assert.False(t, strings.HasSuffix(trimmed.baseURL, "/"))
}
