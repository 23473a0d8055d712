// Package synthesis turns structured analytics responses into prose via
// an Ollama-compatible model server. It sits outside the analytics core:
// numeric results are complete without it, and any failure here degrades
// to returning the structured payload alone.
package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/config"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/router"
)

// Client speaks the Ollama /api/generate protocol.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient builds a synthesis client from configuration, filling in the
// local-Ollama defaults for anything unset.
func NewClient(cfg config.SynthesisConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "qwen3-vl:2b"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends one prompt and returns the model's text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model server returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var gen generateResponse
	if err := json.Unmarshal(raw, &gen); err != nil {
		return "", err
	}
	return strings.TrimSpace(gen.Response), nil
}

// digest is the slice of a router response worth showing the model. The
// numbers are already final; the model only phrases them.
type digest struct {
	Category        string              `json:"category"`
	Confidence      float64             `json:"confidence"`
	Insights        []string            `json:"insights"`
	Recommendations []string            `json:"recommendations"`
	Metrics         []capabilityMetrics `json:"metrics"`
}

type capabilityMetrics struct {
	Capability string             `json:"capability"`
	Metrics    map[string]float64 `json:"metrics"`
	Labels     map[string]string  `json:"labels"`
}

// Narrate turns a routed response into a short prose answer to the
// original question. Tables are omitted from the prompt; the insights
// and per-capability metrics carry the substance.
func (c *Client) Narrate(ctx context.Context, query string, resp *router.Response) (string, error) {
	d := digest{
		Category:        string(resp.Category),
		Confidence:      resp.Confidence,
		Insights:        resp.Insights,
		Recommendations: resp.Recommendations,
	}
	for _, res := range resp.Results {
		d.Metrics = append(d.Metrics, capabilityMetrics{
			Capability: res.Capability,
			Metrics:    res.Metrics,
			Labels:     res.Labels,
		})
	}

	payload, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`You are a sales analytics assistant. A deterministic analytics engine already answered the question below; your job is only to phrase its findings.

Question: %s

Findings (JSON):
%s

Write a concise business answer in plain prose. Use only the numbers present in the findings, do not invent any figure, and do not mention JSON or the engine. Keep it under 150 words.`, query, payload)

	return c.Generate(ctx, prompt)
}
