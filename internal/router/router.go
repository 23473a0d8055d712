// Package router is the query orchestrator: it classifies a
// natural-language sales question into an analytics category, dispatches
// matching capabilities against the current dataset snapshot under a
// conversation-scoped iteration budget, and aggregates the structured
// results into one scored response.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/analytics"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/capability"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/config"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/session"
)

// State tracks a query through its lifecycle. Completed and Failed are
// terminal.
type State string

const (
	StateReceived    State = "received"
	StateClassified  State = "classified"
	StateDispatching State = "dispatching"
	StateAggregating State = "aggregating"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Response is the aggregated outcome of routing one query.
type Response struct {
	QueryID         string              `json:"query_id"`
	SessionID       string              `json:"session_id"`
	Query           string              `json:"query"`
	Category        analytics.Category  `json:"category"`
	State           State               `json:"state"`
	Results         []*analytics.Result `json:"results"`
	Insights        []string            `json:"insights"`
	Recommendations []string            `json:"recommendations"`
	Confidence      float64             `json:"confidence"`
	IterationsUsed  int                 `json:"iterations_used"`
	Partial         bool                `json:"partial"`
	ElapsedMs       int64               `json:"elapsed_ms"`
}

// Router dispatches queries over the shared dataset snapshot. It holds
// no per-query state; the only cross-query memory is the conversation
// iteration counter in the session store.
type Router struct {
	data     *dataset.Store
	registry *capability.Registry
	sessions session.Store
	maxIters int
	log      *zap.Logger
}

// New wires a router. A nil session store falls back to in-memory
// counters and a nil logger to a no-op logger.
func New(data *dataset.Store, registry *capability.Registry, sessions session.Store, cfg config.RouterConfig, log *zap.Logger) *Router {
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}
	if log == nil {
		log = zap.NewNop()
	}
	maxIters := cfg.MaxIterations
	if maxIters <= 0 {
		maxIters = 10
	}
	return &Router{
		data:     data,
		registry: registry,
		sessions: sessions,
		maxIters: maxIters,
		log:      log,
	}
}

// Route answers one query end to end. Recoverable problems stay inside
// the response as flags, a partial marker, or the failed state; the
// returned error is reserved for fatal preconditions (no dataset
// loaded, session store unreachable) and cancellation.
func (r *Router) Route(ctx context.Context, query, sessionID string) (*Response, error) {
	start := time.Now()
	resp := &Response{
		QueryID:   uuid.NewString(),
		SessionID: sessionID,
		Query:     query,
		State:     StateReceived,
	}
	if resp.SessionID == "" {
		// One-off queries get a fresh budget keyed by the query id.
		resp.SessionID = resp.QueryID
	}

	ds := r.data.Current()
	if ds == nil {
		resp.State = StateFailed
		return resp, analytics.ErrNoDataset
	}

	q := strings.ToLower(query)
	resp.Category = Classify(query)
	resp.State = StateClassified

	params := extractParams(q)
	planned := selectCapabilities(r.registry, resp.Category, q)
	if len(planned) == 0 {
		resp.State = StateFailed
		return resp, fmt.Errorf("no capability registered for category %s", resp.Category)
	}

	names := make([]string, len(planned))
	for i, c := range planned {
		names[i] = c.Name
	}
	r.log.Debug("query classified",
		zap.String("query_id", resp.QueryID),
		zap.String("category", string(resp.Category)),
		zap.Strings("capabilities", names))

	resp.State = StateDispatching
	var attempted, succeeded, flagged int
	exhausted := false

	for _, c := range planned {
		used, err := r.sessions.AddIterations(ctx, resp.SessionID, 1)
		if err != nil {
			resp.State = StateFailed
			return resp, fmt.Errorf("session store: %w", err)
		}
		if used > r.maxIters {
			exhausted = true
			r.log.Warn("iteration budget exhausted",
				zap.String("session_id", resp.SessionID),
				zap.Int("used", used),
				zap.Int("max", r.maxIters))
			break
		}

		attempted++
		inv, err := r.registry.Invoke(ctx, ds, c.Name, argsFor(c, params))
		if err != nil {
			if ctx.Err() != nil {
				resp.State = StateFailed
				resp.IterationsUsed = attempted
				return resp, ctx.Err()
			}
			r.log.Warn("capability failed",
				zap.String("capability", c.Name),
				zap.Error(err))
			continue
		}
		if inv.OK() {
			succeeded++
			flagged += len(inv.Result.Flags)
			resp.Results = append(resp.Results, inv.Result)
		}
	}

	resp.State = StateAggregating
	resp.IterationsUsed = attempted
	resp.Partial = exhausted
	resp.Insights = Insights(resp.Results)
	resp.Recommendations = Recommendations(resp.Results)
	resp.Confidence = confidence(attempted, succeeded, flagged, exhausted)

	if attempted > 0 && succeeded == 0 {
		resp.State = StateFailed
	} else {
		resp.State = StateCompleted
	}
	resp.ElapsedMs = time.Since(start).Milliseconds()

	r.log.Info("query routed",
		zap.String("query_id", resp.QueryID),
		zap.String("category", string(resp.Category)),
		zap.String("state", string(resp.State)),
		zap.Int("results", len(resp.Results)),
		zap.Float64("confidence", resp.Confidence),
		zap.Int64("elapsed_ms", resp.ElapsedMs))
	return resp, nil
}

// confidence scores how much to trust an aggregated response: the
// success ratio, discounted per data-quality flag and again when the
// iteration budget cut dispatch short.
func confidence(attempted, succeeded, flags int, exhausted bool) float64 {
	if attempted == 0 {
		return 0
	}
	c := float64(succeeded) / float64(attempted)
	c -= 0.05 * float64(flags)
	if exhausted {
		c -= 0.25
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// ResetSession clears a conversation's iteration counter.
func (r *Router) ResetSession(ctx context.Context, sessionID string) error {
	return r.sessions.Reset(ctx, sessionID)
}

// dashboardCapabilities is the fixed fan-out set for the dashboard
// bundle: the descriptive suite plus anomaly detection.
var dashboardCapabilities = []string{
	"summary_statistics",
	"time_series_analysis",
	"group_breakdown",
	"product_performance",
	"detect_anomalies",
}

// Dashboard runs the dashboard capability set in parallel against one
// snapshot. Every invocation is a pure read of the immutable snapshot,
// so the goroutines need no coordination beyond the errgroup.
func (r *Router) Dashboard(ctx context.Context) ([]*analytics.Result, error) {
	ds := r.data.Current()
	if ds == nil {
		return nil, analytics.ErrNoDataset
	}

	results := make([]*analytics.Result, len(dashboardCapabilities))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range dashboardCapabilities {
		i, name := i, name
		g.Go(func() error {
			inv, err := r.registry.Invoke(gctx, ds, name, nil)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			results[i] = inv.Result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
