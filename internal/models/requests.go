package models

// QueryRequest is the body for POST /api/query. A missing session_id
// makes the query one-off; passing the same id across requests shares
// one conversation iteration budget.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// ForecastRequest is the body for POST /api/forecast. Zero values fall
// back to the capability defaults.
type ForecastRequest struct {
	Metric    string `json:"metric,omitempty"`
	Periods   int    `json:"periods,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Method    string `json:"method,omitempty"`
}

// ResetRequest is the body for POST /api/session/reset
type ResetRequest struct {
	SessionID string `json:"session_id"`
}

// ReloadRequest is the body for POST /api/data/reload. Path overrides
// the configured CSV path, Table the configured Postgres table; both
// are optional.
type ReloadRequest struct {
	Path  string `json:"path,omitempty"`
	Table string `json:"table,omitempty"`
}
