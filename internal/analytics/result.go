package analytics

import "errors"

// ErrNoDataset is returned when a capability is invoked before any data
// has been loaded. This is the one fatal data error; everything
// recoverable travels as a Flag on the Result instead.
var ErrNoDataset = errors.New("no dataset loaded")

// Category classifies a capability by the kind of question it answers.
type Category string

const (
	CategoryDescriptive  Category = "descriptive"
	CategoryDiagnostic   Category = "diagnostic"
	CategoryPredictive   Category = "predictive"
	CategoryPrescriptive Category = "prescriptive"
)

// Flag marks a recoverable data-quality condition inside a result. Flags
// surface conditions like thin history or zero variance without failing
// the analysis; the router discounts confidence for them.
type Flag string

const (
	FlagEmptyDataset        Flag = "empty_dataset"
	FlagInsufficientData    Flag = "insufficient_data"
	FlagDegenerateStatistic Flag = "degenerate_statistic"
	FlagForecastFallback    Flag = "forecast_fallback"
)

// Table is an ordered tabular payload inside a result.
type Table struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
}

// Result is the structured outcome of one capability invocation: numeric
// metrics, short classification labels, tables, and data-quality flags.
// Downstream insight extraction reads these fields directly; nothing
// parses prose.
type Result struct {
	Capability string             `json:"capability"`
	Category   Category           `json:"category"`
	Metrics    map[string]float64 `json:"metrics"`
	Labels     map[string]string  `json:"labels"`
	Tables     map[string]Table   `json:"tables,omitempty"`
	Flags      []Flag             `json:"flags,omitempty"`
}

// NewResult creates an empty result for a capability.
func NewResult(capability string, category Category) *Result {
	return &Result{
		Capability: capability,
		Category:   category,
		Metrics:    make(map[string]float64),
		Labels:     make(map[string]string),
		Tables:     make(map[string]Table),
	}
}

// SetMetric records a numeric metric.
func (r *Result) SetMetric(name string, v float64) { r.Metrics[name] = v }

// Metric reads a metric back, reporting whether it was set.
func (r *Result) Metric(name string) (float64, bool) {
	v, ok := r.Metrics[name]
	return v, ok
}

// SetLabel records a short classification string.
func (r *Result) SetLabel(name, v string) { r.Labels[name] = v }

// Label reads a label, empty when unset.
func (r *Result) Label(name string) string { return r.Labels[name] }

// AddTable attaches a named table.
func (r *Result) AddTable(name string, t Table) { r.Tables[name] = t }

// AddFlag appends a flag once.
func (r *Result) AddFlag(f Flag) {
	for _, existing := range r.Flags {
		if existing == f {
			return
		}
	}
	r.Flags = append(r.Flags, f)
}

// HasFlag reports whether a flag is set.
func (r *Result) HasFlag(f Flag) bool {
	for _, existing := range r.Flags {
		if existing == f {
			return true
		}
	}
	return false
}
