package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
)

// Frequency is the calendar bucket size for time series operations.
type Frequency string

const (
	FreqDay     Frequency = "day"
	FreqWeek    Frequency = "week"
	FreqMonth   Frequency = "month"
	FreqQuarter Frequency = "quarter"
)

// ParseFrequency maps user-facing spellings onto a Frequency. Month is
// the default for empty input.
func ParseFrequency(s string) (Frequency, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "m", "month", "monthly":
		return FreqMonth, true
	case "d", "day", "daily":
		return FreqDay, true
	case "w", "week", "weekly":
		return FreqWeek, true
	case "q", "quarter", "quarterly":
		return FreqQuarter, true
	}
	return FreqMonth, false
}

// Metric selects the numeric field a series aggregates.
func metricSelector(name string) (func(*dataset.Record) float64, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sales", "revenue":
		return func(r *dataset.Record) float64 { return r.Sales }, true
	case "profit":
		return func(r *dataset.Record) float64 { return r.Profit }, true
	case "quantity":
		return func(r *dataset.Record) float64 { return float64(r.Quantity) }, true
	case "discount":
		return func(r *dataset.Record) float64 { return r.Discount }, true
	case "shipping_cost", "shipping cost", "shipping":
		return func(r *dataset.Record) float64 { return r.ShippingCost }, true
	}
	return nil, false
}

// seriesPoint is one calendar bucket of an aggregated series.
type seriesPoint struct {
	Key   string
	Start time.Time
	Sum   float64
	Count int
}

func (p seriesPoint) Mean() float64 {
	if p.Count == 0 {
		return 0
	}
	return p.Sum / float64(p.Count)
}

// periodStart truncates t to the start of its bucket.
func periodStart(t time.Time, f Frequency) time.Time {
	y, m, d := t.Date()
	switch f {
	case FreqDay:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case FreqWeek:
		// Truncate to Monday of the ISO week.
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case FreqQuarter:
		qm := time.Month((int(m)-1)/3*3 + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}
}

// nextPeriod advances a bucket start by one bucket.
func nextPeriod(t time.Time, f Frequency) time.Time {
	switch f {
	case FreqDay:
		return t.AddDate(0, 0, 1)
	case FreqWeek:
		return t.AddDate(0, 0, 7)
	case FreqQuarter:
		return t.AddDate(0, 3, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// periodLabel renders a bucket start as its display key.
func periodLabel(t time.Time, f Frequency) string {
	switch f {
	case FreqDay:
		return t.Format("2006-01-02")
	case FreqWeek:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case FreqQuarter:
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	default:
		return t.Format("2006-01")
	}
}

// aggregateSeries buckets records by calendar period and sums the selected
// metric, returning points in chronological order. Only periods present
// in the data appear; gaps are not zero-filled.
func aggregateSeries(records []dataset.Record, f Frequency, value func(*dataset.Record) float64) []seriesPoint {
	buckets := make(map[time.Time]*seriesPoint)
	for i := range records {
		start := periodStart(records[i].OrderDate, f)
		p, ok := buckets[start]
		if !ok {
			p = &seriesPoint{Key: periodLabel(start, f), Start: start}
			buckets[start] = p
		}
		p.Sum += value(&records[i])
		p.Count++
	}

	points := make([]seriesPoint, 0, len(buckets))
	for _, p := range buckets {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Start.Before(points[j].Start) })
	return points
}

// movingAverage returns the trailing w-point average at each index, with
// shorter prefixes averaged over what exists.
func movingAverage(values []float64, w int) []float64 {
	if w < 1 {
		w = 1
	}
	out := make([]float64, len(values))
	var windowSum float64
	for i, v := range values {
		windowSum += v
		if i >= w {
			windowSum -= values[i-w]
		}
		n := i + 1
		if n > w {
			n = w
		}
		out[i] = windowSum / float64(n)
	}
	return out
}

// pctChanges returns period-over-period percent changes, skipping
// divisions by zero.
func pctChanges(values []float64) []float64 {
	var out []float64
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out = append(out, (values[i]-values[i-1])/values[i-1]*100)
	}
	return out
}
