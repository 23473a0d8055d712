package dataset

import (
	"sort"
	"sync"
	"time"
)

// Record is a single sales transaction. The derived fields after the raw
// block are computed once at load time and are pure functions of the raw
// fields, so every analysis over the same snapshot sees the same values.
type Record struct {
	OrderID      string
	OrderDate    time.Time
	ShipDate     time.Time
	CustomerID   string
	ProductID    string
	ProductName  string
	Category     string
	Region       string
	Segment      string
	Sales        float64
	Quantity     int
	Discount     float64
	Profit       float64
	ShippingCost float64

	Year           int
	Month          int
	Quarter        int
	Week           int
	Weekday        time.Weekday
	ProfitMargin   float64 // percent, 0 when Sales is 0
	Cost           float64
	DiscountAmount float64
	DaysToShip     int
	UnitPrice      float64
}

// derive fills the computed fields from the raw ones.
func (r *Record) derive() {
	r.Year = r.OrderDate.Year()
	r.Month = int(r.OrderDate.Month())
	r.Quarter = (r.Month-1)/3 + 1
	_, r.Week = r.OrderDate.ISOWeek()
	r.Weekday = r.OrderDate.Weekday()

	if r.Sales != 0 {
		r.ProfitMargin = r.Profit / r.Sales * 100
	}
	r.Cost = r.Sales - r.Profit
	r.DiscountAmount = r.Sales * r.Discount
	if !r.ShipDate.IsZero() && !r.ShipDate.Before(r.OrderDate) {
		r.DaysToShip = int(r.ShipDate.Sub(r.OrderDate).Hours() / 24)
	}
	if r.Quantity > 0 {
		r.UnitPrice = r.Sales / float64(r.Quantity)
	}
}

// CustomerStats is the per-customer aggregate cached on the snapshot.
// RecencyDays is measured against the dataset's AsOf time, not the wall
// clock, so repeated analyses of one snapshot agree.
type CustomerStats struct {
	CustomerID    string
	Orders        int
	Sales         float64
	Profit        float64
	Quantity      int
	FirstOrder    time.Time
	LastOrder     time.Time
	RecencyDays   int
	AvgOrderValue float64
}

// Metadata summarizes a snapshot for health checks and dashboards.
type Metadata struct {
	Rows        int       `json:"rows"`
	SkippedRows int       `json:"skipped_rows"`
	DateStart   time.Time `json:"date_start"`
	DateEnd     time.Time `json:"date_end"`
	Customers   int       `json:"customers"`
	Products    int       `json:"products"`
	Categories  []string  `json:"categories"`
	Regions     []string  `json:"regions"`
	Segments    []string  `json:"segments"`
	TotalSales  float64   `json:"total_sales"`
	TotalProfit float64   `json:"total_profit"`
}

// Dataset is an immutable snapshot of sales records plus cached derived
// aggregates. Analyses never mutate it; reloading data builds a new
// Dataset and swaps it into the Store.
type Dataset struct {
	records   []Record
	customers []CustomerStats
	byID      map[string]int // customer id -> index into customers
	meta      Metadata
	asOf      time.Time
}

// New builds a snapshot from parsed records. AsOf defaults to the latest
// order date so recency-based analyses are deterministic for a given
// snapshot.
func New(records []Record) *Dataset {
	var asOf time.Time
	for i := range records {
		if records[i].OrderDate.After(asOf) {
			asOf = records[i].OrderDate
		}
	}
	return NewWithAsOf(records, asOf)
}

// NewWithAsOf builds a snapshot with an explicit recency reference time.
func NewWithAsOf(records []Record, asOf time.Time) *Dataset {
	for i := range records {
		records[i].derive()
	}
	ds := &Dataset{records: records, asOf: asOf}
	ds.buildCustomers()
	ds.buildMetadata()
	return ds
}

func (d *Dataset) buildCustomers() {
	byID := make(map[string]*CustomerStats)
	for i := range d.records {
		r := &d.records[i]
		if r.CustomerID == "" {
			continue
		}
		cs, ok := byID[r.CustomerID]
		if !ok {
			cs = &CustomerStats{CustomerID: r.CustomerID, FirstOrder: r.OrderDate, LastOrder: r.OrderDate}
			byID[r.CustomerID] = cs
		}
		cs.Orders++
		cs.Sales += r.Sales
		cs.Profit += r.Profit
		cs.Quantity += r.Quantity
		if r.OrderDate.Before(cs.FirstOrder) {
			cs.FirstOrder = r.OrderDate
		}
		if r.OrderDate.After(cs.LastOrder) {
			cs.LastOrder = r.OrderDate
		}
	}

	d.customers = make([]CustomerStats, 0, len(byID))
	for _, cs := range byID {
		cs.RecencyDays = int(d.asOf.Sub(cs.LastOrder).Hours() / 24)
		if cs.Orders > 0 {
			cs.AvgOrderValue = cs.Sales / float64(cs.Orders)
		}
		d.customers = append(d.customers, *cs)
	}
	sort.Slice(d.customers, func(i, j int) bool {
		return d.customers[i].CustomerID < d.customers[j].CustomerID
	})

	d.byID = make(map[string]int, len(d.customers))
	for i := range d.customers {
		d.byID[d.customers[i].CustomerID] = i
	}
}

func (d *Dataset) buildMetadata() {
	m := Metadata{Rows: len(d.records), Customers: len(d.customers)}
	products := make(map[string]bool)
	categories := make(map[string]bool)
	regions := make(map[string]bool)
	segments := make(map[string]bool)

	for i := range d.records {
		r := &d.records[i]
		if m.DateStart.IsZero() || r.OrderDate.Before(m.DateStart) {
			m.DateStart = r.OrderDate
		}
		if r.OrderDate.After(m.DateEnd) {
			m.DateEnd = r.OrderDate
		}
		if r.ProductID != "" {
			products[r.ProductID] = true
		}
		if r.Category != "" {
			categories[r.Category] = true
		}
		if r.Region != "" {
			regions[r.Region] = true
		}
		if r.Segment != "" {
			segments[r.Segment] = true
		}
		m.TotalSales += r.Sales
		m.TotalProfit += r.Profit
	}

	m.Products = len(products)
	m.Categories = sortedKeys(categories)
	m.Regions = sortedKeys(regions)
	m.Segments = sortedKeys(segments)
	d.meta = m
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Records returns the underlying rows. Callers treat the slice as
// read-only.
func (d *Dataset) Records() []Record { return d.records }

// Len returns the number of records in the snapshot.
func (d *Dataset) Len() int { return len(d.records) }

// Customers returns the cached per-customer aggregates, sorted by id.
func (d *Dataset) Customers() []CustomerStats { return d.customers }

// Customer looks up a single customer's aggregate.
func (d *Dataset) Customer(id string) (CustomerStats, bool) {
	i, ok := d.byID[id]
	if !ok {
		return CustomerStats{}, false
	}
	return d.customers[i], true
}

// AsOf returns the recency reference time for this snapshot.
func (d *Dataset) AsOf() time.Time { return d.asOf }

// Meta returns the snapshot summary.
func (d *Dataset) Meta() Metadata { return d.meta }

// Store holds the current snapshot behind a RWMutex. Analyses grab the
// snapshot once and keep using it even if a reload swaps in a newer one
// mid-flight.
type Store struct {
	mu      sync.RWMutex
	current *Dataset
}

// NewStore creates a store, optionally pre-loaded with a snapshot.
func NewStore(ds *Dataset) *Store {
	return &Store{current: ds}
}

// Current returns the active snapshot, or nil when nothing is loaded.
func (s *Store) Current() *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Swap installs a new snapshot and returns the previous one.
func (s *Store) Swap(ds *Dataset) *Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current
	s.current = ds
	return prev
}
