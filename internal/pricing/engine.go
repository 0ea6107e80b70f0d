package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rsummers/bidwatch/internal/models"
)

// ErrInvalidQuery is returned when a lookup carries no usable filter.
var ErrInvalidQuery = errors.New("at least one of nsn, psc, naics or keywords is required")

// DefaultLookbackDays bounds how far back a lookup reaches when the
// caller does not say.
const DefaultLookbackDays = 365

// Filters are the record-level constraints of a lookup. Absent (empty)
// fields are not constraints; supplied fields are ANDed. NSN, PSC and
// NAICS are exact matches; keywords are token matches against the
// record's keyword text.
type Filters struct {
	NSN      string
	PSC      string
	NAICS    string
	Keywords []string
}

func (f Filters) empty() bool {
	return f.NSN == "" && f.PSC == "" && f.NAICS == "" && len(f.Keywords) == 0
}

// Query is one pricing lookup request.
type Query struct {
	Filters
	LookbackDays int
}

// Store is the historical-award source. The db store satisfies it;
// tests use an in-memory fake.
type Store interface {
	QueryPricing(ctx context.Context, f Filters, cutoff time.Time) ([]models.PricingRecord, error)
}

// Summary describes the matched unit prices. Count zero with zeroed
// stats is the valid shape of an empty result.
type Summary struct {
	Count      int        `json:"count"`
	Min        float64    `json:"min"`
	Max        float64    `json:"max"`
	Mean       float64    `json:"mean"`
	Median     float64    `json:"median"`
	MostRecent *time.Time `json:"most_recent_date"`
}

type Result struct {
	Records []models.PricingRecord `json:"records"`
	Stats   Summary                `json:"stats"`
}

type Engine struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewEngine(store Store, log zerolog.Logger) *Engine {
	return &Engine{store: store, log: log, now: time.Now}
}

// Lookup answers a historical-pricing query over the lookback window.
// Zero matching records is a normal outcome, not an error.
func (e *Engine) Lookup(ctx context.Context, q Query) (*Result, error) {
	q.NSN = strings.TrimSpace(q.NSN)
	q.PSC = strings.TrimSpace(q.PSC)
	q.NAICS = strings.TrimSpace(q.NAICS)
	q.Keywords = cleanKeywords(q.Keywords)

	if q.Filters.empty() {
		return nil, ErrInvalidQuery
	}

	lookback := q.LookbackDays
	if lookback <= 0 {
		lookback = DefaultLookbackDays
	}
	cutoff := e.now().AddDate(0, 0, -lookback)

	records, err := e.store.QueryPricing(ctx, q.Filters, cutoff)
	if err != nil {
		return nil, fmt.Errorf("pricing query failed: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].AwardDate.After(records[j].AwardDate)
	})
	if records == nil {
		records = []models.PricingRecord{}
	}

	return &Result{
		Records: records,
		Stats:   summarize(records),
	}, nil
}

// summarize computes unit-price statistics over records already sorted
// by award date descending.
func summarize(records []models.PricingRecord) Summary {
	if len(records) == 0 {
		return Summary{}
	}

	prices := make([]float64, len(records))
	sum := 0.0
	for i, r := range records {
		prices[i] = r.UnitPrice
		sum += r.UnitPrice
	}
	sort.Float64s(prices)

	mid := len(prices) / 2
	median := prices[mid]
	if len(prices)%2 == 0 {
		median = (prices[mid-1] + prices[mid]) / 2
	}

	mostRecent := records[0].AwardDate
	return Summary{
		Count:      len(records),
		Min:        prices[0],
		Max:        prices[len(prices)-1],
		Mean:       sum / float64(len(prices)),
		Median:     median,
		MostRecent: &mostRecent,
	}
}

func cleanKeywords(in []string) []string {
	var out []string
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
