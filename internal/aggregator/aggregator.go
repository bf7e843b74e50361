// Package aggregator derives the admin dashboard views from a raw prediction event stream.
package aggregator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/yourusername/stock-insights/internal/models"
)

// MetricsScope selects which events feed the metrics, ranking and chart views
type MetricsScope string

const (
	// ScopeLatest aggregates over the latest prediction of each product
	ScopeLatest MetricsScope = "latest"
	// ScopeRaw aggregates over every event in the batch, repeated products included
	ScopeRaw MetricsScope = "raw"
)

// Options tune the derived views. The zero value is not useful; start from DefaultOptions.
// Non-positive TopN and FeedSize and a zero UnitValue are replaced by the defaults, so a
// unit value of 0 cannot be expressed. Config validation rejects it.
type Options struct {
	TopN               int
	FeedSize           int
	UnitValue          decimal.Decimal
	LowStockThreshold  float64
	HighStockThreshold float64
	MetricsScope       MetricsScope
}

// DefaultOptions returns the dashboard's standard settings
func DefaultOptions() Options {
	return Options{
		TopN:               5,
		FeedSize:           5,
		UnitValue:          decimal.NewFromInt(10),
		LowStockThreshold:  10,
		HighStockThreshold: 50,
		MetricsScope:       ScopeLatest,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.TopN <= 0 {
		o.TopN = def.TopN
	}
	if o.FeedSize <= 0 {
		o.FeedSize = def.FeedSize
	}
	if o.UnitValue.IsZero() {
		o.UnitValue = def.UnitValue
	}
	if o.MetricsScope != ScopeRaw {
		o.MetricsScope = ScopeLatest
	}
	return o
}

// Aggregate computes every dashboard view with the default options
func Aggregate(events []models.PredictionEvent) *models.AggregationResult {
	return AggregateWithOptions(events, DefaultOptions())
}

// AggregateWithOptions computes every dashboard view. The input slice is never modified
// and the result shares no slices with it.
func AggregateWithOptions(events []models.PredictionEvent, opts Options) *models.AggregationResult {
	opts = opts.normalized()

	latest, order := LatestByProduct(events)

	basis := make([]models.PredictionEvent, 0, len(order))
	if opts.MetricsScope == ScopeRaw {
		basis = append(basis, events...)
	} else {
		for _, product := range order {
			basis = append(basis, latest[product])
		}
	}

	return &models.AggregationResult{
		Metrics:         ComputeMetrics(basis, opts),
		TopStocks:       TopStocks(basis, opts.TopN),
		StockByProduct:  stockPoints(basis),
		LatestByProduct: latest,
		ProductOrder:    order,
		RecentFeed:      RecentFeed(events, opts.FeedSize),
	}
}

// LatestByProduct keeps, per product, the event with the greatest timestamp. On an exact
// tie the event later in the input wins. The returned order lists products by first appearance.
func LatestByProduct(events []models.PredictionEvent) (map[string]models.PredictionEvent, []string) {
	latest := make(map[string]models.PredictionEvent)
	stamps := make(map[string]models.Instant)
	order := make([]string, 0)

	for _, ev := range events {
		if !ev.HasProduct() {
			continue
		}

		ts := ev.Timestamp()
		best, seen := stamps[ev.Product]
		if !seen {
			order = append(order, ev.Product)
		}
		if !seen || ts.Compare(best) >= 0 {
			latest[ev.Product] = ev
			stamps[ev.Product] = ts
		}
	}

	return latest, order
}

// ComputeMetrics derives the summary cards from the given entries
func ComputeMetrics(entries []models.PredictionEvent, opts Options) models.AggregateMetrics {
	revenue := decimal.Zero
	metrics := models.AggregateMetrics{TotalPredictedProducts: len(entries)}

	for _, ev := range entries {
		stock := ev.StockValue()
		revenue = revenue.Add(decimal.NewFromFloat(stock).Mul(opts.UnitValue))

		if stock <= opts.LowStockThreshold {
			metrics.LowStockCount++
		}
		if stock >= opts.HighStockThreshold {
			metrics.HighStockCount++
		}
	}

	metrics.EstimatedRevenue = revenue.StringFixed(2)
	return metrics
}

// TopStocks ranks entries by stock, highest first, keeping input order among equals
func TopStocks(entries []models.PredictionEvent, n int) []models.RankedStock {
	ranked := make([]models.PredictionEvent, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].StockValue() > ranked[j].StockValue()
	})

	if n < 0 {
		n = 0
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	out := make([]models.RankedStock, 0, len(ranked))
	for _, ev := range ranked {
		out = append(out, models.RankedStock{
			Product: ev.Product,
			Name:    ev.DisplayName(),
			Value:   ev.StockValue(),
		})
	}
	return out
}

// RecentFeed returns the newest raw events first. Products are not deduplicated and
// events with unparsable dates sort last.
func RecentFeed(events []models.PredictionEvent, n int) []models.PredictionEvent {
	type stamped struct {
		ev models.PredictionEvent
		ts models.Instant
	}

	feed := make([]stamped, 0, len(events))
	for _, ev := range events {
		feed = append(feed, stamped{ev: ev, ts: ev.Timestamp()})
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].ts.Compare(feed[j].ts) > 0
	})

	if n < 0 {
		n = 0
	}
	if len(feed) > n {
		feed = feed[:n]
	}

	out := make([]models.PredictionEvent, 0, len(feed))
	for _, s := range feed {
		out = append(out, s.ev)
	}
	return out
}

func stockPoints(entries []models.PredictionEvent) []models.StockPoint {
	points := make([]models.StockPoint, 0, len(entries))
	for _, ev := range entries {
		points = append(points, models.StockPoint{
			Product: ev.Product,
			Name:    ev.DisplayName(),
			Stock:   ev.StockValue(),
		})
	}
	return points
}
