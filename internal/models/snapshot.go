package models

import (
	"time"

	"github.com/google/uuid"
)

// AggregateMetrics summarizes the dashboard cards
type AggregateMetrics struct {
	TotalPredictedProducts int    `json:"total_predicted_products"`
	EstimatedRevenue       string `json:"estimated_revenue"`
	LowStockCount          int    `json:"low_stock_count"`
	HighStockCount         int    `json:"high_stock_count"`
}

// RankedStock is one entry of the top stock ranking
type RankedStock struct {
	Product string  `json:"product"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
}

// StockPoint is one bar of the stock-by-product chart
type StockPoint struct {
	Product string  `json:"product"`
	Name    string  `json:"name"`
	Stock   float64 `json:"stock"`
}

// AggregationResult holds every view derived from one batch of prediction events
type AggregationResult struct {
	Metrics         AggregateMetrics           `json:"metrics"`
	TopStocks       []RankedStock              `json:"top_stocks"`
	StockByProduct  []StockPoint               `json:"stock_by_product"`
	LatestByProduct map[string]PredictionEvent `json:"latest_by_product"`
	ProductOrder    []string                   `json:"product_order"`
	RecentFeed      []PredictionEvent          `json:"recent_feed"`
}

// Latest returns the winning event for a product
func (r *AggregationResult) Latest(product string) (PredictionEvent, bool) {
	ev, ok := r.LatestByProduct[product]
	return ev, ok
}

// DashboardSnapshot is an aggregation result stamped with the batch it was computed from
type DashboardSnapshot struct {
	ID          uuid.UUID          `json:"id"`
	ComputedAt  time.Time          `json:"computed_at"`
	RefreshedAt time.Time          `json:"refreshed_at"`
	Fingerprint string             `json:"fingerprint"`
	EventCount  int                `json:"event_count"`
	Result      *AggregationResult `json:"result"`
}

// Summary returns the persisted columns of a snapshot
func (s *DashboardSnapshot) Summary() SnapshotSummary {
	summary := SnapshotSummary{
		ID:          s.ID,
		ComputedAt:  s.ComputedAt,
		Fingerprint: s.Fingerprint,
		EventCount:  s.EventCount,
	}
	if s.Result != nil {
		summary.Metrics = s.Result.Metrics
	}
	return summary
}

// SnapshotSummary is the history view of a persisted snapshot
type SnapshotSummary struct {
	ID          uuid.UUID        `json:"id"`
	ComputedAt  time.Time        `json:"computed_at"`
	Fingerprint string           `json:"fingerprint"`
	EventCount  int              `json:"event_count"`
	Metrics     AggregateMetrics `json:"metrics"`
}

// DashboardState mirrors the loading/error flags the dashboard renders
type DashboardState struct {
	Loading       bool       `json:"loading"`
	Refreshing    bool       `json:"refreshing"`
	HasSnapshot   bool       `json:"has_snapshot"`
	LastError     string     `json:"last_error,omitempty"`
	LastRefreshAt *time.Time `json:"last_refresh_at,omitempty"`
}
