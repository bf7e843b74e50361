// Package metrics provides centralized Prometheus metrics registry for the insights service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stock_insights"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	RefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refreshes_total",
		Help:      "Total number of dashboard refreshes by outcome",
	}, []string{"status"})
	EventsFetchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_fetched_total",
		Help:      "Total number of prediction events fetched from the backend",
	})
	BackendRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_requests_total",
		Help:      "Total number of backend HTTP requests by status class",
	}, []string{"status"})
)

// Gauge metrics
var (
	PredictedProducts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "predicted_products",
		Help:      "Number of distinct products with a prediction",
	})
	EstimatedRevenue = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "estimated_revenue",
		Help:      "Estimated revenue of predicted stock",
	})
	LowStockProducts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "low_stock_products",
		Help:      "Number of products at or below the low stock threshold",
	})
	HighStockProducts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "high_stock_products",
		Help:      "Number of products at or above the high stock threshold",
	})
	LastRefreshTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_refresh_timestamp_seconds",
		Help:      "Unix time of the last successful refresh",
	})
)

// Histogram metrics
var (
	RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_duration_seconds",
		Help:      "Duration of dashboard refreshes in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(RefreshesTotal)
		registry.MustRegister(EventsFetchedTotal)
		registry.MustRegister(BackendRequestsTotal)

		registry.MustRegister(PredictedProducts)
		registry.MustRegister(EstimatedRevenue)
		registry.MustRegister(LowStockProducts)
		registry.MustRegister(HighStockProducts)
		registry.MustRegister(LastRefreshTimestamp)

		registry.MustRegister(RefreshDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler. It also exposes collectors registered
// on the default registry (cache hit ratio, Go runtime).
func Handler() http.Handler {
	gatherers := prometheus.Gatherers{GetRegistry(), prometheus.DefaultGatherer}
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}

// RecordRefresh records a refresh outcome and its duration.
func RecordRefresh(status string, durationSeconds float64) {
	RefreshesTotal.WithLabelValues(status).Inc()
	RefreshDuration.Observe(durationSeconds)
}

// RecordEventsFetched adds n fetched events.
func RecordEventsFetched(n int) {
	EventsFetchedTotal.Add(float64(n))
}

// RecordBackendRequest records a backend request by status class ("2xx", "5xx", "error").
func RecordBackendRequest(status string) {
	BackendRequestsTotal.WithLabelValues(status).Inc()
}

// UpdateDashboard sets the dashboard gauges.
func UpdateDashboard(products int, revenue float64, low, high int, refreshedAtUnix float64) {
	PredictedProducts.Set(float64(products))
	EstimatedRevenue.Set(revenue)
	LowStockProducts.Set(float64(low))
	HighStockProducts.Set(float64(high))
	LastRefreshTimestamp.Set(refreshedAtUnix)
}
