package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
	assert.Same(t, registry, InitRegistry())
}

func TestRecordRefresh(t *testing.T) {
	InitRegistry()
	before := testutil.ToFloat64(RefreshesTotal.WithLabelValues("success"))

	RecordRefresh("success", 0.25)

	assert.Equal(t, before+1, testutil.ToFloat64(RefreshesTotal.WithLabelValues("success")))
}

func TestRecordEventsFetched(t *testing.T) {
	InitRegistry()
	before := testutil.ToFloat64(EventsFetchedTotal)

	RecordEventsFetched(7)

	assert.Equal(t, before+7, testutil.ToFloat64(EventsFetchedTotal))
}

func TestRecordBackendRequest(t *testing.T) {
	InitRegistry()
	before := testutil.ToFloat64(BackendRequestsTotal.WithLabelValues("5xx"))

	RecordBackendRequest("5xx")

	assert.Equal(t, before+1, testutil.ToFloat64(BackendRequestsTotal.WithLabelValues("5xx")))
}

func TestUpdateDashboard(t *testing.T) {
	tests := []struct {
		name     string
		products int
		revenue  float64
		low      int
		high     int
	}{
		{name: "empty dashboard", products: 0, revenue: 0, low: 0, high: 0},
		{name: "populated dashboard", products: 3, revenue: 900.5, low: 1, high: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			UpdateDashboard(tt.products, tt.revenue, tt.low, tt.high, 1700000000)

			assert.Equal(t, float64(tt.products), testutil.ToFloat64(PredictedProducts))
			assert.Equal(t, tt.revenue, testutil.ToFloat64(EstimatedRevenue))
			assert.Equal(t, float64(tt.low), testutil.ToFloat64(LowStockProducts))
			assert.Equal(t, float64(tt.high), testutil.ToFloat64(HighStockProducts))
			assert.Equal(t, float64(1700000000), testutil.ToFloat64(LastRefreshTimestamp))
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	InitRegistry()
	RecordRefresh("success", 0.1)

	handler := Handler()
	require.NotNil(t, handler)
	assert.Implements(t, (*http.Handler)(nil), handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "stock_insights_refreshes_total"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func BenchmarkRecordRefresh(b *testing.B) {
	InitRegistry()

	for i := 0; i < b.N; i++ {
		RecordRefresh("success", 0.5)
	}
}

func BenchmarkUpdateDashboard(b *testing.B) {
	InitRegistry()

	for i := 0; i < b.N; i++ {
		UpdateDashboard(20, 1000, 2, 5, 1700000000)
	}
}
