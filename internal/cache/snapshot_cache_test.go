package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/stock-insights/internal/aggregator"
	"github.com/yourusername/stock-insights/internal/models"
)

func sampleEvents() []models.PredictionEvent {
	stock := 12.0
	name := "Butter"
	return []models.PredictionEvent{
		{ID: "1", Product: "a", Name: &name, Stock: &stock, PredictionDate: "2024-05-01T10:00:00Z"},
		{ID: "2", Product: "b", PredictionDate: "2024-05-02T10:00:00Z"},
	}
}

func TestFingerprintStable(t *testing.T) {
	assert.Equal(t, Fingerprint(sampleEvents()), Fingerprint(sampleEvents()))
	assert.NotEmpty(t, Fingerprint(nil))
}

func TestFingerprintSensitivity(t *testing.T) {
	base := Fingerprint(sampleEvents())

	mutations := map[string]func([]models.PredictionEvent){
		"id":      func(e []models.PredictionEvent) { e[0].ID = "9" },
		"product": func(e []models.PredictionEvent) { e[1].Product = "c" },
		"name":    func(e []models.PredictionEvent) { e[0].Name = nil },
		"stock": func(e []models.PredictionEvent) {
			s := 13.0
			e[1].Stock = &s
		},
		"date":  func(e []models.PredictionEvent) { e[1].PredictionDate = "2024-05-03" },
		"order": func(e []models.PredictionEvent) { e[0], e[1] = e[1], e[0] },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			events := sampleEvents()
			mutate(events)
			assert.NotEqual(t, base, Fingerprint(events))
		})
	}
}

func TestFingerprintFieldBoundaries(t *testing.T) {
	a := []models.PredictionEvent{{ID: "ab", Product: "c"}}
	b := []models.PredictionEvent{{ID: "a", Product: "bc"}}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestGetOrComputeMemoizes(t *testing.T) {
	c := NewSnapshotCache(time.Hour, 10)
	defer c.Clear()

	calls := 0
	compute := func(events []models.PredictionEvent) *models.AggregationResult {
		calls++
		return aggregator.Aggregate(events)
	}

	first, fp1, hit := c.GetOrCompute(sampleEvents(), compute)
	require.NotNil(t, first)
	assert.False(t, hit)

	second, fp2, hit := c.GetOrCompute(sampleEvents(), compute)
	assert.True(t, hit)
	assert.Same(t, first, second)
	assert.Equal(t, fp1, fp2)
	assert.Equal(t, 1, calls)

	hits, misses, ratio := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
	assert.InDelta(t, 0.5, ratio, 1e-9)
	assert.InDelta(t, 0.5, testutil.ToFloat64(CacheHitRatio), 1e-9)
}

func TestCacheExpiration(t *testing.T) {
	c := NewSnapshotCache(50*time.Millisecond, 10)
	defer c.Clear()

	result := aggregator.Aggregate(sampleEvents())
	c.Set("fp", result)
	require.NotNil(t, c.Get("fp"))

	time.Sleep(80 * time.Millisecond)
	assert.Nil(t, c.Get("fp"))
}

func TestCacheMaxSizeEvicts(t *testing.T) {
	c := NewSnapshotCache(time.Hour, 3)
	defer c.Clear()

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("fp-%d", i), &models.AggregationResult{})
	}

	assert.LessOrEqual(t, c.ItemCount(), 3)
	assert.NotNil(t, c.Get("fp-4"))
}

func TestCacheClearResetsStats(t *testing.T) {
	c := NewSnapshotCache(time.Hour, 3)
	c.Set("fp", &models.AggregationResult{})
	c.Get("fp")
	c.Get("missing")

	c.Clear()

	hits, misses, ratio := c.Stats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
	assert.Zero(t, ratio)
	assert.Zero(t, c.ItemCount())
}
