// Package cache memoizes aggregation results per prediction batch.
package cache

import (
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yourusername/stock-insights/internal/models"
)

// CacheHitRatio tracks the aggregation cache hit ratio
var CacheHitRatio = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "stock_insights",
		Name:      "cache_hit_ratio",
		Help:      "Aggregation cache hit ratio",
	},
)

// Fingerprint identifies a batch of events. Any change to any field or to the order of
// events yields a different fingerprint.
func Fingerprint(events []models.PredictionEvent) string {
	h := xxhash.New()
	sep := []byte{0}

	writeField := func(s string) {
		_, _ = h.WriteString(s)
		_, _ = h.Write(sep)
	}

	for _, ev := range events {
		writeField(ev.ID)
		writeField(ev.Product)
		if ev.Name != nil {
			writeField("n:" + *ev.Name)
		} else {
			writeField("-")
		}
		if ev.Stock != nil {
			writeField("s:" + strconv.FormatFloat(*ev.Stock, 'g', -1, 64))
		} else {
			writeField("-")
		}
		writeField(ev.PredictionDate)
		_, _ = h.Write([]byte{1})
	}

	return strconv.FormatUint(h.Sum64(), 16)
}

// SnapshotCache provides in-memory memoization of aggregation results
type SnapshotCache struct {
	cache     *gocache.Cache
	ttl       time.Duration
	maxSize   int
	mu        sync.RWMutex
	hitCount  uint64
	missCount uint64
}

// NewSnapshotCache creates a new snapshot cache
func NewSnapshotCache(ttl time.Duration, maxSize int) *SnapshotCache {
	if maxSize <= 0 {
		maxSize = 16
	}
	return &SnapshotCache{
		cache:   gocache.New(ttl, ttl*2),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get retrieves a cached result by fingerprint
func (sc *SnapshotCache) Get(fingerprint string) *models.AggregationResult {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if cached, found := sc.cache.Get(fingerprint); found {
		if result, ok := cached.(*models.AggregationResult); ok {
			sc.hitCount++
			sc.updateMetrics()
			return result
		}
	}

	sc.missCount++
	sc.updateMetrics()
	return nil
}

// Set stores a result under its fingerprint
func (sc *SnapshotCache) Set(fingerprint string, result *models.AggregationResult) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.cache.ItemCount() >= sc.maxSize {
		sc.cache.DeleteExpired()
	}
	if sc.cache.ItemCount() >= sc.maxSize {
		sc.evictOldest()
	}

	sc.cache.Set(fingerprint, result, sc.ttl)
}

// GetOrCompute returns the cached result for events or computes and stores it.
// The boolean reports a cache hit.
func (sc *SnapshotCache) GetOrCompute(events []models.PredictionEvent, compute func([]models.PredictionEvent) *models.AggregationResult) (*models.AggregationResult, string, bool) {
	fingerprint := Fingerprint(events)
	if result := sc.Get(fingerprint); result != nil {
		return result, fingerprint, true
	}

	result := compute(events)
	sc.Set(fingerprint, result)
	return result, fingerprint, false
}

// evictOldest drops the entry closest to expiry. Caller holds the lock.
func (sc *SnapshotCache) evictOldest() {
	var (
		oldestKey string
		oldestExp int64
	)
	for k, item := range sc.cache.Items() {
		if oldestKey == "" || item.Expiration < oldestExp {
			oldestKey = k
			oldestExp = item.Expiration
		}
	}
	if oldestKey != "" {
		sc.cache.Delete(oldestKey)
	}
}

// Clear flushes the entire cache
func (sc *SnapshotCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.cache.Flush()
	sc.hitCount = 0
	sc.missCount = 0
}

// Stats returns cache statistics
func (sc *SnapshotCache) Stats() (hits, misses uint64, ratio float64) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.stats()
}

func (sc *SnapshotCache) stats() (hits, misses uint64, ratio float64) {
	hits = sc.hitCount
	misses = sc.missCount
	total := hits + misses
	if total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// updateMetrics updates Prometheus metrics. Caller holds the lock.
func (sc *SnapshotCache) updateMetrics() {
	_, _, ratio := sc.stats()
	CacheHitRatio.Set(ratio)
}

// ItemCount returns the number of items in cache
func (sc *SnapshotCache) ItemCount() int {
	return sc.cache.ItemCount()
}
