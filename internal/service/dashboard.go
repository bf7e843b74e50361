// Package service holds the dashboard service: the one object that owns the current
// snapshot and its loading/error state.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insights/internal/aggregator"
	"github.com/yourusername/stock-insights/internal/cache"
	"github.com/yourusername/stock-insights/internal/datasource"
	"github.com/yourusername/stock-insights/internal/logger"
	"github.com/yourusername/stock-insights/internal/metrics"
	"github.com/yourusername/stock-insights/internal/models"
)

const (
	// DefaultHistoryLimit is used when no history limit is requested
	DefaultHistoryLimit = 20
	// MaxHistoryLimit caps a single history request
	MaxHistoryLimit = 200
)

var (
	// ErrRefreshInProgress is returned when another refresh is already running
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrNoSnapshot is returned before the first successful refresh
	ErrNoSnapshot = errors.New("no dashboard snapshot available")
	// ErrHistoryUnavailable is returned when no snapshot store is configured
	ErrHistoryUnavailable = errors.New("snapshot history is not enabled")
)

// SnapshotStore persists snapshots. repository.SnapshotRepository satisfies it.
type SnapshotStore interface {
	Insert(ctx context.Context, snapshot *models.DashboardSnapshot) error
	GetLatest(ctx context.Context) (*models.DashboardSnapshot, error)
	List(ctx context.Context, limit int) ([]models.SnapshotSummary, error)
}

// Publisher receives every new snapshot
type Publisher interface {
	Publish(snapshot *models.DashboardSnapshot)
}

// DashboardService fetches prediction events, aggregates them and keeps the result
type DashboardService struct {
	source     datasource.PredictionSource
	opts       aggregator.Options
	cache      *cache.SnapshotCache
	store      SnapshotStore
	publisher  Publisher
	logger     *logrus.Logger
	dashLogger *logger.DashboardLogger
	now        func() time.Time

	refreshing atomic.Bool

	mu            sync.RWMutex
	current       *models.DashboardSnapshot
	lastErr       error
	lastRefreshAt *time.Time
	attempted     bool
}

// NewDashboardService creates a dashboard service. The cache, store and publisher are optional.
func NewDashboardService(
	source datasource.PredictionSource,
	opts aggregator.Options,
	snapshotCache *cache.SnapshotCache,
	store SnapshotStore,
	publisher Publisher,
	log *logrus.Logger,
) *DashboardService {
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	return &DashboardService{
		source:     source,
		opts:       opts,
		cache:      snapshotCache,
		store:      store,
		publisher:  publisher,
		logger:     log,
		dashLogger: logger.NewDashboardLogger(log),
		now:        time.Now,
	}
}

// Refresh fetches the current events and rebuilds the snapshot when the batch changed.
// A failed fetch leaves the previous snapshot in place.
func (s *DashboardService) Refresh(ctx context.Context) (*models.DashboardSnapshot, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return nil, ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)

	start := time.Now()

	events, err := s.source.FetchPredictions(ctx)
	if err != nil {
		elapsed := time.Since(start)
		s.mu.Lock()
		s.lastErr = err
		s.attempted = true
		s.mu.Unlock()

		metrics.RecordRefresh("failure", elapsed.Seconds())
		s.dashLogger.LogRefreshFailed(s.source.Name(), err, float64(elapsed.Microseconds())/1000)
		return nil, fmt.Errorf("failed to fetch predictions: %w", err)
	}
	metrics.RecordEventsFetched(len(events))

	result, fingerprint, hit := s.aggregate(events)
	now := s.now()

	s.mu.Lock()
	changed := s.current == nil || s.current.Fingerprint != fingerprint
	var snapshot *models.DashboardSnapshot
	if changed {
		snapshot = &models.DashboardSnapshot{
			ID:          uuid.New(),
			ComputedAt:  now,
			RefreshedAt: now,
			Fingerprint: fingerprint,
			EventCount:  len(events),
			Result:      result,
		}
	} else {
		bumped := *s.current
		bumped.RefreshedAt = now
		snapshot = &bumped
	}
	s.current = snapshot
	s.lastErr = nil
	s.lastRefreshAt = &now
	s.attempted = true
	s.mu.Unlock()

	if changed {
		s.persist(ctx, snapshot)
		if s.publisher != nil {
			s.publisher.Publish(snapshot)
		}
	}

	elapsed := time.Since(start)
	s.updateMetrics(snapshot, now)
	metrics.RecordRefresh("success", elapsed.Seconds())
	s.dashLogger.LogRefreshCompleted(
		snapshot.ID.String(), fingerprint, len(events), snapshot.Result.Metrics.TotalPredictedProducts,
		snapshot.Result.Metrics.EstimatedRevenue, hit, float64(elapsed.Microseconds())/1000,
	)

	return snapshot, nil
}

func (s *DashboardService) aggregate(events []models.PredictionEvent) (*models.AggregationResult, string, bool) {
	compute := func(batch []models.PredictionEvent) *models.AggregationResult {
		return aggregator.AggregateWithOptions(batch, s.opts)
	}
	if s.cache == nil {
		return compute(events), cache.Fingerprint(events), false
	}
	return s.cache.GetOrCompute(events, compute)
}

func (s *DashboardService) persist(ctx context.Context, snapshot *models.DashboardSnapshot) {
	if s.store == nil {
		return
	}
	if err := s.store.Insert(ctx, snapshot); err != nil {
		s.dashLogger.LogSnapshotPersistFailed(snapshot.ID.String(), err)
		return
	}
	s.dashLogger.LogSnapshotPersisted(snapshot.ID.String(), snapshot.EventCount)
}

func (s *DashboardService) updateMetrics(snapshot *models.DashboardSnapshot, refreshedAt time.Time) {
	m := snapshot.Result.Metrics
	revenue, err := decimal.NewFromString(m.EstimatedRevenue)
	if err != nil {
		revenue = decimal.Zero
	}
	metrics.UpdateDashboard(m.TotalPredictedProducts, revenue.InexactFloat64(), m.LowStockCount, m.HighStockCount, float64(refreshedAt.Unix()))
}

// Restore loads the most recent persisted snapshot so the dashboard has data before the
// first fetch completes. It is a no-op without a store or when a snapshot already exists.
func (s *DashboardService) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	snapshot, err := s.store.GetLatest(ctx)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		s.current = snapshot
		s.logger.WithFields(logrus.Fields{
			"snapshot_id": snapshot.ID.String(),
			"computed_at": snapshot.ComputedAt,
		}).Info("Restored persisted dashboard snapshot")
	}
	return nil
}

// Current returns the latest snapshot
func (s *DashboardService) Current() (*models.DashboardSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, ErrNoSnapshot
	}
	return s.current, nil
}

// State reports the loading and error flags of the dashboard
func (s *DashboardService) State() models.DashboardState {
	refreshing := s.refreshing.Load()

	s.mu.RLock()
	defer s.mu.RUnlock()

	state := models.DashboardState{
		HasSnapshot: s.current != nil,
		Refreshing:  refreshing,
		Loading:     s.current == nil && (!s.attempted || refreshing),
	}
	if s.lastErr != nil {
		state.LastError = s.lastErr.Error()
	}
	if s.lastRefreshAt != nil {
		at := *s.lastRefreshAt
		state.LastRefreshAt = &at
	}
	return state
}

// History lists persisted snapshot summaries, newest first
func (s *DashboardService) History(ctx context.Context, limit int) ([]models.SnapshotSummary, error) {
	if s.store == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.store.List(ctx, ClampHistoryLimit(limit))
}

// Ready reports whether a snapshot is available to serve
func (s *DashboardService) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// SourceName returns the name of the prediction source
func (s *DashboardService) SourceName() string {
	return s.source.Name()
}

// ClampHistoryLimit applies the default and maximum history page size
func ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
