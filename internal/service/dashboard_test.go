package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/stock-insights/internal/aggregator"
	"github.com/yourusername/stock-insights/internal/cache"
	"github.com/yourusername/stock-insights/internal/metrics"
	"github.com/yourusername/stock-insights/internal/models"
)

type fakeSource struct {
	mu     sync.Mutex
	events []models.PredictionEvent
	err    error
	calls  int
	block  chan struct{}
}

func (f *fakeSource) FetchPredictions(ctx context.Context) ([]models.PredictionEvent, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.PredictionEvent(nil), f.events...), nil
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) set(events []models.PredictionEvent, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = events
	f.err = err
}

type fakeStore struct {
	mu        sync.Mutex
	inserted  []*models.DashboardSnapshot
	insertErr error
	latest    *models.DashboardSnapshot
	lastLimit int
}

func (f *fakeStore) Insert(ctx context.Context, snapshot *models.DashboardSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, snapshot)
	return nil
}

func (f *fakeStore) GetLatest(ctx context.Context) (*models.DashboardSnapshot, error) {
	if f.latest == nil {
		return nil, models.ErrNotFound
	}
	return f.latest, nil
}

func (f *fakeStore) List(ctx context.Context, limit int) ([]models.SnapshotSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	summaries := make([]models.SnapshotSummary, 0, len(f.inserted))
	for _, s := range f.inserted {
		summaries = append(summaries, s.Summary())
	}
	return summaries, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*models.DashboardSnapshot
}

func (f *fakePublisher) Publish(snapshot *models.DashboardSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, snapshot)
}

func event(id, product string, stock float64, date string) models.PredictionEvent {
	return models.PredictionEvent{ID: id, Product: product, Stock: &stock, PredictionDate: date}
}

func sampleEvents() []models.PredictionEvent {
	return []models.PredictionEvent{
		event("1", "A", 20, "2024-01-01T00:00:00Z"),
		event("2", "B", 60, "2024-01-02T00:00:00Z"),
		event("3", "A", 5, "2024-01-03T00:00:00Z"),
	}
}

func newTestService(source *fakeSource, store SnapshotStore, publisher Publisher) *DashboardService {
	return NewDashboardService(source, aggregator.DefaultOptions(), cache.NewSnapshotCache(time.Minute, 4), store, publisher, nil)
}

func TestRefreshBuildsSnapshot(t *testing.T) {
	metrics.InitRegistry()
	source := &fakeSource{events: sampleEvents()}
	store := &fakeStore{}
	publisher := &fakePublisher{}
	svc := newTestService(source, store, publisher)

	snapshot, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, snapshot.EventCount)
	assert.Equal(t, "650.00", snapshot.Result.Metrics.EstimatedRevenue)
	assert.Equal(t, 2, snapshot.Result.Metrics.TotalPredictedProducts)
	assert.Equal(t, cache.Fingerprint(sampleEvents()), snapshot.Fingerprint)

	current, err := svc.Current()
	require.NoError(t, err)
	assert.Same(t, snapshot, current)
	assert.True(t, svc.Ready())

	assert.Len(t, store.inserted, 1)
	assert.Len(t, publisher.published, 1)
	assert.Equal(t, 650.0, testutil.ToFloat64(metrics.EstimatedRevenue))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PredictedProducts))
}

func TestRefreshUnchangedBatchKeepsSnapshot(t *testing.T) {
	source := &fakeSource{events: sampleEvents()}
	store := &fakeStore{}
	publisher := &fakePublisher{}
	svc := newTestService(source, store, publisher)

	first, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	later := first.RefreshedAt.Add(time.Minute)
	svc.now = func() time.Time { return later }

	second, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ComputedAt, second.ComputedAt)
	assert.Equal(t, later, second.RefreshedAt)
	assert.Same(t, first.Result, second.Result)
	assert.Len(t, store.inserted, 1)
	assert.Len(t, publisher.published, 1)

	hits, _, _ := svc.cache.Stats()
	assert.Equal(t, uint64(1), hits)
}

func TestRefreshChangedBatchCreatesSnapshot(t *testing.T) {
	source := &fakeSource{events: sampleEvents()}
	publisher := &fakePublisher{}
	svc := newTestService(source, nil, publisher)

	first, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	source.set(append(sampleEvents(), event("4", "C", 1, "2024-01-04T00:00:00Z")), nil)
	second, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 3, second.Result.Metrics.TotalPredictedProducts)
	assert.Len(t, publisher.published, 2)
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	source := &fakeSource{events: sampleEvents()}
	svc := newTestService(source, nil, nil)

	good, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	source.set(nil, errors.New("backend down"))
	_, err = svc.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")

	current, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, good.ID, current.ID)

	state := svc.State()
	assert.True(t, state.HasSnapshot)
	assert.False(t, state.Loading)
	assert.Equal(t, "backend down", state.LastError)

	source.set(sampleEvents(), nil)
	_, err = svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, svc.State().LastError)
}

func TestStateBeforeAndAfterFirstFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("timeout")}
	svc := newTestService(source, nil, nil)

	_, err := svc.Current()
	assert.ErrorIs(t, err, ErrNoSnapshot)
	state := svc.State()
	assert.True(t, state.Loading)
	assert.False(t, state.HasSnapshot)
	assert.Nil(t, state.LastRefreshAt)

	_, err = svc.Refresh(context.Background())
	require.Error(t, err)

	state = svc.State()
	assert.False(t, state.Loading)
	assert.Equal(t, "timeout", state.LastError)
	assert.False(t, svc.Ready())
}

func TestConcurrentRefreshIsRejected(t *testing.T) {
	source := &fakeSource{events: sampleEvents(), block: make(chan struct{})}
	svc := newTestService(source, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Refresh(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return svc.State().Refreshing }, time.Second, time.Millisecond)

	_, err := svc.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRefreshInProgress)
	assert.True(t, svc.State().Loading)

	close(source.block)
	require.NoError(t, <-done)
	assert.False(t, svc.State().Refreshing)
}

func TestPersistFailureIsNotFatal(t *testing.T) {
	source := &fakeSource{events: sampleEvents()}
	store := &fakeStore{insertErr: errors.New("disk full")}
	svc := newTestService(source, store, nil)

	snapshot, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snapshot)
}

func TestRefreshWithoutCache(t *testing.T) {
	source := &fakeSource{events: sampleEvents()}
	svc := NewDashboardService(source, aggregator.DefaultOptions(), nil, nil, nil, nil)

	snapshot, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cache.Fingerprint(sampleEvents()), snapshot.Fingerprint)
	assert.Equal(t, "fake", svc.SourceName())
}

func TestHistory(t *testing.T) {
	source := &fakeSource{events: sampleEvents()}

	_, err := newTestService(source, nil, nil).History(context.Background(), 5)
	assert.ErrorIs(t, err, ErrHistoryUnavailable)

	store := &fakeStore{}
	svc := newTestService(source, store, nil)
	_, err = svc.Refresh(context.Background())
	require.NoError(t, err)

	summaries, err := svc.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, DefaultHistoryLimit, store.lastLimit)
	assert.Equal(t, "650.00", summaries[0].Metrics.EstimatedRevenue)

	_, err = svc.History(context.Background(), 10000)
	require.NoError(t, err)
	assert.Equal(t, MaxHistoryLimit, store.lastLimit)
}

func TestRestore(t *testing.T) {
	persisted := &models.DashboardSnapshot{
		Fingerprint: "old",
		Result:      aggregator.Aggregate(sampleEvents()),
	}
	store := &fakeStore{latest: persisted}
	svc := newTestService(&fakeSource{events: sampleEvents()}, store, nil)

	require.NoError(t, svc.Restore(context.Background()))
	current, err := svc.Current()
	require.NoError(t, err)
	assert.Same(t, persisted, current)
	assert.False(t, svc.State().Loading)

	empty := newTestService(&fakeSource{}, &fakeStore{}, nil)
	require.NoError(t, empty.Restore(context.Background()))
	assert.False(t, empty.Ready())

	require.NoError(t, newTestService(&fakeSource{}, nil, nil).Restore(context.Background()))
}

func TestClampHistoryLimit(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, ClampHistoryLimit(-1))
	assert.Equal(t, 7, ClampHistoryLimit(7))
	assert.Equal(t, MaxHistoryLimit, ClampHistoryLimit(MaxHistoryLimit+1))
}
