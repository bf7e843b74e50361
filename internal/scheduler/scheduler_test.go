package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/stock-insights/internal/models"
	"github.com/yourusername/stock-insights/internal/service"
)

type countingRefresher struct {
	calls    int32
	err      error
	deadline atomic.Bool
}

func (r *countingRefresher) Refresh(ctx context.Context) (*models.DashboardSnapshot, error) {
	atomic.AddInt32(&r.calls, 1)
	if _, ok := ctx.Deadline(); ok {
		r.deadline.Store(true)
	}
	if r.err != nil {
		return nil, r.err
	}
	return &models.DashboardSnapshot{ID: uuid.New()}, nil
}

func (r *countingRefresher) count() int32 {
	return atomic.LoadInt32(&r.calls)
}

func TestScheduleRefreshValidation(t *testing.T) {
	s := NewScheduler(&countingRefresher{}, nil)

	assert.Error(t, s.ScheduleRefresh("not a schedule", time.Second))
	assert.Error(t, s.Start(), "start without jobs")

	require.NoError(t, s.ScheduleRefresh("@every 1h", time.Second))
	assert.Len(t, s.Entries(), 1)
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(&countingRefresher{}, nil)
	require.NoError(t, s.ScheduleRefresh("@every 1h", time.Second))

	assert.True(t, s.GetNextRun().IsZero())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())
	assert.Error(t, s.ScheduleRefresh("@every 1m", time.Second))

	require.Eventually(t, func() bool { return !s.GetNextRun().IsZero() }, time.Second, 10*time.Millisecond)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.GetNextRun(), time.Minute)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop())
}

func TestScheduledRunRefreshes(t *testing.T) {
	refresher := &countingRefresher{}
	s := NewScheduler(refresher, nil)
	require.NoError(t, s.ScheduleRefresh("@every 1s", 5*time.Second))
	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool { return refresher.count() >= 1 }, 3*time.Second, 50*time.Millisecond)
	assert.True(t, refresher.deadline.Load())
}

func TestRunNowToleratesErrors(t *testing.T) {
	for _, err := range []error{nil, service.ErrRefreshInProgress, errors.New("backend down")} {
		refresher := &countingRefresher{err: err}
		s := NewScheduler(refresher, nil)

		s.RunNow()
		require.Eventually(t, func() bool { return refresher.count() == 1 }, time.Second, 10*time.Millisecond)
	}
}

func TestRemoveJob(t *testing.T) {
	s := NewScheduler(&countingRefresher{}, nil)
	require.NoError(t, s.ScheduleRefresh("@every 1h", time.Second))

	entries := s.Entries()
	require.Len(t, entries, 1)
	require.NoError(t, s.RemoveJob(entries[0].ID))
	assert.Empty(t, s.Entries())
	assert.Error(t, s.Start())
}
