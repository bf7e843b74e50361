// Package scheduler runs dashboard refreshes on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insights/internal/logger"
	"github.com/yourusername/stock-insights/internal/models"
	"github.com/yourusername/stock-insights/internal/service"
)

// Refresher rebuilds the dashboard snapshot
type Refresher interface {
	Refresh(ctx context.Context) (*models.DashboardSnapshot, error)
}

// Scheduler manages scheduled refresh jobs
type Scheduler struct {
	cron            *cron.Cron
	refresher       Refresher
	logger          *logrus.Entry
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	timeout         time.Duration
	gracefulTimeout time.Duration
}

// NewScheduler creates a new scheduler
func NewScheduler(refresher Refresher, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	entry := log.WithField("component", "scheduler")

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(entry))),
		),
		refresher:       refresher,
		logger:          entry,
		jobIDs:          make([]cron.EntryID, 0),
		timeout:         30 * time.Second,
		gracefulTimeout: 30 * time.Second,
	}
}

// ScheduleRefresh schedules a refresh on a cron expression or descriptor such as "@every 30s".
// Each run is bounded by timeout.
func (s *Scheduler) ScheduleRefresh(spec string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if timeout > 0 {
		s.timeout = timeout
	}

	runTimeout := s.timeout
	entryID, err := s.cron.AddFunc(spec, func() { s.runRefresh(runTimeout) })
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"schedule": spec,
		"timeout":  s.timeout.String(),
	}).Info("Scheduled dashboard refresh")

	return nil
}

// RunNow triggers a refresh in the background, outside the schedule
func (s *Scheduler) RunNow() {
	s.mu.RLock()
	timeout := s.timeout
	s.mu.RUnlock()

	go s.runRefresh(timeout)
}

func (s *Scheduler) runRefresh(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	snapshot, err := s.refresher.Refresh(ctx)
	switch {
	case errors.Is(err, service.ErrRefreshInProgress):
		s.logger.Debug("Refresh already running, skipping scheduled run")
	case err != nil:
		s.logger.WithError(err).Warn("Scheduled refresh failed")
	default:
		s.logger.WithField("snapshot_id", snapshot.ID.String()).Debug("Scheduled refresh completed")
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler, waiting up to the graceful timeout for a running refresh
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.isRunning = false
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler stop timed out after %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			if nextRun.IsZero() || entry.Next.Before(nextRun) {
				nextRun = entry.Next
			}
		}
	}

	return nextRun
}

// Entries returns information about scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			entries = append(entries, entry)
		}
	}

	return entries
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(jobID cron.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot remove job while scheduler is running")
	}

	s.cron.Remove(jobID)
	for i, id := range s.jobIDs {
		if id == jobID {
			s.jobIDs = append(s.jobIDs[:i], s.jobIDs[i+1:]...)
			break
		}
	}
	s.logger.WithField("job_id", int(jobID)).Info("Removed job")

	return nil
}
