// Package logger provides dashboard refresh logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// DashboardLogger provides dedicated logging for dashboard refreshes.
type DashboardLogger struct {
	*logrus.Entry
}

// NewDashboardLogger creates a new dashboard logger.
func NewDashboardLogger(baseLogger *logrus.Logger) *DashboardLogger {
	return &DashboardLogger{
		Entry: baseLogger.WithField("component", "dashboard"),
	}
}

// LogRefreshCompleted logs a successful refresh.
func (dl *DashboardLogger) LogRefreshCompleted(snapshotID, fingerprint string, eventCount, products int, revenue string, cacheHit bool, durationMs float64) {
	dl.WithFields(logrus.Fields{
		"snapshot_id":        snapshotID,
		"fingerprint":        fingerprint,
		"event_count":        eventCount,
		"predicted_products": products,
		"estimated_revenue":  revenue,
		"cache_hit":          cacheHit,
		"duration_ms":        durationMs,
	}).Info("Dashboard refresh completed")
}

// LogRefreshFailed logs a failed refresh. The previous snapshot stays in place.
func (dl *DashboardLogger) LogRefreshFailed(source string, err error, durationMs float64) {
	dl.WithFields(logrus.Fields{
		"source":      source,
		"duration_ms": durationMs,
	}).WithError(err).Error("Dashboard refresh failed")
}

// LogSnapshotPersisted logs a snapshot write.
func (dl *DashboardLogger) LogSnapshotPersisted(snapshotID string, eventCount int) {
	dl.WithFields(logrus.Fields{
		"snapshot_id": snapshotID,
		"event_count": eventCount,
	}).Debug("Dashboard snapshot persisted")
}

// LogSnapshotPersistFailed logs a snapshot write failure.
func (dl *DashboardLogger) LogSnapshotPersistFailed(snapshotID string, err error) {
	dl.WithField("snapshot_id", snapshotID).WithError(err).Warn("Failed to persist dashboard snapshot")
}
