// Package logger provides audit logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogManualRefresh logs a refresh requested through the API.
func (al *AuditLogger) LogManualRefresh(remoteAddr, userAgent string, succeeded bool) {
	al.WithFields(logrus.Fields{
		"remote_addr": remoteAddr,
		"user_agent":  userAgent,
		"succeeded":   succeeded,
	}).Info("Manual dashboard refresh requested")
}

// LogConfigLoaded logs the effective configuration without secrets.
func (al *AuditLogger) LogConfigLoaded(environment, backendURL, schedule, metricsScope string, persistence bool) {
	al.WithFields(logrus.Fields{
		"environment":   environment,
		"backend_url":   backendURL,
		"schedule":      schedule,
		"metrics_scope": metricsScope,
		"persistence":   persistence,
	}).Info("Configuration loaded")
}
