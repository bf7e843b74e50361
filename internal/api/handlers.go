package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/yourusername/stock-insights/internal/models"
	"github.com/yourusername/stock-insights/internal/service"
)

// DashboardResponse is the body of the dashboard and refresh endpoints
type DashboardResponse struct {
	State    models.DashboardState     `json:"state"`
	Snapshot *models.DashboardSnapshot `json:"snapshot"`
}

// HistoryResponse is the body of the history endpoint
type HistoryResponse struct {
	Limit     int                      `json:"limit"`
	Snapshots []models.SnapshotSummary `json:"snapshots"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleHealth handles the /health endpoint - basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   s.cfg.ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.cfg.Version,
		Commit:    s.cfg.Commit,
	})
}

// handleLive handles the /live endpoint - kubernetes liveness probe.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: s.cfg.ServiceName,
	})
}

// handleReady handles the /ready endpoint - a snapshot must exist and the database must answer.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	checks := make(map[string]string)
	allHealthy := true

	if s.cfg.Dashboard == nil || !s.cfg.Dashboard.Ready() {
		allHealthy = false
		checks["dashboard"] = "no_snapshot"
	} else {
		checks["dashboard"] = "ok"
	}

	if s.cfg.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := s.cfg.DB.HealthCheck(ctx); err != nil {
			allHealthy = false
			checks["database"] = fmt.Sprintf("error: %v", err)
		} else {
			checks["database"] = "ok"
		}
	}

	response := ReadyResponse{
		Service:  s.cfg.ServiceName,
		Checks:   checks,
		Duration: time.Since(start).String(),
	}

	if allHealthy {
		response.Status = "ok"
		writeJSON(w, http.StatusOK, response)
		return
	}
	response.Status = "not_ready"
	writeJSON(w, http.StatusServiceUnavailable, response)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	state := s.cfg.Dashboard.State()
	snapshot, err := s.cfg.Dashboard.Current()
	if err == nil {
		writeJSON(w, http.StatusOK, DashboardResponse{State: state, Snapshot: snapshot})
		return
	}

	if state.LastError != "" && !state.Refreshing {
		writeError(w, http.StatusServiceUnavailable, "failed to load data: "+state.LastError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RefreshTimeout)
	defer cancel()

	snapshot, err := s.cfg.Dashboard.Refresh(ctx)
	s.audit.LogManualRefresh(r.RemoteAddr, r.UserAgent(), err == nil)

	switch {
	case errors.Is(err, service.ErrRefreshInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, DashboardResponse{State: s.cfg.Dashboard.State(), Snapshot: snapshot})
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	limit = service.ClampHistoryLimit(limit)

	summaries, err := s.cfg.Dashboard.History(r.Context(), limit)
	switch {
	case errors.Is(err, service.ErrHistoryUnavailable):
		writeError(w, http.StatusNotImplemented, err.Error())
	case err != nil:
		s.logger.WithError(err).Error("Failed to list snapshot history")
		writeError(w, http.StatusInternalServerError, "failed to list snapshot history")
	default:
		if summaries == nil {
			summaries = []models.SnapshotSummary{}
		}
		writeJSON(w, http.StatusOK, HistoryResponse{Limit: limit, Snapshots: summaries})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
