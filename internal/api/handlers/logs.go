package handlers

import (
	"net/http"
	"strconv"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/internal/scheduler"
	"github.com/wonny/sgloader/pkg/logger"
)

// StatusHandler serves the screener log and scheduler state
type StatusHandler struct {
	logs      contracts.ScreenerLogStore
	scheduler *scheduler.Scheduler
	logger    *logger.Logger
}

// NewStatusHandler creates a status handler. sched may be nil.
func NewStatusHandler(logs contracts.ScreenerLogStore, sched *scheduler.Scheduler, log *logger.Logger) *StatusHandler {
	return &StatusHandler{logs: logs, scheduler: sched, logger: log}
}

// GetLogs returns recent job invocations
// GET /api/logs?limit=50
func (h *StatusHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := h.logs.Recent(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read screener log")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve logs")
		return
	}
	if entries == nil {
		entries = []contracts.ScreenerLog{}
	}

	respondJSON(w, http.StatusOK, entries)
}

// GetSchedulerJobs returns per-job scheduler statistics
// GET /api/scheduler/jobs
func (h *StatusHandler) GetSchedulerJobs(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"enabled": false,
			"jobs":    map[string]scheduler.JobStats{},
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"enabled": true,
		"jobs":    h.scheduler.GetJobStats(),
	})
}
