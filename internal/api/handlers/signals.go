package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/pkg/logger"
)

// CandidateRunner runs the comparator for a date
type CandidateRunner interface {
	Run(ctx context.Context, date time.Time) (contracts.Candidates, error)
}

// SignalLister lists stored signals
type SignalLister interface {
	ListByDate(ctx context.Context, date time.Time, screenerType string) ([]contracts.Signal, error)
}

// WeeklyTrendUpdater sets the weekly trend on matching signals
type WeeklyTrendUpdater interface {
	UpdateWeeklyTrend(ctx context.Context, date time.Time, screener, stockName, trend string) (int64, error)
}

// SignalHandler serves stored signals and OHL candidates
type SignalHandler struct {
	candidates CandidateRunner
	signals    SignalLister
	trends     WeeklyTrendUpdater
	loc        *time.Location
	logger     *logger.Logger
	now        func() time.Time
}

// NewSignalHandler creates a signal handler
func NewSignalHandler(candidates CandidateRunner, signals SignalLister, trends WeeklyTrendUpdater, loc *time.Location, log *logger.Logger) *SignalHandler {
	return &SignalHandler{
		candidates: candidates,
		signals:    signals,
		trends:     trends,
		loc:        loc,
		logger:     log,
		now:        time.Now,
	}
}

// GetCandidates runs the OHL comparator
// GET /intraday/screener/ohl/candidates/?date=YYYY-MM-DD
func (h *SignalHandler) GetCandidates(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r, h.loc, h.now())
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
		return
	}

	result, err := h.candidates.Run(r.Context(), date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to select candidates")
		respondError(w, http.StatusInternalServerError, "Failed to select candidates")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ListSignals returns the day's signals, optionally filtered by screener type
// GET /api/signals?date=YYYY-MM-DD&type=OPEN_HIGH_LOW
func (h *SignalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r, h.loc, h.now())
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
		return
	}
	screenerType := strings.ToUpper(r.URL.Query().Get("type"))

	signals, err := h.signals.ListByDate(r.Context(), date, screenerType)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list signals")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve signals")
		return
	}
	if signals == nil {
		signals = []contracts.Signal{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":    date.Format(dateLayout),
		"count":   len(signals),
		"signals": signals,
	})
}

// WeeklyTrendRequest is the body of a weekly trend update
type WeeklyTrendRequest struct {
	Date      string `json:"date"`
	Screener  string `json:"screener"`
	StockName string `json:"stock_name"`
	Trend     string `json:"weekly_trend"`
}

// UpdateWeeklyTrend sets weekly_trend on one stock's signals
// PATCH /api/signals/weekly-trend
func (h *SignalHandler) UpdateWeeklyTrend(w http.ResponseWriter, r *http.Request) {
	var req WeeklyTrendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Screener == "" || req.StockName == "" || req.Trend == "" {
		respondError(w, http.StatusBadRequest, "screener, stock_name and weekly_trend are required")
		return
	}

	date := h.now()
	if req.Date != "" {
		d, err := time.ParseInLocation(dateLayout, req.Date, h.location())
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
			return
		}
		date = d
	} else {
		local := date.In(h.location())
		date = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, h.location())
	}

	n, err := h.trends.UpdateWeeklyTrend(r.Context(), date, req.Screener, strings.ToUpper(req.StockName), req.Trend)
	if err != nil {
		h.logger.WithError(err).Error("Failed to update weekly trend")
		respondError(w, http.StatusInternalServerError, "Failed to update weekly trend")
		return
	}
	if n == 0 {
		respondError(w, http.StatusNotFound, "No matching signal")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"updated": n})
}

func (h *SignalHandler) location() *time.Location {
	if h.loc == nil {
		return time.UTC
	}
	return h.loc
}
