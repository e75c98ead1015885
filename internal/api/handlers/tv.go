package handlers

import (
	"context"
	"net/http"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/internal/loader"
	"github.com/wonny/sgloader/pkg/logger"
)

// TVIngester stores TradingView alerts
type TVIngester interface {
	Ingest(ctx context.Context, sigs []contracts.TVSignal) (*loader.TVReport, error)
}

// TVHandler receives TradingView webhooks
type TVHandler struct {
	intake TVIngester
	logger *logger.Logger
}

// NewTVHandler creates a TradingView webhook handler
func NewTVHandler(intake TVIngester, log *logger.Logger) *TVHandler {
	return &TVHandler{intake: intake, logger: log}
}

// Receive stores a JSON array of alerts
// POST /api/tv/signals
func (h *TVHandler) Receive(w http.ResponseWriter, r *http.Request) {
	sigs, err := loader.DecodeTVSignals(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	report, err := h.intake.Ingest(r.Context(), sigs)
	if err != nil {
		h.logger.WithError(err).Error("Failed to store TradingView signals")
		respondError(w, http.StatusInternalServerError, "Failed to store signals")
		return
	}

	status := http.StatusOK
	if len(report.Rejected) > 0 && report.Inserted == 0 && report.Existing == 0 {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, report)
}
