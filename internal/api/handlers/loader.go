package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/wonny/sgloader/internal/contracts"
	"github.com/wonny/sgloader/internal/loader"
	"github.com/wonny/sgloader/pkg/logger"
)

// JobFunc runs one loader and returns its report
type JobFunc func(ctx context.Context) (interface{}, error)

// LoaderHandler exposes the manual job triggers
// ⭐ SSOT: manual triggers go through the same runner as the scheduler
type LoaderHandler struct {
	runner *loader.Runner
	jobs   map[string]JobFunc
	logger *logger.Logger
}

// NewLoaderHandler creates a loader trigger handler
func NewLoaderHandler(runner *loader.Runner, log *logger.Logger) *LoaderHandler {
	return &LoaderHandler{
		runner: runner,
		jobs:   make(map[string]JobFunc),
		logger: log,
	}
}

// Register makes job triggerable by name
func (h *LoaderHandler) Register(name string, fn JobFunc) {
	h.jobs[name] = fn
}

// Jobs returns the registered job names, sorted
func (h *LoaderHandler) Jobs() []string {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Trigger runs a loader synchronously
// GET /intraday/screener/{job}/loader/
func (h *LoaderHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["job"]
	fn, ok := h.jobs[name]
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("unknown loader %q", name))
		return
	}

	result, err := h.runner.Run(r.Context(), name, fn)
	if errors.Is(err, contracts.ErrJobRunning) {
		respondError(w, http.StatusConflict, fmt.Sprintf("%s is already running", name))
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("job", name).Error("Loader trigger failed")
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  fmt.Sprintf("%s failed", name),
			"detail": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": fmt.Sprintf("%s loaded successfully", name),
		"report": result,
	})
}
