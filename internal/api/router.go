package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/sgloader/internal/api/handlers"
	"github.com/wonny/sgloader/pkg/logger"
)

// Handlers groups the route handlers
type Handlers struct {
	Loader  *handlers.LoaderHandler
	Signals *handlers.SignalHandler
	TV      *handlers.TVHandler
	Status  *handlers.StatusHandler
	Events  *handlers.EventHub
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routing is configured here only
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Screener loaders and candidates
	screener := r.PathPrefix("/intraday/screener").Subrouter()
	screener.HandleFunc("/ohl/candidates/", h.Signals.GetCandidates).Methods("GET")
	screener.HandleFunc("/{job}/loader/", h.Loader.Trigger).Methods("GET")

	// API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/signals", h.Signals.ListSignals).Methods("GET")
	api.HandleFunc("/signals/weekly-trend", h.Signals.UpdateWeeklyTrend).Methods("PATCH")
	api.HandleFunc("/tv/signals", h.TV.Receive).Methods("POST")
	api.HandleFunc("/logs", h.Status.GetLogs).Methods("GET")
	api.HandleFunc("/scheduler/jobs", h.Status.GetSchedulerJobs).Methods("GET")

	// Job events
	r.HandleFunc("/ws/jobs", h.Events.ServeWS).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "sgloader",
	})
}

// statusRecorder captures the response status for the access log
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the recorder
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			entry := log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			})
			if rec.status >= http.StatusInternalServerError {
				entry.Warn("HTTP request")
				return
			}
			entry.Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
