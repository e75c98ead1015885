package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

const dateLayout = "2006-01-02"

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// parseDate reads ?date=YYYY-MM-DD in loc, defaulting to today
func parseDate(r *http.Request, loc *time.Location, now time.Time) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	raw := r.URL.Query().Get("date")
	if raw == "" {
		local := now.In(loc)
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc), nil
	}
	return time.ParseInLocation(dateLayout, raw, loc)
}
