package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ParseID extracts a positive numeric id from the request path. On failure it
// writes a 400 and returns false.
func ParseID(w http.ResponseWriter, r *http.Request, pathParam string, logger *zap.Logger) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(pathParam), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_"+pathParam, "Invalid "+pathParam+" format", logger)
		return 0, false
	}
	return id, true
}

// parseOptionalID reads an optional positive id from the query string.
func parseOptionalID(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (*int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_"+name, "Invalid "+name+" format", logger)
		return nil, false
	}
	return &id, true
}

// parseOptionalDate reads an optional YYYY-MM-DD date from the query string.
func parseOptionalDate(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, "Expected "+name+" as YYYY-MM-DD", logger)
		return nil, false
	}
	return &t, true
}
