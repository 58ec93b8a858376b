package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorBody is the JSON shape of every failed API response. Detail is only
// filled for server-side failures.
type errorBody struct {
	Message string `json:"message"`
	Detail  string `json:"error,omitempty"`
}

// writeJSON sends a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write JSON response", "error", err)
	}
}

// writeError sends a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Message: message})
}

// writeServerError logs err and sends a 5xx response that carries its detail.
func writeServerError(w http.ResponseWriter, r *http.Request, message string, err error) {
	slog.Error(message, "method", r.Method, "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()), "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Message: message, Detail: err.Error()})
}
