package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// WriteJSON writes data as JSON with the given status code. Encoding
// failures can no longer change the status, so they are only logged.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.Int("status", status), slog.String("error", err.Error()))
	}
}

// WriteError writes {"error": message}.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteFieldError writes {"error": message, "fields": [...]}.
func WriteFieldError(w http.ResponseWriter, status int, message string, fields []string) {
	WriteJSON(w, status, ErrorResponse{Error: message, Fields: fields})
}
