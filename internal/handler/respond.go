package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Envelope is the uniform JSON response shape for every API endpoint.
// Success responses carry Data; failures carry Message and, for validation
// failures, field-level Errors.
type Envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// RespondJSON writes a success envelope around data.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

// RespondMessage writes a success envelope with no data payload.
func RespondMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: true, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("encoding response failed", slog.String("error", err.Error()))
	}
}
