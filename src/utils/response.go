package utils

import (
	"encoding/json"
	"net/http"

	"github.com/username/goldfolio/backend/src/logger"
)

// SendJSONError writes a JSON error payload with the given status code.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	}); err != nil {
		logger.L.Error("Failed to encode JSON error response", "error", err)
	}
}

// SendJSON writes a success envelope around the given payload.
func SendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	}); err != nil {
		logger.L.Error("Failed to encode JSON response", "error", err)
	}
}
