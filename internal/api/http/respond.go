package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/clinicport/emergency-alerts/internal/logger"
)

// errorResponse is the JSON body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
}

// respondJSON writes data as a JSON response.
func respondJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are out the door, all that is left is the log line.
		logger.ErrorKV(ctx, "Failed to encode JSON response", "error", err)
	}
}

// writeError logs the full error and sends the client the short message.
func writeError(ctx context.Context, w http.ResponseWriter, statusCode int, message string, err error) {
	logger.WarnKV(ctx, message, "error", err, "status_code", statusCode)

	respondJSON(ctx, w, statusCode, errorResponse{Error: message})
}
