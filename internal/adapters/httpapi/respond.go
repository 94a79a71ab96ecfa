package httpapi

import (
	"encoding/json"
	"net/http"
	"time"
)

// errorResponse is the error envelope every endpoint shares.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// latencyMS reports elapsed wall time in milliseconds for response payloads.
func latencyMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
