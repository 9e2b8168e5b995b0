package handlers

import (
	"encoding/json"
	"net/http"

	"jarvis-chat/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(message string) models.ErrorResponse {
	return models.ErrorResponse{Error: message}
}

func errorRespWithDetails(message, details string) models.ErrorResponse {
	return models.ErrorResponse{Error: message, Details: details}
}

func methodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Allow", http.MethodPost)
	writeJSON(w, http.StatusMethodNotAllowed, errorResp("Use POST"))
}
