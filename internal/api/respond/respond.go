// Package respond centralizes JSON response writing and the mapping
// from the domain error taxonomy to HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/openlot/openlot/core/internal/model"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError writes a standardized error response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    code,
		Message: message,
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

// WriteDomainError maps the error taxonomy to HTTP. NoHistory maps to
// 404 with code "no_history" so callers fall back to popular results;
// ConversationBusy maps to 409 and the caller should retry.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, model.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, model.ErrNoHistory):
		WriteError(w, http.StatusNotFound, "no_history", err.Error())
	case errors.Is(err, model.ErrConversationBusy):
		WriteError(w, http.StatusConflict, "conversation_busy", err.Error())
	case errors.Is(err, model.ErrDimensionMismatch):
		WriteError(w, http.StatusUnprocessableEntity, "dimension_mismatch", err.Error())
	case errors.Is(err, model.ErrEmbeddingUnavailable), errors.Is(err, model.ErrCompletionUnavailable):
		WriteError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		WriteError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
