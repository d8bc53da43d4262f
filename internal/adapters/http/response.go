package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gw2trader/tradepost/internal/domain"
)

// Response helpers for consistent JSON responses

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondErrorWithCode sends an error response with an error code
func respondErrorWithCode(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleDomainError maps domain errors to HTTP responses
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		respondErrorWithCode(w, http.StatusNotFound, "item not found", "ITEM_NOT_FOUND")

	case errors.Is(err, domain.ErrSnapshotNotFound):
		respondErrorWithCode(w, http.StatusNotFound, "snapshot not found", "SNAPSHOT_NOT_FOUND")

	case errors.Is(err, domain.ErrNoOrderBook):
		respondErrorWithCode(w, http.StatusNotFound, "no order book for item", "NO_ORDER_BOOK")

	case errors.Is(err, domain.ErrRunInProgress):
		respondErrorWithCode(w, http.StatusConflict, "refresh run already in progress", "RUN_IN_PROGRESS")

	case errors.Is(err, domain.ErrSourceUnavailable):
		respondErrorWithCode(w, http.StatusServiceUnavailable, "market data source unavailable", "SOURCE_UNAVAILABLE")

	case errors.Is(err, domain.ErrMalformedRecord):
		respondErrorWithCode(w, http.StatusBadGateway, "malformed response from source", "MALFORMED_RECORD")

	case errors.Is(err, domain.ErrInvalidUnit):
		respondErrorWithCode(w, http.StatusBadRequest, "invalid currency unit", "INVALID_UNIT")

	case errors.Is(err, domain.ErrInvalidPrice):
		respondErrorWithCode(w, http.StatusBadRequest, "invalid price", "INVALID_PRICE")

	default:
		respondErrorWithCode(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
