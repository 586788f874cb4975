package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tabletide/pos/internal/repository"
)

// ErrorResponse is the JSON error envelope shared by all handlers.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSONResponse writes a JSON response with the given status code and data.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteErrorResponse writes an error response with the given status code and message.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, err, message string) {
	WriteJSONResponse(w, statusCode, ErrorResponse{
		Error:   err,
		Message: message,
	})
}

// writeStoreError maps a record store failure onto 404, 409 or 500.
func writeStoreError(w http.ResponseWriter, err error) {
	var notFoundErr *repository.NotFoundError
	if errors.As(err, &notFoundErr) {
		WriteErrorResponse(w, http.StatusNotFound, "Not found", notFoundErr.Error())
		return
	}

	var conflictErr *repository.ConflictError
	if errors.As(err, &conflictErr) {
		WriteErrorResponse(w, http.StatusConflict, "Conflict", conflictErr.Error())
		return
	}

	WriteErrorResponse(w, http.StatusInternalServerError, "Internal error",
		"An internal error occurred while processing your request")
}
