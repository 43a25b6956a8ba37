package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"error": "not_found", "message": "message not found with id 12"}
//
// Validation errors also name the offending field:
//   {"error": "validation_error", "message": "body is required", "field": "body"}

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/messagely/internal/apperror"
)

// maxRequestBodyBytes caps every JSON request body.
const maxRequestBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Set for validation errors
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status MUST be set before the body is written; once Encode
// calls w.Write the headers are on the wire.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, we can only log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends it.
//
// ERROR MAPPING:
//
//	ErrUnauthorized       → 401 (every policy denial, whatever the reason)
//	ErrNotFound           → 404
//	ErrRecipientNotFound  → 400 (the caller named a user that doesn't exist)
//	ErrConflict           → 400 (username taken)
//	ErrValidation         → 400
//	ErrBadCredentials     → 400
//	anything else         → 500 with a generic body; details are only logged
//
// errors.Is walks the whole chain, so a service error wrapped with
// fmt.Errorf("...: %w", appErr) still maps correctly.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := classifyError(err)
		if status == http.StatusInternalServerError {
			logger.Error("unhandled application error", slog.String("error", err.Error()))
			writeJSON(w, status, ErrorResponse{Error: errorType, Message: "An internal error occurred"})
			return
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	// Unknown error: NEVER expose internal details to the client. The raw
	// message may contain SQL, file paths or driver state.
	logger.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrRecipientNotFound):
		return http.StatusBadRequest, "recipient_not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusBadRequest, "username_taken"
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrBadCredentials):
		return http.StatusBadRequest, "bad_credentials"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a JSON request body into dst. Unknown fields are
// ignored, since clients may send the _token field alongside the payload.
// An empty body decodes to dst's zero value so that the caller's field
// validation produces the error.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperror.ValidationFailed("body", "request body must be valid JSON")
	}
	return nil
}
