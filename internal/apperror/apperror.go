// Package apperror defines the application's error taxonomy.
//
// Every layer below the transport returns these kinds (wrapped with context
// via fmt.Errorf %w as needed). Only the HTTP layer decides what status code
// each kind becomes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("Validation Error")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrBadCredentials    = errors.New("bad credentials")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation, e.g. a username that is already taken.
func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s %s already exists", resource, id),
	}
}

// Unauthorized is a policy denial. The message is deliberately the same for
// "no identity" and "wrong identity" so callers learn nothing from it.
func Unauthorized() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: "Unauthorized",
	}
}

// RecipientNotFound is returned when a message is addressed to a username
// that does not exist.
func RecipientNotFound(username string) *AppError {
	return &AppError{
		Err:     ErrRecipientNotFound,
		Message: fmt.Sprintf("user %s does not exist", username),
		Field:   "to_username",
	}
}

// BadCredentials is returned by login when the username/password pair does
// not match. It never says which half was wrong.
func BadCredentials() *AppError {
	return &AppError{
		Err:     ErrBadCredentials,
		Message: "Invalid username/password",
	}
}
