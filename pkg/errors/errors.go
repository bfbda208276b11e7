package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for the catalog error taxonomy. Every AppError unwraps to
// exactly one of these, so callers match kinds with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrPersistence  = errors.New("persistence failure")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
	Status  int      `json:"-"`
	Err     error    `json:"-"`
	Cause   error    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes both the taxonomy sentinel and the underlying cause.
func (e *AppError) Unwrap() []error {
	var errs []error
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Validation creates a 400 error carrying every violation message.
func Validation(messages ...string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: strings.Join(messages, ", "),
		Details: messages,
		Status:  http.StatusBadRequest,
		Err:     ErrValidation,
	}
}

// NotFound creates a 404 error.
func NotFound(resource string, id any) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %v not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// Forbidden creates a 403 error for an authenticated actor that does not own
// the resource.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Persistence creates a 500 error for an unclassified store failure.
func Persistence(op string, cause error) *AppError {
	return &AppError{
		Code:    "PERSISTENCE_ERROR",
		Message: op,
		Status:  http.StatusInternalServerError,
		Err:     ErrPersistence,
		Cause:   cause,
	}
}

// IsTaxonomy reports whether err already belongs to the catalog taxonomy.
func IsTaxonomy(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
