package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrAuth means the interactive sign-in failed, was cancelled, or the
	// caller holds no credential.
	ErrAuth = errors.New("authentication failed")
	// ErrFetch means a profile or contacts request to Google failed.
	ErrFetch = errors.New("fetch failed")
	// ErrExport means the spreadsheet could not be produced.
	ErrExport = errors.New("export failed")
	// ErrPaginationExhausted means the contacts listing kept returning a
	// cursor past the page cap.
	ErrPaginationExhausted = errors.New("pagination exhausted")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying failure, kept for logs
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the cause, so errors.Is matches either.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
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

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// AuthFailed wraps a sign-in failure. HTTP handlers map this to 401.
func AuthFailed(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrAuth,
		Message: message,
		Cause:   cause,
	}
}

// FetchFailed wraps a failed request to an upstream Google endpoint.
// HTTP handlers map this to 502 Bad Gateway.
func FetchFailed(resource string, cause error) *AppError {
	return &AppError{
		Err:     ErrFetch,
		Message: fmt.Sprintf("fetching %s failed", resource),
		Cause:   cause,
	}
}

// ExportFailed wraps a spreadsheet encoding failure.
func ExportFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrExport,
		Message: "exporting contacts failed",
		Cause:   cause,
	}
}

// PaginationExhausted reports that more than maxPages pages were requested
// without the upstream ever omitting its cursor.
func PaginationExhausted(resource string, maxPages int) *AppError {
	return &AppError{
		Err:     ErrPaginationExhausted,
		Message: fmt.Sprintf("%s listing did not end within %d pages", resource, maxPages),
	}
}
