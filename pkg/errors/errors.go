// Package errors defines the sentinel errors shared by the synchronization
// engine and its HTTP surface, and maps them to status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrIndexNotFound is returned by the document store when an index or
	// alias does not exist.
	ErrIndexNotFound = errors.New("index not found")
	// ErrStoreTransport covers every other document store failure.
	ErrStoreTransport = errors.New("document store failure")
	// ErrUpstreamQuery is returned when the metadata source is unreachable or
	// answers with malformed data.
	ErrUpstreamQuery = errors.New("metadata source query failed")
	// ErrTranslation marks a single source entity that could not be mapped.
	ErrTranslation = errors.New("translation failed")
	// ErrRunInProgress is returned when a run for the same coordinates holds
	// the lease.
	ErrRunInProgress = errors.New("indexing run already in progress")

	ErrUnknownContentType = errors.New("unknown content type")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps err to the status code the trigger API answers with.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrUnknownContentType), errors.Is(err, ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrStoreTransport), errors.Is(err, ErrUpstreamQuery):
		return http.StatusBadGateway
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
