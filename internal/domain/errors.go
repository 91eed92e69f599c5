package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that a provider throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that a provider could not be reached
	// or kept failing with server errors.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrUpstream indicates that a provider rejected the request with a
	// non-retryable, non-throttling status.
	ErrUpstream = errors.New("upstream error")
)

// ErrorKind tags an error with the category the HTTP boundary maps to a status code.
type ErrorKind string

const (
	KindNotFound       ErrorKind = "not_found"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindRateLimited    ErrorKind = "rate_limited"
	KindUnavailable    ErrorKind = "upstream_unavailable"
	KindUpstream       ErrorKind = "upstream_error"
	KindInternal       ErrorKind = "internal"
)

// sentinel returns the sentinel error backing a kind, or nil for KindInternal.
func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindInvalidRequest:
		return ErrInvalidInput
	case KindRateLimited:
		return ErrRateLimited
	case KindUnavailable:
		return ErrServiceUnavailable
	case KindUpstream:
		return ErrUpstream
	default:
		return nil
	}
}

// KindOf classifies err. Wrapped errors are classified by the sentinel they
// unwrap to; anything unrecognised is KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidRequest
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrServiceUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	default:
		return KindInternal
	}
}

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError is returned when a provider answers with HTTP 429.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter <= 0 {
		return fmt.Sprintf("rate limited by %s", e.Source)
	}
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// UnavailableError is returned when a provider cannot be reached at all.
type UnavailableError struct {
	Source string
	Cause  error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Source, e.Cause)
}

// Unwrap exposes both the sentinel and the transport cause.
func (e *UnavailableError) Unwrap() []error {
	return []error{ErrServiceUnavailable, e.Cause}
}

// ExternalAPIError provides details about a non-2xx provider response.
// Kind decides how the error is surfaced; StatusCode and Message carry the
// provider's original status and body.
type ExternalAPIError struct {
	Source     string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the kind sentinel and the underlying cause, if any.
func (e *ExternalAPIError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewUnavailableError creates a new UnavailableError.
func NewUnavailableError(source string, cause error) *UnavailableError {
	return &UnavailableError{
		Source: source,
		Cause:  cause,
	}
}

// NewExternalAPIError creates a new ExternalAPIError. The kind is derived from
// the status code: 429 is rate limiting, 5xx is unavailability, anything else
// is a plain upstream error.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	kind := KindUpstream
	switch {
	case statusCode == 429:
		kind = KindRateLimited
	case statusCode >= 500:
		kind = KindUnavailable
	}
	return &ExternalAPIError{
		Source:     source,
		Kind:       kind,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
