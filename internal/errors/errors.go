package errors

import (
	"errors"
	"fmt"
	"time"
)

// Application-specific errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrFeedUnavailable    = errors.New("feed unavailable")
	ErrRateLimit          = errors.New("rate limit exceeded")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrNotConfigured      = errors.New("not configured")
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// RateLimitError is the distinguished transient failure returned when a
// platform rejects a post for quota reasons. Remaining and ResetAt carry
// whatever diagnostics the platform exposed; zero values mean unknown.
type RateLimitError struct {
	Platform  string
	Remaining int
	ResetAt   time.Time
}

func (e RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return fmt.Sprintf("%s: rate limited", e.Platform)
	}
	return fmt.Sprintf("%s: rate limited, %d remaining, resets at %s",
		e.Platform, e.Remaining, e.ResetAt.UTC().Format(time.RFC3339))
}

func (e RateLimitError) Unwrap() error {
	return ErrRateLimit
}

// IsRateLimit reports whether err is a rate-limit failure on any platform.
func IsRateLimit(err error) bool {
	return errors.Is(err, ErrRateLimit)
}

// StoreError represents a persistence failure
type StoreError struct {
	Operation string
	Err       error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Operation, e.Err)
}

func (e StoreError) Unwrap() error {
	return e.Err
}

// PublishError represents a per-platform publishing failure
type PublishError struct {
	Platform string
	Stage    string
	Err      error
}

func (e PublishError) Error() string {
	return fmt.Sprintf("publish error on %s at stage %s: %v", e.Platform, e.Stage, e.Err)
}

func (e PublishError) Unwrap() error {
	return e.Err
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error `json:"errors"`
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0].Error(), len(e.Errors)-1)
}

// Add adds an error to the MultiError
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (e *MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}
