package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "period",
		Message: "unknown period",
	}

	expected := "validation error on field 'period': unknown period"
	if err.Error() != expected {
		t.Errorf("Expected %s, got %s", expected, err.Error())
	}
}

func TestRateLimitError(t *testing.T) {
	resetAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	err := RateLimitError{Platform: "twitter", Remaining: 0, ResetAt: resetAt}

	if !errors.Is(err, ErrRateLimit) {
		t.Error("Expected RateLimitError to unwrap to ErrRateLimit")
	}
	if !IsRateLimit(err) {
		t.Error("Expected IsRateLimit to report true")
	}
	if IsRateLimit(errors.New("other")) {
		t.Error("Expected IsRateLimit false for unrelated error")
	}

	msg := err.Error()
	if msg != "twitter: rate limited, 0 remaining, resets at 2024-06-01T12:00:00Z" {
		t.Errorf("Unexpected message: %s", msg)
	}

	bare := RateLimitError{Platform: "bluesky"}
	if bare.Error() != "bluesky: rate limited" {
		t.Errorf("Unexpected message without reset: %s", bare.Error())
	}
}

func TestRateLimitError_AsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("post failed: %w", RateLimitError{Platform: "twitter"})

	var rle RateLimitError
	if !errors.As(wrapped, &rle) {
		t.Fatal("Expected errors.As to find RateLimitError")
	}
	if rle.Platform != "twitter" {
		t.Errorf("Expected platform twitter, got %s", rle.Platform)
	}
	if !IsRateLimit(wrapped) {
		t.Error("Expected IsRateLimit through wrapping")
	}
}

func TestStoreError(t *testing.T) {
	inner := errors.New("connection refused")
	err := StoreError{Operation: "insert events", Err: inner}

	if err.Error() != "store error during insert events: connection refused" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("Expected StoreError to unwrap to the inner error")
	}
}

func TestPublishError(t *testing.T) {
	inner := errors.New("status 500")
	err := PublishError{Platform: "bluesky", Stage: "media_upload", Err: inner}

	if err.Error() != "publish error on bluesky at stage media_upload: status 500" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("Expected PublishError to unwrap to the inner error")
	}
}

func TestMultiError(t *testing.T) {
	tests := []struct {
		name     string
		errors   []error
		expected string
	}{
		{"No errors", []error{}, "no errors"},
		{"Single error", []error{errors.New("first error")}, "first error"},
		{"Multiple errors", []error{errors.New("first error"), errors.New("second error")},
			"first error (and 1 more errors)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			me := &MultiError{}
			for _, e := range tt.errors {
				me.Add(e)
			}
			if me.Error() != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, me.Error())
			}
			if me.HasErrors() != (len(tt.errors) > 0) {
				t.Errorf("HasErrors mismatch for %d errors", len(tt.errors))
			}
		})
	}

	me := &MultiError{}
	me.Add(nil)
	if me.HasErrors() {
		t.Error("Expected nil add to be ignored")
	}
}
