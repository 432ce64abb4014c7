package rest

import (
	"fmt"
	"time"
)

// APIError is a non-2xx response from the platform API.
type APIError struct {
	// Status is the HTTP status code.
	Status int

	// Code is the platform-specific error code, 0 if absent.
	Code int

	// Message is the human-readable error message.
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("rest: HTTP %d (code %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("rest: HTTP %d: %s", e.Status, e.Message)
}

// RateLimitError is returned when a request was rejected with HTTP 429 and
// the automatic retry budget is spent.
type RateLimitError struct {
	// RetryAfter is how long the server asked us to wait.
	RetryAfter time.Duration

	// Global reports whether the whole API surface is limited rather than
	// one bucket.
	Global bool

	// Bucket is the server-assigned bucket id, empty for global limits.
	Bucket string
}

func (e *RateLimitError) Error() string {
	if e.Global {
		return fmt.Sprintf("rest: globally rate limited, retry after %s", e.RetryAfter)
	}
	return fmt.Sprintf("rest: rate limited on bucket %q, retry after %s", e.Bucket, e.RetryAfter)
}
