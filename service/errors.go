package service

import (
	"context"
	"errors"
	"fmt"
)

// AbortError is a sentinel error used to signal that the caller cancelled
// an in-flight generation. The session maps it back to idle, never to the
// error state.

type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("[Generation Aborted] Reason: %s", e.Reason)
	}
	return "[Generation Aborted]"
}

// IsAbortError reports whether err represents an intentional cancellation,
// either the sentinel itself or a context cancellation surfaced through
// the HTTP client.
func IsAbortError(err error) bool {
	if err == nil {
		return false
	}
	var ae *AbortError
	if errors.As(err, &ae) {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// StreamError carries an application-level error frame received mid-stream
// after an OK response.

type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error: %s", e.Message)
}

func IsStreamError(err error) bool {
	var se *StreamError
	return errors.As(err, &se)
}

// APIError is a non-OK HTTP response from the generation backend, carrying
// the server-provided message when one was given.

type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}
