package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Transport errors
var (
	ErrNetwork = errors.New("network request failed")
)

// Authentication errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSessionInvalidated = errors.New("session invalidated, please log in again")
	ErrTokenMalformed     = errors.New("malformed token")
)

// Cooking session errors
var (
	ErrSessionActive     = errors.New("a cooking session is already active")
	ErrNoActiveSession   = errors.New("no active cooking session")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrInvalidStep       = errors.New("invalid step index")
	ErrNoTimer           = errors.New("step has no timer")
)

// Chat errors
var (
	ErrConversationClosed = errors.New("conversation is closed")
	ErrMessageNotFound    = errors.New("message not found")
	ErrEmptyMessage       = errors.New("message body is empty")
)

// Generic backend errors
var (
	ErrNotFound   = errors.New("resource not found")
	ErrRejected   = errors.New("request rejected by server")
	ErrServerFail = errors.New("server error")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code onto the matching sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusConflict:
		return ErrSessionActive
	case e.StatusCode >= 500:
		return ErrServerFail
	default:
		return ErrRejected
	}
}

// UserMessage returns a human readable message for a toast.
func UserMessage(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, ErrNetwork):
		return "Network error, please check your connection"
	case errors.Is(err, ErrSessionInvalidated), errors.Is(err, ErrUnauthorized):
		return "Your session has expired, please log in again"
	default:
		return err.Error()
	}
}
