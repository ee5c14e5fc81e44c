package churn

import (
	"fmt"
	"net/http"
)

// ErrorKind represents the category of a backend API error.
type ErrorKind string

const (
	// ErrorKindNetwork indicates the transport itself failed.
	ErrorKindNetwork ErrorKind = "network"

	// ErrorKindHTTP indicates the backend returned a non-success status.
	ErrorKindHTTP ErrorKind = "http"

	// ErrorKindDecode indicates the response body could not be decoded.
	ErrorKindDecode ErrorKind = "decode"
)

// APIError is the canonical error for all backend interactions. All three
// kinds surface identically on the dashboard as a dismissable error banner;
// none is retried automatically and none is fatal to the process.
type APIError struct {
	// Kind is the category of error.
	Kind ErrorKind `json:"kind"`

	// Status is the upstream HTTP status code, for ErrorKindHTTP.
	Status int `json:"status,omitempty"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Kind == ErrorKindHTTP {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the status code the dashboard surface should use
// when relaying this error.
func (e *APIError) HTTPStatusCode() int {
	switch e.Kind {
	case ErrorKindHTTP:
		if e.Status >= http.StatusInternalServerError {
			return http.StatusBadGateway
		}
		return e.Status
	default:
		return http.StatusBadGateway
	}
}

// ErrNetwork creates a transport failure error.
func ErrNetwork(err error) *APIError {
	return &APIError{Kind: ErrorKindNetwork, Message: err.Error(), Err: err}
}

// ErrHTTP creates a non-success status error. The body is included in the
// message to keep the upstream diagnostic visible.
func ErrHTTP(status int, body string) *APIError {
	return &APIError{Kind: ErrorKindHTTP, Status: status, Message: body}
}

// ErrDecode creates a malformed response error.
func ErrDecode(err error) *APIError {
	return &APIError{Kind: ErrorKindDecode, Message: err.Error(), Err: err}
}
