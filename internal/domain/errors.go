package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of a router error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeAuthentication indicates a missing or rejected backend
	// credential.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypeBackendUnavailable indicates the text-generation backend
	// could not be reached or returned a non-2xx response.
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"

	// ErrorTypeMalformedReply indicates the backend reply could not be
	// parsed into the expected schema.
	ErrorTypeMalformedReply ErrorType = "malformed_reply"

	// ErrorTypeConfiguration indicates a catalog document failed to parse
	// at the whole-document level.
	ErrorTypeConfiguration ErrorType = "configuration"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"
)

// APIError is the canonical error returned by backends and adapters and
// translated to an HTTP response by the transport layer.
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`

	// StatusCode is the suggested HTTP status code.
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeBackendUnavailable:
		return http.StatusBadGateway
	case ErrorTypeMalformedReply:
		return http.StatusBadGateway
	case ErrorTypeConfiguration, ErrorTypeServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrAuthentication creates an authentication error.
func ErrAuthentication(message string) *APIError {
	return NewAPIError(ErrorTypeAuthentication, message)
}

// ErrBackendUnavailable creates a backend unavailable error.
func ErrBackendUnavailable(message string) *APIError {
	return NewAPIError(ErrorTypeBackendUnavailable, message)
}

// ErrMalformedReply creates a malformed reply error.
func ErrMalformedReply(message string) *APIError {
	return NewAPIError(ErrorTypeMalformedReply, message)
}

// ErrConfiguration creates a configuration error.
func ErrConfiguration(message string) *APIError {
	return NewAPIError(ErrorTypeConfiguration, message)
}

// ErrServer creates a server error.
func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}

// AsAPIError unwraps err to an *APIError if one is in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
