package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind discriminates the failure classes surfaced by the orchestrator
type ErrorKind string

const (
	// ErrorKindConfiguration represents a missing provider credential or model (detected at resolution time)
	ErrorKindConfiguration ErrorKind = "configuration"
	// ErrorKindTimeout represents a vendor call that exceeded its budget (408)
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindVendor represents an error status or empty/unparseable content from a vendor
	ErrorKindVendor ErrorKind = "vendor"
	// ErrorKindRateLimit represents caller-side throttling (429)
	ErrorKindRateLimit ErrorKind = "rate_limit"
	// ErrorKindExhausted represents a failover chain that finished without success
	ErrorKindExhausted ErrorKind = "exhausted"
	// ErrorKindValidation represents a malformed request (400)
	ErrorKindValidation ErrorKind = "validation"
	// ErrorKindUnauthorized represents a missing or invalid session token (401)
	ErrorKindUnauthorized ErrorKind = "unauthorized"
	// ErrorKindInternal represents anything else (500)
	ErrorKindInternal ErrorKind = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitzero"`
	Provider   string    `json:"provider,omitzero"`
	StatusCode int       `json:"-"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether the error is retryable
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// GetStatusCode returns the HTTP status code for the error
func (e *AppError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}

	switch e.Kind {
	case ErrorKindValidation:
		return http.StatusBadRequest
	case ErrorKindTimeout:
		return http.StatusRequestTimeout
	case ErrorKindRateLimit:
		return http.StatusTooManyRequests
	case ErrorKindVendor:
		return http.StatusBadGateway
	case ErrorKindExhausted:
		return http.StatusServiceUnavailable
	case ErrorKindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string, cause error) *AppError {
	return &AppError{
		Kind:       ErrorKindConfiguration,
		Message:    message,
		Code:       "PROVIDER_NOT_CONFIGURED",
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewTimeoutError creates a timeout error carrying a 408-equivalent status
func NewTimeoutError(message string, cause error) *AppError {
	return &AppError{
		Kind:       ErrorKindTimeout,
		Message:    message,
		Code:       "REQUEST_TIMEOUT",
		StatusCode: http.StatusRequestTimeout,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewVendorError creates a vendor error
func NewVendorError(provider, message string, cause error) *AppError {
	return &AppError{
		Kind:       ErrorKindVendor,
		Message:    fmt.Sprintf("provider %s error: %s", provider, message),
		Code:       "VENDOR_ERROR",
		Provider:   provider,
		StatusCode: http.StatusBadGateway,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(key string) *AppError {
	return &AppError{
		Kind:       ErrorKindRateLimit,
		Message:    fmt.Sprintf("rate limit exceeded for %s", key),
		Code:       "RATE_LIMIT_EXCEEDED",
		StatusCode: http.StatusTooManyRequests,
		Retryable:  true,
	}
}

// NewExhaustedError creates the terminal error of a failover chain
func NewExhaustedError(tried int, cause error) *AppError {
	return &AppError{
		Kind:       ErrorKindExhausted,
		Message:    fmt.Sprintf("all %d providers failed", tried),
		Code:       "ALL_PROVIDERS_EXHAUSTED",
		StatusCode: http.StatusServiceUnavailable,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Kind:       ErrorKindValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewUnauthorizedError creates an authentication error
func NewUnauthorizedError(message string, cause error) *AppError {
	return &AppError{
		Kind:       ErrorKindUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		StatusCode: http.StatusUnauthorized,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Kind:       ErrorKindInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// KindOf returns the kind of the first AppError in err's chain, or internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ErrorKindInternal
}

// userMessages holds the small set of messages safe to show to patients.
var userMessages = map[ErrorKind]string{
	ErrorKindConfiguration: "The AI assistant is not available right now. Please try again later.",
	ErrorKindTimeout:       "The AI assistant took too long to respond. Please try again.",
	ErrorKindVendor:        "The AI assistant returned an unexpected response. Please try again.",
	ErrorKindRateLimit:     "Too many requests. Please wait a moment before trying again.",
	ErrorKindExhausted:     "All AI services are temporarily unavailable. Please try again shortly.",
	ErrorKindValidation:    "The request was invalid. Please check your input.",
	ErrorKindUnauthorized:  "Please sign in again to continue.",
	ErrorKindInternal:      "Something went wrong. Please try again.",
}

// UserMessage maps an error kind to a user-facing message
func UserMessage(kind ErrorKind) string {
	if msg, ok := userMessages[kind]; ok {
		return msg
	}
	return userMessages[ErrorKindInternal]
}

// SanitizeError sanitizes an error for external consumption
func SanitizeError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		msg := appErr.Message
		if appErr.Kind != ErrorKindValidation && appErr.Kind != ErrorKindUnauthorized {
			msg = UserMessage(appErr.Kind)
		}
		return &AppError{
			Kind:       appErr.Kind,
			Message:    msg,
			Code:       appErr.Code,
			StatusCode: appErr.GetStatusCode(),
			Retryable:  appErr.Retryable,
		}
	}

	return &AppError{
		Kind:       ErrorKindInternal,
		Message:    UserMessage(ErrorKindInternal),
		StatusCode: http.StatusInternalServerError,
	}
}
