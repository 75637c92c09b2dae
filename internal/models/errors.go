package models

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents malformed or oversized input (400)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeOrigin represents requests from a disallowed origin (403)
	ErrorTypeOrigin ErrorType = "origin"
	// ErrorTypeAgent represents an unknown advisory agent type (400)
	ErrorTypeAgent ErrorType = "agent"
	// ErrorTypeRateLimit represents request-count quota exhaustion (429)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCostLimit represents monetary quota exhaustion (429)
	ErrorTypeCostLimit ErrorType = "cost_limit"
	// ErrorTypeOverload represents a saturated concurrency class (503)
	ErrorTypeOverload ErrorType = "overload"
	// ErrorTypeTimeout represents a task exceeding its class deadline (504)
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeStoreUnavailable represents an unreachable durable store (503)
	ErrorTypeStoreUnavailable ErrorType = "store_unavailable"
	// ErrorTypeInternal represents internal server errors (500)
	ErrorTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitzero"`
	StatusCode int       `json:"-"`
	Retryable  bool      `json:"retryable"`
	RetryAfter int       `json:"retry_after_seconds,omitzero"`
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

// GetStatusCode returns the HTTP status code for the error
func (e *AppError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeValidation, ErrorTypeAgent:
		return http.StatusBadRequest
	case ErrorTypeOrigin:
		return http.StatusForbidden
	case ErrorTypeRateLimit, ErrorTypeCostLimit:
		return http.StatusTooManyRequests
	case ErrorTypeOverload, ErrorTypeStoreUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewOriginError creates a disallowed-origin error
func NewOriginError(origin string) *AppError {
	return &AppError{
		Type:       ErrorTypeOrigin,
		Message:    fmt.Sprintf("origin %q is not allowed", origin),
		Code:       "ORIGIN_NOT_ALLOWED",
		StatusCode: http.StatusForbidden,
		Retryable:  false,
	}
}

// NewAgentError creates an unknown-agent-type error
func NewAgentError(agentType string) *AppError {
	return &AppError{
		Type:       ErrorTypeAgent,
		Message:    fmt.Sprintf("unknown agent type %q", agentType),
		Code:       "UNKNOWN_AGENT_TYPE",
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
	}
}

// NewQuotaError creates a quota-exhaustion error tagged with the window
// family that rejected the reservation. The metric decides whether this
// surfaces as rate_limit (request count) or cost_limit (monetary).
func NewQuotaError(metric QuotaMetric, window WindowKind, retryAfter int) *AppError {
	errType := ErrorTypeRateLimit
	code := "RATE_LIMIT_EXCEEDED"
	if metric == MetricCost {
		errType = ErrorTypeCostLimit
		code = "COST_LIMIT_EXCEEDED"
	}
	return &AppError{
		Type:       errType,
		Message:    fmt.Sprintf("%s quota exceeded for %s window", metric, window),
		Code:       code,
		StatusCode: http.StatusTooManyRequests,
		Retryable:  true,
		RetryAfter: retryAfter,
	}
}

// NewOverloadError creates a capacity error tagged with the operation class
func NewOverloadError(class string, retryAfter int) *AppError {
	return &AppError{
		Type:       ErrorTypeOverload,
		Message:    fmt.Sprintf("operation class %q is overloaded", class),
		Code:       "CAPACITY_EXCEEDED",
		StatusCode: http.StatusServiceUnavailable,
		Retryable:  true,
		RetryAfter: retryAfter,
	}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(operation string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTimeout,
		Message:    fmt.Sprintf("operation %s timed out", operation),
		Code:       "UPSTREAM_TIMEOUT",
		StatusCode: http.StatusGatewayTimeout,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewStoreUnavailableError creates a durable-store error
func NewStoreUnavailableError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeStoreUnavailable,
		Message:    "durable store unreachable",
		Code:       "STORE_UNAVAILABLE",
		StatusCode: http.StatusServiceUnavailable,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// SanitizeError sanitizes an error for external consumption
func SanitizeError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Type:       appErr.Type,
			Message:    appErr.Message,
			Code:       appErr.Code,
			StatusCode: appErr.GetStatusCode(),
			Retryable:  appErr.Retryable,
			RetryAfter: appErr.RetryAfter,
			// Don't expose internal cause
		}
	}

	return NewInternalError("an unexpected error occurred", err)
}
