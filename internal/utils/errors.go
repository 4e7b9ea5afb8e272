// Package utils provides the logger and the structured error types used
// across the scraper. Errors carry a code that drives skip/retry decisions.
package utils

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrorCode categorizes a failure for propagation policy: page-local codes
// cause the page to be skipped, network codes drive the retry policy, and
// filesystem codes are recorded per download.
type ErrorCode string

const (
	// Extraction related errors
	ErrCodeNormalization        ErrorCode = "NORMALIZATION_ERROR"
	ErrCodeUnbalancedDelimiter  ErrorCode = "UNBALANCED_DELIMITER"
	ErrCodeExtractionFailed     ErrorCode = "EXTRACTION_FAILED"
	ErrCodePaginationInconsist  ErrorCode = "PAGINATION_INCONSISTENT"

	// Network related errors
	ErrCodeNetworkTransient ErrorCode = "NETWORK_TRANSIENT"
	ErrCodeNetworkPermanent ErrorCode = "NETWORK_PERMANENT"

	// Output related errors
	ErrCodeFilesystem ErrorCode = "FILESYSTEM_ERROR"

	// Configuration related errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

// StructuredError is an error with a code, an optional cause and contextual
// key/value pairs for diagnosis.
type StructuredError struct {
	Code      ErrorCode
	Message   string
	Cause     error
	Context   map[string]interface{}
	Timestamp time.Time
	Retryable bool
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *StructuredError) Unwrap() error { return e.Cause }

// Is matches against another StructuredError by code.
func (e *StructuredError) Is(target error) bool {
	if se, ok := target.(*StructuredError); ok {
		return e.Code == se.Code
	}
	return false
}

// WithContext attaches a contextual value to the error.
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewError creates a structured error with the given code.
func NewError(code ErrorCode, message string) *StructuredError {
	return &StructuredError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Retryable: code == ErrCodeNetworkTransient,
	}
}

// WrapError wraps a cause in a structured error.
func WrapError(err error, code ErrorCode, message string) *StructuredError {
	se := NewError(code, message)
	se.Cause = err
	return se
}

// CodeOf returns the code of a structured error in the chain, or "" when
// none is present.
func CodeOf(err error) ErrorCode {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsRetryableError reports whether an error should be retried. Structured
// errors decide by their Retryable flag; plain errors are matched against
// common transient network failure patterns.
func IsRetryableError(err error) bool {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Retryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"503 service unavailable",
		"502 bad gateway",
		"504 gateway timeout",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// RetryableStatusCode reports whether an HTTP status code warrants a retry.
// Server errors and 429 are transient; other 4xx codes are permanent.
func RetryableStatusCode(statusCode int) bool {
	return statusCode == 429 || statusCode >= 500
}
