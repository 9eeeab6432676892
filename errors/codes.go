package errors

import "sort"

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Graph validation errors
const (
	// ErrCodeCycleDetected indicates the intent graph contains a dependency cycle.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"
	// ErrCodeDanglingReference indicates a node depends on or references an unknown node.
	ErrCodeDanglingReference ErrorCode = "DANGLING_REFERENCE"
	// ErrCodeGraphTooLarge indicates the graph exceeds the configured node limit.
	ErrCodeGraphTooLarge ErrorCode = "GRAPH_TOO_LARGE"
	// ErrCodeDuplicateNode indicates two nodes share an id.
	ErrCodeDuplicateNode ErrorCode = "DUPLICATE_NODE"
	// ErrCodeInvalidGraph indicates a structurally malformed node or condition.
	ErrCodeInvalidGraph ErrorCode = "INVALID_GRAPH"
)

// Operation errors
const (
	// ErrCodeUnsupportedIntentType indicates no handler is registered for an intent type.
	ErrCodeUnsupportedIntentType ErrorCode = "UNSUPPORTED_INTENT_TYPE"
	// ErrCodeInsufficientFunds indicates the operation was refused for lack of balance.
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	// ErrCodeUnresolvedReference indicates a parameter template could not be resolved.
	ErrCodeUnresolvedReference ErrorCode = "UNRESOLVED_REFERENCE"
	// ErrCodeExternalService indicates an error from the service behind a handler.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the downstream service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConnectionFailed indicates a failed connection to a downstream service.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeRateLimited indicates the caller was throttled.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Execution lifecycle errors
const (
	// ErrCodeTimeout indicates the execution deadline expired.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeCanceled indicates the execution was canceled.
	ErrCodeCanceled ErrorCode = "CANCELED"
)

// Request errors
const (
	// ErrCodeInvalidInput indicates the request input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeConflict indicates the request conflicts with current state.
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeForbidden indicates the caller lacks a required permission.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeTokenExpired indicates the bearer token has expired.
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	// ErrCodeInvalidToken indicates the bearer token is invalid.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeRateLimited:        true,
	ErrCodeTimeout:            true,
	ErrCodeExternalService:    true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

// RetryableCodes returns the codes that are retryable by default.
func RetryableCodes() []ErrorCode {
	codes := make([]ErrorCode, 0, len(retryableCodes))
	for c, ok := range retryableCodes {
		if ok {
			codes = append(codes, c)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
