package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	apperrors "github.com/kbukum/intentflow/errors"
)

// classifyStatus turns a non-2xx response into an AppError.
func classifyStatus(service string, status int, body []byte) *apperrors.AppError {
	if remote := remoteError(status, body); remote != nil {
		return remote
	}
	cause := fmt.Errorf("HTTP %d", status)
	var appErr *apperrors.AppError
	switch {
	case status == http.StatusPaymentRequired:
		appErr = apperrors.InsufficientFunds("")
	case status == http.StatusTooManyRequests:
		appErr = apperrors.RateLimited()
	case status == http.StatusServiceUnavailable:
		appErr = apperrors.ServiceUnavailable(service)
	case status == http.StatusGatewayTimeout:
		appErr = apperrors.Timeout(service)
	case status == http.StatusRequestTimeout:
		appErr = apperrors.Timeout(service).AsRetryable(false)
	case status >= 500:
		appErr = apperrors.ExternalServiceError(service, cause)
	default:
		appErr = apperrors.ExternalServiceError(service, cause).AsRetryable(false)
	}
	return appErr.WithDetail("status", status)
}

// remoteError decodes an intentflow error envelope. The code is kept, but
// retryability still follows the status class so a misbehaving service
// cannot make a 4xx retry.
func remoteError(status int, body []byte) *apperrors.AppError {
	var env apperrors.ErrorResponse
	if len(body) == 0 || json.Unmarshal(body, &env) != nil || env.Error.Code == "" {
		return nil
	}
	retryable := env.Error.Retryable && (status == http.StatusTooManyRequests || status >= 500)
	appErr := apperrors.OperationFailed(env.Error.Code, env.Error.Message, retryable)
	if len(env.Error.Details) > 0 {
		appErr.WithDetails(env.Error.Details)
	}
	return appErr.WithDetail("status", status)
}

// classifyTransport turns a failed round trip into an error. When the
// caller's context ended its error is returned as is so the engine can tell
// cancellation apart; the per-call timeout is a retryable TIMEOUT.
func classifyTransport(parent, call context.Context, service string, err error) error {
	if ctxErr := parent.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if call.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.Timeout(service).WithCause(err)
	}
	return apperrors.ConnectionFailed(service).WithCause(err)
}
