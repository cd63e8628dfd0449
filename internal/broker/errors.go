// Package broker adapts the SmartAPI client to the engine's broker ports
// and defines the error taxonomy the engine acts on.
package broker

import (
	"context"
	"errors"
	"fmt"

	"execution-systemv1/pkg/smartconnect"
)

// AuthError is fatal: session acquisition failed, no order may be placed.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%s): %s", e.Code, e.Message)
}

// OrderError captures a failed leg placement: an explicit broker rejection
// or a transport failure. Recorded per leg, never fatal to the execution.
type OrderError struct {
	Code    string
	Message string
	Network bool // transport/timeout rather than broker rejection
	Auth    bool // session invalid or expired mid-execution
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order failed (%s): %s", e.Code, e.Message)
}

// NormalizeOrderError converts any error from an order placement into the
// canonical OrderError shape for per-leg recording.
func NormalizeOrderError(err error) *OrderError {
	var ordErr *OrderError
	if errors.As(err, &ordErr) {
		return ordErr
	}
	var apiErr *smartconnect.APIError
	if errors.As(err, &apiErr) {
		return &OrderError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Auth:    apiErr.IsAuthError(),
		}
	}
	var trErr *smartconnect.TransportError
	if errors.As(err, &trErr) {
		return &OrderError{Code: "NETWORK", Message: trErr.Error(), Network: true}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &OrderError{Code: "TIMEOUT", Message: err.Error(), Network: true}
	}
	if errors.Is(err, context.Canceled) {
		return &OrderError{Code: "CANCELLED", Message: err.Error(), Network: true}
	}
	return &OrderError{Code: "UNKNOWN", Message: err.Error()}
}
