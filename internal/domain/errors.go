package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrOrderNotFound         = errors.New("order not found")
	ErrGatewayNotConfigured  = errors.New("payment method unavailable")
	ErrPreferenceConflict    = errors.New("order already has a different gateway preference")
	ErrInvalidState          = errors.New("order is not in a payable state")
	ErrReconciliationSkipped = errors.New("reconciliation skipped")
	ErrTransientFailure      = errors.New("transient reconciliation failure")
)

type ValidationError struct {
	Field string
	Msg   string
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// GatewayError carries the upstream response of a failed gateway call.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same call could succeed. A 2xx
// status here means the body was malformed, which is worth another try.
func (e *GatewayError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode < 300
}
