package knowledge

import (
	"errors"
	"fmt"
)

// MissingQueryMessage is returned to callers that omit the query
const MissingQueryMessage = "missing query parameter"

// ErrMissingQuery reports a blank or absent query
var ErrMissingQuery = errors.New(MissingQueryMessage)

// Reasons a leg contributed nothing
const (
	ReasonTransport   = "transport"
	ReasonStatusCode  = "status_code"
	ReasonNestedData  = "nested_data"
	ReasonInvalidData = "invalid_data"
)

// BackendFormatError reports a backend response that is not a JSON object.
// It fails the whole invocation.
type BackendFormatError struct {
	Leg  Leg
	Body string
	Err  error
}

func (e *BackendFormatError) Error() string {
	return fmt.Sprintf("backend returned malformed response on %s leg: %v", e.Leg, e.Err)
}

func (e *BackendFormatError) Unwrap() error {
	return e.Err
}

// LegDegradedError records why a leg was treated as empty. It is logged and
// never returned to callers.
type LegDegradedError struct {
	Leg    Leg
	Reason string
	Err    error
}

func (e *LegDegradedError) Error() string {
	return fmt.Sprintf("%s leg degraded (%s): %v", e.Leg, e.Reason, e.Err)
}

func (e *LegDegradedError) Unwrap() error {
	return e.Err
}

// StatusError carries a backend status code other than zero, as sent
type StatusError struct {
	Code      string
	Message   string
	RequestID string
}

func (e *StatusError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("backend status code %s: %s (request_id=%s)", e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("backend status code %s: %s", e.Code, e.Message)
}

// IsBackendFormatError reports whether err wraps a BackendFormatError
func IsBackendFormatError(err error) bool {
	var target *BackendFormatError
	return errors.As(err, &target)
}
