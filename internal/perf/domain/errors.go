package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors that collaborators map their failures to. Callers can
// use errors.Is to branch on these without depending on the transport.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized: invalid or missing API token")
	ErrRateLimited  = errors.New("rate limited by performance API")
	ErrConflict     = errors.New("conflicting operation in progress")

	// ErrCancelled is returned when the operator declines a confirmation.
	ErrCancelled = errors.New("cancelled by operator")

	// ErrNoConfirm is returned when a destructive action is called without
	// a ConfirmFunc.
	ErrNoConfirm = errors.New("no confirmation function given")

	// ErrNoResults is returned when no load-test result has been fetched yet.
	ErrNoResults = errors.New("no load test results available")
)

// Violation is a single failed input constraint.
type Violation struct {
	Field   string
	Message string
}

// ValidationError reports every constraint an operator input failed.
type ValidationError struct {
	Op         string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return fmt.Sprintf("%s: invalid input: %s", e.Op, strings.Join(parts, "; "))
}

// Fields returns the names of the failing fields in report order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		fields[i] = v.Field
	}
	return fields
}

// Has reports whether field is among the violations.
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// Validator accumulates violations for a single operation.
type Validator struct {
	op         string
	violations []Violation
}

// NewValidator starts collecting violations for op.
func NewValidator(op string) *Validator {
	return &Validator{op: op}
}

// Check records a violation for field when ok is false.
func (v *Validator) Check(ok bool, field, format string, args ...any) {
	if ok {
		return
	}
	v.violations = append(v.violations, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Err returns a *ValidationError if any check failed, else nil.
func (v *Validator) Err() error {
	if len(v.violations) == 0 {
		return nil
	}
	return &ValidationError{Op: v.op, Violations: v.violations}
}

// TransportError wraps a network or stream failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is returned when the collaborator answered with a failure
// status.
type ServerError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.Status, msg)
}

// HTTPStatus returns the response status code.
func (e *ServerError) HTTPStatus() int { return e.Status }

// Unwrap maps well-known statuses to the package sentinels.
func (e *ServerError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusConflict:
		return ErrConflict
	}
	return nil
}

// ParseError reports a stream payload that could not be decoded.
type ParseError struct {
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	payload := e.Payload
	if len(payload) > 120 {
		payload = payload[:120] + "..."
	}
	return fmt.Sprintf("stream: malformed payload %q: %v", payload, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
