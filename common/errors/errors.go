package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an error so callers can branch on it without parsing messages.
type Kind string

const (
	KindValidation           Kind = "validation_error"
	KindUnauthorized         Kind = "unauthorized"
	KindForbidden            Kind = "forbidden"
	KindNotFound             Kind = "not_found"
	KindInvalidTransition    Kind = "invalid_transition"
	KindBlockedByDiscrepancy Kind = "blocked_by_discrepancy"
	KindEditWindowExpired    Kind = "edit_window_expired"
	KindAlreadyResolved      Kind = "already_resolved"
	KindUnavailable          Kind = "unavailable"
)

var kindCodes = map[Kind]int{
	KindValidation:           http.StatusBadRequest,
	KindUnauthorized:         http.StatusUnauthorized,
	KindForbidden:            http.StatusForbidden,
	KindNotFound:             http.StatusNotFound,
	KindInvalidTransition:    http.StatusConflict,
	KindBlockedByDiscrepancy: http.StatusConflict,
	KindEditWindowExpired:    http.StatusForbidden,
	KindAlreadyResolved:      http.StatusConflict,
	KindUnavailable:          http.StatusServiceUnavailable,
}

// Error represents an application error
type Error struct {
	Kind    Kind   `json:"code"`
	Code    int    `json:"-"`
	Message string `json:"error"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so sentinels below
// work with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a new Error of the given kind.
func New(kind Kind, message string, err error) *Error {
	code, ok := kindCodes[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

func Forbidden(format string, args ...interface{}) *Error {
	return New(KindForbidden, fmt.Sprintf(format, args...), nil)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...), nil)
}

func InvalidTransition(format string, args ...interface{}) *Error {
	return New(KindInvalidTransition, fmt.Sprintf(format, args...), nil)
}

// BlockedByDiscrepancy is kept distinct from InvalidTransition: clients show
// a "resolve discrepancies first" prompt for it.
func BlockedByDiscrepancy(format string, args ...interface{}) *Error {
	return New(KindBlockedByDiscrepancy, fmt.Sprintf(format, args...), nil)
}

func EditWindowExpired(format string, args ...interface{}) *Error {
	return New(KindEditWindowExpired, fmt.Sprintf(format, args...), nil)
}

func AlreadyResolved(format string, args ...interface{}) *Error {
	return New(KindAlreadyResolved, fmt.Sprintf(format, args...), nil)
}

// WithDetails returns a copy of e carrying extra response data.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Unavailable wraps an infrastructure failure. These are safe to retry.
func Unavailable(message string, err error) *Error {
	return New(KindUnavailable, message, err)
}

// Sentinels for errors.Is checks
var (
	ErrValidation           = New(KindValidation, "Validation error", nil)
	ErrUnauthorized         = New(KindUnauthorized, "Unauthorized", nil)
	ErrForbidden            = New(KindForbidden, "Forbidden", nil)
	ErrNotFound             = New(KindNotFound, "Not found", nil)
	ErrInvalidTransition    = New(KindInvalidTransition, "Invalid status transition", nil)
	ErrBlockedByDiscrepancy = New(KindBlockedByDiscrepancy, "Blocked by unresolved discrepancy", nil)
	ErrEditWindowExpired    = New(KindEditWindowExpired, "Edit window expired", nil)
	ErrAlreadyResolved      = New(KindAlreadyResolved, "Discrepancy already resolved", nil)
	ErrUnavailable          = New(KindUnavailable, "Temporary failure, please retry", nil)
)

// From converts any error into an *Error. Unknown errors become unavailable
// so the caller sees a retryable failure instead of a leaked internal message.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Unavailable("Temporary failure, please retry", err)
}
