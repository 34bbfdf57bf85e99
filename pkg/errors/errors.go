package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so cloned errors still match
// their predefined sentinel through errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound         = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrInvalidState     = New("INVALID_STATE", http.StatusConflict, "operation not permitted in the current state")
	ErrForbidden        = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized     = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrAlreadyExists    = New("ALREADY_EXISTS", http.StatusConflict, "resource already exists")
	ErrAlreadyMember    = New("ALREADY_MEMBER", http.StatusConflict, "user is already a member")
	ErrAlreadyRated     = New("ALREADY_RATED", http.StatusConflict, "rating already submitted")
	ErrValidation       = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrConflict         = New("CONFLICT", http.StatusConflict, "conflict")
	ErrInsufficientData = New("INSUFFICIENT_DATA", http.StatusUnprocessableEntity, "insufficient data")
	ErrInternal         = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss        = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrTooManyRequests  = New("TOO_MANY_REQUESTS", http.StatusTooManyRequests, "too many requests")

	// Membership specialisations.
	ErrFormatMismatch    = New("FORMAT_MISMATCH", http.StatusBadRequest, "operation does not match the event format")
	ErrOrganizerConflict = New("ORGANIZER_CONFLICT", http.StatusConflict, "organizers cannot take part as participants")
	ErrNotAMember        = New("NOT_A_MEMBER", http.StatusNotFound, "user is not a member of this event")
	ErrDuplicateTeamName = New("DUPLICATE_TEAM_NAME", http.StatusConflict, "team name already taken")
	ErrEmptyMembers      = New("EMPTY_MEMBERS", http.StatusBadRequest, "team requires at least one member")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Internal wraps an unexpected failure with a descriptive message.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}

// HasCode reports whether err is a typed error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
