// Package apperr is the error taxonomy shared by the scheduling services and
// their HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindForbidden              Kind = "forbidden"
	KindSlotTaken              Kind = "slot_taken"
	KindAlreadyBlocked         Kind = "already_blocked"
	KindInvalidStatus          Kind = "invalid_status"
	KindDuplicateReview        Kind = "duplicate_review"
	KindNoCompletedAppointment Kind = "no_completed_appointment"
	KindValidation             Kind = "validation_error"
	KindInternal               Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the package-level sentinels work
// with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrForbidden              = &Error{Kind: KindForbidden}
	ErrSlotTaken              = &Error{Kind: KindSlotTaken}
	ErrAlreadyBlocked         = &Error{Kind: KindAlreadyBlocked}
	ErrInvalidStatus          = &Error{Kind: KindInvalidStatus}
	ErrDuplicateReview        = &Error{Kind: KindDuplicateReview}
	ErrNoCompletedAppointment = &Error{Kind: KindNoCompletedAppointment}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrInternal               = &Error{Kind: KindInternal}
)

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return New(KindForbidden, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func InvalidStatus(format string, args ...interface{}) *Error {
	return New(KindInvalidStatus, format, args...)
}

// Internal wraps a store or infrastructure failure. Errors that already carry
// a kind pass through untouched.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether the same call may succeed if repeated as-is.
func Retryable(err error) bool {
	return KindOf(err) == KindInternal
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindSlotTaken, KindAlreadyBlocked, KindDuplicateReview:
		return http.StatusConflict
	case KindInvalidStatus, KindValidation:
		return http.StatusBadRequest
	case KindNoCompletedAppointment:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// PublicMessage is the human-readable text safe to hand to a client.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return "internal server error"
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}
