package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes a rejected action
type Kind string

const (
	KindNotFound      Kind = "NOT_FOUND"
	KindForbidden     Kind = "FORBIDDEN"
	KindNotScheduled  Kind = "NOT_SCHEDULED"
	KindUnavailable   Kind = "UNAVAILABLE"
	KindUnknownMove   Kind = "UNKNOWN_MOVE"
	KindInvalidFormat Kind = "INVALID_FORMAT"
	KindConflict      Kind = "CONFLICT"
)

// Sentinels for errors.Is checks against a kind
var (
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrForbidden     = &Error{Kind: KindForbidden}
	ErrNotScheduled  = &Error{Kind: KindNotScheduled}
	ErrUnavailable   = &Error{Kind: KindUnavailable}
	ErrUnknownMove   = &Error{Kind: KindUnknownMove}
	ErrInvalidFormat = &Error{Kind: KindInvalidFormat}
	ErrConflict      = &Error{Kind: KindConflict}
)

// Error is a categorized failure carrying a short reason fit for the driver page
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New creates a categorized error
func New(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultReasons[e.Kind]
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, errs.ErrConflict) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var defaultReasons = map[Kind]string{
	KindNotFound:      "Driver not found",
	KindForbidden:     "Driver is suspended or banned",
	KindNotScheduled:  "Driver is not set as working today by dispatch",
	KindUnavailable:   "Upstream service unavailable, please report this",
	KindUnknownMove:   "Move not found in open move log",
	KindInvalidFormat: "Driver ID doesn't match format.",
	KindConflict:      "Move can't be assigned to this driver",
}

// KindOf returns the kind of the first categorized error in the chain
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Reason returns the human-readable reason shown to the operator
func Reason(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Some strange error, please report this"
	}
	if e.Message != "" {
		return e.Message
	}
	return defaultReasons[e.Kind]
}

// HTTPStatus maps a categorized error to a response status
func HTTPStatus(err error) int {
	kind, ok := KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch kind {
	case KindInvalidFormat:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUnknownMove:
		return http.StatusUnprocessableEntity
	case KindNotScheduled, KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
