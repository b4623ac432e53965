// Package apperror defines the error kinds surfaced by the reservation
// service and helpers to classify wrapped errors.
package apperror

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindCapacityExceeded
	KindCodeGenerationExhausted
	KindNotFound
	KindForbidden
	KindAlreadyCancelled
	KindUnauthorized
	KindConstraintViolation
	KindStoreUnavailable
)

var kindNames = map[Kind]string{
	KindInternal:                "INTERNAL_ERROR",
	KindValidation:              "VALIDATION_ERROR",
	KindCapacityExceeded:        "CAPACITY_EXCEEDED",
	KindCodeGenerationExhausted: "CODE_GENERATION_EXHAUSTED",
	KindNotFound:                "NOT_FOUND",
	KindForbidden:               "FORBIDDEN",
	KindAlreadyCancelled:        "ALREADY_CANCELLED",
	KindUnauthorized:            "UNAUTHORIZED",
	KindConstraintViolation:     "CONSTRAINT_VIOLATION",
	KindStoreUnavailable:        "STORE_UNAVAILABLE",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindInternal]
}

// HTTPStatus maps a kind onto the response status the API uses for it.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindCapacityExceeded, KindAlreadyCancelled, KindConstraintViolation:
		return http.StatusConflict
	case KindCodeGenerationExhausted, KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a kind, a message safe to show to clients and the
// underlying cause, which is only ever logged.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(msg string) error { return New(KindValidation, msg) }

func NotFound(msg string) error { return New(KindNotFound, msg) }

// KindOf returns the kind of the outermost *Error in the chain, or
// KindInternal when err carries none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the text that may be echoed to a client. Internal
// errors never leak their cause.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal && appErr.Msg != "" {
		return appErr.Msg
	}
	return http.StatusText(KindOf(err).HTTPStatus())
}
