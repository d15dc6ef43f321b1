// Package apperr classifies failures so handlers can tell an unauthenticated
// caller from a forbidden one, a missing record from a store outage.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindUnauthorized    Kind = "unauthorized"
	KindNotFound        Kind = "not_found"
	KindInvalid         Kind = "invalid"
	KindConflict        Kind = "conflict"
	KindInternal        Kind = "internal"
)

// Error carries a Kind, a stable machine code and a caller-safe message.
// Err is kept for logs and errors.Is/As but never rendered to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Code: "UNAUTHENTICATED", Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Code: "FORBIDDEN", Message: msg}
}

// NotFound reports a missing entity, e.g. NotFound("consultation").
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: entity + " not found"}
}

func Invalid(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalid, Code: "VALIDATION_ERROR", Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Code: "CONFLICT", Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure. Errors that already carry a Kind
// are returned unchanged so a not-found from a repository stays not-found.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: op + " failed", Err: err}
}

// KindOf returns the Kind of err, KindInternal for unclassified errors and
// "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool        { return KindOf(err) == KindNotFound }
func IsUnauthorized(err error) bool    { return KindOf(err) == KindUnauthorized }
func IsUnauthenticated(err error) bool { return KindOf(err) == KindUnauthenticated }
func IsInvalid(err error) bool         { return KindOf(err) == KindInvalid }

var statusByKind = map[Kind]int{
	KindUnauthenticated: http.StatusUnauthorized,
	KindUnauthorized:    http.StatusForbidden,
	KindNotFound:        http.StatusNotFound,
	KindInvalid:         http.StatusBadRequest,
	KindConflict:        http.StatusConflict,
	KindInternal:        http.StatusInternalServerError,
}

// Body is the JSON error envelope returned to clients.
type Body struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToHTTP converts err into an *echo.HTTPError with a Body payload.
func ToHTTP(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	var ae *Error
	if !errors.As(err, &ae) {
		ae = &Error{Kind: KindInternal, Code: "INTERNAL", Message: "internal error", Err: err}
	}
	status := statusByKind[ae.Kind]
	msg := ae.Message
	if ae.Kind == KindInternal {
		msg = "internal error"
	}
	return echo.NewHTTPError(status, Body{
		Error:   string(ae.Kind),
		Code:    ae.Code,
		Message: msg,
	}).SetInternal(err)
}
