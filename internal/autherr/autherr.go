// Package autherr defines the typed error set returned by the auth core.
// Every failure carries an HTTP-equivalent status, a stable machine code and
// a human-readable message. Handlers translate them at the edge; nothing in
// the core retries on them.
package autherr

import (
	"fmt"
	"net/http"
)

type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches on the stable code so errors.Is works across instances that
// differ only in message (e.g. "2 attempts remaining" vs "1 attempt remaining").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidCredentials = &Error{http.StatusUnauthorized, "invalid_credentials", "invalid email or password"}
	ErrAccountLocked      = &Error{http.StatusLocked, "account_locked", "account is locked"}
	ErrTooManySessions    = &Error{http.StatusForbidden, "too_many_sessions", "maximum number of active sessions reached"}
	ErrTokenNotFound      = &Error{http.StatusNotFound, "token_not_found", "token not found"}
	ErrTokenInvalid       = &Error{http.StatusUnauthorized, "token_invalid", "token is expired or invalid"}
	ErrUserNotFound       = &Error{http.StatusNotFound, "user_not_found", "user not found"}
	ErrRoleNotFound       = &Error{http.StatusNotFound, "role_not_found", "role not found"}
	ErrEmailTaken         = &Error{http.StatusConflict, "email_taken", "email already taken"}
	ErrUnauthorized       = &Error{http.StatusUnauthorized, "unauthorized", "missing or invalid access token"}
	ErrForbidden          = &Error{http.StatusForbidden, "forbidden", "not enough rights"}
)

// WithMessage clones a sentinel with a specific message, keeping its code and
// status so errors.Is against the sentinel still succeeds.
func WithMessage(base *Error, format string, args ...any) *Error {
	return &Error{Status: base.Status, Code: base.Code, Message: fmt.Sprintf(format, args...)}
}
