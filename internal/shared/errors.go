package shared

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("already exists")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// SafeError is implemented by errors whose message may be shown to users.
type SafeError interface {
	error
	SafeMessage() string
}

// UserSafeMessage returns a message that can be flashed to the user without
// leaking internals. Unknown errors collapse to a generic message.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var safe SafeError
	if errors.As(err, &safe) {
		return safe.SafeMessage()
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "Not found!"
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password!"
	case errors.Is(err, ErrDuplicate):
		return "Already exists!"
	case errors.Is(err, ErrCSRFTokenMissing), errors.Is(err, ErrCSRFTokenMismatch):
		return "Your form expired, please try again."
	}
	return "Something went wrong, please try again."
}

// SafeMessagef marks msg as displayable while keeping err for errors.Is.
func SafeMessagef(err error, msg string) error {
	return &safeError{err: err, msg: strings.TrimSpace(msg)}
}

type safeError struct {
	err error
	msg string
}

func (e *safeError) Error() string       { return e.err.Error() }
func (e *safeError) Unwrap() error       { return e.err }
func (e *safeError) SafeMessage() string { return e.msg }
