package errors

import (
	"errors"
	"fmt"
)

// Common error types for the collaboration server
var (
	// Token errors
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Gateway outcomes, surfaced to clients as 401 and 403
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// Identity handshake errors
	ErrInvalidState = errors.New("invalid state parameter")
	ErrInvalidNonce = errors.New("invalid nonce")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Outcome joins a gateway outcome with the error that caused it so both
// remain visible to errors.Is.
func Outcome(outcome, cause error) error {
	if cause == nil {
		return outcome
	}
	return fmt.Errorf("%w: %w", outcome, cause)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
