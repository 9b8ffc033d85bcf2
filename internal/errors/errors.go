package errors

import (
	"errors"
	"fmt"
)

// Common error types for the auth server. Messages that travel over the wire
// are kept verbatim from the original API responses.
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("Sorry, wrong email or password")
	ErrAlreadyLoggedIn    = errors.New("Already logged in !")
	ErrAccountInactive    = errors.New("account is not active")

	// Token errors
	ErrInvalidSignature = errors.New("invalid signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidToken     = errors.New("invalid token")

	// Session errors
	ErrSessionExpired = errors.New("Session expired or has been closed by the user")

	// Account errors
	ErrEmailTaken   = errors.New("Email already in use.")
	ErrWeakPassword = errors.New("password does not meet complexity requirements")
	ErrUserNotFound = errors.New("User not found.")

	// Request errors
	ErrInvalidPayload = errors.New("invalid payload")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("too many requests")

	// General errors
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
