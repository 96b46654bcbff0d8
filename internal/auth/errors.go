package auth

import "errors"

var (
	// Store level.
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")

	// Session level. ErrInvalidCredentials covers both an unknown email and a
	// wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrTooManyAttempts    = errors.New("too many login attempts")

	// Gate level.
	ErrMissingToken = errors.New("missing session token")
	ErrInvalidToken = errors.New("invalid or expired token")

	ErrThrottleUnavailable = errors.New("login throttle unavailable")
)
