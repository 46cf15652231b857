package service

import "errors"

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrEmailAlreadyRegistered = errors.New("email already registered")

	// ErrInvalidCredentials is deliberately generic: it never distinguishes an
	// unknown identity from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrAccountUnverified  = errors.New("email not verified")

	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionNotFound = errors.New("session not found")

	ErrMFARequired      = errors.New("mfa required")
	ErrInvalidMFACode   = errors.New("invalid mfa code")
	ErrMFANotConfigured = errors.New("mfa not configured")

	ErrUserNotFound = errors.New("user not found")

	ErrPermissionDenied = errors.New("permission denied")
	ErrScopeDenied      = errors.New("permission scope denied")
)
