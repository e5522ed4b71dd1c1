package service

import "errors"

// Expected failures, mapped to 4xx responses by the controllers.
var (
	ErrEmailExists        = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenUsed          = errors.New("token has already been used")
)

// Internal failures. These should not occur in normal operation and are
// surfaced to callers as opaque server errors.
var (
	ErrStoreConflict      = errors.New("store conflict")
	ErrNotificationFailed = errors.New("failed to send notification")
)
