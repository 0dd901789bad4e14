package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether email or password failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrCoopMissing        = errors.New("coop missing")
	ErrSignupDisabled     = errors.New("signup disabled")
	ErrUserDisabled       = errors.New("user disabled")
	ErrTokenExpired       = errors.New("token expired")

	// ErrAuthenticationFailure covers a webhook whose signature or client id
	// does not match. The whole request is rejected, nothing is written.
	ErrAuthenticationFailure = errors.New("webhook authentication failure")
	// ErrUnresolvableWebhook is returned when a decision references a user or
	// session this service does not know.
	ErrUnresolvableWebhook = errors.New("unresolvable webhook")
	// ErrProviderUnavailable wraps any transport failure or non-2xx answer
	// from the verification provider.
	ErrProviderUnavailable = errors.New("verification provider unavailable")
	// ErrDuplicateNotification marks a replayed decision. Callers treat it as success.
	ErrDuplicateNotification = errors.New("duplicate notification")
)
