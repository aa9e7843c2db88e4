package core

import "errors"

// Authentication outcomes surfaced to callers.
var (
	ErrValidation            = errors.New("validation failed")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrNotFound              = errors.New("account not found")
	ErrSignatureInvalid      = errors.New("invalid signature")
	ErrDuplicateRegistration = errors.New("account already registered")
	ErrStorage               = errors.New("storage unavailable")
)

// Session token errors.
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenRevoked = errors.New("token has been revoked")
	ErrInvalidToken = errors.New("invalid token")
)

// Store-level conflicts. The service translates these into the outcomes above.
var (
	// ErrStaleNonce is returned when a compare-and-set finds a different nonce
	// than the one the caller verified.
	ErrStaleNonce = errors.New("nonce changed concurrently")

	// ErrAccountExists is returned when a write would break a uniqueness constraint.
	ErrAccountExists = errors.New("account violates a uniqueness constraint")
)
