package auth

import (
	"errors"
	"fmt"
)

// The error taxonomy of the session core. Every operation returns one of
// these (possibly wrapped with context); the API layer maps them to
// transport status codes and nothing below it ever touches HTTP.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionConflict    = errors.New("user already has an active session")
	ErrUnauthenticated    = errors.New("could not validate credentials")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrConflict           = errors.New("username already taken")
	ErrNotFound           = errors.New("user not found")
	ErrStoreUnavailable   = errors.New("session store unavailable")
)

// Unauthenticated sub-cases. Both match ErrUnauthenticated with errors.Is;
// they exist so callers can tell an unknown subject from a logged-out one.
var (
	ErrUserNotFound = fmt.Errorf("user not found: %w", ErrUnauthenticated)
	ErrLoggedOut    = fmt.Errorf("user is logged out: %w", ErrUnauthenticated)
)
