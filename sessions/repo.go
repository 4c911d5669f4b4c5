package sessions

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-session-authority/users"
)

// Errors returned by Repo implementations. The session manager translates
// these into its own taxonomy; anything else is treated as a store failure.
var (
	ErrNotFound      = errors.New("user not found")
	ErrDuplicateUser = errors.New("username already exists")
	ErrSessionActive = errors.New("session already active")
)

// Repo defines the storage contract for identities and their session
// records. Backend selection happens once at construction; no caller
// branches on backend type.
//
// Implementations must make Activate and UseGrace atomic against
// concurrent calls for the same username - they are the two
// read-modify-write transitions the session state machine relies on.
type Repo interface {
	// Get retrieves the session record for a username.
	Get(ctx context.Context, username string) (*Record, error)

	// Create stores a new identity with an Inactive session slot.
	// Fails with ErrDuplicateUser if the username is taken.
	Create(ctx context.Context, identity users.Identity) error

	// Activate atomically transitions the record from Inactive to Active,
	// binding it to the given token. Fails with ErrSessionActive if the
	// record is already Active, ErrNotFound if the identity is absent.
	Activate(ctx context.Context, username, token string) error

	// SetSession overwrites the record's token and status unconditionally
	// and resets the expiry grace. Fails with ErrNotFound if the identity
	// is absent.
	SetSession(ctx context.Context, username, token string, status Status) error

	// UseGrace consumes the record's one-shot expiry grace, provided the
	// given token is still the record's current token and the record is
	// Active. Returns true only for the call that consumed it.
	UseGrace(ctx context.Context, username, token string) (bool, error)

	// List returns all identities, password hashes stripped.
	List(ctx context.Context) ([]users.Identity, error)
}
