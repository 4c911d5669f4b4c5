package sessions

import (
	"time"

	"github.com/jrsteele09/go-session-authority/users"
)

// Status is the lifecycle state of a user's single session slot.
type Status string

const (
	// StatusActive means the record is bound to exactly one live token.
	StatusActive Status = "active"
	// StatusInactive means no token is currently valid for the user.
	StatusInactive Status = "inactive"
)

// Record is the per-user session state. There is exactly one Record per
// identity; login overwrites it, never appends. The store is the source of
// truth for token validity - a signed token alone proves nothing.
type Record struct {
	User         users.Identity
	CurrentToken string // The one token that may currently resolve, empty when logged out
	Status       Status
	GraceUsed    bool // Whether the one-shot expiry grace has been consumed
	CreatedAt    time.Time
}
