package auth

import (
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-session-authority/users"
)

// RequireSuperuser passes the identity through if it carries the superuser
// flag, otherwise fails with ErrForbidden.
func RequireSuperuser(identity *users.Identity) (*users.Identity, error) {
	if identity == nil || !identity.IsSuperuser {
		return nil, errors.Wrap(ErrForbidden, "[RequireSuperuser]")
	}
	return identity, nil
}

// RequireRole passes the identity through if it has the given role.
// Superusers pass any role check.
func RequireRole(identity *users.Identity, role string) (*users.Identity, error) {
	if identity == nil {
		return nil, errors.Wrap(ErrForbidden, "[RequireRole]")
	}
	if identity.IsSuperuser || identity.Role == role {
		return identity, nil
	}
	return nil, errors.Wrap(ErrForbidden, "[RequireRole]")
}
