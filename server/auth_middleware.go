package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-session-authority/auth"
	"github.com/jrsteele09/go-session-authority/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyIdentity stores the resolved identity of the caller
const ContextKeyIdentity ContextKey = "identity"

// RequireAuth is middleware that resolves the Bearer token into an identity
// through the session core and injects it into the request context.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rawToken, ok := bearerToken(r)
			if !ok {
				writeError(w, auth.ErrUnauthenticated)
				return
			}

			identity, err := s.auth.ResolveCurrentUser(r.Context(), rawToken)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireSuperuser is middleware gating a route on the superuser flag.
// Must be chained after RequireAuth.
func (s *Server) RequireSuperuser() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if _, err := auth.RequireSuperuser(IdentityFromContext(r.Context())); err != nil {
				writeError(w, err)
				return
			}
			next(w, r)
		}
	}
}

// IdentityFromContext returns the identity injected by RequireAuth, or nil.
func IdentityFromContext(ctx context.Context) *users.Identity {
	identity, _ := ctx.Value(ContextKeyIdentity).(*users.Identity)
	return identity
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
