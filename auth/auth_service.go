package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"

	errs "github.com/jrsteele09/go-session-authority/internal/errors"
	"github.com/jrsteele09/go-session-authority/sessions"
	"github.com/jrsteele09/go-session-authority/token"
	"github.com/jrsteele09/go-session-authority/users"
)

// Service is the session manager. It owns the login/logout/renewal state
// machine and the single-active-session invariant; password hashing, token
// signing and persistence are delegated to its collaborators.
//
// The service holds no mutable state of its own - all cross-request
// consistency is pushed into the sessions.Repo, so a Service is safe for
// concurrent use.
type Service struct {
	repo        sessions.Repo
	codec       *token.Codec
	tokenExpiry time.Duration
	expiryGrace bool
	nowTime     func() time.Time // nowTime function (injectable for testing)
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithExpiryGrace enables the one-shot expiry grace: the first resolution
// of an expired-but-otherwise-current token passes and marks the record so
// every later attempt is strict. Off by default (strict expiry).
func WithExpiryGrace() ServiceOption {
	return func(s *Service) {
		s.expiryGrace = true
	}
}

// NewService initializes a Service with its required dependencies.
func NewService(repo sessions.Repo, codec *token.Codec, tokenExpiry time.Duration, options ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[NewService] sessions repo is required")
	}
	if codec == nil {
		return nil, errors.New("[NewService] token codec is required")
	}
	if tokenExpiry <= 0 {
		return nil, errors.New("[NewService] token expiry must be positive")
	}

	service := &Service{
		repo:        repo,
		codec:       codec,
		tokenExpiry: tokenExpiry,
		nowTime:     time.Now,
	}

	for _, opt := range options {
		opt(service)
	}

	return service, nil
}

// Signup creates a new identity with an inactive session slot. The password
// is hashed before anything touches the store.
func (s *Service) Signup(ctx context.Context, username, password string, isSuperuser bool, role string) (*users.Identity, error) {
	passwordHash, err := users.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Signup] HashPassword")
	}
	if role == "" {
		role = users.DefaultRole
	}

	identity := users.Identity{
		Username:     username,
		PasswordHash: passwordHash,
		IsSuperuser:  isSuperuser,
		Role:         role,
		CreatedAt:    s.nowTime(),
	}

	if err := s.repo.Create(ctx, identity); err != nil {
		if errors.Is(err, sessions.ErrDuplicateUser) {
			return nil, errors.Wrap(ErrConflict, "[Service.Signup]")
		}
		return nil, storeErr("Service.Signup", err)
	}

	sanitized := identity.Sanitized()
	return &sanitized, nil
}

// Login verifies the credentials and, if the user has no active session,
// issues a fresh token and atomically binds it to the session slot. The
// token only becomes valid once the store write succeeds - a failed persist
// discards it.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	record, err := s.repo.Get(ctx, username)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return "", errors.Wrap(ErrInvalidCredentials, "[Service.Login]")
		}
		return "", storeErr("Service.Login", err)
	}

	if !users.CheckPasswordHash(password, record.User.PasswordHash) {
		return "", errors.Wrap(ErrInvalidCredentials, "[Service.Login]")
	}

	signedToken, err := s.codec.Issue(username, string(sessions.StatusActive), s.tokenExpiry)
	if err != nil {
		return "", errors.Wrap(err, "[Service.Login] codec.Issue")
	}

	// Activate is the store's compare-and-swap: of N concurrent logins for
	// one user, exactly one transitions the slot.
	if err := s.repo.Activate(ctx, username, signedToken); err != nil {
		switch {
		case errors.Is(err, sessions.ErrSessionActive):
			return "", errors.Wrap(ErrSessionConflict, "[Service.Login]")
		case errors.Is(err, sessions.ErrNotFound):
			return "", errors.Wrap(ErrInvalidCredentials, "[Service.Login]")
		default:
			return "", storeErr("Service.Login", err)
		}
	}

	return signedToken, nil
}

// ResolveCurrentUser is the authorization entry point used on every
// protected call. A token resolves only if its signature checks out, it has
// not expired (or the one-shot grace applies), and it is still the live
// record's current token with the record Active.
func (s *Service) ResolveCurrentUser(ctx context.Context, rawToken string) (*users.Identity, error) {
	claims, err := s.codec.Decode(rawToken)
	switch {
	case err == nil:
	case errors.Is(err, token.ErrExpired):
		claims, err = s.resolveExpired(ctx, rawToken)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrap(ErrUnauthenticated, "[Service.ResolveCurrentUser] "+err.Error())
	}

	record, err := s.repo.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return nil, errors.Wrap(ErrUserNotFound, "[Service.ResolveCurrentUser]")
		}
		return nil, storeErr("Service.ResolveCurrentUser", err)
	}

	if record.Status != sessions.StatusActive {
		return nil, errors.Wrap(ErrLoggedOut, "[Service.ResolveCurrentUser]")
	}
	if record.CurrentToken != rawToken {
		// A newer login or renewal has superseded this token.
		return nil, errors.Wrap(ErrUnauthenticated, "[Service.ResolveCurrentUser] token superseded")
	}

	identity := record.User.Sanitized()
	return &identity, nil
}

// resolveExpired applies the expiry policy to a token whose signature is
// unverified so far. With grace enabled the record's one-shot grace is
// consumed atomically in the store; the identity is provisional until the
// caller's live-record cross-check passes.
func (s *Service) resolveExpired(ctx context.Context, rawToken string) (*token.Claims, error) {
	if !s.expiryGrace {
		return nil, errors.Wrap(ErrUnauthenticated, "[Service.resolveExpired] token expired")
	}

	claims, err := s.codec.DecodeExpired(rawToken)
	if err != nil {
		return nil, errors.Wrap(ErrUnauthenticated, "[Service.resolveExpired] "+err.Error())
	}

	used, err := s.repo.UseGrace(ctx, claims.Subject, rawToken)
	if err != nil {
		return nil, storeErr("Service.resolveExpired", err)
	}
	if !used {
		return nil, errors.Wrap(ErrUnauthenticated, "[Service.resolveExpired] token expired")
	}

	return claims, nil
}

// Logout clears the session slot for an already-resolved identity. It is
// idempotent: logging out an inactive user succeeds and leaves the state
// Inactive. Any token issued before the call stops resolving immediately.
func (s *Service) Logout(ctx context.Context, identity *users.Identity) error {
	if err := s.repo.SetSession(ctx, identity.Username, "", sessions.StatusInactive); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return errors.Wrap(ErrNotFound, "[Service.Logout]")
		}
		return storeErr("Service.Logout", err)
	}
	return nil
}

// Renew issues a fresh token for an already-resolved identity and swaps it
// into the session slot, a sliding-expiry refresh. The caller holds the
// current session by definition, so neither the password nor the
// single-session invariant is re-checked. The previous token stops
// resolving the moment the swap lands.
func (s *Service) Renew(ctx context.Context, identity *users.Identity) (string, error) {
	signedToken, err := s.codec.Issue(identity.Username, string(sessions.StatusActive), s.tokenExpiry)
	if err != nil {
		return "", errors.Wrap(err, "[Service.Renew] codec.Issue")
	}

	if err := s.repo.SetSession(ctx, identity.Username, signedToken, sessions.StatusActive); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return "", errors.Wrap(ErrNotFound, "[Service.Renew]")
		}
		return "", storeErr("Service.Renew", err)
	}

	return signedToken, nil
}

// Me returns the stored identity for an already-resolved username.
func (s *Service) Me(ctx context.Context, username string) (*users.Identity, error) {
	record, err := s.repo.Get(ctx, username)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return nil, errors.Wrap(ErrNotFound, "[Service.Me]")
		}
		return nil, storeErr("Service.Me", err)
	}
	identity := record.User.Sanitized()
	return &identity, nil
}

// Users lists all identities, password hashes stripped.
func (s *Service) Users(ctx context.Context) ([]users.Identity, error) {
	identities, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeErr("Service.Users", err)
	}
	return identities, nil
}

// storeErr surfaces a backend failure as ErrStoreUnavailable while keeping
// the cause in the message. Store failures are fatal for the request; the
// core never retries.
func storeErr(op string, err error) error {
	return errs.Wrapf(ErrStoreUnavailable, "[%s] %v", op, err)
}
