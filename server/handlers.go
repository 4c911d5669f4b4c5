package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-authority/auth"
	"github.com/jrsteele09/go-session-authority/users"
)

type signupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	IsSuperuser bool   `json:"is_superuser"`
	Role        string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Message     string `json:"message,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, messageResponse{Message: "This is an open endpoint."})
	}
}

func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorDetail(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username == "" {
			writeErrorDetail(w, http.StatusBadRequest, "username is required")
			return
		}
		if err := users.ValidatePasswordStrength(req.Password); err != nil {
			writeErrorDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		identity, err := s.auth.Signup(r.Context(), req.Username, req.Password, req.IsSuperuser, req.Role)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, identity)
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorDetail(w, http.StatusBadRequest, "invalid request body")
			return
		}

		accessToken, err := s.auth.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: accessToken, TokenType: "bearer"})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Logout(r.Context(), IdentityFromContext(r.Context())); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
	}
}

func (s *Server) RenewTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessToken, err := s.auth.Renew(r.Context(), IdentityFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: accessToken, TokenType: "bearer", Message: "Token renewed"})
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.auth.Me(r.Context(), IdentityFromContext(r.Context()).Username)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, identity)
	}
}

func (s *Server) AllUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identities, err := s.auth.Users(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, identities)
	}
}

func (s *Server) ProtectedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, messageResponse{Message: "This is a protected endpoint."})
	}
}

func (s *Server) SuperProtectedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, messageResponse{Message: "This is a super-protected endpoint."})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeError maps the core's error taxonomy to status codes. The response
// carries the canonical sentinel message, never the wrapped internals.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeErrorDetail(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrUserNotFound):
		writeErrorDetail(w, http.StatusUnauthorized, "user not found")
	case errors.Is(err, auth.ErrLoggedOut):
		writeErrorDetail(w, http.StatusUnauthorized, "user is logged out")
	case errors.Is(err, auth.ErrUnauthenticated):
		writeErrorDetail(w, http.StatusUnauthorized, auth.ErrUnauthenticated.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeErrorDetail(w, http.StatusForbidden, auth.ErrForbidden.Error())
	case errors.Is(err, auth.ErrSessionConflict):
		writeErrorDetail(w, http.StatusConflict, auth.ErrSessionConflict.Error())
	case errors.Is(err, auth.ErrConflict):
		writeErrorDetail(w, http.StatusConflict, auth.ErrConflict.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeErrorDetail(w, http.StatusNotFound, auth.ErrNotFound.Error())
	case errors.Is(err, auth.ErrStoreUnavailable):
		log.Err(err).Msg("session store failure")
		writeErrorDetail(w, http.StatusServiceUnavailable, auth.ErrStoreUnavailable.Error())
	default:
		log.Err(err).Msg("unhandled error")
		writeErrorDetail(w, http.StatusInternalServerError, "internal error")
	}
}
