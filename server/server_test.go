package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-authority/auth"
	"github.com/jrsteele09/go-session-authority/internal/config"
	"github.com/jrsteele09/go-session-authority/server"
	"github.com/jrsteele09/go-session-authority/sessions/repofakes"
	"github.com/jrsteele09/go-session-authority/token"
)

const testPassword = "Password123"

func setupTestServer(t *testing.T) *server.Server {
	t.Helper()

	codec, err := token.New("test-signing-secret", "HS256")
	require.NoError(t, err)

	service, err := auth.NewService(repofakes.NewFakeSessionRepo(), codec, 5*time.Minute)
	require.NoError(t, err)

	return server.New(config.New(), service)
}

func doJSON(t *testing.T, s *server.Server, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	recorder := httptest.NewRecorder()
	s.ServeHTTP(recorder, req)
	return recorder
}

func signup(t *testing.T, s *server.Server, username string, superuser bool) {
	t.Helper()
	resp := doJSON(t, s, http.MethodPost, "/signup", "", map[string]any{
		"username": username, "password": testPassword, "is_superuser": superuser,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
}

func login(t *testing.T, s *server.Server, username string) string {
	t.Helper()
	resp := doJSON(t, s, http.MethodPost, "/login", "", map[string]any{
		"username": username, "password": testPassword,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, "bearer", body.TokenType)
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken
}

func TestSignupValidation(t *testing.T) {
	s := setupTestServer(t)

	resp := doJSON(t, s, http.MethodPost, "/signup", "", map[string]any{"username": "", "password": testPassword})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(t, s, http.MethodPost, "/signup", "", map[string]any{"username": "alice", "password": "weak"})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	signup(t, s, "alice", false)
	resp = doJSON(t, s, http.MethodPost, "/signup", "", map[string]any{"username": "alice", "password": testPassword})
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	s := setupTestServer(t)
	signup(t, s, "alice", false)

	token1 := login(t, s, "alice")

	// Second login conflicts while the session is active.
	resp := doJSON(t, s, http.MethodPost, "/login", "", map[string]any{"username": "alice", "password": testPassword})
	require.Equal(t, http.StatusConflict, resp.Code)

	// Wrong password is a 401, not a conflict leak.
	resp = doJSON(t, s, http.MethodPost, "/login", "", map[string]any{"username": "alice", "password": "Wrong12345"})
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = doJSON(t, s, http.MethodGet, "/me", token1, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"username":"alice"`)
	require.NotContains(t, resp.Body.String(), "hash")

	resp = doJSON(t, s, http.MethodPost, "/logout", token1, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	// The old token stops resolving immediately.
	resp = doJSON(t, s, http.MethodGet, "/me", token1, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Contains(t, resp.Body.String(), "logged out")

	token2 := login(t, s, "alice")
	require.NotEqual(t, token1, token2)
}

func TestRenewTokenOverHTTP(t *testing.T) {
	s := setupTestServer(t)
	signup(t, s, "alice", false)
	token1 := login(t, s, "alice")

	resp := doJSON(t, s, http.MethodPost, "/renew-token", token1, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		AccessToken string `json:"access_token"`
		Message     string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, "Token renewed", body.Message)
	require.NotEqual(t, token1, body.AccessToken)

	// Renewal revokes the previous token.
	resp = doJSON(t, s, http.MethodGet, "/me", token1, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	resp = doJSON(t, s, http.MethodGet, "/me", body.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestProtectedEndpoints(t *testing.T) {
	s := setupTestServer(t)
	signup(t, s, "alice", false)
	signup(t, s, "bob", true)

	resp := doJSON(t, s, http.MethodGet, "/protected", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = doJSON(t, s, http.MethodGet, "/protected", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	aliceToken := login(t, s, "alice")
	resp = doJSON(t, s, http.MethodGet, "/protected", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(t, s, http.MethodGet, "/super_protected", aliceToken, nil)
	require.Equal(t, http.StatusForbidden, resp.Code)

	bobToken := login(t, s, "bob")
	resp = doJSON(t, s, http.MethodGet, "/super_protected", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestAllUsersExcludesPasswordHashes(t *testing.T) {
	s := setupTestServer(t)
	signup(t, s, "alice", false)
	signup(t, s, "bob", true)

	resp := doJSON(t, s, http.MethodGet, "/all", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"username":"alice"`)
	require.Contains(t, resp.Body.String(), `"username":"bob"`)
	require.NotContains(t, resp.Body.String(), "password")
}

func TestIndexIsOpen(t *testing.T) {
	s := setupTestServer(t)
	resp := doJSON(t, s, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "open endpoint")
}
