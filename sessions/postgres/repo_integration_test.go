package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-authority/sessions"
	"github.com/jrsteele09/go-session-authority/users"
)

// Integration tests are enabled when AUTH_TEST_POSTGRES_URI is set.

func testRepo(t *testing.T) (*Repo, context.Context) {
	t.Helper()

	uri := os.Getenv("AUTH_TEST_POSTGRES_URI")
	if uri == "" {
		t.Skip("AUTH_TEST_POSTGRES_URI is not set; skipping Postgres integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo, err := New(ctx, pool)
	require.NoError(t, err)
	return repo, ctx
}

func testIdentity(username string) users.Identity {
	return users.Identity{
		Username:     username,
		PasswordHash: "fake-hash",
		Role:         users.DefaultRole,
		CreatedAt:    time.Now(),
	}
}

func TestPostgresRepo_CreateAndGet(t *testing.T) {
	repo, ctx := testRepo(t)
	username := fmt.Sprintf("pg-create-%d", time.Now().UnixNano())

	require.NoError(t, repo.Create(ctx, testIdentity(username)))
	require.ErrorIs(t, repo.Create(ctx, testIdentity(username)), sessions.ErrDuplicateUser)

	record, err := repo.Get(ctx, username)
	require.NoError(t, err)
	require.Equal(t, sessions.StatusInactive, record.Status)
	require.Empty(t, record.CurrentToken)

	_, err = repo.Get(ctx, username+"-missing")
	require.ErrorIs(t, err, sessions.ErrNotFound)
}

func TestPostgresRepo_ActivateIsCompareAndSwap(t *testing.T) {
	repo, ctx := testRepo(t)
	username := fmt.Sprintf("pg-activate-%d", time.Now().UnixNano())
	require.NoError(t, repo.Create(ctx, testIdentity(username)))

	require.NoError(t, repo.Activate(ctx, username, "token-1"))
	require.ErrorIs(t, repo.Activate(ctx, username, "token-2"), sessions.ErrSessionActive)
	require.ErrorIs(t, repo.Activate(ctx, username+"-missing", "token-3"), sessions.ErrNotFound)

	record, err := repo.Get(ctx, username)
	require.NoError(t, err)
	require.Equal(t, "token-1", record.CurrentToken)
	require.Equal(t, sessions.StatusActive, record.Status)
}

func TestPostgresRepo_SetSessionAndGrace(t *testing.T) {
	repo, ctx := testRepo(t)
	username := fmt.Sprintf("pg-grace-%d", time.Now().UnixNano())
	require.NoError(t, repo.Create(ctx, testIdentity(username)))
	require.NoError(t, repo.Activate(ctx, username, "token-1"))

	used, err := repo.UseGrace(ctx, username, "token-1")
	require.NoError(t, err)
	require.True(t, used)

	// Grace is one-shot.
	used, err = repo.UseGrace(ctx, username, "token-1")
	require.NoError(t, err)
	require.False(t, used)

	// SetSession resets it and clears the token on logout.
	require.NoError(t, repo.SetSession(ctx, username, "", sessions.StatusInactive))
	record, err := repo.Get(ctx, username)
	require.NoError(t, err)
	require.Empty(t, record.CurrentToken)
	require.Equal(t, sessions.StatusInactive, record.Status)
	require.False(t, record.GraceUsed)

	// Grace never applies to an inactive record.
	used, err = repo.UseGrace(ctx, username, "token-1")
	require.NoError(t, err)
	require.False(t, used)
}
