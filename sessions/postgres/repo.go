package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jrsteele09/go-session-authority/sessions"
	"github.com/jrsteele09/go-session-authority/users"
)

const uniqueViolationCode = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username        TEXT PRIMARY KEY,
	hashed_password TEXT NOT NULL,
	is_superuser    BOOLEAN NOT NULL DEFAULT FALSE,
	role            TEXT NOT NULL DEFAULT 'user',
	session_token   TEXT,
	status          TEXT NOT NULL DEFAULT 'inactive',
	grace_used      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`

var _ sessions.Repo = (*Repo)(nil)

// Repo implements sessions.Repo on PostgreSQL. The single-session
// invariant is enforced with conditional UPDATEs: "set Active if not
// already Active" is one row-level statement, so two concurrent logins
// for one user cannot both succeed.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed session repo and ensures the users table
// exists.
func New(ctx context.Context, pool *pgxpool.Pool) (*Repo, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Get(ctx context.Context, username string) (*sessions.Record, error) {
	var (
		record       sessions.Record
		sessionToken *string
		status       string
	)

	err := r.pool.QueryRow(ctx, `
		SELECT username, hashed_password, is_superuser, role, session_token, status, grace_used, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(
		&record.User.Username,
		&record.User.PasswordHash,
		&record.User.IsSuperuser,
		&record.User.Role,
		&sessionToken,
		&status,
		&record.GraceUsed,
		&record.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sessions.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if sessionToken != nil {
		record.CurrentToken = *sessionToken
	}
	record.Status = sessions.Status(status)
	record.User.CreatedAt = record.CreatedAt
	return &record, nil
}

func (r *Repo) Create(ctx context.Context, identity users.Identity) error {
	createdAt := identity.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (username, hashed_password, is_superuser, role, session_token, status, grace_used, created_at)
		VALUES ($1, $2, $3, $4, NULL, $5, FALSE, $6)
	`, identity.Username, identity.PasswordHash, identity.IsSuperuser, identity.Role, string(sessions.StatusInactive), createdAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return sessions.ErrDuplicateUser
	}
	return err
}

func (r *Repo) Activate(ctx context.Context, username, token string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET session_token = $2, status = $3, grace_used = FALSE
		WHERE username = $1 AND status <> $3
	`, username, token, string(sessions.StatusActive))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// No row transitioned: either the user does not exist or the slot is
	// already Active.
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return sessions.ErrNotFound
	}
	return sessions.ErrSessionActive
}

func (r *Repo) SetSession(ctx context.Context, username, token string, status sessions.Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET session_token = NULLIF($2, ''), status = $3, grace_used = FALSE
		WHERE username = $1
	`, username, token, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sessions.ErrNotFound
	}
	return nil
}

func (r *Repo) UseGrace(ctx context.Context, username, token string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET grace_used = TRUE
		WHERE username = $1 AND session_token = $2 AND status = $3 AND grace_used = FALSE
	`, username, token, string(sessions.StatusActive))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repo) List(ctx context.Context) ([]users.Identity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT username, is_superuser, role, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []users.Identity
	for rows.Next() {
		var identity users.Identity
		if err := rows.Scan(&identity.Username, &identity.IsSuperuser, &identity.Role, &identity.CreatedAt); err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	return identities, rows.Err()
}
