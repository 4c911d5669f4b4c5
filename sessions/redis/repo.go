package redis

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-session-authority/sessions"
	"github.com/jrsteele09/go-session-authority/users"
)

const (
	userKeyPrefix = "authority:user:"
	userIndexKey  = "authority:users"
)

// The session transitions are Lua scripts so that "check, then write" runs
// atomically inside Redis.

const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "username", ARGV[1],
  "hashed_password", ARGV[2],
  "is_superuser", ARGV[3],
  "role", ARGV[4],
  "session_token", "",
  "status", ARGV[5],
  "grace_used", "0",
  "created_at", ARGV[6])
redis.call("SADD", KEYS[2], ARGV[1])
return 1
`

const activateScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return "notfound"
end
if redis.call("HGET", KEYS[1], "status") == ARGV[2] then
  return "active"
end
redis.call("HSET", KEYS[1], "session_token", ARGV[1], "status", ARGV[2], "grace_used", "0")
return "ok"
`

const setSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "session_token", ARGV[1], "status", ARGV[2], "grace_used", "0")
return 1
`

const useGraceScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "status") ~= ARGV[2] then
  return 0
end
if redis.call("HGET", KEYS[1], "session_token") ~= ARGV[1] then
  return 0
end
if redis.call("HGET", KEYS[1], "grace_used") == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "grace_used", "1")
return 1
`

var (
	createLua     = redis.NewScript(createScript)
	activateLua   = redis.NewScript(activateScript)
	setSessionLua = redis.NewScript(setSessionScript)
	useGraceLua   = redis.NewScript(useGraceScript)
)

var _ sessions.Repo = (*Repo)(nil)

// Repo implements sessions.Repo on Redis. Each user is a hash keyed by
// username, with a set holding the username index for List.
type Repo struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Repo {
	return &Repo{client: client}
}

func userKey(username string) string {
	return userKeyPrefix + username
}

func (r *Repo) Get(ctx context.Context, username string) (*sessions.Record, error) {
	fields, err := r.client.HGetAll(ctx, userKey(username)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, sessions.ErrNotFound
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, fields["created_at"])
	record := &sessions.Record{
		User: users.Identity{
			Username:     fields["username"],
			PasswordHash: fields["hashed_password"],
			IsSuperuser:  fields["is_superuser"] == "1",
			Role:         fields["role"],
			CreatedAt:    createdAt,
		},
		CurrentToken: fields["session_token"],
		Status:       sessions.Status(fields["status"]),
		GraceUsed:    fields["grace_used"] == "1",
		CreatedAt:    createdAt,
	}
	return record, nil
}

func (r *Repo) Create(ctx context.Context, identity users.Identity) error {
	createdAt := identity.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	created, err := createLua.Run(ctx, r.client,
		[]string{userKey(identity.Username), userIndexKey},
		identity.Username,
		identity.PasswordHash,
		boolField(identity.IsSuperuser),
		identity.Role,
		string(sessions.StatusInactive),
		createdAt.Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return err
	}
	if created == 0 {
		return sessions.ErrDuplicateUser
	}
	return nil
}

func (r *Repo) Activate(ctx context.Context, username, token string) error {
	result, err := activateLua.Run(ctx, r.client,
		[]string{userKey(username)},
		token, string(sessions.StatusActive),
	).Text()
	if err != nil {
		return err
	}
	switch result {
	case "ok":
		return nil
	case "active":
		return sessions.ErrSessionActive
	case "notfound":
		return sessions.ErrNotFound
	default:
		return errors.New("unexpected activate result: " + result)
	}
}

func (r *Repo) SetSession(ctx context.Context, username, token string, status sessions.Status) error {
	updated, err := setSessionLua.Run(ctx, r.client,
		[]string{userKey(username)},
		token, string(status),
	).Int64()
	if err != nil {
		return err
	}
	if updated == 0 {
		return sessions.ErrNotFound
	}
	return nil
}

func (r *Repo) UseGrace(ctx context.Context, username, token string) (bool, error) {
	used, err := useGraceLua.Run(ctx, r.client,
		[]string{userKey(username)},
		token, string(sessions.StatusActive),
	).Int64()
	if err != nil {
		return false, err
	}
	return used == 1, nil
}

func (r *Repo) List(ctx context.Context) ([]users.Identity, error) {
	usernames, err := r.client.SMembers(ctx, userIndexKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(usernames)

	identities := make([]users.Identity, 0, len(usernames))
	for _, username := range usernames {
		fields, err := r.client.HMGet(ctx, userKey(username), "username", "is_superuser", "role", "created_at").Result()
		if err != nil {
			return nil, err
		}
		if fields[0] == nil {
			continue // removed between SMEMBERS and HMGET
		}

		createdAt, _ := time.Parse(time.RFC3339Nano, stringField(fields[3]))
		identities = append(identities, users.Identity{
			Username:    stringField(fields[0]),
			IsSuperuser: stringField(fields[1]) == "1",
			Role:        stringField(fields[2]),
			CreatedAt:   createdAt,
		})
	}
	return identities, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}
