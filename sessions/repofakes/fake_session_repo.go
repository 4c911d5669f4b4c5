package repofakes

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/go-session-authority/sessions"
	"github.com/jrsteele09/go-session-authority/users"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is an in-memory sessions.Repo. It backs the "memory"
// store backend and the service tests. All transitions happen under one
// mutex, which makes Activate and UseGrace trivially atomic.
type FakeSessionRepo struct {
	lock    sync.RWMutex
	records map[string]*sessions.Record
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		records: make(map[string]*sessions.Record),
	}
}

func (r *FakeSessionRepo) Get(_ context.Context, username string) (*sessions.Record, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	record, ok := r.records[username]
	if !ok {
		return nil, sessions.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *FakeSessionRepo) Create(_ context.Context, identity users.Identity) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.records[identity.Username]; ok {
		return sessions.ErrDuplicateUser
	}
	r.records[identity.Username] = &sessions.Record{
		User:      identity,
		Status:    sessions.StatusInactive,
		CreatedAt: identity.CreatedAt,
	}
	return nil
}

func (r *FakeSessionRepo) Activate(_ context.Context, username, token string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, ok := r.records[username]
	if !ok {
		return sessions.ErrNotFound
	}
	if record.Status == sessions.StatusActive {
		return sessions.ErrSessionActive
	}
	record.CurrentToken = token
	record.Status = sessions.StatusActive
	record.GraceUsed = false
	return nil
}

func (r *FakeSessionRepo) SetSession(_ context.Context, username, token string, status sessions.Status) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, ok := r.records[username]
	if !ok {
		return sessions.ErrNotFound
	}
	record.CurrentToken = token
	record.Status = status
	record.GraceUsed = false
	return nil
}

func (r *FakeSessionRepo) UseGrace(_ context.Context, username, token string) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, ok := r.records[username]
	if !ok {
		return false, nil
	}
	if record.Status != sessions.StatusActive || record.CurrentToken != token || record.GraceUsed {
		return false, nil
	}
	record.GraceUsed = true
	return true, nil
}

func (r *FakeSessionRepo) List(_ context.Context) ([]users.Identity, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	identities := make([]users.Identity, 0, len(r.records))
	for _, record := range r.records {
		identities = append(identities, record.User.Sanitized())
	}
	sort.Slice(identities, func(i, j int) bool {
		return identities[i].Username < identities[j].Username
	})
	return identities, nil
}
