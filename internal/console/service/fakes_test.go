package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xela07ax/manday-assess/internal/audit"
	"github.com/xela07ax/manday-assess/internal/cache"
	"github.com/xela07ax/manday-assess/internal/domain"
)

var userRole = domain.Role{ID: 2, Code: "USER", Name: "普通用户", Active: true, Permissions: []domain.Permission{
	{ID: 10, Code: "project:read", Active: true},
}}

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[int64]*domain.User
	nextID  int64
	failErr error

	loginSuccess []int64
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{byID: map[int64]*domain.User{}, nextID: 100}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	for _, match := range []func(*domain.User) bool{
		func(u *domain.User) bool { return u.Username == identifier },
		func(u *domain.User) bool { return u.Email == identifier },
		func(u *domain.User) bool { return u.EmployeeID != "" && u.EmployeeID == identifier },
	} {
		for _, u := range f.byID {
			if match(u) {
				cp := *u
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Create(_ context.Context, u *domain.User, roleCode string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cp := *u
	cp.ID = f.nextID
	if roleCode == userRole.Code {
		cp.Roles = []domain.Role{userRole}
	}
	f.byID[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeUsers) RecordLoginSuccess(_ context.Context, id int64, ip string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID[id]
	u.FailedLoginAttempts = 0
	u.LastLoginAt = &at
	u.LastLoginIP = ip
	f.loginSuccess = append(f.loginSuccess, id)
	return nil
}

func (f *fakeUsers) RecordLoginFailure(_ context.Context, id int64, maxAttempts int) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID[id]
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		u.Status = domain.StatusLocked
	}
	return u.FailedLoginAttempts, u.Status == domain.StatusLocked, nil
}

func (f *fakeUsers) SetLocked(_ context.Context, id int64, locked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return errors.New("missing")
	}
	if locked {
		u.Status = domain.StatusLocked
	} else {
		u.Status = domain.StatusActive
		u.FailedLoginAttempts = 0
	}
	return nil
}

func (f *fakeUsers) exists(match func(*domain.User) bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if match(u) {
			return true
		}
	}
	return false
}

func (f *fakeUsers) ExistsByUsername(_ context.Context, v string) (bool, error) {
	return f.exists(func(u *domain.User) bool { return u.Username == v }), nil
}

func (f *fakeUsers) ExistsByEmail(_ context.Context, v string) (bool, error) {
	return f.exists(func(u *domain.User) bool { return u.Email == v }), nil
}

func (f *fakeUsers) ExistsByEmployeeID(_ context.Context, v string) (bool, error) {
	return f.exists(func(u *domain.User) bool { return u.EmployeeID == v }), nil
}

func (f *fakeUsers) get(id int64) domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.byID[id]
}

type fakeSessions struct {
	mu        sync.Mutex
	users     map[int64]*domain.Principal
	failures  map[string]int64
	sessions  map[string]cache.Session
	revoked   map[string]time.Duration
	revokeErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		users:    map[int64]*domain.Principal{},
		failures: map[string]int64{},
		sessions: map[string]cache.Session{},
		revoked:  map[string]time.Duration{},
	}
}

func (f *fakeSessions) CacheUser(_ context.Context, p *domain.Principal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[p.ID] = p
	return nil
}

func (f *fakeSessions) CachedUser(_ context.Context, id int64) (*domain.Principal, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.users[id]
	return p, ok, nil
}

func (f *fakeSessions) EvictUser(_ context.Context, id int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

func (f *fakeSessions) IncrementFailure(_ context.Context, username, ip string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[username+"|"+ip]++
	return f.failures[username+"|"+ip], nil
}

func (f *fakeSessions) ClearFailures(_ context.Context, username, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, username+"|"+ip)
	return nil
}

func (f *fakeSessions) StoreSession(_ context.Context, id string, s cache.Session, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id] = s
	return nil
}

func (f *fakeSessions) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessions) RevokeToken(_ context.Context, id string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[id] = ttl
	return nil
}

func (f *fakeSessions) IsRevoked(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return false, f.revokeErr
	}
	_, ok := f.revoked[id]
	return ok, nil
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.AuditEvent
}

func (r *recordingAuditor) Log(e audit.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAuditor) operations() []audit.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]audit.Operation, 0, len(r.events))
	for _, e := range r.events {
		ops = append(ops, e.Operation)
	}
	return ops
}

type countingObserver struct {
	mu       sync.Mutex
	attempts map[string]int
	issued   map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{attempts: map[string]int{}, issued: map[string]int{}}
}

func (o *countingObserver) LoginAttempt(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts[result]++
}

func (o *countingObserver) TokenIssued(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.issued[kind]++
}

type fakeLocks struct {
	mu     sync.Mutex
	locked map[int64]bool
}

func (l *fakeLocks) IsLocked(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked[id]
}

func (l *fakeLocks) SetLocked(_ context.Context, id int64, locked bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked[id] = locked
	return nil
}
