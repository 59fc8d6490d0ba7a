package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JFRP-89/ScenarioBuilder-sub000/cmd/internal/auth/ids"
	"github.com/JFRP-89/ScenarioBuilder-sub000/cmd/internal/auth/session"
	"github.com/JFRP-89/ScenarioBuilder-sub000/cmd/security/password"
)

// Lockout policy shared by both credential store backends.
const (
	defaultMaxFailedAttempts = 3
	defaultLockoutWindow     = 15 * time.Minute
)

type memUser struct {
	ID             string
	Username       string
	Name           string
	Email          string
	PasswordHash   string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
}

// MemoryCredentialStore is an in-process CredentialStore keyed by normalized
// username. Suitable for development and tests; accounts do not survive a
// restart.
type MemoryCredentialStore struct {
	mu    sync.Mutex
	pw    password.Config
	clock session.Clock

	maxFailed int
	lockFor   time.Duration

	users map[string]*memUser
}

// NewMemoryCredentialStore builds an empty store with the default lockout
// policy. A nil clock falls back to the system clock.
func NewMemoryCredentialStore(pw password.Config, clock session.Clock) *MemoryCredentialStore {
	if clock == nil {
		clock = session.SystemClock{}
	}
	return &MemoryCredentialStore{
		pw:        pw,
		clock:     clock,
		maxFailed: defaultMaxFailedAttempts,
		lockFor:   defaultLockoutWindow,
		users:     make(map[string]*memUser),
	}
}

func (m *MemoryCredentialStore) VerifyCredentials(ctx context.Context, username, passwd string) (bool, error) {
	m.mu.Lock()
	u := m.users[username]
	var hash string
	if u != nil {
		hash = u.PasswordHash
	}
	m.mu.Unlock()

	if hash == "" {
		return false, nil
	}
	ok, err := m.pw.Verify(hash, passwd)
	if errors.Is(err, password.ErrInvalidHash) {
		// A corrupt stored hash denies like a wrong password.
		return false, nil
	}
	return ok, err
}

func (m *MemoryCredentialStore) IsLocked(ctx context.Context, username string) (bool, *time.Time, error) {
	now := m.clock.NowUTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.users[username]
	if u == nil || u.LockedUntil == nil {
		return false, nil, nil
	}
	if now.Before(*u.LockedUntil) {
		until := *u.LockedUntil
		return true, &until, nil
	}
	// Expired lock clears lazily.
	u.LockedUntil = nil
	u.FailedAttempts = 0
	return false, nil, nil
}

func (m *MemoryCredentialStore) RecordFailedAttempt(ctx context.Context, username string) (bool, *time.Time, error) {
	now := m.clock.NowUTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.users[username]
	if u == nil {
		// Nothing to count against. The caller's denial already reads the
		// same as a wrong password.
		return false, nil, nil
	}

	u.FailedAttempts++
	if u.FailedAttempts < m.maxFailed {
		return false, nil, nil
	}

	until := now.Add(m.lockFor)
	u.LockedUntil = &until
	return true, &until, nil
}

func (m *MemoryCredentialStore) ClearFailedAttempts(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u := m.users[username]; u != nil {
		u.FailedAttempts = 0
		u.LockedUntil = nil
	}
	return nil
}

func (m *MemoryCredentialStore) GetUserProfile(ctx context.Context, username string) (Profile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.users[username]
	if u == nil {
		return Profile{}, false, nil
	}
	return Profile{Username: u.Username, Name: u.Name, Email: u.Email}, true, nil
}

func (m *MemoryCredentialStore) UpdateUserProfile(ctx context.Context, username, name, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.users[username]
	if u == nil {
		return false, nil
	}
	u.Name = name
	u.Email = email
	return true, nil
}

func (m *MemoryCredentialStore) ChangePassword(ctx context.Context, username, newPassword string) (bool, error) {
	hash, err := m.pw.Hash(newPassword)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.users[username]
	if u == nil {
		return false, nil
	}
	u.PasswordHash = hash
	return true, nil
}

func (m *MemoryCredentialStore) CreateUser(ctx context.Context, username, passwd, name, email string) (bool, error) {
	hash, err := m.pw.Hash(passwd)
	if err != nil {
		return false, err
	}

	now := m.clock.NowUTC()
	id, err := ids.NewULID(now)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[username]; exists {
		return false, nil
	}
	m.users[username] = &memUser{
		ID:           id,
		Username:     username,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	return true, nil
}

func (m *MemoryCredentialStore) UserExists(ctx context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.users[username]
	return ok, nil
}
