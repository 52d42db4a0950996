// Package session tracks the currently authenticated user, derived from
// user repository state plus a persisted session token, and issues the
// access tokens carried by API requests.
package session

import (
	"context"
	"log/slog"
	"sync"

	"snapexpense/internal/user"
)

// SnapshotKey is the local snapshot-store key holding the current session's
// user identifier as a bare string.
const SnapshotKey = "snapexpense.session"

// UserSource is the slice of the user repository the session needs.
type UserSource interface {
	Get(id string) (*user.User, bool)
	Authenticate(email, password string) (*user.User, error)
	Signup(ctx context.Context, name, email, password string) (*user.User, error)
}

// SnapshotStore is the slice of the snapshot store the session needs to
// persist its user identifier across restarts.
type SnapshotStore interface {
	Load(key string) (value string, ok bool, err error)
	Save(key, value string) error
	Delete(key string) error
}

// Manager is the session boundary. The current user is always re-derived
// from repository state, so renames and deletions are reflected
// immediately.
type Manager struct {
	users     UserSource
	snapshots SnapshotStore
	tokens    *TokenGenerator
	logger    *slog.Logger

	mu        sync.Mutex
	currentID string
}

func NewManager(users UserSource, snapshots SnapshotStore, tokens *TokenGenerator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{users: users, snapshots: snapshots, tokens: tokens, logger: logger}
	m.restore()
	return m
}

// restore re-establishes the persisted session, dropping it when the
// referenced account no longer exists.
func (m *Manager) restore() {
	id, ok, err := m.snapshots.Load(SnapshotKey)
	if err != nil {
		m.logger.Error("session restore failed", "error", err)
		return
	}
	if !ok || id == "" {
		return
	}
	if _, exists := m.users.Get(id); !exists {
		_ = m.snapshots.Delete(SnapshotKey)
		return
	}
	m.currentID = id
}

// Login authenticates and establishes the session, returning the user and
// a signed access token.
func (m *Manager) Login(email, password string) (*user.User, string, error) {
	u, err := m.users.Authenticate(email, password)
	if err != nil {
		return nil, "", err
	}

	token, err := m.tokens.Generate(u.ID)
	if err != nil {
		return nil, "", err
	}

	m.setCurrent(u.ID)
	return u, token, nil
}

// Signup creates the account and establishes a session for it, matching
// the original flow where a successful signup logs the new user in.
func (m *Manager) Signup(ctx context.Context, name, email, password string) (*user.User, string, error) {
	u, err := m.users.Signup(ctx, name, email, password)
	if err != nil {
		return nil, "", err
	}

	token, err := m.tokens.Generate(u.ID)
	if err != nil {
		return nil, "", err
	}

	m.setCurrent(u.ID)
	return u, token, nil
}

// Logout clears the session.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.currentID = ""
	m.mu.Unlock()

	if err := m.snapshots.Delete(SnapshotKey); err != nil {
		m.logger.Error("session persist failed", "error", err)
	}
}

// Current returns the authenticated user, or false when no session exists
// or the account has since been removed.
func (m *Manager) Current() (*user.User, bool) {
	m.mu.Lock()
	id := m.currentID
	m.mu.Unlock()

	if id == "" {
		return nil, false
	}
	return m.users.Get(id)
}

// Invalidate terminates the session when its user is deleted. Implements
// the user repository's SessionTerminator.
func (m *Manager) Invalidate(userID string) {
	m.mu.Lock()
	match := m.currentID == userID
	m.mu.Unlock()

	if match {
		m.Logout()
	}
}

// Resolve maps a bearer token to its current user.
func (m *Manager) Resolve(token string) (*user.User, bool) {
	claims, err := m.tokens.Validate(token)
	if err != nil {
		return nil, false
	}
	return m.users.Get(claims.UserID)
}

func (m *Manager) setCurrent(id string) {
	m.mu.Lock()
	m.currentID = id
	m.mu.Unlock()

	// Session durability is best-effort; a failed write never blocks login.
	if err := m.snapshots.Save(SnapshotKey, id); err != nil {
		m.logger.Error("session persist failed", "error", err)
	}
}
