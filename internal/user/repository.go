package user

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"snapexpense/internal"
	userDatamodel "snapexpense/internal/core/datamodel/user"
	"snapexpense/internal/store"
)

// CollectionName is the backing-store collection for user accounts.
const CollectionName = "users"

// SnapshotKey is the local snapshot-store key holding the user collection
// as a JSON array.
const SnapshotKey = "snapexpense.users"

// ExpenseCascader removes all expenses owned by a user. The cascade is
// issued before the user record itself is deleted so no orphaned expenses
// with a dangling owner reference remain.
type ExpenseCascader interface {
	DeleteByOwner(ctx context.Context, ownerID string) error
}

// SessionTerminator ends the session of a deleted account.
type SessionTerminator interface {
	Invalidate(userID string)
}

// Repository owns the in-memory user collection, updated only through the
// store subscription.
type Repository struct {
	col        store.Collection[userDatamodel.User]
	expenses   ExpenseCascader
	bcryptCost int
	logger     *slog.Logger

	mu       sync.RWMutex
	records  []*User
	sessions SessionTerminator

	cancel store.CancelFunc
}

func NewRepository(ctx context.Context, col store.Collection[userDatamodel.User], expenses ExpenseCascader, bcryptCost int, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	r := &Repository{col: col, expenses: expenses, bcryptCost: bcryptCost, logger: logger}

	cancel, err := col.Subscribe(ctx, r.onRecords, func(err error) {
		r.logger.Error("user subscription error", "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("user repository: subscribe: %w", err)
	}
	r.cancel = cancel

	return r, nil
}

// SetSessionTerminator wires the session boundary in after construction;
// the session manager itself depends on this repository.
func (r *Repository) SetSessionTerminator(s SessionTerminator) {
	r.mu.Lock()
	r.sessions = s
	r.mu.Unlock()
}

// Close releases the store subscription.
func (r *Repository) Close() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Repository) onRecords(records []userDatamodel.User) {
	list := FromDataModelSlice(records)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	r.mu.Lock()
	r.records = list
	r.mu.Unlock()
}

// Authenticate matches the email case-insensitively and verifies the
// password against the stored hash.
func (r *Repository) Authenticate(email, password string) (*User, error) {
	u, ok := r.GetByEmail(email)
	if !ok {
		return nil, internal.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, internal.ErrInvalidCredentials
	}
	return u, nil
}

// Signup creates a Sales-role account with a deterministic avatar. The
// duplicate-email check runs against the current collection only; it is
// advisory, not a storage-level constraint.
func (r *Repository) Signup(ctx context.Context, name, email, password string) (*User, error) {
	if _, exists := r.GetByEmail(email); exists {
		return nil, internal.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("user repository: hash password: %w", err)
	}

	u := &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         RoleSales,
		Avatar:       AvatarURL(name),
		CreatedAt:    time.Now(),
	}

	if err := r.col.Put(ctx, u.ID, ToDataModel(u)); err != nil {
		r.logger.Error("failed to save user, check server logs", "user_id", u.ID, "error", err)
		return nil, err
	}
	return u, nil
}

// UpdateRole changes a user's role. Admins can never role-edit themselves;
// the guard lives here as well as in the UI layer.
func (r *Repository) UpdateRole(ctx context.Context, actorID, userID, role string) error {
	if actorID == userID {
		return internal.ErrSelfManagement
	}
	if !ValidRole(role) {
		return internal.NewValidationError(fmt.Sprintf("unknown role %q", role), internal.ErrCodeInvalidRole)
	}
	return r.patch(ctx, userID, map[string]any{"role": role})
}

func (r *Repository) UpdateAvatar(ctx context.Context, userID, avatar string) error {
	return r.patch(ctx, userID, map[string]any{"avatar": avatar})
}

func (r *Repository) UpdatePassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.bcryptCost)
	if err != nil {
		return fmt.Errorf("user repository: hash password: %w", err)
	}
	return r.patch(ctx, userID, map[string]any{"password_hash": string(hash)})
}

// RequestProfileUpdate stages a name/email change. The live fields are not
// touched; a prior pending request is overwritten, last write wins.
func (r *Repository) RequestProfileUpdate(ctx context.Context, userID, name, email string) error {
	pending := userDatamodel.PendingUpdate{
		Name:        name,
		Email:       email,
		RequestedAt: time.Now(),
	}
	return r.patch(ctx, userID, map[string]any{"pending_update": pending})
}

// ResolveProfileUpdate approves or rejects the staged change. Approval
// copies the pending name/email into the live fields; both outcomes clear
// the pending sub-record. Without a pending update this is a no-op.
func (r *Repository) ResolveProfileUpdate(ctx context.Context, userID string, approve bool) error {
	u, ok := r.Get(userID)
	if !ok || u.PendingUpdate == nil {
		return nil
	}

	fields := map[string]any{"pending_update": nil}
	if approve {
		fields["name"] = u.PendingUpdate.Name
		fields["email"] = u.PendingUpdate.Email
	}
	return r.patch(ctx, userID, fields)
}

// DeleteUser removes an account and cascades to its expenses. The cascade
// is issued first; deleting the current session's user also terminates the
// session. Admins can never delete themselves.
func (r *Repository) DeleteUser(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return internal.ErrSelfManagement
	}

	if err := r.expenses.DeleteByOwner(ctx, userID); err != nil {
		return fmt.Errorf("user repository: expense cascade for %s: %w", userID, err)
	}
	if err := r.col.Delete(ctx, userID); err != nil {
		return err
	}

	r.mu.RLock()
	sessions := r.sessions
	r.mu.RUnlock()
	if sessions != nil {
		sessions.Invalidate(userID)
	}
	return nil
}

func (r *Repository) patch(ctx context.Context, userID string, fields map[string]any) error {
	if err := r.col.Patch(ctx, userID, fields); err != nil {
		r.logger.Error("failed to save user, check server logs", "user_id", userID, "error", err)
		return err
	}
	return nil
}

// Get returns a copy of one user by id.
func (r *Repository) Get(id string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.records {
		if u.ID == id {
			return cloneUser(u), true
		}
	}
	return nil, false
}

// GetByEmail matches case-insensitively; email is the login key.
func (r *Repository) GetByEmail(email string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.records {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), true
		}
	}
	return nil, false
}

// List returns copies of all accounts, newest first.
func (r *Repository) List() []*User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*User, len(r.records))
	for i, u := range r.records {
		out[i] = cloneUser(u)
	}
	return out
}

// Count returns the number of accounts.
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func cloneUser(u *User) *User {
	cp := *u
	if u.PendingUpdate != nil {
		pu := *u.PendingUpdate
		cp.PendingUpdate = &pu
	}
	return &cp
}
