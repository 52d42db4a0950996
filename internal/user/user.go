package user

import (
	"net/url"
	"time"

	userDatamodel "snapexpense/internal/core/datamodel/user"
)

// User is one account. Name and email are only ever changed through the
// pending-update approval workflow; everything else is mutated directly.
type User struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	PasswordHash  string         `json:"-"`
	Role          string         `json:"role"`
	Avatar        string         `json:"avatar"`
	PendingUpdate *PendingUpdate `json:"pending_update,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// PendingUpdate is a staged name/email change awaiting admin resolution.
// State machine: none -> pending (on request) -> none (on approve or
// reject); a second request overwrites rather than queues.
type PendingUpdate struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	RequestedAt time.Time `json:"requested_at"`
}

const (
	RoleSales   = "sales"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

func ValidRole(role string) bool {
	return role == RoleSales || role == RoleManager || role == RoleAdmin
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsManager reports whether the user may resolve expense submissions.
func (u *User) IsManager() bool {
	return u.Role == RoleManager || u.Role == RoleAdmin
}

// AvatarURL derives a stable avatar for a display name.
func AvatarURL(name string) string {
	return "https://api.dicebear.com/9.x/initials/svg?seed=" + url.QueryEscape(name)
}

func ToDataModel(u *User) userDatamodel.User {
	out := userDatamodel.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Avatar:       u.Avatar,
		CreatedAt:    u.CreatedAt,
	}
	if u.PendingUpdate != nil {
		out.PendingUpdate = &userDatamodel.PendingUpdate{
			Name:        u.PendingUpdate.Name,
			Email:       u.PendingUpdate.Email,
			RequestedAt: u.PendingUpdate.RequestedAt,
		}
	}
	return out
}

func FromDataModel(u userDatamodel.User) *User {
	out := &User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Avatar:       u.Avatar,
		CreatedAt:    u.CreatedAt,
	}
	if u.PendingUpdate != nil {
		out.PendingUpdate = &PendingUpdate{
			Name:        u.PendingUpdate.Name,
			Email:       u.PendingUpdate.Email,
			RequestedAt: u.PendingUpdate.RequestedAt,
		}
	}
	return out
}

func FromDataModelSlice(records []userDatamodel.User) []*User {
	result := make([]*User, len(records))
	for i, u := range records {
		result[i] = FromDataModel(u)
	}
	return result
}
