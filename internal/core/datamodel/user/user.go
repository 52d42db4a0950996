package user

import "time"

// User is the persisted shape of a user account.
type User struct {
	ID            string         `json:"id" bson:"_id"`
	Name          string         `json:"name" bson:"name"`
	Email         string         `json:"email" bson:"email"`
	PasswordHash  string         `json:"password_hash" bson:"password_hash"`
	Role          string         `json:"role" bson:"role"`
	Avatar        string         `json:"avatar" bson:"avatar"`
	PendingUpdate *PendingUpdate `json:"pending_update,omitempty" bson:"pending_update,omitempty"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
}

// PendingUpdate is a staged name/email change awaiting admin approval. At
// most one exists per user; a new request overwrites any prior one.
type PendingUpdate struct {
	Name        string    `json:"name" bson:"name"`
	Email       string    `json:"email" bson:"email"`
	RequestedAt time.Time `json:"requested_at" bson:"requested_at"`
}
