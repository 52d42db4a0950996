package user

import "context"

type ctxKey string

const userKey ctxKey = "user"

// NewContext returns ctx carrying the authenticated user.
func NewContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// FromContext extracts the authenticated user placed by the auth
// middleware.
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey).(*User)
	return u, ok && u != nil
}
