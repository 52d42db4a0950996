package middleware

import (
	"net/http"
	"strings"

	"snapexpense/internal/user"
	"snapexpense/pkg/logger"
)

// Authenticator resolves a bearer token to its current user.
type Authenticator interface {
	Resolve(token string) (*user.User, bool)
}

// Authenticate rejects requests without a valid bearer token and places
// the resolved user in the request context.
func Authenticate(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			u, ok := auth.Resolve(token)
			if !ok {
				unauthorized(w)
				return
			}

			ctx := user.NewContext(r.Context(), u)
			ctx = logger.With(ctx, "user_id", u.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireManager limits a route to manager and admin roles.
func RequireManager(next http.Handler) http.Handler {
	return requireRole(next, func(u *user.User) bool { return u.IsManager() })
}

// RequireAdmin limits a route to the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return requireRole(next, func(u *user.User) bool { return u.IsAdmin() })
}

func requireRole(next http.Handler, allowed func(*user.User) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := user.FromContext(r.Context())
		if !ok {
			unauthorized(w)
			return
		}
		if !allowed(u) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"code": 403, "message": "insufficient role"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"code": 401, "message": "unauthorized"}`))
}
