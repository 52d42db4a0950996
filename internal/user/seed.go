package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	userDatamodel "snapexpense/internal/core/datamodel/user"
)

// SeedUsers returns the built-in demo accounts, installed at first run when
// no persisted user collection exists.
func SeedUsers(bcryptCost int) []userDatamodel.User {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}

	demo := []struct {
		id, name, email, password, role string
	}{
		{"demo-admin", "Avery Admin", "admin@snapexpense.local", "admin123", RoleAdmin},
		{"demo-manager", "Morgan Manager", "manager@snapexpense.local", "manager123", RoleManager},
		{"demo-sales", "Sam Seller", "sales@snapexpense.local", "sales123", RoleSales},
	}

	now := time.Now()
	users := make([]userDatamodel.User, 0, len(demo))
	for i, d := range demo {
		hash, err := bcrypt.GenerateFromPassword([]byte(d.password), bcryptCost)
		if err != nil {
			continue
		}
		users = append(users, userDatamodel.User{
			ID:           d.id,
			Name:         d.name,
			Email:        d.email,
			PasswordHash: string(hash),
			Role:         d.role,
			Avatar:       AvatarURL(d.name),
			CreatedAt:    now.Add(-time.Duration(i) * time.Minute),
		})
	}
	return users
}
