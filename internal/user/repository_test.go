package user_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"snapexpense/internal"
	userDatamodel "snapexpense/internal/core/datamodel/user"
	"snapexpense/internal/store"
	"snapexpense/internal/user"
)

func TestUserRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Repository Suite")
}

// mockCollection mimics the store adapter contract: every mutation is
// pushed to the subscriber. Patch uses a JSON merge so sub-records like
// pending_update behave the way both real adapters behave.
type mockCollection struct {
	mu         sync.Mutex
	records    []userDatamodel.User
	subscriber func([]userDatamodel.User)
}

func (m *mockCollection) Put(_ context.Context, id string, rec userDatamodel.User) error {
	m.mu.Lock()
	replaced := false
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		m.records = append(m.records, rec)
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *mockCollection) Patch(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	for i := range m.records {
		if m.records[i].ID != id {
			continue
		}
		raw, err := json.Marshal(m.records[i])
		if err != nil {
			m.mu.Unlock()
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			m.mu.Unlock()
			return err
		}
		for k, v := range fields {
			doc[k] = v
		}
		merged, err := json.Marshal(doc)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		var out userDatamodel.User
		if err := json.Unmarshal(merged, &out); err != nil {
			m.mu.Unlock()
			return err
		}
		out.ID = m.records[i].ID
		m.records[i] = out
		break
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *mockCollection) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *mockCollection) DeleteWhere(_ context.Context, field string, value any) error {
	return nil
}

func (m *mockCollection) Subscribe(_ context.Context, onChange func([]userDatamodel.User), _ func(error)) (store.CancelFunc, error) {
	m.mu.Lock()
	m.subscriber = onChange
	snapshot := append([]userDatamodel.User(nil), m.records...)
	m.mu.Unlock()
	onChange(snapshot)
	return func() {}, nil
}

func (m *mockCollection) notify() {
	m.mu.Lock()
	fn := m.subscriber
	snapshot := append([]userDatamodel.User(nil), m.records...)
	m.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

type mockCascader struct {
	deletedOwners []string
	err           error
}

func (m *mockCascader) DeleteByOwner(_ context.Context, ownerID string) error {
	if m.err != nil {
		return m.err
	}
	m.deletedOwners = append(m.deletedOwners, ownerID)
	return nil
}

type mockTerminator struct {
	invalidated []string
}

func (m *mockTerminator) Invalidate(userID string) {
	m.invalidated = append(m.invalidated, userID)
}

var _ = Describe("Repository", func() {
	var (
		repo       *user.Repository
		col        *mockCollection
		cascader   *mockCascader
		terminator *mockTerminator
		ctx        context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		col = &mockCollection{}
		cascader = &mockCascader{}
		terminator = &mockTerminator{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		var err error
		repo, err = user.NewRepository(ctx, col, cascader, 4, logger)
		Expect(err).ToNot(HaveOccurred())
		repo.SetSessionTerminator(terminator)
	})

	AfterEach(func() {
		repo.Close()
	})

	Describe("Signup", func() {
		It("creates a sales account with a generated avatar", func() {
			u, err := repo.Signup(ctx, "Sam Seller", "sam@example.com", "hunter22")
			Expect(err).ToNot(HaveOccurred())
			Expect(u.ID).ToNot(BeEmpty())
			Expect(u.Role).To(Equal(user.RoleSales))
			Expect(u.Avatar).To(ContainSubstring("Sam"))
			Expect(u.PasswordHash).ToNot(Equal("hunter22"))
		})

		It("rejects a duplicate email", func() {
			_, err := repo.Signup(ctx, "Sam", "sam@example.com", "hunter22")
			Expect(err).ToNot(HaveOccurred())

			_, err = repo.Signup(ctx, "Impostor", "sam@example.com", "hunter23")
			Expect(err).To(MatchError(internal.ErrEmailTaken))
			Expect(repo.Count()).To(Equal(1))
		})

		It("treats email case-insensitively for duplicates", func() {
			_, err := repo.Signup(ctx, "Sam", "sam@example.com", "hunter22")
			Expect(err).ToNot(HaveOccurred())

			_, err = repo.Signup(ctx, "Shouty Sam", "SAM@EXAMPLE.COM", "hunter23")
			Expect(err).To(MatchError(internal.ErrEmailTaken))
		})
	})

	Describe("Authenticate", func() {
		BeforeEach(func() {
			_, err := repo.Signup(ctx, "Sam", "sam@example.com", "hunter22")
			Expect(err).ToNot(HaveOccurred())
		})

		It("accepts the correct password with any email casing", func() {
			u, err := repo.Authenticate("Sam@Example.Com", "hunter22")
			Expect(err).ToNot(HaveOccurred())
			Expect(u.Name).To(Equal("Sam"))
		})

		It("rejects a wrong password", func() {
			_, err := repo.Authenticate("sam@example.com", "wrong")
			Expect(err).To(MatchError(internal.ErrInvalidCredentials))
		})

		It("rejects an unknown email", func() {
			_, err := repo.Authenticate("nobody@example.com", "hunter22")
			Expect(err).To(MatchError(internal.ErrInvalidCredentials))
		})
	})

	Describe("UpdateRole", func() {
		var u *user.User

		BeforeEach(func() {
			var err error
			u, err = repo.Signup(ctx, "Sam", "sam@example.com", "hunter22")
			Expect(err).ToNot(HaveOccurred())
		})

		It("changes the role when the actor is someone else", func() {
			Expect(repo.UpdateRole(ctx, "admin-1", u.ID, user.RoleManager)).To(Succeed())
			got, _ := repo.Get(u.ID)
			Expect(got.Role).To(Equal(user.RoleManager))
		})

		It("refuses self role changes", func() {
			err := repo.UpdateRole(ctx, u.ID, u.ID, user.RoleManager)
			Expect(err).To(MatchError(internal.ErrSelfManagement))
		})

		It("refuses an unknown role", func() {
			Expect(repo.UpdateRole(ctx, "admin-1", u.ID, "superuser")).ToNot(Succeed())
		})
	})

	Describe("profile update workflow", func() {
		var u *user.User

		BeforeEach(func() {
			var err error
			u, err = repo.Signup(ctx, "Sam", "sam@example.com", "hunter22")
			Expect(err).ToNot(HaveOccurred())
		})

		It("stages the change without touching live fields", func() {
			Expect(repo.RequestProfileUpdate(ctx, u.ID, "Samuel", "samuel@example.com")).To(Succeed())

			got, _ := repo.Get(u.ID)
			Expect(got.Name).To(Equal("Sam"))
			Expect(got.Email).To(Equal("sam@example.com"))
			Expect(got.PendingUpdate).ToNot(BeNil())
			Expect(got.PendingUpdate.Name).To(Equal("Samuel"))
			Expect(got.PendingUpdate.Email).To(Equal("samuel@example.com"))
		})

		It("overwrites a prior pending request", func() {
			Expect(repo.RequestProfileUpdate(ctx, u.ID, "Samuel", "samuel@example.com")).To(Succeed())
			Expect(repo.RequestProfileUpdate(ctx, u.ID, "Sammy", "sammy@example.com")).To(Succeed())

			got, _ := repo.Get(u.ID)
			Expect(got.PendingUpdate.Name).To(Equal("Sammy"))
		})

		It("applies name and email on approval and clears the pending record", func() {
			Expect(repo.RequestProfileUpdate(ctx, u.ID, "Samuel", "samuel@example.com")).To(Succeed())
			Expect(repo.ResolveProfileUpdate(ctx, u.ID, true)).To(Succeed())

			got, _ := repo.Get(u.ID)
			Expect(got.Name).To(Equal("Samuel"))
			Expect(got.Email).To(Equal("samuel@example.com"))
			Expect(got.PendingUpdate).To(BeNil())
		})

		It("discards the change on rejection and clears the pending record", func() {
			Expect(repo.RequestProfileUpdate(ctx, u.ID, "Samuel", "samuel@example.com")).To(Succeed())
			Expect(repo.ResolveProfileUpdate(ctx, u.ID, false)).To(Succeed())

			got, _ := repo.Get(u.ID)
			Expect(got.Name).To(Equal("Sam"))
			Expect(got.Email).To(Equal("sam@example.com"))
			Expect(got.PendingUpdate).To(BeNil())
		})

		It("is a no-op when nothing is pending", func() {
			Expect(repo.ResolveProfileUpdate(ctx, u.ID, true)).To(Succeed())
			got, _ := repo.Get(u.ID)
			Expect(got.Name).To(Equal("Sam"))
		})
	})

	Describe("DeleteUser", func() {
		var u *user.User

		BeforeEach(func() {
			var err error
			u, err = repo.Signup(ctx, "Sam", "sam@example.com", "hunter22")
			Expect(err).ToNot(HaveOccurred())
		})

		It("cascades to expenses before removing the account", func() {
			Expect(repo.DeleteUser(ctx, "admin-1", u.ID)).To(Succeed())

			Expect(cascader.deletedOwners).To(Equal([]string{u.ID}))
			_, ok := repo.Get(u.ID)
			Expect(ok).To(BeFalse())
		})

		It("terminates the deleted user's session", func() {
			Expect(repo.DeleteUser(ctx, "admin-1", u.ID)).To(Succeed())
			Expect(terminator.invalidated).To(Equal([]string{u.ID}))
		})

		It("refuses self deletion", func() {
			err := repo.DeleteUser(ctx, u.ID, u.ID)
			Expect(err).To(MatchError(internal.ErrSelfManagement))
			_, ok := repo.Get(u.ID)
			Expect(ok).To(BeTrue())
		})

		It("keeps the account when the cascade fails", func() {
			cascader.err = context.DeadlineExceeded
			Expect(repo.DeleteUser(ctx, "admin-1", u.ID)).ToNot(Succeed())
			_, ok := repo.Get(u.ID)
			Expect(ok).To(BeTrue())
		})
	})

	Describe("seed accounts", func() {
		It("produces the three demo roles with hashed passwords", func() {
			seeds := user.SeedUsers(4)
			Expect(seeds).To(HaveLen(3))

			roles := map[string]bool{}
			for _, s := range seeds {
				roles[s.Role] = true
				Expect(s.PasswordHash).ToNot(BeEmpty())
				Expect(s.Email).To(HaveSuffix("@snapexpense.local"))
			}
			Expect(roles).To(HaveKey(user.RoleAdmin))
			Expect(roles).To(HaveKey(user.RoleManager))
			Expect(roles).To(HaveKey(user.RoleSales))
		})
	})
})
