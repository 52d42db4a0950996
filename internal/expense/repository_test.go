package expense_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	expenseDatamodel "snapexpense/internal/core/datamodel/expense"
	"snapexpense/internal/expense"
	"snapexpense/internal/store"
)

func TestExpenseRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Expense Repository Suite")
}

// mockCollection is an in-memory store.Collection that mimics the adapter
// contract: every mutation is pushed to the subscriber.
type mockCollection struct {
	mu         sync.Mutex
	records    []expenseDatamodel.Expense
	subscriber func([]expenseDatamodel.Expense)

	putErr    error
	patchErr  error
	deleteErr error
}

func newMockCollection() *mockCollection {
	return &mockCollection{}
}

func (m *mockCollection) Put(_ context.Context, id string, rec expenseDatamodel.Expense) error {
	if m.putErr != nil {
		return m.putErr
	}
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
	if m.patchErr != nil {
		return m.patchErr
	}
	m.mu.Lock()
	for i := range m.records {
		if m.records[i].ID != id {
			continue
		}
		doc := toDoc(m.records[i])
		for k, v := range fields {
			doc[k] = v
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		var merged expenseDatamodel.Expense
		if err := json.Unmarshal(raw, &merged); err != nil {
			m.mu.Unlock()
			return err
		}
		merged.ID = m.records[i].ID
		m.records[i] = merged
		break
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *mockCollection) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
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
	m.mu.Lock()
	kept := m.records[:0]
	for _, rec := range m.records {
		if reflect.DeepEqual(toDoc(rec)[field], value) {
			continue
		}
		kept = append(kept, rec)
	}
	m.records = kept
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *mockCollection) Subscribe(_ context.Context, onChange func([]expenseDatamodel.Expense), _ func(error)) (store.CancelFunc, error) {
	m.mu.Lock()
	m.subscriber = onChange
	snapshot := append([]expenseDatamodel.Expense(nil), m.records...)
	m.mu.Unlock()
	onChange(snapshot)
	return func() {
		m.mu.Lock()
		m.subscriber = nil
		m.mu.Unlock()
	}, nil
}

func (m *mockCollection) notify() {
	m.mu.Lock()
	fn := m.subscriber
	snapshot := append([]expenseDatamodel.Expense(nil), m.records...)
	m.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

func toDoc(rec expenseDatamodel.Expense) map[string]any {
	raw, _ := json.Marshal(rec)
	var doc map[string]any
	_ = json.Unmarshal(raw, &doc)
	return doc
}

var _ = Describe("Repository", func() {
	var (
		repo   *expense.Repository
		col    *mockCollection
		logger *slog.Logger
		ctx    context.Context
	)

	create := func(id, userID, userName string, total float64, createdAt time.Time) *expense.Expense {
		e := &expense.Expense{
			ID:        id,
			UserID:    userID,
			UserName:  userName,
			Merchant:  "Cafe Milano",
			Date:      "2026-08-14",
			Subtotal:  total * 0.9,
			Tax:       total * 0.1,
			Total:     total,
			Category:  expense.CategoryRestaurant,
			Notes:     "team lunch",
			CreatedAt: createdAt,
		}
		Expect(repo.Create(ctx, e)).To(Succeed())
		return e
	}

	BeforeEach(func() {
		ctx = context.Background()
		col = newMockCollection()
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		var err error
		repo, err = expense.NewRepository(ctx, col, logger)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		repo.Close()
	})

	Describe("Create", func() {
		It("defaults the status to submitted and stamps creation time", func() {
			e := &expense.Expense{ID: "e1", UserID: "u1", Merchant: "Cafe", Date: "2026-08-14", Total: 42}
			Expect(repo.Create(ctx, e)).To(Succeed())

			got, ok := repo.Get("e1")
			Expect(ok).To(BeTrue())
			Expect(got.Status).To(Equal(expense.StatusSubmitted))
			Expect(got.CreatedAt).ToNot(BeZero())
		})

		It("rejects a record without an identifier", func() {
			err := repo.Create(ctx, &expense.Expense{Merchant: "Cafe"})
			Expect(err).To(HaveOccurred())
		})

		It("is idempotent when retried under the same identifier", func() {
			create("e1", "u1", "Sam", 10, time.Now())
			create("e1", "u1", "Sam", 10, time.Now())
			Expect(repo.List()).To(HaveLen(1))
		})
	})

	Describe("List ordering", func() {
		It("returns records newest creation first regardless of store order", func() {
			older := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
			newer := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
			create("e1", "u1", "Sam", 10, older)
			create("e2", "u1", "Sam", 20, newer)

			list := repo.List()
			Expect(list).To(HaveLen(2))
			Expect(list[0].ID).To(Equal("e2"))
			Expect(list[1].ID).To(Equal("e1"))
		})
	})

	Describe("ListByOwner", func() {
		It("returns only the owner's records, newest first", func() {
			t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
			create("e1", "u1", "Sam", 10, t0)
			create("e2", "u2", "Morgan", 20, t0.Add(time.Hour))
			create("e3", "u1", "Sam", 30, t0.Add(2*time.Hour))

			list := repo.ListByOwner("u1")
			Expect(list).To(HaveLen(2))
			Expect(list[0].ID).To(Equal("e3"))
			Expect(list[1].ID).To(Equal("e1"))
		})
	})

	Describe("Edit", func() {
		It("changes only the supplied fields", func() {
			create("e1", "u1", "Sam", 100, time.Now())

			Expect(repo.Edit(ctx, "e1", map[string]any{"total": 250.0})).To(Succeed())

			got, _ := repo.Get("e1")
			Expect(got.Total).To(Equal(250.0))
			Expect(got.Merchant).To(Equal("Cafe Milano"))
			Expect(got.Notes).To(Equal("team lunch"))
			Expect(got.Status).To(Equal(expense.StatusSubmitted))
		})

		It("silently drops immutable fields from the patch", func() {
			e := create("e1", "u1", "Sam", 100, time.Now())

			Expect(repo.Edit(ctx, "e1", map[string]any{
				"user_id":  "intruder",
				"merchant": "Hotel Rex",
			})).To(Succeed())

			got, _ := repo.Get("e1")
			Expect(got.UserID).To(Equal(e.UserID))
			Expect(got.Merchant).To(Equal("Hotel Rex"))
		})

		It("treats an unknown id as a no-op", func() {
			Expect(repo.Edit(ctx, "missing", map[string]any{"total": 5.0})).To(Succeed())
		})
	})

	Describe("UpdateStatus", func() {
		It("preserves existing notes when resolving without notes", func() {
			create("e1", "u1", "Sam", 100, time.Now())

			Expect(repo.UpdateStatus(ctx, "e1", expense.StatusApproved, "")).To(Succeed())

			got, _ := repo.Get("e1")
			Expect(got.Status).To(Equal(expense.StatusApproved))
			Expect(got.Notes).To(Equal("team lunch"))
		})

		It("overwrites notes when a new value is supplied", func() {
			create("e1", "u1", "Sam", 100, time.Now())

			Expect(repo.UpdateStatus(ctx, "e1", expense.StatusRejected, "missing receipt")).To(Succeed())

			got, _ := repo.Get("e1")
			Expect(got.Status).To(Equal(expense.StatusRejected))
			Expect(got.Notes).To(Equal("missing receipt"))
		})

		It("rejects an unknown status", func() {
			create("e1", "u1", "Sam", 100, time.Now())
			Expect(repo.UpdateStatus(ctx, "e1", "archived", "")).ToNot(Succeed())
		})
	})

	Describe("DeleteByOwner", func() {
		It("removes only the owner's expenses", func() {
			t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
			create("e1", "u1", "Sam", 10, t0)
			create("e2", "u2", "Morgan", 20, t0.Add(time.Hour))
			create("e3", "u1", "Sam", 30, t0.Add(2*time.Hour))

			Expect(repo.DeleteByOwner(ctx, "u1")).To(Succeed())

			Expect(repo.ListByOwner("u1")).To(BeEmpty())
			remaining := repo.List()
			Expect(remaining).To(HaveLen(1))
			Expect(remaining[0].ID).To(Equal("e2"))
		})
	})

	Describe("reports", func() {
		BeforeEach(func() {
			t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
			create("e1", "u1", "Sam", 10, t0)
			create("e2", "u2", "Morgan", 200, t0.Add(time.Hour))
			e3 := &expense.Expense{
				ID: "e3", UserID: "u1", UserName: "Sam",
				Merchant: "Hertz", Date: "2026-08-14",
				Total: 90, Category: expense.CategoryTransport,
				CreatedAt: t0.Add(2 * time.Hour),
			}
			Expect(repo.Create(ctx, e3)).To(Succeed())
		})

		It("sums per category, largest first", func() {
			totals := repo.TotalsByCategory()
			Expect(totals).To(HaveLen(2))
			Expect(totals[0].Category).To(Equal(expense.CategoryRestaurant))
			Expect(totals[0].Total).To(Equal(210.0))
			Expect(totals[0].Count).To(Equal(2))
			Expect(totals[1].Category).To(Equal(expense.CategoryTransport))
			Expect(totals[1].Total).To(Equal(90.0))
		})

		It("sums per owner, largest first", func() {
			totals := repo.TotalsByOwner()
			Expect(totals).To(HaveLen(2))
			Expect(totals[0].UserID).To(Equal("u2"))
			Expect(totals[0].Total).To(Equal(200.0))
			Expect(totals[1].UserID).To(Equal("u1"))
			Expect(totals[1].Total).To(Equal(100.0))
			Expect(totals[1].Count).To(Equal(2))
		})
	})
})
