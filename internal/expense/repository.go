package expense

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	expenseDatamodel "snapexpense/internal/core/datamodel/expense"
	"snapexpense/internal/store"
)

// CollectionName is the backing-store collection for expense records.
const CollectionName = "expenses"

// SnapshotKey is the local snapshot-store key holding the expense
// collection as a JSON array.
const SnapshotKey = "snapexpense.expenses"

// Repository owns the in-memory expense collection. The collection is only
// ever replaced wholesale from the store subscription (synchronously in
// local mode, after the change-feed round trip in cloud mode), which is
// what keeps the sort and cascade invariants intact. No caller mutates it
// directly.
type Repository struct {
	col    store.Collection[expenseDatamodel.Expense]
	logger *slog.Logger

	mu      sync.RWMutex
	records []*Expense

	cancel store.CancelFunc
}

// NewRepository subscribes to the expense collection and blocks until the
// initial contents are delivered.
func NewRepository(ctx context.Context, col store.Collection[expenseDatamodel.Expense], logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repository{col: col, logger: logger}

	cancel, err := col.Subscribe(ctx, r.onRecords, func(err error) {
		r.logger.Error("expense subscription error", "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("expense repository: subscribe: %w", err)
	}
	r.cancel = cancel

	return r, nil
}

// Close releases the store subscription.
func (r *Repository) Close() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// onRecords replaces the visible collection. The backing store's delivery
// order is not guaranteed to match creation order, so the
// newest-creation-first sort is re-applied on every delivery.
func (r *Repository) onRecords(records []expenseDatamodel.Expense) {
	list := FromDataModelSlice(records)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	r.mu.Lock()
	r.records = list
	r.mu.Unlock()
}

// Create persists a new expense under its caller-generated identifier, so a
// retried create is idempotent. CreatedAt is set once here if the caller
// left it zero.
func (r *Repository) Create(ctx context.Context, e *Expense) error {
	if e.ID == "" {
		return fmt.Errorf("expense repository: create: missing id")
	}
	if e.Status == "" {
		e.Status = StatusSubmitted
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	if err := r.col.Put(ctx, e.ID, ToDataModel(e)); err != nil {
		r.logger.Error("failed to save expense, check server logs", "expense_id", e.ID, "error", err)
		return err
	}
	return nil
}

// Edit merges fields into an existing record. Identifier, owner and
// creation timestamp are immutable and silently dropped from the patch.
// Editing an unknown id is a no-op, not an error.
func (r *Repository) Edit(ctx context.Context, id string, fields map[string]any) error {
	patch := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case "id", "_id", "user_id", "created_at":
			continue
		}
		patch[k] = v
	}
	if len(patch) == 0 {
		return nil
	}

	if err := r.col.Patch(ctx, id, patch); err != nil {
		r.logger.Error("failed to save expense, check server logs", "expense_id", id, "error", err)
		return err
	}
	return nil
}

// UpdateStatus sets the approval status. Notes are overwritten only when a
// non-empty value is supplied; an empty notes argument preserves the
// existing note.
func (r *Repository) UpdateStatus(ctx context.Context, id, status, notes string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("expense repository: unknown status %q", status)
	}

	fields := map[string]any{"status": status}
	if notes != "" {
		fields["notes"] = notes
	}

	if err := r.col.Patch(ctx, id, fields); err != nil {
		r.logger.Error("failed to save expense, check server logs", "expense_id", id, "error", err)
		return err
	}
	return nil
}

// Delete removes one record; absent ids are a no-op.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.col.Delete(ctx, id)
}

// DeleteByOwner removes every expense owned by ownerID as one atomic
// backing-store operation. Invoked when the owning user is deleted; the
// cascade must land before the user record goes away so no orphaned
// expenses remain.
func (r *Repository) DeleteByOwner(ctx context.Context, ownerID string) error {
	return r.col.DeleteWhere(ctx, "user_id", ownerID)
}

// Get returns a copy of one record by id.
func (r *Repository) Get(id string) (*Expense, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.records {
		if e.ID == id {
			cp := *e
			return &cp, true
		}
	}
	return nil, false
}

// List returns copies of all records, newest creation first.
func (r *Repository) List() []*Expense {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Expense, len(r.records))
	for i, e := range r.records {
		cp := *e
		out[i] = &cp
	}
	return out
}

// ListByOwner filters the current collection; no I/O. Order is newest
// creation first.
func (r *Repository) ListByOwner(ownerID string) []*Expense {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Expense
	for _, e := range r.records {
		if e.UserID == ownerID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}
