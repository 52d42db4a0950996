// Package store defines the record store adapter: a uniform write/subscribe
// API over one named collection of documents, hiding whether the backing
// store is a remote multi-client document database or the on-device
// snapshot store.
//
// Mode is chosen once at process start. In cloud mode every write becomes
// visible only after the backing store's change notification round-trips
// back through Subscribe; writers never update subscriber state directly.
// In local mode writes apply synchronously and the subscriber is notified
// before the write call returns.
package store

import "context"

// CancelFunc releases a subscription. It must be called when the owning
// repository is torn down.
type CancelFunc func()

// Collection is the adapter over one named collection of documents of type
// T. Implementations: local.Collection, mongo.Collection and the Failover
// wrapper combining both.
type Collection[T any] interface {
	// Put writes the full record under id, creating or replacing it.
	// Keyed writes make retries idempotent.
	Put(ctx context.Context, id string, rec T) error

	// Patch merges fields into the record with the given id, leaving
	// unspecified fields untouched. Patching an absent id is a no-op.
	Patch(ctx context.Context, id string, fields map[string]any) error

	// Delete removes the record with the given id; absent ids are a no-op.
	Delete(ctx context.Context, id string) error

	// DeleteWhere removes every record whose named field equals value, as
	// a single backing-store operation so a crash cannot leave a partial
	// cascade.
	DeleteWhere(ctx context.Context, field string, value any) error

	// Subscribe registers onChange to receive the complete record set:
	// once on registration with the current contents, then again after
	// every observed change. onError receives subscription-level failures
	// (e.g. a broken change stream); it may be nil.
	Subscribe(ctx context.Context, onChange func(records []T), onError func(error)) (CancelFunc, error)
}
