// Package local implements the record store adapter over the on-device
// snapshot store. It is the fallback when no remote store is configured and
// the demotion target when the remote store becomes unreachable.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"snapexpense/internal/snapshot"
	"snapexpense/internal/store"
)

// Collection holds the persisted image of one collection and mirrors every
// mutation into the snapshot store. Mutations apply synchronously and
// subscribers are notified before the mutating call returns; only the
// snapshot write itself is asynchronous.
type Collection[T any] struct {
	snapshots *snapshot.Store
	key       string
	idOf      func(T) string
	strip     func(T) T
	seed      []T
	logger    *slog.Logger

	mu          sync.Mutex
	records     []T
	subscribers map[int]func([]T)
	nextSubID   int

	saveMu   sync.Mutex
	saveWG   sync.WaitGroup
	saveSeq  uint64
	savedSeq uint64
}

type Option[T any] func(*Collection[T])

// WithSeed sets the records installed when no usable snapshot exists.
func WithSeed[T any](seed []T) Option[T] {
	return func(c *Collection[T]) { c.seed = seed }
}

// WithStripper sets the degrade function applied to every record when a
// snapshot write exceeds the storage quota. Strippers clear the dominant
// payload fields (receipt images) so a smaller retry can succeed.
func WithStripper[T any](strip func(T) T) Option[T] {
	return func(c *Collection[T]) { c.strip = strip }
}

func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(c *Collection[T]) { c.logger = logger }
}

// NewCollection loads the persisted snapshot under key, falling back to the
// seed when the snapshot is absent or malformed. Corrupt snapshots never
// fail construction.
func NewCollection[T any](snapshots *snapshot.Store, key string, idOf func(T) string, opts ...Option[T]) *Collection[T] {
	c := &Collection[T]{
		snapshots:   snapshots,
		key:         key,
		idOf:        idOf,
		logger:      slog.Default(),
		subscribers: make(map[int]func([]T)),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.records = c.load()
	return c
}

func (c *Collection[T]) load() []T {
	value, ok, err := c.snapshots.Load(c.key)
	if err != nil {
		c.logger.Error("snapshot load failed, using seed data", "key", c.key, "error", err)
		return append([]T(nil), c.seed...)
	}
	if !ok {
		return append([]T(nil), c.seed...)
	}

	var records []T
	if err := json.Unmarshal([]byte(value), &records); err != nil {
		// Malformed or non-array snapshot: discard and reseed.
		c.logger.Warn("discarding malformed snapshot", "key", c.key, "error", err)
		return append([]T(nil), c.seed...)
	}
	return records
}

func (c *Collection[T]) Put(_ context.Context, id string, rec T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(id); i >= 0 {
		c.records[i] = rec
	} else {
		// Prepend: list views assume newest-first.
		c.records = append([]T{rec}, c.records...)
	}

	c.notifyLocked()
	c.persistLocked()
	return nil
}

func (c *Collection[T]) Patch(_ context.Context, id string, fields map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return nil
	}

	merged, err := mergeRecord(c.records[i], fields)
	if err != nil {
		return fmt.Errorf("local store: patch %s/%s: %w", c.key, id, err)
	}
	c.records[i] = merged

	c.notifyLocked()
	c.persistLocked()
	return nil
}

func (c *Collection[T]) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return nil
	}
	c.records = append(c.records[:i], c.records[i+1:]...)

	c.notifyLocked()
	c.persistLocked()
	return nil
}

func (c *Collection[T]) DeleteWhere(_ context.Context, field string, value any) error {
	want, err := normalize(value)
	if err != nil {
		return fmt.Errorf("local store: delete where %s: %w", field, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.records[:0]
	removed := 0
	for _, rec := range c.records {
		doc, err := toDocument(rec)
		if err != nil {
			return fmt.Errorf("local store: delete where %s: %w", field, err)
		}
		if reflect.DeepEqual(doc[field], want) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	if removed == 0 {
		return nil
	}
	c.records = kept

	c.notifyLocked()
	c.persistLocked()
	return nil
}

// Subscribe notifies onChange synchronously with the loaded contents, and
// again after each local mutation. There is no network analogue here, so
// onError is never invoked.
func (c *Collection[T]) Subscribe(_ context.Context, onChange func(records []T), _ func(error)) (store.CancelFunc, error) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = onChange
	snapshotCopy := append([]T(nil), c.records...)
	c.mu.Unlock()

	onChange(snapshotCopy)

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}, nil
}

func (c *Collection[T]) indexOf(id string) int {
	for i, rec := range c.records {
		if c.idOf(rec) == id {
			return i
		}
	}
	return -1
}

func (c *Collection[T]) notifyLocked() {
	snapshotCopy := append([]T(nil), c.records...)
	for _, fn := range c.subscribers {
		fn(snapshotCopy)
	}
}

// persistLocked schedules an asynchronous snapshot write of the current
// records. Writes are sequenced so a stale snapshot can never overwrite a
// newer one, and quota failures degrade to a stripped retry.
func (c *Collection[T]) persistLocked() {
	data, err := json.Marshal(c.records)
	if err != nil {
		c.logger.Error("snapshot marshal failed", "key", c.key, "error", err)
		return
	}

	var stripped []byte
	if c.strip != nil {
		s := make([]T, len(c.records))
		for i, rec := range c.records {
			s[i] = c.strip(rec)
		}
		if b, err := json.Marshal(s); err == nil {
			stripped = b
		}
	}

	c.saveMu.Lock()
	c.saveSeq++
	seq := c.saveSeq
	c.saveMu.Unlock()

	c.saveWG.Add(1)
	go c.save(seq, data, stripped)
}

func (c *Collection[T]) save(seq uint64, data, stripped []byte) {
	defer c.saveWG.Done()

	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	if seq <= c.savedSeq {
		return
	}
	c.savedSeq = seq

	err := c.snapshots.Save(c.key, string(data))
	if err == nil {
		return
	}

	if errors.Is(err, snapshot.ErrQuotaExceeded) && stripped != nil {
		c.logger.Warn("snapshot over quota, retrying without image payloads", "key", c.key)
		if retryErr := c.snapshots.Save(c.key, string(stripped)); retryErr == nil {
			return
		} else {
			err = retryErr
		}
	}

	// Durability is degraded for this write; in-memory state stays correct.
	c.logger.Error("snapshot save failed", "key", c.key, "error", err)
}

// Flush waits for all scheduled snapshot writes to settle.
func (c *Collection[T]) Flush() {
	c.saveWG.Wait()
}

func mergeRecord[T any](rec T, fields map[string]any) (T, error) {
	var out T

	doc, err := toDocument(rec)
	if err != nil {
		return out, err
	}
	for k, v := range fields {
		doc[k] = v
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func toDocument[T any](rec T) (map[string]any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func normalize(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
