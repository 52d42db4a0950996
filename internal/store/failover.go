package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Failover routes adapter calls to a cloud collection until its
// subscription breaks, then demotes to the local collection for the rest of
// the session. Demotion is one-way: there is no re-probing back to cloud.
type Failover[T any] struct {
	cloud  Collection[T]
	local  Collection[T]
	logger *slog.Logger

	demoted atomic.Bool

	mu       sync.Mutex
	cancel   CancelFunc
	onChange func([]T)
	onError  func(error)
}

func NewFailover[T any](cloud, local Collection[T], logger *slog.Logger) *Failover[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Failover[T]{cloud: cloud, local: local, logger: logger}
}

// Demoted reports whether the session has fallen back to local mode.
func (f *Failover[T]) Demoted() bool {
	return f.demoted.Load()
}

func (f *Failover[T]) active() Collection[T] {
	if f.demoted.Load() {
		return f.local
	}
	return f.cloud
}

func (f *Failover[T]) Put(ctx context.Context, id string, rec T) error {
	return f.active().Put(ctx, id, rec)
}

func (f *Failover[T]) Patch(ctx context.Context, id string, fields map[string]any) error {
	return f.active().Patch(ctx, id, fields)
}

func (f *Failover[T]) Delete(ctx context.Context, id string) error {
	return f.active().Delete(ctx, id)
}

func (f *Failover[T]) DeleteWhere(ctx context.Context, field string, value any) error {
	return f.active().DeleteWhere(ctx, field, value)
}

// Subscribe attaches to the cloud change feed. A subscription-level
// failure, whether at attach time or mid-stream, demotes the session to
// the local collection, whose snapshot then becomes the source of truth.
func (f *Failover[T]) Subscribe(ctx context.Context, onChange func(records []T), onError func(error)) (CancelFunc, error) {
	f.mu.Lock()
	f.onChange = onChange
	f.onError = onError
	f.mu.Unlock()

	cancel, err := f.cloud.Subscribe(ctx, onChange, func(streamErr error) {
		f.demote(ctx, streamErr)
	})
	if err != nil {
		f.demote(ctx, err)
	} else {
		f.mu.Lock()
		if f.demoted.Load() {
			// Lost the race with a demotion; drop the cloud subscription.
			f.mu.Unlock()
			cancel()
		} else {
			f.cancel = cancel
			f.mu.Unlock()
		}
	}

	return func() {
		f.mu.Lock()
		c := f.cancel
		f.cancel = nil
		f.mu.Unlock()
		if c != nil {
			c()
		}
	}, nil
}

func (f *Failover[T]) demote(ctx context.Context, cause error) {
	if !f.demoted.CompareAndSwap(false, true) {
		return
	}
	f.logger.Warn("cloud store unavailable, demoting to local mode for this session", "error", cause)

	f.mu.Lock()
	old := f.cancel
	f.cancel = nil
	onChange := f.onChange
	onError := f.onError
	f.mu.Unlock()

	if old != nil {
		old()
	}
	if onChange == nil {
		return
	}

	cancel, err := f.local.Subscribe(ctx, onChange, onError)
	if err != nil {
		f.logger.Error("local fallback subscription failed", "error", err)
		if onError != nil {
			onError(err)
		}
		return
	}

	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()
}
