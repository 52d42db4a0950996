package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapexpense/internal/store"
)

type record struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// fakeCollection records calls and lets tests drive the subscription
// callbacks by hand.
type fakeCollection struct {
	mu           sync.Mutex
	name         string
	puts         []string
	deletes      []string
	subscribeErr error
	onChange     func([]record)
	onError      func(error)
	canceled     bool
}

func (f *fakeCollection) Put(_ context.Context, id string, _ record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, id)
	return nil
}

func (f *fakeCollection) Patch(_ context.Context, _ string, _ map[string]any) error {
	return nil
}

func (f *fakeCollection) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeCollection) DeleteWhere(_ context.Context, _ string, _ any) error {
	return nil
}

func (f *fakeCollection) Subscribe(_ context.Context, onChange func([]record), onError func(error)) (store.CancelFunc, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.mu.Lock()
	f.onChange = onChange
	f.onError = onError
	f.mu.Unlock()
	onChange(nil)
	return func() {
		f.mu.Lock()
		f.canceled = true
		f.mu.Unlock()
	}, nil
}

func (f *fakeCollection) failStream(err error) {
	f.mu.Lock()
	fn := f.onError
	f.mu.Unlock()
	fn(err)
}

func TestFailoverRoutesToCloudWhileHealthy(t *testing.T) {
	cloud := &fakeCollection{name: "cloud"}
	local := &fakeCollection{name: "local"}
	f := store.NewFailover[record](cloud, local, nil)

	_, err := f.Subscribe(context.Background(), func([]record) {}, nil)
	require.NoError(t, err)

	require.NoError(t, f.Put(context.Background(), "r1", record{ID: "r1"}))

	assert.Equal(t, []string{"r1"}, cloud.puts)
	assert.Empty(t, local.puts)
	assert.False(t, f.Demoted())
}

func TestFailoverDemotesWhenCloudSubscribeFails(t *testing.T) {
	cloud := &fakeCollection{name: "cloud", subscribeErr: errors.New("no route to host")}
	local := &fakeCollection{name: "local"}
	f := store.NewFailover[record](cloud, local, nil)

	var deliveries int
	_, err := f.Subscribe(context.Background(), func([]record) { deliveries++ }, nil)
	require.NoError(t, err)

	assert.True(t, f.Demoted())
	// The local subscription delivered its snapshot to the same callback.
	assert.Equal(t, 1, deliveries)

	require.NoError(t, f.Put(context.Background(), "r1", record{ID: "r1"}))
	assert.Empty(t, cloud.puts)
	assert.Equal(t, []string{"r1"}, local.puts)
}

func TestFailoverDemotesOnMidStreamError(t *testing.T) {
	cloud := &fakeCollection{name: "cloud"}
	local := &fakeCollection{name: "local"}
	f := store.NewFailover[record](cloud, local, nil)

	var deliveries int
	_, err := f.Subscribe(context.Background(), func([]record) { deliveries++ }, nil)
	require.NoError(t, err)
	require.Equal(t, 1, deliveries)

	cloud.failStream(errors.New("change stream closed"))

	assert.True(t, f.Demoted())
	assert.True(t, cloud.canceled)
	// Local snapshot re-delivered through the surviving callback.
	assert.Equal(t, 2, deliveries)

	require.NoError(t, f.Delete(context.Background(), "r1"))
	assert.Empty(t, cloud.deletes)
	assert.Equal(t, []string{"r1"}, local.deletes)
}

func TestFailoverDemotionIsOneWay(t *testing.T) {
	cloud := &fakeCollection{name: "cloud"}
	local := &fakeCollection{name: "local"}
	f := store.NewFailover[record](cloud, local, nil)

	_, err := f.Subscribe(context.Background(), func([]record) {}, nil)
	require.NoError(t, err)

	cloud.failStream(errors.New("transient blip"))
	require.True(t, f.Demoted())

	// A second failure does not re-run demotion or panic.
	cloud.failStream(errors.New("again"))
	assert.True(t, f.Demoted())

	require.NoError(t, f.Put(context.Background(), "r1", record{ID: "r1"}))
	assert.Empty(t, cloud.puts)
	assert.Equal(t, []string{"r1"}, local.puts)
}
