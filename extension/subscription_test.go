package extension_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thundergraph/gateway/extension"
)

// fakeHost is a minimal in-memory extension.Host for exercising
// Subscriptions without a real sandbox boundary.
type fakeHost struct {
	mu      sync.Mutex
	opens   int
	streams map[extension.SubscriptionHandle]chan fakeEvent
	nextID  extension.SubscriptionHandle
	dropped []extension.SubscriptionHandle
}

type fakeEvent struct {
	item interface{}
	done bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{streams: map[extension.SubscriptionHandle]chan fakeEvent{}}
}

func (h *fakeHost) Prepare(ctx context.Context, kind extension.Kind, site extension.Site) (extension.Prepared, error) {
	return nil, nil
}

func (h *fakeHost) Resolve(ctx context.Context, kind extension.Kind, prepared extension.Prepared, shared extension.SharedContext, args []extension.ResolveArg) ([]extension.ResolveValue, error) {
	return nil, nil
}

func (h *fakeHost) CreateSubscription(ctx context.Context, prepared extension.Prepared, shared extension.SharedContext, arg extension.ResolveArg) (extension.SubscriptionHandle, []byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opens++
	h.nextID++
	id := h.nextID
	h.streams[id] = make(chan fakeEvent, 8)

	var dedupKey []byte
	if topic, ok := arg.Arguments["topic"].(string); ok {
		dedupKey = []byte(topic)
	}
	return id, dedupKey, nil
}

func (h *fakeHost) NextItem(ctx context.Context, handle extension.SubscriptionHandle) (interface{}, bool, error) {
	h.mu.Lock()
	ch := h.streams[handle]
	h.mu.Unlock()
	ev := <-ch
	return ev.item, ev.done, nil
}

func (h *fakeHost) DropSubscription(ctx context.Context, handle extension.SubscriptionHandle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropped = append(h.dropped, handle)
	return nil
}

func (h *fakeHost) publish(handle extension.SubscriptionHandle, item interface{}, done bool) {
	h.mu.Lock()
	ch := h.streams[handle]
	h.mu.Unlock()
	ch <- fakeEvent{item: item, done: done}
}

func TestSubscriptionsJoinDedupesByKey(t *testing.T) {
	host := newFakeHost()
	s := extension.NewSubscriptions(host)

	sub1, err := s.Join(context.Background(), nil, extension.SharedContext{}, extension.ResolveArg{Arguments: map[string]interface{}{"topic": "orders"}})
	require.NoError(t, err)
	sub2, err := s.Join(context.Background(), nil, extension.SharedContext{}, extension.ResolveArg{Arguments: map[string]interface{}{"topic": "orders"}})
	require.NoError(t, err)

	require.Equal(t, 2, host.opens, "both callers must call CreateSubscription per the Host contract")
	require.Len(t, host.dropped, 1, "the second caller's redundant upstream handle must be dropped")

	host.publish(extension.SubscriptionHandle(1), "hello", false)

	ev1 := <-sub1.Events
	ev2 := <-sub2.Events
	assert.Equal(t, "hello", ev1.item)
	assert.Equal(t, "hello", ev2.item)

	require.NoError(t, s.Leave(context.Background(), sub1))
	require.Len(t, host.dropped, 1, "upstream stays open while sub2 is still joined")
	require.NoError(t, s.Leave(context.Background(), sub2))
	require.Len(t, host.dropped, 2, "upstream drops once the last subscriber leaves")
}

func TestSubscriptionsJoinWithoutKeyNeverShares(t *testing.T) {
	host := newFakeHost()
	s := extension.NewSubscriptions(host)

	sub1, err := s.Join(context.Background(), nil, extension.SharedContext{}, extension.ResolveArg{})
	require.NoError(t, err)
	sub2, err := s.Join(context.Background(), nil, extension.SharedContext{}, extension.ResolveArg{})
	require.NoError(t, err)

	assert.Equal(t, 2, host.opens)
	assert.Empty(t, host.dropped)

	host.publish(extension.SubscriptionHandle(1), "a", false)
	host.publish(extension.SubscriptionHandle(2), "b", false)

	select {
	case ev := <-sub1.Events:
		assert.Equal(t, "a", ev.item)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sub1 event")
	}
	select {
	case ev := <-sub2.Events:
		assert.Equal(t, "b", ev.item)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sub2 event")
	}
}
