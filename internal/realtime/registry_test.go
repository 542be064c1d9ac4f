package realtime

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu       sync.Mutex
	active   []string
	inactive []string
}

func (l *recordingListener) OnConnectionBecameActive(ctx context.Context, userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = append(l.active, userID)
}

func (l *recordingListener) OnConnectionBecameInactive(ctx context.Context, userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inactive = append(l.inactive, userID)
}

func (l *recordingListener) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active), len(l.inactive)
}

// TestRegistry_TransitionSignals verifies exactly one active signal on the
// first connection and exactly one inactive signal on the last disconnect,
// regardless of how many connections the user holds in between.
func TestRegistry_TransitionSignals(t *testing.T) {
	registry := NewRegistry()
	listener := &recordingListener{}
	registry.SetListener(listener)
	ctx := context.Background()

	conn1 := registry.Register(ctx, "alice", &fakePusher{})
	conn2 := registry.Register(ctx, "alice", &fakePusher{})

	active, inactive := listener.counts()
	assert.Equal(t, 1, active, "only the first connection should fire active")
	assert.Equal(t, 0, inactive)
	assert.Equal(t, 2, registry.CountAll())

	// Closing one of two connections must not fire inactive
	last := registry.Deregister(ctx, conn1.ID)
	assert.False(t, last)
	_, inactive = listener.counts()
	assert.Equal(t, 0, inactive)

	last = registry.Deregister(ctx, conn2.ID)
	assert.True(t, last, "closing the final connection should report last")
	active, inactive = listener.counts()
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, inactive)
	assert.Equal(t, 0, registry.CountAll())
}

// TestRegistry_DeregisterIdempotent verifies duplicate and unknown disconnects
// are silent no-ops.
func TestRegistry_DeregisterIdempotent(t *testing.T) {
	registry := NewRegistry()
	listener := &recordingListener{}
	registry.SetListener(listener)
	ctx := context.Background()

	conn := registry.Register(ctx, "alice", &fakePusher{})

	assert.True(t, registry.Deregister(ctx, conn.ID))
	assert.False(t, registry.Deregister(ctx, conn.ID), "second deregister must be a no-op")
	assert.False(t, registry.Deregister(ctx, "no-such-connection"))

	_, inactive := listener.counts()
	assert.Equal(t, 1, inactive, "inactive must fire exactly once")
}

// TestRegistry_ReconnectAfterLastDisconnect verifies a user going offline and
// immediately back online produces a fresh active signal.
func TestRegistry_ReconnectAfterLastDisconnect(t *testing.T) {
	registry := NewRegistry()
	listener := &recordingListener{}
	registry.SetListener(listener)
	ctx := context.Background()

	conn := registry.Register(ctx, "alice", &fakePusher{})
	registry.Deregister(ctx, conn.ID)
	registry.Register(ctx, "alice", &fakePusher{})

	active, inactive := listener.counts()
	assert.Equal(t, 2, active)
	assert.Equal(t, 1, inactive)
}

// TestRegistry_ConcurrentChurn hammers register/deregister across many users
// and checks the signals stay balanced and nothing leaks.
func TestRegistry_ConcurrentChurn(t *testing.T) {
	registry := NewRegistry()
	listener := &recordingListener{}
	registry.SetListener(listener)
	ctx := context.Background()

	users := []string{"alice", "bob", "carol", "dave"}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, user := range users {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				conn := registry.Register(ctx, user, &fakePusher{})
				registry.Deregister(ctx, conn.ID)
			}(user)
		}
	}
	wg.Wait()

	assert.Equal(t, 0, registry.CountAll(), "all connections should be gone")
	active, inactive := listener.counts()
	assert.Equal(t, active, inactive, "every active signal needs a matching inactive")
	for _, user := range users {
		assert.Empty(t, registry.ActiveConnections(user))
	}
}

func TestRegistry_PusherLookup(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	pusher := &fakePusher{}
	conn := registry.Register(ctx, "alice", pusher)

	got, ok := registry.Pusher(conn.ID)
	require.True(t, ok)
	got.Push("test:event", nil)
	assert.Len(t, pusher.Pushes(), 1)

	registry.Deregister(ctx, conn.ID)
	_, ok = registry.Pusher(conn.ID)
	assert.False(t, ok, "deregistered connection should not resolve")
}

func TestRegistry_ActiveConnections(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	conn1 := registry.Register(ctx, "alice", &fakePusher{})
	conn2 := registry.Register(ctx, "alice", &fakePusher{})
	registry.Register(ctx, "bob", &fakePusher{})

	ids := registry.ActiveConnections("alice")
	assert.ElementsMatch(t, []string{conn1.ID, conn2.ID}, ids)
	assert.Len(t, registry.ActiveConnections("bob"), 1)
	assert.Empty(t, registry.ActiveConnections("nobody"))
}
