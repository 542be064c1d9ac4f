package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Pusher delivers a server->client push over one live transport session.
// Implementations must not block the caller.
type Pusher interface {
	Push(event string, data any)
}

// PresenceListener receives the 0->1 and 1->0 connection-count transitions
// for a user. Calls are made while that user's slot lock is held, so
// transitions for one user are strictly ordered and never double-fired.
type PresenceListener interface {
	OnConnectionBecameActive(ctx context.Context, userID string)
	OnConnectionBecameInactive(ctx context.Context, userID string)
}

// Connection is one live, authenticated transport session. It is owned by
// the Registry; other components hold only its ID.
type Connection struct {
	ID          string
	UserID      string
	ConnectedAt time.Time
	pusher      Pusher
}

func (c *Connection) Push(event string, data any) {
	c.pusher.Push(event, data)
}

// userSlot holds one user's connections under a dedicated lock so unrelated
// users' connect/disconnect never serialize against each other.
type userSlot struct {
	mu    sync.Mutex
	dead  bool
	conns map[string]*Connection
}

// Registry tracks every active connection grouped by owning user and fires
// became-active/became-inactive signals on count transitions.
type Registry struct {
	slots    sync.Map // userID -> *userSlot
	conns    sync.Map // connID -> *Connection
	total    atomic.Int64
	listener PresenceListener
}

func NewRegistry() *Registry {
	return &Registry{}
}

// SetListener installs the presence listener. Must be called before the
// registry starts receiving connections.
func (r *Registry) SetListener(l PresenceListener) {
	r.listener = l
}

// Register adds a connection for userID. If it is the user's first active
// connection, the listener's OnConnectionBecameActive fires before Register
// returns.
func (r *Registry) Register(ctx context.Context, userID string, p Pusher) *Connection {
	for {
		v, _ := r.slots.LoadOrStore(userID, &userSlot{conns: make(map[string]*Connection)})
		slot := v.(*userSlot)

		slot.mu.Lock()
		if slot.dead {
			// Lost a race with the slot's removal; fetch a fresh one.
			slot.mu.Unlock()
			continue
		}

		conn := &Connection{
			ID:          uuid.New().String(),
			UserID:      userID,
			ConnectedAt: time.Now(),
			pusher:      p,
		}
		slot.conns[conn.ID] = conn
		r.conns.Store(conn.ID, conn)
		r.total.Add(1)

		if len(slot.conns) == 1 && r.listener != nil {
			r.listener.OnConnectionBecameActive(ctx, userID)
		}
		slot.mu.Unlock()
		return conn
	}
}

// Deregister removes a connection. Unknown IDs are a no-op: duplicate
// disconnect events from a flaky transport must not error or double-fire
// the inactive signal. Returns true when this was the user's last
// connection.
func (r *Registry) Deregister(ctx context.Context, connID string) bool {
	v, ok := r.conns.Load(connID)
	if !ok {
		return false
	}
	conn := v.(*Connection)

	sv, ok := r.slots.Load(conn.UserID)
	if !ok {
		return false
	}
	slot := sv.(*userSlot)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if _, ok := slot.conns[connID]; !ok {
		return false
	}
	delete(slot.conns, connID)
	r.conns.Delete(connID)
	r.total.Add(-1)

	if len(slot.conns) > 0 {
		return false
	}

	slot.dead = true
	r.slots.Delete(conn.UserID)
	if r.listener != nil {
		r.listener.OnConnectionBecameInactive(ctx, conn.UserID)
	}
	return true
}

// ActiveConnections returns a snapshot of the user's connection IDs.
func (r *Registry) ActiveConnections(userID string) []string {
	v, ok := r.slots.Load(userID)
	if !ok {
		return nil
	}
	slot := v.(*userSlot)

	slot.mu.Lock()
	defer slot.mu.Unlock()
	ids := make([]string, 0, len(slot.conns))
	for id := range slot.conns {
		ids = append(ids, id)
	}
	return ids
}

// CountAll returns the total number of live connections.
func (r *Registry) CountAll() int {
	return int(r.total.Load())
}

// Pusher resolves a connection ID to its push endpoint.
func (r *Registry) Pusher(connID string) (Pusher, bool) {
	v, ok := r.conns.Load(connID)
	if !ok {
		return nil, false
	}
	return v.(*Connection), true
}
