package realtime

import (
	"sync"
)

// Room ID namespaces. The manager itself is agnostic to their meaning.
const (
	userRoomPrefix  = "user:"
	groupRoomPrefix = "group:"
	callRoomPrefix  = "call:"
)

func UserRoom(userID string) string   { return userRoomPrefix + userID }
func GroupRoom(groupID string) string { return groupRoomPrefix + groupID }
func CallRoom(callID string) string   { return callRoomPrefix + callID }

// ConnSource resolves connection IDs to push endpoints. Implemented by
// *Registry.
type ConnSource interface {
	Pusher(connID string) (Pusher, bool)
}

// RoomManager maintains which connections belong to which rooms with a dual
// index: room -> connections for fan-out, connection -> rooms for O(1)
// LeaveAll on disconnect.
type RoomManager struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]struct{} // roomID -> connIDs
	conns  map[string]map[string]struct{} // connID -> roomIDs
	source ConnSource
}

func NewRoomManager(source ConnSource) *RoomManager {
	return &RoomManager{
		rooms:  make(map[string]map[string]struct{}),
		conns:  make(map[string]map[string]struct{}),
		source: source,
	}
}

// Join adds a connection to a room. Idempotent.
func (m *RoomManager) Join(connID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rooms[roomID] == nil {
		m.rooms[roomID] = make(map[string]struct{})
	}
	m.rooms[roomID][connID] = struct{}{}
	if m.conns[connID] == nil {
		m.conns[connID] = make(map[string]struct{})
	}
	m.conns[connID][roomID] = struct{}{}
}

// Leave removes a connection from a room. Idempotent.
func (m *RoomManager) Leave(connID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(connID, roomID)
}

func (m *RoomManager) removeLocked(connID, roomID string) {
	if members, ok := m.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(m.rooms, roomID)
		}
	}
	if rooms, ok := m.conns[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(m.conns, connID)
		}
	}
}

// LeaveAll removes a connection from every room it belongs to. Safe to call
// concurrently with in-flight broadcasts; a broadcast that already snapshotted
// the membership may still deliver to the leaving connection once.
func (m *RoomManager) LeaveAll(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for roomID := range m.conns[connID] {
		m.removeLocked(connID, roomID)
	}
}

// MembersOf returns a snapshot of the connection IDs currently in the room.
func (m *RoomManager) MembersOf(roomID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := m.rooms[roomID]
	if len(members) == 0 {
		return nil
	}
	result := make([]string, 0, len(members))
	for connID := range members {
		result = append(result, connID)
	}
	return result
}

// RoomsOf returns a snapshot of the rooms a connection belongs to.
func (m *RoomManager) RoomsOf(connID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms := m.conns[connID]
	if len(rooms) == 0 {
		return nil
	}
	result := make([]string, 0, len(rooms))
	for roomID := range rooms {
		result = append(result, roomID)
	}
	return result
}

// Broadcast delivers an event to every connection in the room as of one
// atomic membership snapshot, minus the excluded set. Sends happen outside
// the lock; a connection that deregistered after the snapshot is skipped.
func (m *RoomManager) Broadcast(roomID, event string, data any, exclude map[string]struct{}) {
	m.mu.RLock()
	members := make([]string, 0, len(m.rooms[roomID]))
	for connID := range m.rooms[roomID] {
		if _, skip := exclude[connID]; skip {
			continue
		}
		members = append(members, connID)
	}
	m.mu.RUnlock()

	for _, connID := range members {
		if p, ok := m.source.Pusher(connID); ok {
			p.Push(event, data)
		}
	}
}
