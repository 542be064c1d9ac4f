package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/mugisham37/real-time-chat-application-sub002/internal/models"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/repositories"
)

// In-memory collaborators shared by the engine tests.

type push struct {
	Event string
	Data  any
}

type fakePusher struct {
	mu     sync.Mutex
	pushes []push
}

func (p *fakePusher) Push(event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, push{Event: event, Data: data})
}

func (p *fakePusher) Pushes() []push {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]push, len(p.pushes))
	copy(out, p.pushes)
	return out
}

func (p *fakePusher) CountOf(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, pu := range p.pushes {
		if pu.Event == event {
			n++
		}
	}
	return n
}

type fakeDirectory struct {
	mu            sync.Mutex
	contacts      map[string][]string
	groups        map[string][]string // groupID -> members
	memberships   map[string][]string // userID -> groupIDs
	conversations map[string][]string // conversationID -> participants
	users         map[string]*models.User
	lastSeen      map[string]time.Time
	err           error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		contacts:      make(map[string][]string),
		groups:        make(map[string][]string),
		memberships:   make(map[string][]string),
		conversations: make(map[string][]string),
		users:         make(map[string]*models.User),
		lastSeen:      make(map[string]time.Time),
	}
}

func (d *fakeDirectory) ResolveIdentity(ctx context.Context, token string) (string, error) {
	return token, d.err
}

func (d *fakeDirectory) GetContacts(ctx context.Context, userID string) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.contacts[userID], nil
}

func (d *fakeDirectory) GetGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	members, ok := d.groups[groupID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return members, nil
}

func (d *fakeDirectory) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	return d.memberships[userID], d.err
}

func (d *fakeDirectory) ConversationParticipants(ctx context.Context, conversationID string) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	if IsGroupConversation(conversationID) {
		return d.GetGroupMembers(ctx, conversationID[len("group:"):])
	}
	participants, ok := d.conversations[conversationID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return participants, nil
}

func (d *fakeDirectory) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, ok := d.users[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return user, nil
}

func (d *fakeDirectory) LastKnownPresence(ctx context.Context, userID string) (*models.PresenceRecord, error) {
	user, ok := d.users[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	record := &models.PresenceRecord{UserID: userID, Status: models.StatusOffline}
	if status := models.PresenceStatus(user.Status); status.Valid() {
		record.Status = status
	}
	if user.LastSeenAt != nil {
		record.LastSeen = *user.LastSeenAt
	}
	return record, nil
}

func (d *fakeDirectory) RecordLastSeen(ctx context.Context, userID string, status models.PresenceStatus, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSeen[userID] = at
	return nil
}

type fakePresenceStore struct {
	mu          sync.Mutex
	records     map[string]models.PresenceRecord
	online      map[string]struct{}
	subscribers map[string]map[string]struct{} // targetID -> subscriberIDs
	err         error
}

func newFakePresenceStore() *fakePresenceStore {
	return &fakePresenceStore{
		records:     make(map[string]models.PresenceRecord),
		online:      make(map[string]struct{}),
		subscribers: make(map[string]map[string]struct{}),
	}
}

func (s *fakePresenceStore) SetPresence(ctx context.Context, record *models.PresenceRecord) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.UserID] = *record
	return nil
}

func (s *fakePresenceStore) GetPresence(ctx context.Context, userID string) (*models.PresenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &record, nil
}

func (s *fakePresenceStore) GetBulkPresence(ctx context.Context, userIDs []string) (map[string]models.PresenceRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.PresenceRecord)
	for _, id := range userIDs {
		if record, ok := s.records[id]; ok {
			out[id] = record
		}
	}
	return out, nil
}

func (s *fakePresenceStore) DeletePresence(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

func (s *fakePresenceStore) AddOnline(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[userID] = struct{}{}
	return nil
}

func (s *fakePresenceStore) RemoveOnline(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.online, userID)
	return nil
}

func (s *fakePresenceStore) OnlineUsers(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.online))
	for id := range s.online {
		out = append(out, id)
	}
	return out, nil
}

func (s *fakePresenceStore) OnlineCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.online)), nil
}

func (s *fakePresenceStore) Subscribe(ctx context.Context, subscriberID string, targetIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, target := range targetIDs {
		if s.subscribers[target] == nil {
			s.subscribers[target] = make(map[string]struct{})
		}
		s.subscribers[target][subscriberID] = struct{}{}
	}
	return nil
}

func (s *fakePresenceStore) Unsubscribe(ctx context.Context, subscriberID string, targetIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, target := range targetIDs {
		delete(s.subscribers[target], subscriberID)
	}
	return nil
}

func (s *fakePresenceStore) Subscribers(ctx context.Context, targetID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.subscribers[targetID]))
	for id := range s.subscribers[targetID] {
		out = append(out, id)
	}
	return out, nil
}

func (s *fakePresenceStore) isOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[userID]
	return ok
}

type fakeTypingStore struct {
	mu      sync.Mutex
	entries map[string]map[string]time.Time // conversationID -> userID -> startedAt
	err     error
}

func newFakeTypingStore() *fakeTypingStore {
	return &fakeTypingStore{entries: make(map[string]map[string]time.Time)}
}

func (s *fakeTypingStore) Set(ctx context.Context, conversationID, userID string, at time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[conversationID] == nil {
		s.entries[conversationID] = make(map[string]time.Time)
	}
	s.entries[conversationID][userID] = at
	return nil
}

func (s *fakeTypingStore) Remove(ctx context.Context, conversationID, userID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.entries[conversationID]
	if !ok {
		return false, nil
	}
	if _, ok := conv[userID]; !ok {
		return false, nil
	}
	delete(conv, userID)
	if len(conv) == 0 {
		delete(s.entries, conversationID)
	}
	return true, nil
}

func (s *fakeTypingStore) Entries(ctx context.Context, conversationID string) (map[string]time.Time, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.entries[conversationID]))
	for id, ts := range s.entries[conversationID] {
		out[id] = ts
	}
	return out, nil
}

func (s *fakeTypingStore) Replace(ctx context.Context, conversationID string, entries map[string]time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(entries) == 0 {
		delete(s.entries, conversationID)
		return nil
	}
	conv := make(map[string]time.Time, len(entries))
	for id, ts := range entries {
		conv[id] = ts
	}
	s.entries[conversationID] = conv
	return nil
}

func (s *fakeTypingStore) ConversationsFor(ctx context.Context, userID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for conversationID, conv := range s.entries {
		if _, ok := conv[userID]; ok {
			out = append(out, conversationID)
		}
	}
	return out, nil
}

type fakeCallStore struct {
	mu       sync.Mutex
	sessions map[string]models.CallSession
	saves    int
	err      error
}

func newFakeCallStore() *fakeCallStore {
	return &fakeCallStore{sessions: make(map[string]models.CallSession)}
}

func (s *fakeCallStore) Save(ctx context.Context, session *models.CallSession) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	s.saves++
	return nil
}

func (s *fakeCallStore) Get(ctx context.Context, id string) (*models.CallSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &session, nil
}

func (s *fakeCallStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

type rateEntry struct {
	count   int64
	expires time.Time
}

type fakeRateStore struct {
	mu      sync.Mutex
	entries map[string]*rateEntry
	blocked map[string]time.Time
	err     error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{
		entries: make(map[string]*rateEntry),
		blocked: make(map[string]time.Time),
	}
}

func (s *fakeRateStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok || time.Now().After(entry.expires) {
		entry = &rateEntry{expires: time.Now().Add(window)}
		s.entries[key] = entry
	}
	entry.count++
	return entry.count, nil
}

func (s *fakeRateStore) Block(ctx context.Context, subject string, d time.Duration) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[subject] = time.Now().Add(d)
	return nil
}

func (s *fakeRateStore) BlockedFor(ctx context.Context, subject string) (time.Duration, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.blocked[subject]
	if !ok {
		return 0, nil
	}
	remaining := time.Until(until)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// setCount seeds a counter mid-window, for tests that need to reach a limit
// without issuing that many calls.
func (s *fakeRateStore) setCount(key string, count int64, window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &rateEntry{count: count, expires: time.Now().Add(window)}
}

// connectUser registers a pusher for the user and joins their personal room,
// mirroring what the websocket gateway does on connect.
func connectUser(registry *Registry, rooms *RoomManager, userID string) (*Connection, *fakePusher) {
	pusher := &fakePusher{}
	conn := registry.Register(context.Background(), userID, pusher)
	rooms.Join(conn.ID, UserRoom(userID))
	return conn, pusher
}
