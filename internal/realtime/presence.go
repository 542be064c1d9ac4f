package realtime

import (
	"context"
	"log"
	"time"

	"github.com/mugisham37/real-time-chat-application-sub002/internal/models"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/repositories"
)

// PresenceEngine derives each user's presence from aggregate connection
// state plus explicit status overrides, and fans transitions out to the
// user's contacts and subscribers.
//
// It implements PresenceListener; the registry invokes it under the user's
// slot lock, so transitions for one user are serialized.
type PresenceEngine struct {
	store     repositories.PresenceRepository
	directory Directory
	rooms     *RoomManager
}

func NewPresenceEngine(store repositories.PresenceRepository, directory Directory, rooms *RoomManager) *PresenceEngine {
	return &PresenceEngine{store: store, directory: directory, rooms: rooms}
}

// OnConnectionBecameActive marks the user online and notifies contacts.
// The presence write is the primary state change; notification fan-out is
// best effort and never aborts it.
func (e *PresenceEngine) OnConnectionBecameActive(ctx context.Context, userID string) {
	record := &models.PresenceRecord{
		UserID:   userID,
		Status:   models.StatusOnline,
		LastSeen: time.Now(),
	}
	if err := e.store.SetPresence(ctx, record); err != nil {
		log.Printf("presence: failed to write online record for %s: %v", userID, err)
		return
	}
	if err := e.store.AddOnline(ctx, userID); err != nil {
		log.Printf("presence: failed to add %s to online set: %v", userID, err)
	}

	e.notify(e.contactsOf(ctx, userID), PushPresenceOnline, PresenceEventPayload{
		UserID:   userID,
		Status:   string(models.StatusOnline),
		LastSeen: record.LastSeen,
	})
}

// OnConnectionBecameInactive marks the user offline and notifies contacts
// plus the user's explicit presence subscribers.
func (e *PresenceEngine) OnConnectionBecameInactive(ctx context.Context, userID string) {
	now := time.Now()
	record := &models.PresenceRecord{
		UserID:   userID,
		Status:   models.StatusOffline,
		LastSeen: now,
	}
	if err := e.store.SetPresence(ctx, record); err != nil {
		log.Printf("presence: failed to write offline record for %s: %v", userID, err)
		return
	}
	if err := e.store.RemoveOnline(ctx, userID); err != nil {
		log.Printf("presence: failed to remove %s from online set: %v", userID, err)
	}
	if err := e.directory.RecordLastSeen(ctx, userID, models.StatusOffline, now); err != nil {
		log.Printf("presence: failed to record last seen for %s: %v", userID, err)
	}

	targets := e.contactsOf(ctx, userID)
	if subscribers, err := e.store.Subscribers(ctx, userID); err != nil {
		log.Printf("presence: failed to fetch subscribers of %s: %v", userID, err)
	} else {
		targets = append(targets, subscribers...)
	}

	e.notify(targets, PushPresenceOffline, PresenceEventPayload{
		UserID:   userID,
		Status:   string(models.StatusOffline),
		LastSeen: now,
	})
}

// UpdateStatus applies an explicit user-initiated status override. A
// non-online status removes the user from the online set even while
// connections remain open.
func (e *PresenceEngine) UpdateStatus(ctx context.Context, userID string, status models.PresenceStatus, customStatus string) (*models.PresenceRecord, error) {
	if !status.Valid() {
		return nil, NewValidationError("status must be one of online, away, busy, offline", "status")
	}

	record := &models.PresenceRecord{
		UserID:       userID,
		Status:       status,
		CustomStatus: customStatus,
		LastSeen:     time.Now(),
	}
	if err := e.store.SetPresence(ctx, record); err != nil {
		return nil, NewDependencyError("failed to update presence", err)
	}

	if status == models.StatusOnline {
		if err := e.store.AddOnline(ctx, userID); err != nil {
			log.Printf("presence: failed to add %s to online set: %v", userID, err)
		}
	} else {
		if err := e.store.RemoveOnline(ctx, userID); err != nil {
			log.Printf("presence: failed to remove %s from online set: %v", userID, err)
		}
	}

	e.notify(e.contactsOf(ctx, userID), PushPresenceUpdated, PresenceEventPayload{
		UserID:       userID,
		Status:       string(status),
		CustomStatus: customStatus,
		LastSeen:     record.LastSeen,
	})
	return record, nil
}

// GetPresence reads ephemeral records first and falls back to the durable
// directory for users whose record has expired. The fallback is never
// written back to the fast path.
func (e *PresenceEngine) GetPresence(ctx context.Context, userIDs []string) (map[string]models.PresenceRecord, error) {
	records, err := e.store.GetBulkPresence(ctx, userIDs)
	if err != nil {
		return nil, NewDependencyError("failed to read presence", err)
	}

	for _, userID := range userIDs {
		if _, ok := records[userID]; ok {
			continue
		}
		fallback, err := e.directory.LastKnownPresence(ctx, userID)
		if err != nil {
			log.Printf("presence: durable fallback failed for %s: %v", userID, err)
			records[userID] = models.PresenceRecord{UserID: userID, Status: models.StatusOffline}
			continue
		}
		records[userID] = *fallback
	}
	return records, nil
}

func (e *PresenceEngine) Subscribe(ctx context.Context, subscriberID string, targetIDs []string) error {
	if err := e.store.Subscribe(ctx, subscriberID, targetIDs); err != nil {
		return NewDependencyError("failed to subscribe", err)
	}
	return nil
}

func (e *PresenceEngine) Unsubscribe(ctx context.Context, subscriberID string, targetIDs []string) error {
	if err := e.store.Unsubscribe(ctx, subscriberID, targetIDs); err != nil {
		return NewDependencyError("failed to unsubscribe", err)
	}
	return nil
}

func (e *PresenceEngine) OnlineCount(ctx context.Context) (int64, error) {
	count, err := e.store.OnlineCount(ctx)
	if err != nil {
		return 0, NewDependencyError("failed to count online users", err)
	}
	return count, nil
}

func (e *PresenceEngine) OnlineUsers(ctx context.Context, limit int) ([]string, error) {
	users, err := e.store.OnlineUsers(ctx)
	if err != nil {
		return nil, NewDependencyError("failed to list online users", err)
	}
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// contactsOf fetches the contact list, logging failures; presence
// correctness takes priority over notification completeness.
func (e *PresenceEngine) contactsOf(ctx context.Context, userID string) []string {
	contacts, err := e.directory.GetContacts(ctx, userID)
	if err != nil {
		log.Printf("presence: failed to fetch contacts of %s: %v", userID, err)
		return nil
	}
	return contacts
}

// notify broadcasts a presence event to each target's personal room, at most
// once per target.
func (e *PresenceEngine) notify(targets []string, event string, payload PresenceEventPayload) {
	seen := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		e.rooms.Broadcast(UserRoom(target), event, payload, nil)
	}
}
