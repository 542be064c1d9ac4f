package realtime

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mugisham37/real-time-chat-application-sub002/internal/models"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/repositories"
)

// TypingTTL is the window during which a typing entry counts as active.
// A crashed client's indicator self-heals within this window without an
// explicit stop signal.
const TypingTTL = 5 * time.Second

// TypingCoordinator maintains short-lived typing entries per conversation
// and broadcasts transitions to the other participants.
type TypingCoordinator struct {
	store     repositories.TypingRepository
	directory Directory
	registry  *Registry
	rooms     *RoomManager
}

func NewTypingCoordinator(store repositories.TypingRepository, directory Directory, registry *Registry, rooms *RoomManager) *TypingCoordinator {
	return &TypingCoordinator{store: store, directory: directory, registry: registry, rooms: rooms}
}

// SetTyping upserts or removes the caller's typing entry and broadcasts the
// transition, excluding the caller's own connections.
func (t *TypingCoordinator) SetTyping(ctx context.Context, userID, conversationID string, isTyping bool) error {
	participants, err := t.participantsOf(ctx, conversationID, userID)
	if err != nil {
		return err
	}

	if isTyping {
		if err := t.store.Set(ctx, conversationID, userID, time.Now()); err != nil {
			return NewDependencyError("failed to set typing state", err)
		}
	} else {
		if _, err := t.store.Remove(ctx, conversationID, userID); err != nil {
			return NewDependencyError("failed to clear typing state", err)
		}
	}

	t.broadcast(ctx, conversationID, participants, userID, isTyping)
	return nil
}

// GetTyping returns the active typing users of a conversation, re-filtering
// entries against TypingTTL in case the store's own expiry is coarser, and
// rewriting the filtered map back.
func (t *TypingCoordinator) GetTyping(ctx context.Context, userID, conversationID string) ([]models.TypingUser, error) {
	if _, err := t.participantsOf(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	entries, err := t.store.Entries(ctx, conversationID)
	if err != nil {
		return nil, NewDependencyError("failed to read typing state", err)
	}

	now := time.Now()
	active := make(map[string]time.Time, len(entries))
	for id, ts := range entries {
		if now.Sub(ts) < TypingTTL {
			active[id] = ts
		}
	}
	if len(active) != len(entries) {
		if err := t.store.Replace(ctx, conversationID, active); err != nil {
			log.Printf("typing: failed to rewrite filtered entries for %s: %v", conversationID, err)
		}
	}

	users := make([]models.TypingUser, 0, len(active))
	for id, ts := range active {
		users = append(users, t.resolveUser(ctx, id, ts))
	}
	return users, nil
}

// ClearTyping removes the caller's entry for one conversation, broadcasting
// only if an entry actually existed.
func (t *TypingCoordinator) ClearTyping(ctx context.Context, userID, conversationID string) error {
	participants, err := t.participantsOf(ctx, conversationID, userID)
	if err != nil {
		return err
	}

	existed, err := t.store.Remove(ctx, conversationID, userID)
	if err != nil {
		return NewDependencyError("failed to clear typing state", err)
	}
	if existed {
		t.broadcast(ctx, conversationID, participants, userID, false)
	}
	return nil
}

// ClearOnDisconnect scans the typing namespace for the user's entries and
// clears them, broadcasting a stop only for conversations where the user was
// actually typing. Called when the user's last connection closes.
func (t *TypingCoordinator) ClearOnDisconnect(ctx context.Context, userID string) {
	conversations, err := t.store.ConversationsFor(ctx, userID)
	if err != nil {
		log.Printf("typing: failed to scan entries for %s: %v", userID, err)
		return
	}

	for _, conversationID := range conversations {
		existed, err := t.store.Remove(ctx, conversationID, userID)
		if err != nil {
			log.Printf("typing: failed to clear %s in %s: %v", userID, conversationID, err)
			continue
		}
		if !existed {
			continue
		}
		participants, err := t.directory.ConversationParticipants(ctx, conversationID)
		if err != nil {
			log.Printf("typing: failed to resolve participants of %s: %v", conversationID, err)
			continue
		}
		t.broadcast(ctx, conversationID, participants, userID, false)
	}
}

// participantsOf resolves the conversation's participants and checks the
// caller is one of them.
func (t *TypingCoordinator) participantsOf(ctx context.Context, conversationID, userID string) ([]string, error) {
	participants, err := t.directory.ConversationParticipants(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, NewNotFoundError("conversation not found")
		}
		return nil, NewDependencyError("failed to resolve conversation", err)
	}

	for _, id := range participants {
		if id == userID {
			return participants, nil
		}
	}
	return nil, NewUnauthorizedError("not a participant of this conversation")
}

func (t *TypingCoordinator) broadcast(ctx context.Context, conversationID string, participants []string, userID string, isTyping bool) {
	payload := TypingEventPayload{
		ConversationID: conversationID,
		User:           t.resolveUser(ctx, userID, time.Now()),
		IsTyping:       isTyping,
	}

	if IsGroupConversation(conversationID) {
		// Group conversations map 1:1 onto their room; exclude the sender's
		// own connections from the fan-out.
		exclude := make(map[string]struct{})
		for _, connID := range t.registry.ActiveConnections(userID) {
			exclude[connID] = struct{}{}
		}
		t.rooms.Broadcast(conversationID, PushTypingUpdated, payload, exclude)
		return
	}

	for _, participant := range participants {
		if participant == userID {
			continue
		}
		t.rooms.Broadcast(UserRoom(participant), PushTypingUpdated, payload, nil)
	}
}

// resolveUser attaches display details; a directory failure degrades to the
// bare user ID rather than dropping the event.
func (t *TypingCoordinator) resolveUser(ctx context.Context, userID string, startedAt time.Time) models.TypingUser {
	entry := models.TypingUser{UserID: userID, StartedAt: startedAt}
	user, err := t.directory.GetUser(ctx, userID)
	if err != nil {
		log.Printf("typing: failed to resolve user %s: %v", userID, err)
		return entry
	}
	entry.Username = user.Username
	entry.DisplayName = user.DisplayName
	entry.AvatarURL = user.AvatarURL
	return entry
}
