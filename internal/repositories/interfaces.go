package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastSeen(ctx context.Context, id uuid.UUID, status string, at time.Time) error
	Contacts(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
}

type GroupRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
	Members(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
	GroupsOf(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
}

type ConversationRepository interface {
	Participants(ctx context.Context, conversationID string) ([]uuid.UUID, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

type PresenceRepository interface {
	SetPresence(ctx context.Context, record *models.PresenceRecord) error
	GetPresence(ctx context.Context, userID string) (*models.PresenceRecord, error)
	GetBulkPresence(ctx context.Context, userIDs []string) (map[string]models.PresenceRecord, error)
	DeletePresence(ctx context.Context, userID string) error
	AddOnline(ctx context.Context, userID string) error
	RemoveOnline(ctx context.Context, userID string) error
	OnlineUsers(ctx context.Context) ([]string, error)
	OnlineCount(ctx context.Context) (int64, error)
	Subscribe(ctx context.Context, subscriberID string, targetIDs []string) error
	Unsubscribe(ctx context.Context, subscriberID string, targetIDs []string) error
	Subscribers(ctx context.Context, targetID string) ([]string, error)
}

type TypingRepository interface {
	Set(ctx context.Context, conversationID, userID string, at time.Time) error
	// Remove deletes one user's entry and reports whether it existed.
	Remove(ctx context.Context, conversationID, userID string) (bool, error)
	Entries(ctx context.Context, conversationID string) (map[string]time.Time, error)
	Replace(ctx context.Context, conversationID string, entries map[string]time.Time) error
	// ConversationsFor scans the typing key namespace for conversations
	// holding an entry for the given user.
	ConversationsFor(ctx context.Context, userID string) ([]string, error)
}

type CallRepository interface {
	Save(ctx context.Context, session *models.CallSession) error
	Get(ctx context.Context, id string) (*models.CallSession, error)
	Delete(ctx context.Context, id string) error
}

type RateLimitRepository interface {
	// Increment bumps the counter for key, starting a fresh window with the
	// given duration when the key did not exist, and returns the new count.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	Block(ctx context.Context, subject string, d time.Duration) error
	// BlockedFor returns the remaining block duration, or zero when not blocked.
	BlockedFor(ctx context.Context, subject string) (time.Duration, error)
}
