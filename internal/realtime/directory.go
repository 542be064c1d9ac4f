package realtime

import (
	"context"
	"strings"
	"time"

	"github.com/mugisham37/real-time-chat-application-sub002/internal/models"
)

// Directory is the identity collaborator: it resolves tokens to user
// identities and answers contact, group, and conversation membership
// questions from the durable store.
type Directory interface {
	ResolveIdentity(ctx context.Context, token string) (string, error)
	GetContacts(ctx context.Context, userID string) ([]string, error)
	GetGroupMembers(ctx context.Context, groupID string) ([]string, error)
	GroupsOf(ctx context.Context, userID string) ([]string, error)
	// ConversationParticipants answers for both direct conversations and
	// group conversations ("group:<id>").
	ConversationParticipants(ctx context.Context, conversationID string) ([]string, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	// LastKnownPresence is the durable fallback for expired ephemeral records.
	LastKnownPresence(ctx context.Context, userID string) (*models.PresenceRecord, error)
	RecordLastSeen(ctx context.Context, userID string, status models.PresenceStatus, at time.Time) error
}

// IsGroupConversation reports whether a conversation ID addresses a group
// room rather than a direct conversation.
func IsGroupConversation(conversationID string) bool {
	return strings.HasPrefix(conversationID, groupRoomPrefix)
}
