package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/models"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/repositories"
)

const groupConversationPrefix = "group:"

// DirectoryService implements the realtime package's Directory collaborator
// on top of the durable repositories and the auth service.
type DirectoryService struct {
	users         repositories.UserRepository
	groups        repositories.GroupRepository
	conversations repositories.ConversationRepository
	auth          *AuthService
}

func NewDirectoryService(
	users repositories.UserRepository,
	groups repositories.GroupRepository,
	conversations repositories.ConversationRepository,
	auth *AuthService,
) *DirectoryService {
	return &DirectoryService{
		users:         users,
		groups:        groups,
		conversations: conversations,
		auth:          auth,
	}
}

func (d *DirectoryService) ResolveIdentity(ctx context.Context, token string) (string, error) {
	claims, err := d.auth.VerifyToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID.String(), nil
}

func (d *DirectoryService) GetContacts(ctx context.Context, userID string) ([]string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	contacts, err := d.users.Contacts(ctx, id)
	if err != nil {
		return nil, err
	}
	return uuidsToStrings(contacts), nil
}

func (d *DirectoryService) GetGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	id, err := uuid.Parse(groupID)
	if err != nil {
		return nil, fmt.Errorf("invalid group id %q: %w", groupID, err)
	}
	members, err := d.groups.Members(ctx, id)
	if err != nil {
		return nil, err
	}
	return uuidsToStrings(members), nil
}

func (d *DirectoryService) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	groups, err := d.groups.GroupsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return uuidsToStrings(groups), nil
}

// ConversationParticipants resolves "group:<id>" conversations through group
// membership and everything else through the direct-conversation table.
func (d *DirectoryService) ConversationParticipants(ctx context.Context, conversationID string) ([]string, error) {
	if groupID, ok := strings.CutPrefix(conversationID, groupConversationPrefix); ok {
		return d.GetGroupMembers(ctx, groupID)
	}

	participants, err := d.conversations.Participants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return uuidsToStrings(participants), nil
}

func (d *DirectoryService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	return d.users.GetByID(ctx, id)
}

// LastKnownPresence builds a presence record from the durable user row for
// users whose ephemeral record has expired.
func (d *DirectoryService) LastKnownPresence(ctx context.Context, userID string) (*models.PresenceRecord, error) {
	user, err := d.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	record := &models.PresenceRecord{
		UserID: userID,
		Status: models.StatusOffline,
	}
	if status := models.PresenceStatus(user.Status); status.Valid() {
		record.Status = status
	}
	if user.LastSeenAt != nil {
		record.LastSeen = *user.LastSeenAt
	}
	return record, nil
}

func (d *DirectoryService) RecordLastSeen(ctx context.Context, userID string, status models.PresenceStatus, at time.Time) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	return d.users.UpdateLastSeen(ctx, id, string(status), at)
}

func uuidsToStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
