package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mugisham37/real-time-chat-application-sub002/internal/models"
	"github.com/mugisham37/real-time-chat-application-sub002/internal/repositories"
)

// CallCoordinator creates ephemeral call sessions and relays WebRTC
// signaling payloads between exactly two peers. Session state moves
// monotonically along ringing -> {connected, rejected} -> ended; nothing
// mutates a session found in the ended state.
type CallCoordinator struct {
	store     repositories.CallRepository
	directory Directory
	rooms     *RoomManager
}

func NewCallCoordinator(store repositories.CallRepository, directory Directory, rooms *RoomManager) *CallCoordinator {
	return &CallCoordinator{store: store, directory: directory, rooms: rooms}
}

// Offer creates a ringing call session and delivers call:incoming to the
// recipient. Fails without creating a session when the recipient has no
// active connection.
func (c *CallCoordinator) Offer(ctx context.Context, callerID string, p CallOfferPayload) (*models.CallSession, error) {
	kind := models.CallKind(p.CallType)
	if !kind.Valid() {
		return nil, NewValidationError("callType must be audio or video", "callType")
	}
	if p.SDP == "" {
		return nil, NewValidationError("sdp is required", "sdp")
	}
	if p.RecipientID == callerID {
		return nil, NewValidationError("cannot call yourself", "recipientId")
	}

	if len(c.rooms.MembersOf(UserRoom(p.RecipientID))) == 0 {
		return nil, NewNotFoundError("Recipient is offline")
	}

	now := time.Now()
	session := &models.CallSession{
		ID:          callID(callerID, p.RecipientID, now),
		CallerID:    callerID,
		RecipientID: p.RecipientID,
		Kind:        kind,
		Status:      models.CallRinging,
		SDP:         p.SDP,
		StartedAt:   now,
	}
	if err := c.store.Save(ctx, session); err != nil {
		return nil, NewDependencyError("failed to create call session", err)
	}

	incoming := CallIncomingPayload{
		CallID:   session.ID,
		CallerID: callerID,
		SDP:      p.SDP,
		CallType: p.CallType,
	}
	if caller, err := c.directory.GetUser(ctx, callerID); err != nil {
		log.Printf("calls: failed to resolve caller %s: %v", callerID, err)
	} else {
		incoming.CallerName = caller.DisplayName
		if caller.AvatarURL != nil {
			incoming.CallerAvatar = *caller.AvatarURL
		}
	}

	c.rooms.Broadcast(UserRoom(p.RecipientID), PushCallIncoming, incoming, nil)
	return session, nil
}

// Answer transitions a ringing call to connected or rejected. Only the
// recorded recipient may answer; an accepted answer must carry an SDP and a
// rejected one must not.
func (c *CallCoordinator) Answer(ctx context.Context, responderID string, p CallAnswerPayload) (*models.CallSession, error) {
	if p.Accepted && p.SDP == "" {
		return nil, NewValidationError("sdp is required when accepting a call", "sdp")
	}
	if !p.Accepted && p.SDP != "" {
		return nil, NewValidationError("sdp must be omitted when rejecting a call", "sdp")
	}

	session, err := c.load(ctx, p.CallID)
	if err != nil {
		return nil, err
	}
	if session.RecipientID != responderID {
		return nil, NewUnauthorizedError("only the call recipient may answer")
	}
	if session.Status != models.CallRinging {
		return nil, NewValidationError(fmt.Sprintf("call is %s, not ringing", session.Status))
	}

	now := time.Now()
	session.AnsweredAt = &now
	if p.Accepted {
		session.Status = models.CallConnected
	} else {
		session.Status = models.CallRejected
	}
	if err := c.store.Save(ctx, session); err != nil {
		return nil, NewDependencyError("failed to update call session", err)
	}

	c.rooms.Broadcast(UserRoom(session.CallerID), PushCallAnswered, CallAnsweredPayload{
		CallID:   session.ID,
		Accepted: p.Accepted,
		SDP:      p.SDP,
	}, nil)
	return session, nil
}

// IceCandidate relays a candidate to the non-sender peer. Candidates may
// legitimately arrive both before and after connected, so no state-machine
// check beyond existence and party membership.
func (c *CallCoordinator) IceCandidate(ctx context.Context, senderID string, p CallIcePayload) error {
	session, err := c.load(ctx, p.CallID)
	if err != nil {
		return err
	}

	var peer string
	switch senderID {
	case session.CallerID:
		peer = session.RecipientID
	case session.RecipientID:
		peer = session.CallerID
	default:
		return NewUnauthorizedError("not a party to this call")
	}

	c.rooms.Broadcast(UserRoom(peer), PushCallIceCandidate, CallIceEventPayload{
		CallID:    session.ID,
		Candidate: p.Candidate,
	}, nil)
	return nil
}

// End finalizes a call. Either party may end it; ending an already-ended
// call succeeds idempotently without recomputing the duration.
func (c *CallCoordinator) End(ctx context.Context, enderID string, p CallEndPayload) (*models.CallSession, error) {
	session, err := c.load(ctx, p.CallID)
	if err != nil {
		return nil, err
	}
	if enderID != session.CallerID && enderID != session.RecipientID {
		return nil, NewUnauthorizedError("not a party to this call")
	}
	if session.Status == models.CallEnded {
		return session, nil
	}

	now := time.Now()
	if session.Status == models.CallConnected && session.AnsweredAt != nil {
		session.DurationSeconds = int64(now.Sub(*session.AnsweredAt).Seconds())
	}
	session.Status = models.CallEnded
	session.EndedAt = &now
	if err := c.store.Save(ctx, session); err != nil {
		return nil, NewDependencyError("failed to finalize call session", err)
	}

	peer := session.CallerID
	if enderID == session.CallerID {
		peer = session.RecipientID
	}
	c.rooms.Broadcast(UserRoom(peer), PushCallEnded, CallEndedPayload{CallID: session.ID}, nil)
	return session, nil
}

// load treats a store miss as terminal: the call is gone, likely expired.
func (c *CallCoordinator) load(ctx context.Context, callID string) (*models.CallSession, error) {
	session, err := c.store.Get(ctx, callID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, NewNotFoundError("call not found")
		}
		return nil, NewDependencyError("failed to load call session", err)
	}
	return session, nil
}

// callID is deterministic from the parties and creation time.
func callID(callerID, recipientID string, at time.Time) string {
	return fmt.Sprintf("call_%s_%s_%d", callerID, recipientID, at.UnixMilli())
}
