package realtime

import (
	"context"
	"encoding/json"

	"github.com/mugisham37/real-time-chat-application-sub002/internal/models"
)

// Payload schemas, compiled once at registration. Validation failures are
// rejected before any state change.
const (
	presenceUpdateSchema = `{
		"type": "object",
		"required": ["status"],
		"properties": {
			"status": {"type": "string", "enum": ["online", "away", "busy", "offline"]},
			"customStatus": {"type": "string", "maxLength": 128}
		}
	}`

	userIDsSchema = `{
		"type": "object",
		"required": ["userIds"],
		"properties": {
			"userIds": {
				"type": "array",
				"items": {"type": "string", "minLength": 1},
				"minItems": 1,
				"maxItems": 100
			}
		}
	}`

	onlineCountSchema = `{"type": "object"}`

	onlineUsersSchema = `{
		"type": "object",
		"properties": {
			"limit": {"type": "integer", "minimum": 1, "maximum": 1000}
		}
	}`

	typingStatusSchema = `{
		"type": "object",
		"required": ["conversationId", "isTyping"],
		"properties": {
			"conversationId": {"type": "string", "minLength": 1},
			"isTyping": {"type": "boolean"}
		}
	}`

	conversationIDSchema = `{
		"type": "object",
		"required": ["conversationId"],
		"properties": {
			"conversationId": {"type": "string", "minLength": 1}
		}
	}`

	callOfferSchema = `{
		"type": "object",
		"required": ["recipientId", "sdp", "callType"],
		"properties": {
			"recipientId": {"type": "string", "minLength": 1},
			"sdp": {"type": "string", "minLength": 1},
			"callType": {"type": "string", "enum": ["audio", "video"]}
		}
	}`

	callAnswerSchema = `{
		"type": "object",
		"required": ["callId", "accepted"],
		"properties": {
			"callId": {"type": "string", "minLength": 1},
			"accepted": {"type": "boolean"},
			"sdp": {"type": "string"}
		}
	}`

	callIceSchema = `{
		"type": "object",
		"required": ["callId", "candidate"],
		"properties": {
			"callId": {"type": "string", "minLength": 1}
		}
	}`

	callEndSchema = `{
		"type": "object",
		"required": ["callId"],
		"properties": {
			"callId": {"type": "string", "minLength": 1}
		}
	}`
)

// RegisterHandlers wires every client event onto the dispatcher.
func RegisterHandlers(d *Dispatcher, presence *PresenceEngine, typing *TypingCoordinator, calls *CallCoordinator) {
	d.Handle(EventPresenceUpdate, presenceUpdateSchema, func(ctx context.Context, conn *Connection, payload json.RawMessage) (any, error) {
		var p PresenceUpdatePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, NewValidationError("malformed payload")
		}
		return presence.UpdateStatus(ctx, conn.UserID, models.PresenceStatus(p.Status), p.CustomStatus)
	})

	d.Handle(EventPresenceGet, userIDsSchema, func(ctx context.Context, conn *Connection, payload json.RawMessage) (any, error) {
		var p PresenceGetPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, NewValidationError("malformed payload")
		}
		return presence.GetPresence(ctx, p.UserIDs)
	})

	d.Handle(EventPresenceSubscribe, userIDsSchema, func(ctx context.Context, conn *Connection, payload json.RawMessage) (any, error) {
		var p PresenceSubscribePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, NewValidationError("malformed payload")
		}
		return nil, presence.Subscribe(ctx, conn.UserID, p.UserIDs)
	})

	d.Handle(EventPresenceUnsubscribe, userIDsSchema, func(ctx context.Context, conn *Connection, payload json.RawMessage) (any, error) {
		var p PresenceSubscribePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, NewValidationError("malformed payload")
		}
		return nil, presence.Unsubscribe(ctx, conn.UserID, p.UserIDs)
	})

	d.Handle(EventPresenceOnlineCount, onlineCountSchema, func(ctx context.Context, conn *Connection, payload json.RawMessage) (any, error) {
		count, err := presence.OnlineCount(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"count": count}, nil
	})

	d.Handle(EventPresenceOnlineUsers, onlineUsersSchema, func(ctx context.Context, conn *Connection, payload json.RawMessage) (any, error) {
		var p PresenceOnlineUsersPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, NewValidationError("malformed payload")
		}
		users, err := presence.OnlineUsers(ctx, p.Limit)
		if err != nil {
			return nil, err
		}
		return map[string][]string{"users": users}, nil
	})

	d.Handle(EventTypingStatus, typingStatusSchema, func(ctx context.Context, conn *Connection, payload json.RawMessage) (any, error) {
		var p TypingStatusPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, NewValidationError("malformed payload")
		}
		return nil, typing.SetTyping(ctx, conn.UserID, p.ConversationID, p.IsTyping)
	})

	d.Handle(EventTypingGet, conversationIDSchema, func(ctx context.Context, conn *Connection, payload json.RawMessage) (any, error) {
		var p TypingGetPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, NewValidationError("malformed payload")
		}
		return typing.GetTyping(ctx, conn.UserID, p.ConversationID)
	})

	d.Handle(EventTypingClear, conversationIDSchema, func(ctx context.Context, conn *Connection, payload json.RawMessage) (any, error) {
		var p TypingClearPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, NewValidationError("malformed payload")
		}
		return nil, typing.ClearTyping(ctx, conn.UserID, p.ConversationID)
	})

	d.Handle(EventCallOffer, callOfferSchema, func(ctx context.Context, conn *Connection, payload json.RawMessage) (any, error) {
		var p CallOfferPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, NewValidationError("malformed payload")
		}
		session, err := calls.Offer(ctx, conn.UserID, p)
		if err != nil {
			return nil, err
		}
		return map[string]string{"callId": session.ID}, nil
	})

	d.Handle(EventCallAnswer, callAnswerSchema, func(ctx context.Context, conn *Connection, payload json.RawMessage) (any, error) {
		var p CallAnswerPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, NewValidationError("malformed payload")
		}
		session, err := calls.Answer(ctx, conn.UserID, p)
		if err != nil {
			return nil, err
		}
		return map[string]string{"callId": session.ID, "status": string(session.Status)}, nil
	})

	d.Handle(EventCallIceCandidate, callIceSchema, func(ctx context.Context, conn *Connection, payload json.RawMessage) (any, error) {
		var p CallIcePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, NewValidationError("malformed payload")
		}
		return nil, calls.IceCandidate(ctx, conn.UserID, p)
	})

	d.Handle(EventCallEnd, callEndSchema, func(ctx context.Context, conn *Connection, payload json.RawMessage) (any, error) {
		var p CallEndPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, NewValidationError("malformed payload")
		}
		session, err := calls.End(ctx, conn.UserID, p)
		if err != nil {
			return nil, err
		}
		return map[string]any{"callId": session.ID, "duration": session.DurationSeconds}, nil
	})
}
