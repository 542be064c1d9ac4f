package realtime

import (
	"encoding/json"
	"time"

	"github.com/mugisham37/real-time-chat-application-sub002/internal/models"
)

// Client -> server events. All are request/response: the client supplies a
// request ID and receives an Envelope on the same connection.
const (
	EventPresenceUpdate      = "presence:update"
	EventPresenceGet         = "presence:get"
	EventPresenceSubscribe   = "presence:subscribe"
	EventPresenceUnsubscribe = "presence:unsubscribe"
	EventPresenceOnlineCount = "presence:online_count"
	EventPresenceOnlineUsers = "presence:online_users"
	EventTypingStatus        = "typing:status"
	EventTypingGet           = "typing:get"
	EventTypingClear         = "typing:clear"
	EventCallOffer           = "call:offer"
	EventCallAnswer          = "call:answer"
	EventCallIceCandidate    = "call:ice_candidate"
	EventCallEnd             = "call:end"
)

// Server -> client pushes (fire-and-forget, no envelope).
const (
	PushPresenceOnline   = "presence:online"
	PushPresenceOffline  = "presence:offline"
	PushPresenceUpdated  = "presence:updated"
	PushTypingUpdated    = "typing:updated"
	PushCallIncoming     = "call:incoming"
	PushCallAnswered     = "call:answered"
	PushCallIceCandidate = "call:ice_candidate"
	PushCallEnded        = "call:ended"
)

// Request is one inbound client frame.
type Request struct {
	ID      string          `json:"id,omitempty"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope is the response to every client request, success or failure.
type Envelope struct {
	ID      string   `json:"id,omitempty"`
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// Request payloads.

type PresenceUpdatePayload struct {
	Status       string `json:"status"`
	CustomStatus string `json:"customStatus,omitempty"`
}

type PresenceGetPayload struct {
	UserIDs []string `json:"userIds"`
}

type PresenceSubscribePayload struct {
	UserIDs []string `json:"userIds"`
}

type PresenceOnlineUsersPayload struct {
	Limit int `json:"limit,omitempty"`
}

type TypingStatusPayload struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type TypingGetPayload struct {
	ConversationID string `json:"conversationId"`
}

type TypingClearPayload struct {
	ConversationID string `json:"conversationId"`
}

type CallOfferPayload struct {
	RecipientID string `json:"recipientId"`
	SDP         string `json:"sdp"`
	CallType    string `json:"callType"`
}

type CallAnswerPayload struct {
	CallID   string `json:"callId"`
	Accepted bool   `json:"accepted"`
	SDP      string `json:"sdp,omitempty"`
}

type CallIcePayload struct {
	CallID    string          `json:"callId"`
	Candidate json.RawMessage `json:"candidate"`
}

type CallEndPayload struct {
	CallID string `json:"callId"`
}

// Push payloads.

type PresenceEventPayload struct {
	UserID       string    `json:"userId"`
	Status       string    `json:"status"`
	CustomStatus string    `json:"customStatus,omitempty"`
	LastSeen     time.Time `json:"lastSeen"`
}

type TypingEventPayload struct {
	ConversationID string            `json:"conversationId"`
	User           models.TypingUser `json:"user"`
	IsTyping       bool              `json:"isTyping"`
}

type CallIncomingPayload struct {
	CallID       string `json:"callId"`
	CallerID     string `json:"callerId"`
	CallerName   string `json:"callerName,omitempty"`
	CallerAvatar string `json:"callerAvatar,omitempty"`
	SDP          string `json:"sdp"`
	CallType     string `json:"callType"`
}

type CallAnsweredPayload struct {
	CallID   string `json:"callId"`
	Accepted bool   `json:"accepted"`
	SDP      string `json:"sdp,omitempty"`
}

type CallIceEventPayload struct {
	CallID    string          `json:"callId"`
	Candidate json.RawMessage `json:"candidate"`
}

type CallEndedPayload struct {
	CallID string `json:"callId"`
}
