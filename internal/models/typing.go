package models

import (
	"time"
)

// TypingUser is a typing entry resolved to display details for clients.
type TypingUser struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}
