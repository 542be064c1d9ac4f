package models

import (
	"time"
)

type CallStatus string

const (
	CallRinging   CallStatus = "ringing"
	CallConnected CallStatus = "connected"
	CallRejected  CallStatus = "rejected"
	CallEnded     CallStatus = "ended"
)

type CallKind string

const (
	CallAudio CallKind = "audio"
	CallVideo CallKind = "video"
)

// Valid reports whether k is a supported call kind.
func (k CallKind) Valid() bool {
	return k == CallAudio || k == CallVideo
}

// CallSession is the ephemeral record of one WebRTC call between two peers.
// Status moves monotonically along ringing -> {connected, rejected} -> ended;
// no transition is defined out of ended.
type CallSession struct {
	ID              string     `json:"id"`
	CallerID        string     `json:"caller_id"`
	RecipientID     string     `json:"recipient_id"`
	Kind            CallKind   `json:"kind"`
	Status          CallStatus `json:"status"`
	SDP             string     `json:"sdp,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	AnsweredAt      *time.Time `json:"answered_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int64      `json:"duration_seconds,omitempty"`
}
