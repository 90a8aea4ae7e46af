package domain

import "fmt"

type CallID string

// CallState is the orchestrator-side lifecycle of one call instance.
type CallState int

const (
	CallIdle CallState = iota
	CallIncoming
	// CallConnecting is internal only: an answer is in flight.
	CallConnecting
	CallActive
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "Idle"
	case CallIncoming:
		return "Incoming"
	case CallConnecting:
		return "Connecting"
	case CallActive:
		return "Active"
	case CallEnded:
		return "Ended"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// IsTerminal returns true once the call instance can no longer change.
func (s CallState) IsTerminal() bool {
	return s == CallEnded
}

// CallStatus is the public status string carried by call-status-change.
type CallStatus string

const (
	StatusRinging             CallStatus = "ringing"
	StatusConnected           CallStatus = "connected"
	StatusDisconnected        CallStatus = "disconnected"
	StatusParticipantsChanged CallStatus = "participants-changed"
	StatusFailed              CallStatus = "failed"
)

// MediaFlags is the stream direction summary of the active call.
type MediaFlags struct {
	SendingAudio         bool `json:"sendingAudio"`
	SendingVideo         bool `json:"sendingVideo"`
	ReceivingAudio       bool `json:"receivingAudio"`
	ReceivingVideo       bool `json:"receivingVideo"`
	SendingScreenShare   bool `json:"sendingScreenShare"`
	ReceivingScreenShare bool `json:"receivingScreenShare"`
}

// Call is the single active call of a session.
type Call struct {
	ID          CallID       `json:"callId"`
	State       CallState    `json:"-"`
	Memberships []Membership `json:"memberships"`
	Media       MediaFlags   `json:"media"`
}

// Clone returns a deep copy safe to hand out of the orchestrator.
func (c *Call) Clone() *Call {
	if c == nil {
		return nil
	}
	out := *c
	out.Memberships = CloneMemberships(c.Memberships)
	return &out
}
