package app

import (
	"fmt"
	"strings"
)

// AdmissionAction decides what happens to an incoming call while another is
// still live.
type AdmissionAction int

const (
	RejectNew AdmissionAction = iota
	ReplaceActive
)

func (a AdmissionAction) String() string {
	switch a {
	case RejectNew:
		return "reject"
	case ReplaceActive:
		return "replace"
	default:
		return fmt.Sprintf("Unknown(%d)", int(a))
	}
}

// ParseAdmission accepts "reject" or "replace".
func ParseAdmission(s string) (AdmissionAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return RejectNew, nil
	case "replace":
		return ReplaceActive, nil
	default:
		return RejectNew, fmt.Errorf("unknown admission policy %q", s)
	}
}

// BackpressureAction is what a host connection does when its queue is full.
type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	CloseConn
)

type Policy interface {
	OnIncoming(activeID, newID string) AdmissionAction
	OnBackPressure(channel string) BackpressureAction
}

// SimplePolicy applies a fixed admission action. Status and login events are
// too important to lose silently, so a full queue on those closes the
// connection and lets the host resubscribe.
type SimplePolicy struct {
	Admission AdmissionAction
}

func (p SimplePolicy) OnIncoming(_, _ string) AdmissionAction {
	return p.Admission
}

func (SimplePolicy) OnBackPressure(channel string) BackpressureAction {
	switch channel {
	case "generic-value-change", "call-participants-change":
		return DropFrame
	default:
		return CloseConn
	}
}
