package orch

import (
	"fmt"

	"github.com/dkeye/callbridge/internal/app"
	"github.com/dkeye/callbridge/internal/app/bridge"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

type eventKind int

const (
	evUnknown eventKind = iota
	evIncoming
	evAnswered
	evRinging
	evConnected
	evDisconnected
	evFailed
	evMembership
	evMedia
	evInfo
)

func (k eventKind) String() string {
	switch k {
	case evIncoming:
		return "incoming"
	case evAnswered:
		return "answered"
	case evRinging:
		return "ringing"
	case evConnected:
		return "connected"
	case evDisconnected:
		return "disconnected"
	case evFailed:
		return "failed"
	case evMembership:
		return "membership"
	case evMedia:
		return "media"
	case evInfo:
		return "info"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// engineEvent is one engine callback, or the answer command's completion,
// on its way to the event loop.
type engineEvent struct {
	kind   eventKind
	callID domain.CallID
	call   core.EngineCall
	reason string
	change string
	media  core.MediaChange
	ack    chan struct{}
}

// callbacksFor routes every callback of call id into the event loop.
func (o *Orchestrator) callbacksFor(id domain.CallID) core.CallCallbacks {
	return core.CallCallbacks{
		OnRinging:   func() { o.post(engineEvent{kind: evRinging, callID: id}) },
		OnConnected: func() { o.post(engineEvent{kind: evConnected, callID: id}) },
		OnDisconnected: func(reason string) {
			o.post(engineEvent{kind: evDisconnected, callID: id, reason: reason})
		},
		OnFailed: func(reason string) {
			o.post(engineEvent{kind: evFailed, callID: id, reason: reason})
		},
		OnMembershipChanged: func(change string) {
			o.post(engineEvent{kind: evMembership, callID: id, change: change})
		},
		OnMediaChanged: func(mc core.MediaChange) {
			o.post(engineEvent{kind: evMedia, callID: id, media: mc})
		},
		OnInfoChanged: func() { o.post(engineEvent{kind: evInfo, callID: id}) },
	}
}

func status(s domain.CallStatus) emission {
	return emission{ch: bridge.CallStatusChange, payload: bridge.StatusPayload{Status: s}}
}

func participants(ms []domain.Membership) emission {
	return emission{ch: bridge.CallParticipantsChange, payload: bridge.ParticipantsPayload{Memberships: domain.CloneMemberships(ms)}}
}

// handle is the transition function. It runs on the event loop only.
func (o *Orchestrator) handle(ev engineEvent) {
	if ev.ack != nil {
		defer close(ev.ack)
	}
	if ev.kind == evIncoming {
		o.onIncoming(ev)
		return
	}

	l := log.With().Str("module", "orch").Str("call_id", string(ev.callID)).Str("event", ev.kind.String()).Logger()

	o.mu.Lock()
	c := o.sess.Call
	if c == nil || c.ID != ev.callID {
		o.mu.Unlock()
		l.Warn().Msg("event for inactive call dropped")
		return
	}

	var (
		out     []emission
		rebind  bool
		release bool
		change  *core.MediaChange
		synced  *domain.MediaFlags
	)
	switch ev.kind {
	case evAnswered:
		c.State = domain.CallActive
		c.Media = o.sess.handle.MediaFlags()
		f := c.Media
		synced = &f
		out = append(out, status(domain.StatusConnected))
	case evRinging:
		out = append(out, status(domain.StatusRinging))
	case evConnected:
		c.State = domain.CallActive
		rebind = true
		out = append(out, status(domain.StatusConnected))
	case evMembership:
		c.Memberships = domain.CloneMemberships(o.sess.handle.Memberships())
		out = append(out, status(domain.StatusParticipantsChanged), participants(c.Memberships))
	case evDisconnected, evFailed:
		c.State = domain.CallEnded
		o.sess.Call, o.sess.handle = nil, nil
		release = true
		if ev.kind == evFailed {
			out = append(out, status(domain.StatusFailed))
		} else {
			out = append(out, status(domain.StatusDisconnected))
		}
	case evMedia:
		if !applyMediaChange(&c.Media, ev.media) {
			o.mu.Unlock()
			l.Error().Str("kind", ev.media.Kind.String()).Msg("unknown media change ignored")
			return
		}
		mc := ev.media
		change = &mc
	case evInfo:
		c.Media = o.sess.handle.MediaFlags()
		f := c.Media
		synced = &f
	default:
		o.mu.Unlock()
		l.Error().Msg("unknown engine event ignored")
		return
	}
	o.mu.Unlock()

	switch {
	case rebind:
		if err := o.Media.Bind(ev.callID); err != nil {
			l.Warn().Err(err).Msg("rebind on connect")
		}
	case release:
		o.Media.Release(ev.callID)
		l.Info().Str("reason", ev.reason).Msg("call ended")
	case change != nil:
		o.Media.OnMediaChange(ev.callID, *change)
	case synced != nil:
		o.Media.Sync(ev.callID, *synced)
	}
	if ev.kind == evMembership {
		l.Debug().Str("change", ev.change).Msg("membership changed")
	}
	o.publish(out)
}

func (o *Orchestrator) onIncoming(ev engineEvent) {
	l := log.With().Str("module", "orch").Str("call_id", string(ev.callID)).Logger()

	o.mu.Lock()
	prev := o.sess.Call
	if prev != nil && !prev.State.IsTerminal() {
		switch o.Policy.OnIncoming(string(prev.ID), string(ev.callID)) {
		case app.ReplaceActive:
			l.Info().Str("replaced", string(prev.ID)).Msg("replacing active call")
		default:
			o.mu.Unlock()
			l.Warn().Str("active", string(prev.ID)).Msg("call already active, incoming call rejected")
			return
		}
	}
	call := &domain.Call{
		ID:          ev.callID,
		State:       domain.CallIncoming,
		Memberships: domain.CloneMemberships(ev.call.Memberships()),
		Media:       ev.call.MediaFlags(),
	}
	o.sess.Call, o.sess.handle = call, ev.call
	out := []emission{
		participants(call.Memberships),
		{ch: bridge.IncomingCall, payload: bridge.IncomingCallPayload{CallID: call.ID}},
	}
	o.mu.Unlock()

	if prev != nil {
		o.Media.Release(prev.ID)
		o.Bridge.Publish(bridge.CallStatusChange, bridge.StatusPayload{Status: domain.StatusDisconnected})
	}
	o.Media.Register(call.ID, ev.call)
	ev.call.SetCallbacks(o.callbacksFor(call.ID))
	l.Info().Int("members", len(call.Memberships)).Msg("incoming call")
	o.publish(out)
}
