package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/pion/rtp"
	"github.com/rs/zerolog/log"
)

var ErrAnswerStalled = errors.New("answer stalled")

// Call is a simulated call. Its trigger methods fire the installed
// callbacks synchronously on the caller's goroutine, one at a time.
type Call struct {
	id string

	mu        sync.Mutex
	members   []domain.Membership
	flags     domain.MediaFlags
	cb        core.CallCallbacks
	local     core.RenderSurface
	remote    core.RenderSurface
	binds     int
	answerErr error
	answered  bool
	option    core.MediaOption

	fire sync.Mutex
}

func newCall(id string, members []domain.Membership) *Call {
	return &Call{id: id, members: domain.CloneMemberships(members)}
}

func (c *Call) ID() string { return c.id }

func (c *Call) Memberships() []domain.Membership {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CloneMemberships(c.members)
}

func (c *Call) MediaFlags() domain.MediaFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

func (c *Call) SetCallbacks(cb core.CallCallbacks) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *Call) SetRenderSurfaces(local, remote core.RenderSurface) {
	c.mu.Lock()
	c.local, c.remote = local, remote
	c.binds++
	c.mu.Unlock()
}

// Binds counts SetRenderSurfaces calls.
func (c *Call) Binds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.binds
}

// FailAnswer makes the next Answer report err. ErrAnswerStalled makes
// Answer never complete.
func (c *Call) FailAnswer(err error) {
	c.mu.Lock()
	c.answerErr = err
	c.mu.Unlock()
}

func (c *Call) Answer(opt core.MediaOption, done func(error)) {
	c.mu.Lock()
	err := c.answerErr
	c.answerErr = nil
	c.option = opt
	if err == nil {
		c.answered = true
		c.flags.SendingAudio, c.flags.ReceivingAudio = opt.Audio, opt.Audio
		c.flags.SendingVideo, c.flags.ReceivingVideo = opt.Video, opt.Video
	}
	c.mu.Unlock()

	if errors.Is(err, ErrAnswerStalled) {
		return
	}
	go done(err)
}

// Answered reports whether Answer succeeded and the option it was given.
func (c *Call) Answered() (bool, core.MediaOption) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answered, c.option
}

func (c *Call) callbacks() core.CallCallbacks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cb
}

func (c *Call) trigger(fn func(cb core.CallCallbacks)) {
	c.fire.Lock()
	defer c.fire.Unlock()
	fn(c.callbacks())
}

func (c *Call) Ring() {
	c.trigger(func(cb core.CallCallbacks) {
		if cb.OnRinging != nil {
			cb.OnRinging()
		}
	})
}

func (c *Call) Connect() {
	c.trigger(func(cb core.CallCallbacks) {
		if cb.OnConnected != nil {
			cb.OnConnected()
		}
	})
}

func (c *Call) Disconnect(reason string) {
	c.trigger(func(cb core.CallCallbacks) {
		if cb.OnDisconnected != nil {
			cb.OnDisconnected(reason)
		}
	})
}

func (c *Call) Fail(reason string) {
	c.trigger(func(cb core.CallCallbacks) {
		if cb.OnFailed != nil {
			cb.OnFailed(reason)
		}
	})
}

// SetMemberships replaces the participant list and reports the change.
func (c *Call) SetMemberships(ms []domain.Membership, change string) {
	c.mu.Lock()
	c.members = domain.CloneMemberships(ms)
	c.mu.Unlock()
	c.trigger(func(cb core.CallCallbacks) {
		if cb.OnMembershipChanged != nil {
			cb.OnMembershipChanged(change)
		}
	})
}

func (c *Call) ChangeMedia(kind core.MediaChangeKind, active bool) {
	c.trigger(func(cb core.CallCallbacks) {
		if cb.OnMediaChanged != nil {
			cb.OnMediaChanged(core.MediaChange{Kind: kind, Active: active})
		}
	})
}

func (c *Call) Info() {
	c.trigger(func(cb core.CallCallbacks) {
		if cb.OnInfoChanged != nil {
			cb.OnInfoChanged()
		}
	})
}

// Pump writes a synthetic RTP stream into the bound surfaces until ctx is
// done. Hidden surfaces drop what they get.
func (c *Call) Pump(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint16
	var ts uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		c.mu.Lock()
		local, remote := c.local, c.remote
		c.mu.Unlock()

		seq++
		ts += 3000
		for _, s := range []core.RenderSurface{local, remote} {
			if s == nil {
				continue
			}
			pkt := &rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					PayloadType:    96,
					SequenceNumber: seq,
					Timestamp:      ts,
					SSRC:           0x5eed,
				},
				Payload: []byte{0x00},
			}
			if err := s.WriteRTP(pkt); err != nil {
				log.Debug().Err(err).Str("module", "sim").Str("surface", s.Name()).Msg("pump write")
			}
		}
	}
}
