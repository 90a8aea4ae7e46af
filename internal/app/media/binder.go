// Package media attaches render surfaces to the active call's streams.
package media

import (
	"errors"
	"sync"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoView      = errors.New("no render view attached")
	ErrUnknownCall = errors.New("call not registered")
)

// View is one named render view owning a local preview and a remote surface.
type View struct {
	Name   string
	Local  core.RenderSurface
	Remote core.RenderSurface
}

// Binder reacts to call and media events by binding surfaces. Surfaces are
// left in place when a call ends; the next call reuses them.
type Binder struct {
	reg *Registry

	mu     sync.RWMutex
	view   *View
	active domain.CallID
}

func NewBinder(reg *Registry) *Binder {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Binder{reg: reg}
}

func (b *Binder) Registry() *Registry { return b.reg }

// AttachView installs v as the current view. The latest view wins.
func (b *Binder) AttachView(v View) {
	b.mu.Lock()
	b.view = &v
	active := b.active
	b.mu.Unlock()
	log.Info().Str("module", "media").Str("view", v.Name).Msg("view attached")

	// a view created mid-call picks the call up straight away
	if active != "" {
		if err := b.Bind(active); err != nil {
			log.Error().Err(err).Str("module", "media").Str("call_id", string(active)).Msg("bind on attach")
		}
	}
}

func (b *Binder) View() (View, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.view == nil {
		return View{}, false
	}
	return *b.view, true
}

// Active returns the call the view is currently bound to.
func (b *Binder) Active() (domain.CallID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active, b.active != ""
}

func (b *Binder) Register(id domain.CallID, call core.EngineCall) {
	b.reg.Register(id, call)
}

// Bind attaches the current view's surfaces to the call. The remote surface
// is shown on the call's first bind; later binds leave it to media changes.
func (b *Binder) Bind(id domain.CallID) error {
	b.mu.Lock()
	v := b.view
	b.active = id
	b.mu.Unlock()

	var (
		call  core.EngineCall
		first bool
	)
	ok := b.reg.update(id, func(e *bindingEntry) {
		call = e.Call
		first = !e.Bound
		e.Flags = e.Call.MediaFlags()
		e.Binds++
		e.Bound = v != nil
	})
	if !ok {
		return ErrUnknownCall
	}
	if v == nil {
		log.Warn().Str("module", "media").Str("call_id", string(id)).Msg("bind without view, media not rendered")
		return ErrNoView
	}

	call.SetRenderSurfaces(v.Local, v.Remote)
	v.Local.SetVisible(true)
	if first {
		v.Remote.SetVisible(true)
	}
	log.Info().Str("module", "media").Str("call_id", string(id)).Str("view", v.Name).Msg("surfaces bound")
	return nil
}

// Sync replaces the tracked stream flags, e.g. once the engine has answered.
func (b *Binder) Sync(id domain.CallID, flags domain.MediaFlags) {
	b.reg.update(id, func(e *bindingEntry) { e.Flags = flags })
}

// OnMediaChange updates surface visibility by stream direction and rebinds
// when a stopped stream resumes.
func (b *Binder) OnMediaChange(id domain.CallID, change core.MediaChange) {
	b.mu.RLock()
	v := b.view
	b.mu.RUnlock()

	var (
		call    core.EngineCall
		resumed bool
	)
	ok := b.reg.update(id, func(e *bindingEntry) {
		call = e.Call
		switch change.Kind {
		case core.RemoteSendingVideo:
			resumed = change.Active && !e.Flags.ReceivingVideo
			e.Flags.ReceivingVideo = change.Active
		case core.SendingVideo:
			resumed = change.Active && !e.Flags.SendingVideo
			e.Flags.SendingVideo = change.Active
		}
	})
	if !ok {
		log.Warn().Str("module", "media").Str("call_id", string(id)).Msg("media change for unregistered call")
		return
	}

	switch change.Kind {
	case core.RemoteSendingVideo:
		if v != nil {
			v.Remote.SetVisible(change.Active)
		}
	case core.SendingVideo:
		if v != nil {
			v.Local.SetVisible(change.Active)
		}
	case core.RemoteSendingAudio, core.SendingAudio, core.RemoteSendingScreenShare,
		core.SendingScreenShare, core.ReceivingVideo, core.ReceivingAudio,
		core.CameraSwitched, core.SpeakerSwitched:
		log.Debug().Str("module", "media").Str("call_id", string(id)).Str("kind", change.Kind.String()).Bool("active", change.Active).Msg("media change")
		return
	default:
		log.Error().Str("module", "media").Str("call_id", string(id)).Str("kind", change.Kind.String()).Msg("unknown media change ignored")
		return
	}

	if resumed && v != nil {
		call.SetRenderSurfaces(v.Local, v.Remote)
		b.reg.update(id, func(e *bindingEntry) { e.Binds++ })
		log.Info().Str("module", "media").Str("call_id", string(id)).Str("kind", change.Kind.String()).Msg("stream resumed, surfaces rebound")
	}
}

// Release forgets the call. Surfaces stay attached to the view.
func (b *Binder) Release(id domain.CallID) {
	b.mu.Lock()
	if b.active == id {
		b.active = ""
	}
	b.mu.Unlock()
	b.reg.Unregister(id)
}
