package orch

import (
	"github.com/dkeye/callbridge/internal/app/media"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

// AttachView installs the host's render view. A view attached mid-call is
// bound to the active call right away.
func (o *Orchestrator) AttachView(v media.View) {
	o.Media.AttachView(v)
}

// ViewVisible reports whether the render view should be shown: only while
// the call is Active.
func (o *Orchestrator) ViewVisible() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess.Call != nil && o.sess.Call.State == domain.CallActive
}

// BindCount reports how many times surfaces were bound to the call.
func (o *Orchestrator) BindCount(id domain.CallID) int {
	return o.Media.Registry().BindCount(id)
}

// applyMediaChange folds one media notification into f. Device switches leave
// the flags untouched. Returns false for kinds it does not know.
func applyMediaChange(f *domain.MediaFlags, mc core.MediaChange) bool {
	switch mc.Kind {
	case core.RemoteSendingVideo, core.ReceivingVideo:
		f.ReceivingVideo = mc.Active
	case core.RemoteSendingAudio, core.ReceivingAudio:
		f.ReceivingAudio = mc.Active
	case core.RemoteSendingScreenShare:
		f.ReceivingScreenShare = mc.Active
	case core.SendingVideo:
		f.SendingVideo = mc.Active
	case core.SendingAudio:
		f.SendingAudio = mc.Active
	case core.SendingScreenShare:
		f.SendingScreenShare = mc.Active
	case core.CameraSwitched, core.SpeakerSwitched:
		log.Debug().Str("module", "orch").Str("kind", mc.Kind.String()).Msg("device switched")
	default:
		return false
	}
	return true
}
