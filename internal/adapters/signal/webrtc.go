package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/callbridge/internal/adapters/rtc"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) sendCandidate(c core.SignalConnection, ci webrtc.ICECandidateInit) {
	resp := struct {
		Type          string `json:"type"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid,omitempty"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
	}{
		Type:      "candidate",
		Candidate: ci.Candidate,
	}
	if ci.SDPMid != nil {
		resp.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		resp.SDPMLineIndex = *ci.SDPMLineIndex
	}
	ctl.sendJSON(c, resp)
}

// handleOffer negotiates a viewer connection carrying the render surfaces.
// A new offer from the same client replaces its previous viewer.
func (ctl *SignalWSController) handleOffer(
	id string,
	conn core.SignalConnection,
	data []byte,
) {
	type offerPayload struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}
	var p offerPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SDP == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	vc, err := rtc.NewViewerConnection(ctl.opts.ICE, id)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc new pc")
		ctl.sendError(conn, "webrtc_unavailable")
		return
	}

	vc.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		ctl.sendCandidate(conn, ci)
	})
	vc.OnClosed(func() { ctl.forgetViewer(id, vc) })

	for _, s := range ctl.opts.Surfaces {
		if err := vc.AddSurface(s); err != nil {
			log.Error().Err(err).Str("module", "signal").Str("surface", s.Name()).Msg("add surface")
		}
	}

	if err = vc.Start(context.Background()); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc start")
		vc.Close()
		return
	}

	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  p.SDP,
	}

	answer, err := vc.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc apply offer")
		vc.Close()
		ctl.sendError(conn, "bad_offer")
		return
	}

	ctl.mu.Lock()
	prev := ctl.viewers[id]
	ctl.viewers[id] = vc
	ctl.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	ctl.sendJSON(conn, map[string]string{
		"type": "answer",
		"sdp":  answer.SDP,
	})
}

func (ctl *SignalWSController) handleCandidate(
	id string,
	_ core.SignalConnection,
	data []byte,
) {
	type candidatePayload struct {
		Type          string `json:"type"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex"`
	}
	var p candidatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}

	cand := webrtc.ICECandidateInit{
		Candidate: p.Candidate,
	}
	if p.SDPMid != "" {
		cand.SDPMid = &p.SDPMid
	}
	cand.SDPMLineIndex = &p.SDPMLineIndex

	ctl.mu.Lock()
	vc := ctl.viewers[id]
	ctl.mu.Unlock()
	if vc == nil {
		log.Warn().Str("module", "signal").Str("client", id).Msg("candidate: no viewer connection")
		return
	}
	if err := vc.AddICECandidate(cand); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("add ice candidate")
	}
}

// forgetViewer removes vc if it is still the client's current viewer.
func (ctl *SignalWSController) forgetViewer(id string, vc *rtc.ViewerConnection) {
	ctl.mu.Lock()
	if ctl.viewers[id] == vc {
		delete(ctl.viewers, id)
	}
	ctl.mu.Unlock()
}

func (ctl *SignalWSController) dropViewer(id string) {
	ctl.mu.Lock()
	vc := ctl.viewers[id]
	delete(ctl.viewers, id)
	ctl.mu.Unlock()
	if vc != nil {
		vc.Close()
	}
}

func (ctl *SignalWSController) ViewerCount() int {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return len(ctl.viewers)
}
