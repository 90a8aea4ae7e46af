package signal

import (
	"encoding/json"

	"github.com/dkeye/callbridge/internal/app/placement"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/rs/zerolog/log"
)

type placementResp struct {
	Type       string                `json:"type"`
	State      placement.State       `json:"state"`
	Animations []placement.Animation `json:"animations,omitempty"`
}

func (ctl *SignalWSController) sendPlacement(conn core.SignalConnection, anims []placement.Animation) {
	ctl.sendJSON(conn, placementResp{
		Type:       "placement",
		State:      ctl.Placement.State(),
		Animations: anims,
	})
}

func decodeSize(data []byte) (placement.Size, bool) {
	var p struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Width <= 0 || p.Height <= 0 {
		log.Warn().Err(err).Str("module", "signal").Msg("bad size payload")
		return placement.Size{}, false
	}
	return placement.Size{Width: p.Width, Height: p.Height}, true
}

func (ctl *SignalWSController) handleResize(conn core.SignalConnection, data []byte) {
	size, ok := decodeSize(data)
	if !ok {
		ctl.sendError(conn, "bad_payload")
		return
	}
	ctl.Placement.Resize(size)
	ctl.sendPlacement(conn, nil)
}

func (ctl *SignalWSController) handleReset(conn core.SignalConnection, data []byte) {
	size, ok := decodeSize(data)
	if !ok {
		size = ctl.Placement.State().Bounds
	}
	ctl.Placement.Reset(size)
	ctl.sendPlacement(conn, nil)
}

func (ctl *SignalWSController) handleDrag(conn core.SignalConnection, data []byte) {
	var p placement.Point
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad drag payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	ctl.Placement.Drag(p)
	ctl.sendPlacement(conn, nil)
}

func (ctl *SignalWSController) handleRelease(conn core.SignalConnection) {
	anims := ctl.Placement.Release()
	ctl.sendPlacement(conn, anims)
}
