package signal

import "github.com/dkeye/callbridge/internal/core"

func (ctl *SignalWSController) handlePing(
	conn core.SignalConnection,
) {
	resp := struct {
		Type    string `json:"type"`
		Visible bool   `json:"visible"`
	}{
		Type:    "pong",
		Visible: ctl.Orch.ViewVisible(),
	}
	ctl.sendJSON(conn, resp)
}
