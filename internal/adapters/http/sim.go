package http

import (
	"net/http"

	"github.com/dkeye/callbridge/internal/adapters/engine/sim"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (h *handlers) simIncoming(c *gin.Context) {
	var req struct {
		Memberships []domain.Membership `json:"memberships"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResp{Error: "BadRequest", Message: err.Error()})
			return
		}
	}
	call, err := h.sim.Incoming(req.Memberships)
	if err != nil {
		c.JSON(http.StatusConflict, errorResp{Error: "NotListening", Message: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"callId": call.ID()})
}

type simEventReq struct {
	CallID      string              `json:"callId"`
	Reason      string              `json:"reason"`
	Change      string              `json:"change"`
	Kind        string              `json:"kind"`
	Active      bool                `json:"active"`
	Memberships []domain.Membership `json:"memberships"`
}

// simCallEvent fires one engine callback on a simulated call. Without a
// callId the most recent call is used.
func (h *handlers) simCallEvent(c *gin.Context) {
	var req simEventReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResp{Error: "BadRequest", Message: err.Error()})
			return
		}
	}

	var (
		call *sim.Call
		err  error
	)
	if req.CallID != "" {
		call, err = h.sim.Call(req.CallID)
	} else {
		call, err = h.sim.Last()
	}
	if err != nil {
		c.JSON(http.StatusNotFound, errorResp{Error: "UnknownCall", Message: err.Error()})
		return
	}

	event := c.Param("event")
	switch event {
	case "ringing":
		call.Ring()
	case "connected":
		call.Connect()
	case "disconnected":
		call.Disconnect(req.Reason)
	case "failed":
		call.Fail(req.Reason)
	case "memberships":
		call.SetMemberships(req.Memberships, req.Change)
	case "media":
		// unknown kinds still reach the orchestrator, which logs and drops them
		call.ChangeMedia(core.ParseMediaChangeKind(req.Kind), req.Active)
	case "info":
		call.Info()
	default:
		c.JSON(http.StatusBadRequest, errorResp{Error: "UnknownEvent", Message: event})
		return
	}
	log.Debug().Str("module", "adapters.http").Str("call_id", call.ID()).Str("event", event).Msg("sim event fired")
	c.JSON(http.StatusAccepted, gin.H{"callId": call.ID(), "event": event})
}
