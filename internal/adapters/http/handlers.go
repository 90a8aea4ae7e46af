package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/callbridge/internal/adapters/engine/sim"
	"github.com/dkeye/callbridge/internal/app/orch"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	orch    *orch.Orchestrator
	sim     *sim.Engine
	limiter *AuthRateLimiter
}

type errorResp struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// errorStatus maps a command failure to its HTTP status and body.
func errorStatus(err error) (int, errorResp) {
	resp := errorResp{Message: err.Error()}
	var (
		afe *orch.AuthenticationFailedError
		pde *orch.PermissionDeniedError
		ane *orch.AnswerFailedError
	)
	switch {
	case errors.As(err, &afe):
		resp.Error, resp.Reason = "AuthenticationFailed", afe.Reason
		return http.StatusUnauthorized, resp
	case errors.Is(err, orch.ErrAuthenticatorUnavailable):
		resp.Error = "AuthenticatorUnavailable"
		return http.StatusServiceUnavailable, resp
	case errors.Is(err, orch.ErrStopped):
		resp.Error = "Stopped"
		return http.StatusServiceUnavailable, resp
	case errors.Is(err, orch.ErrNoActiveCall):
		resp.Error = "NoActiveCall"
		return http.StatusConflict, resp
	case errors.Is(err, orch.ErrAnswerInProgress):
		resp.Error = "AnswerInProgress"
		return http.StatusConflict, resp
	case errors.As(err, &pde):
		resp.Error, resp.Kind = "PermissionDenied", string(pde.Kind)
		return http.StatusForbidden, resp
	case errors.As(err, &ane):
		resp.Error, resp.Reason = "AnswerFailed", ane.Reason
		return http.StatusBadGateway, resp
	case errors.Is(err, context.DeadlineExceeded):
		resp.Error = "Timeout"
		return http.StatusGatewayTimeout, resp
	case errors.Is(err, context.Canceled):
		resp.Error = "Canceled"
		return http.StatusRequestTimeout, resp
	default:
		resp.Error = "Internal"
		return http.StatusInternalServerError, resp
	}
}

func fail(c *gin.Context, err error) {
	status, resp := errorStatus(err)
	log.Warn().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Int("status", status).Msg("command failed")
	c.JSON(status, resp)
}

func (h *handlers) initialize(c *gin.Context) {
	loggedIn, err := h.orch.Initialize(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isLoggedIn": loggedIn})
}

func (h *handlers) authenticate(c *gin.Context) {
	client := c.GetString("client_token")
	if !h.limiter.Allow(client) {
		log.Warn().Str("module", "adapters.http").Str("client", client).Msg("auth rate limited")
		c.JSON(http.StatusTooManyRequests, errorResp{Error: "RateLimited", Message: "too many attempts"})
		return
	}

	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "BadRequest", Message: err.Error()})
		return
	}

	ok, err := h.orch.Authenticate(c.Request.Context(), req.Token)
	if err != nil {
		fail(c, err)
		return
	}

	sess := sessions.Default(c)
	sess.Set("authenticated_at", time.Now().Unix())
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok})
}

func (h *handlers) session(c *gin.Context) {
	s, _ := h.orch.Snapshot()
	resp := gin.H{
		"isLoggedIn": s.LoggedIn,
		"auth":       s.Auth.String(),
	}
	if at, ok := sessions.Default(c).Get("authenticated_at").(int64); ok {
		resp["authenticatedAt"] = at
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) answer(c *gin.Context) {
	ok, err := h.orch.AnswerCall(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok})
}

func (h *handlers) call(c *gin.Context) {
	_, call := h.orch.Snapshot()
	if call == nil {
		c.JSON(http.StatusNotFound, errorResp{Error: "NoActiveCall", Message: orch.ErrNoActiveCall.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"call":    call,
		"state":   call.State.String(),
		"visible": h.orch.ViewVisible(),
	})
}

func (h *handlers) setValue(c *gin.Context) {
	var req struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "BadRequest", Message: err.Error()})
		return
	}
	h.orch.SetValue(req.Value)
	c.Status(http.StatusNoContent)
}
