package http

import (
	"context"

	"github.com/dkeye/callbridge/internal/adapters/engine/sim"
	"github.com/dkeye/callbridge/internal/adapters/signal"
	"github.com/dkeye/callbridge/internal/app/orch"
	"github.com/dkeye/callbridge/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// Deps are the collaborators the router serves.
type Deps struct {
	Orch   *orch.Orchestrator
	Signal *signal.SignalWSController
	// Sim is set when the simulated engine is running; its control routes
	// are mounted in debug mode only.
	Sim     *sim.Engine
	Limiter *AuthRateLimiter
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CallBridgeSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{orch: deps.Orch, sim: deps.Sim, limiter: deps.Limiter}
	api := r.Group("/api")

	api.POST("/session/init", h.initialize)
	api.POST("/session/auth", h.authenticate)
	api.GET("/session", h.session)
	api.POST("/call/answer", h.answer)
	api.GET("/call", h.call)
	api.POST("/value", h.setValue)

	if deps.Signal != nil {
		api.GET("/ws/events", func(c *gin.Context) {
			log.Info().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws events endpoint hit")
			deps.Signal.HandleSignal(ctx, c)
		})
	}

	if cfg.Mode == "debug" && deps.Sim != nil {
		log.Warn().Str("module", "adapters.http").Msg("simulated engine controls enabled")
		api.POST("/sim/incoming", h.simIncoming)
		api.POST("/sim/call/:event", h.simCallEvent)
	}

	return r
}
