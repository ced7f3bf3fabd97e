package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/observability"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const userKey = "relay_user"

type Deps struct {
	Orch    *orch.Orchestrator
	Gate    *app.Gate
	Signal  *signal.SignalWSController
	Metrics *observability.Metrics
	// Health checks the backing store. Nil reports healthy.
	Health func(context.Context) error
}

// AuthMiddleware admits the request credential through the identity gate.
func AuthMiddleware(gate *app.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := gate.Admit(c.Request.Context(), signal.Credential(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
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
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("RelaySessions", store))

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	r.GET("/healthz", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{orch: deps.Orch, gate: deps.Gate}
	api := r.Group("/api")

	api.POST("/session", h.createSession)
	api.DELETE("/session", h.deleteSession)

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("remote", c.ClientIP()).Msg("ws signal endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	authed := api.Group("", AuthMiddleware(deps.Gate))
	authed.GET("/me", h.me)
	authed.GET("/rooms", h.listRooms)
	authed.GET("/rooms/:id/members", h.roomMembers)
	authed.GET("/rooms/:id/call", h.roomCall)
	authed.POST("/rooms/:id/memberships", h.addMembership)
	authed.DELETE("/rooms/:id/memberships/:userId", h.removeMembership)
	authed.GET("/users/:id", h.getUser)
	authed.PUT("/users/:id", h.putUser)

	return r
}
