package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/gamenight/scheduler/internal/api/middleware"
)

// rateLimitPerMinute bounds per-session API calls; generous enough for
// interactive form usage, tight enough to blunt scripted abuse (spec
// §4.6(a) general posture — no explicit number is pinned by the spec).
const rateLimitPerMinute = 120

// NewRouter wires the full HTTP surface under /api/v1 (spec §6),
// mirroring cmd/bot/main.go's gin.Default()+router.POST("/webhook", ...)
// shape generalized from one route to the complete REST API.
func NewRouter(d *Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Recovery(), middleware.Logging(), otelgin.Middleware("gamenight-api"))
	r.Use(middleware.RateLimit(rateLimitPerMinute, time.Minute/rateLimitPerMinute))

	r.GET("/healthz", func(c *gin.Context) { c.Status(200) })

	v1 := r.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.GET("/login", d.Login)
	auth.GET("/callback", d.Callback)

	authed := v1.Group("")
	authed.Use(middleware.RequireSession(d.Cache))

	authed.GET("/guilds", d.ListGuilds)

	guildScoped := authed.Group("/guilds/:guildId")
	guildScoped.Use(middleware.RequireGuildMembership())
	guildScoped.GET("", d.GetGuild)
	guildScoped.GET("/config", d.GetGuildConfig)
	guildScoped.PUT("", d.UpdateGuild)
	guildScoped.GET("/channels", d.ListChannels)
	guildScoped.GET("/roles", d.ListRoles)
	guildScoped.POST("/validate-mention", d.ValidateMention)

	templates := authed.Group("/templates")
	templates.Use(middleware.RequireGuildMembership())
	templates.GET("", d.ListTemplates)
	templates.POST("", d.CreateTemplate)
	templates.GET("/:id", d.GetTemplate)
	templates.PUT("/:id", d.UpdateTemplate)
	templates.DELETE("/:id", d.DeleteTemplate)
	templates.POST("/:id/default", d.SetDefaultTemplate)
	templates.POST("/reorder", d.ReorderTemplates)

	games := authed.Group("/games")
	games.Use(middleware.RequireGuildMembership())
	games.GET("", d.ListGames)
	games.POST("", d.CreateGame)
	games.GET("/:id", d.GetGame)
	games.PUT("/:id", d.UpdateGame)
	games.DELETE("/:id", d.DeleteGame)
	games.POST("/:id/join", d.JoinGame)
	games.POST("/:id/leave", d.LeaveGame)
	games.GET("/:id/thumbnail", d.GetThumbnail)
	games.GET("/:id/image", d.GetImage)

	export := authed.Group("/export")
	export.Use(middleware.RequireGuildMembership())
	export.GET("/game/:id", d.ExportGame)

	return r
}
