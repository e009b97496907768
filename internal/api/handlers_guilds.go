package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gamenight/scheduler/internal/api/middleware"
	apperrors "github.com/gamenight/scheduler/internal/errors"
	"github.com/gamenight/scheduler/internal/store"
)

// ListGuilds implements GET /guilds: every guild the session holds
// membership in.
func (d *Deps) ListGuilds(c *gin.Context) {
	sess := middleware.SessionFrom(c.Request.Context())
	out := make([]*store.Guild, 0, len(sess.GuildRoleIDs))
	for guildID := range sess.GuildRoleIDs {
		g, err := d.Guilds.GetByID(c.Request.Context(), guildID)
		if err != nil {
			continue
		}
		out = append(out, g)
	}
	c.JSON(http.StatusOK, out)
}

// GetGuild implements GET /guilds/{id}.
func (d *Deps) GetGuild(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	g, err := d.Guilds.GetByID(c.Request.Context(), guildID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewNotFoundError("guild"))
		return
	}
	c.JSON(http.StatusOK, g)
}

// GetGuildConfig implements GET /guilds/{id}/config — an alias over the
// same guild row today; kept as a distinct route because the frontend
// treats "config" and "profile" as separate concerns that may diverge.
func (d *Deps) GetGuildConfig(c *gin.Context) {
	d.GetGuild(c)
}

type updateGuildRequest struct {
	BotManagerRoleIDs []string `json:"bot_manager_role_ids"`
	RequireHostRole   bool     `json:"require_host_role"`
}

// UpdateGuild implements PUT /guilds/{id}. Only the platform-level
// guild admin may change bot-manager role assignments (spec §4.6(a)).
func (d *Deps) UpdateGuild(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	sess := middleware.SessionFrom(c.Request.Context())
	if !sess.IsPlatformAdmin[guildID] {
		middleware.RespondError(c, apperrors.NewAuthorizationError("only a guild admin may change this configuration"))
		return
	}

	var req updateGuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("body", err.Error()))
		return
	}

	g, err := d.Guilds.UpdateConfig(c.Request.Context(), guildID, req.BotManagerRoleIDs, req.RequireHostRole)
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("update_guild", err))
		return
	}
	c.JSON(http.StatusOK, g)
}

// ListChannels implements GET /guilds/{id}/channels, proxying the
// cached chat-platform client.
func (d *Deps) ListChannels(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	channels, err := d.Chat.Channels(c.Request.Context(), guildID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewChatPlatformError("list_channels", err))
		return
	}
	c.JSON(http.StatusOK, channels)
}

// ListRoles implements GET /guilds/{id}/roles.
func (d *Deps) ListRoles(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	roles, err := d.Chat.Roles(c.Request.Context(), guildID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewChatPlatformError("list_roles", err))
		return
	}
	c.JSON(http.StatusOK, roles)
}

// ValidateMention implements POST /guilds/{id}/validate-mention (spec
// §4.6(c)/§6), the standalone single-entry form of mention resolution
// used by autosave/inline validation separate from game submit.
func (d *Deps) ValidateMention(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())

	var req struct {
		Input string `json:"input"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("input", err.Error()))
		return
	}

	members, err := d.Chat.Members(c.Request.Context(), guildID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewChatPlatformError("list_members", err))
		return
	}

	entry, invalid := resolveMention(req.Input, members)
	if invalid != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_mentions", "invalid_mentions": []interface{}{invalid}})
		return
	}
	c.JSON(http.StatusOK, entry)
}
