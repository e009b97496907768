package api

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gamenight/scheduler/internal/api/middleware"
	apperrors "github.com/gamenight/scheduler/internal/errors"
	"github.com/gamenight/scheduler/internal/store"
)

// ListTemplates implements GET /templates. TemplateRepository's
// ListByGuild/GetByID take an external *sql.Tx (unlike GameRepository,
// which opens its own guild-scoped transaction per call) — handlers
// open that transaction here via DB.WithGuildContext so RLS is bound
// for every read too, not only writes.
func (d *Deps) ListTemplates(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())

	var templates []*store.Template
	err := d.DB.WithGuildContext(c.Request.Context(), guildID, func(tx *sql.Tx) error {
		var err error
		templates, err = d.Templates.ListByGuild(c.Request.Context(), tx, guildID)
		return err
	})
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("list_templates", err))
		return
	}
	c.JSON(http.StatusOK, templates)
}

// GetTemplate implements GET /templates/{id}.
func (d *Deps) GetTemplate(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("id", "invalid template id"))
		return
	}

	var tmpl *store.Template
	err = d.DB.WithGuildContext(c.Request.Context(), guildID, func(tx *sql.Tx) error {
		var err error
		tmpl, err = d.Templates.GetByID(c.Request.Context(), tx, id)
		return err
	})
	if err == store.ErrNotFound {
		middleware.RespondError(c, apperrors.NewNotFoundError("template"))
		return
	}
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("get_template", err))
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

type templateRequest struct {
	Name                   string   `json:"name"`
	ChannelID              string   `json:"channel_id"`
	NotificationRoleIDs    []string `json:"notification_role_ids"`
	AllowedHostRoleIDs     []string `json:"allowed_host_role_ids"`
	AllowedPlayerRoleIDs   []string `json:"allowed_player_role_ids"`
	DefaultMaxPlayers      int      `json:"default_max_players"`
	DefaultReminderMinutes []int    `json:"default_reminder_minutes"`
	DefaultDurationMinutes int      `json:"default_duration_minutes"`
	DefaultLocation        string   `json:"default_location"`
	DefaultSignupInstr     string   `json:"default_signup_instructions"`
	AllowedSignupMethods   []string `json:"allowed_signup_methods"`
	DefaultSignupMethod    string   `json:"default_signup_method"`
	LockedFields           []string `json:"locked_fields"`
	IsDefault              bool     `json:"is_default"`
}

// CreateTemplate implements POST /templates. Only a bot-manager or
// guild admin may author templates — template mutation shares the same
// authorization gate as game mutation (spec §4.6(a).2).
func (d *Deps) CreateTemplate(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	sess := middleware.SessionFrom(c.Request.Context())

	guild, err := d.Guilds.GetByID(c.Request.Context(), guildID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewNotFoundError("guild"))
		return
	}
	if err := middleware.AuthorizeMutation(sess, guild, guildID, ""); err != nil {
		middleware.RespondError(c, err)
		return
	}

	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("body", err.Error()))
		return
	}

	tmpl := &store.Template{
		GuildID: guildID, Name: req.Name, ChannelID: req.ChannelID,
		NotificationRoleIDs: req.NotificationRoleIDs, AllowedHostRoleIDs: req.AllowedHostRoleIDs,
		AllowedPlayerRoleIDs: req.AllowedPlayerRoleIDs, DefaultMaxPlayers: req.DefaultMaxPlayers,
		DefaultReminderMinutes: req.DefaultReminderMinutes, DefaultDurationMinutes: req.DefaultDurationMinutes,
		DefaultLocation: req.DefaultLocation, DefaultSignupInstr: req.DefaultSignupInstr,
		AllowedSignupMethods: req.AllowedSignupMethods, DefaultSignupMethod: store.SignupMethod(req.DefaultSignupMethod),
		LockedFields: req.LockedFields, IsDefault: req.IsDefault,
	}

	created, err := d.Templates.Create(c.Request.Context(), tmpl)
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("create_template", err))
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateTemplate implements PUT /templates/{id}.
func (d *Deps) UpdateTemplate(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	sess := middleware.SessionFrom(c.Request.Context())

	guild, err := d.Guilds.GetByID(c.Request.Context(), guildID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewNotFoundError("guild"))
		return
	}
	if err := middleware.AuthorizeMutation(sess, guild, guildID, ""); err != nil {
		middleware.RespondError(c, err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("id", "invalid template id"))
		return
	}
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("body", err.Error()))
		return
	}

	t := &store.Template{
		Name: req.Name, ChannelID: req.ChannelID, NotificationRoleIDs: req.NotificationRoleIDs,
		AllowedHostRoleIDs: req.AllowedHostRoleIDs, AllowedPlayerRoleIDs: req.AllowedPlayerRoleIDs,
		DefaultMaxPlayers: req.DefaultMaxPlayers, DefaultReminderMinutes: req.DefaultReminderMinutes,
		DefaultDurationMinutes: req.DefaultDurationMinutes, DefaultLocation: req.DefaultLocation,
		DefaultSignupInstr: req.DefaultSignupInstr, AllowedSignupMethods: req.AllowedSignupMethods,
		DefaultSignupMethod: store.SignupMethod(req.DefaultSignupMethod), LockedFields: req.LockedFields,
	}
	updated, err := d.Templates.Update(c.Request.Context(), guildID, id, t)
	if err == store.ErrNotFound {
		middleware.RespondError(c, apperrors.NewNotFoundError("template"))
		return
	}
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("update_template", err))
		return
	}
	c.JSON(http.StatusOK, updated)
}

// SetDefaultTemplate implements POST /templates/{id}/default.
func (d *Deps) SetDefaultTemplate(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	sess := middleware.SessionFrom(c.Request.Context())

	guild, err := d.Guilds.GetByID(c.Request.Context(), guildID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewNotFoundError("guild"))
		return
	}
	if err := middleware.AuthorizeMutation(sess, guild, guildID, ""); err != nil {
		middleware.RespondError(c, err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("id", "invalid template id"))
		return
	}
	if err := d.Templates.SetDefault(c.Request.Context(), guildID, id); err != nil {
		if err == store.ErrNotFound {
			middleware.RespondError(c, apperrors.NewNotFoundError("template"))
			return
		}
		middleware.RespondError(c, apperrors.NewDatabaseError("set_default_template", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteTemplate implements DELETE /templates/{id}.
func (d *Deps) DeleteTemplate(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	sess := middleware.SessionFrom(c.Request.Context())

	guild, err := d.Guilds.GetByID(c.Request.Context(), guildID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewNotFoundError("guild"))
		return
	}
	if err := middleware.AuthorizeMutation(sess, guild, guildID, ""); err != nil {
		middleware.RespondError(c, err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("id", "invalid template id"))
		return
	}
	if err := d.Templates.Delete(c.Request.Context(), guildID, id); err != nil {
		switch err {
		case store.ErrNotFound:
			middleware.RespondError(c, apperrors.NewNotFoundError("template"))
		case store.ErrDefaultTemplateDeleteForbidden:
			middleware.RespondError(c, apperrors.NewCodedConflictError(apperrors.ConflictCodeDefaultLocked, err.Error()))
		default:
			middleware.RespondError(c, apperrors.NewDatabaseError("delete_template", err))
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// ReorderTemplates implements POST /templates/reorder.
func (d *Deps) ReorderTemplates(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	sess := middleware.SessionFrom(c.Request.Context())

	guild, err := d.Guilds.GetByID(c.Request.Context(), guildID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewNotFoundError("guild"))
		return
	}
	if err := middleware.AuthorizeMutation(sess, guild, guildID, ""); err != nil {
		middleware.RespondError(c, err)
		return
	}

	var req struct {
		OrderedIDs []string `json:"ordered_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("ordered_ids", err.Error()))
		return
	}

	ids := make([]uuid.UUID, 0, len(req.OrderedIDs))
	for _, s := range req.OrderedIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			middleware.RespondError(c, apperrors.NewValidationError("ordered_ids", "invalid template id: "+s))
			return
		}
		ids = append(ids, id)
	}

	if err := d.Templates.Reorder(c.Request.Context(), guildID, ids); err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("reorder_templates", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
