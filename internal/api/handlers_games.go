package api

import (
	"database/sql"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gamenight/scheduler/internal/api/middleware"
	"github.com/gamenight/scheduler/internal/bus"
	apperrors "github.com/gamenight/scheduler/internal/errors"
	"github.com/gamenight/scheduler/internal/participant"
	"github.com/gamenight/scheduler/internal/store"
)

const maxImageBytes = 5 * 1024 * 1024 // spec §6 "Max size 5 MiB"

var allowedImageTypes = map[string]bool{
	"image/png": true, "image/jpeg": true, "image/gif": true, "image/webp": true,
}

// ListGames implements GET /games: every game in the tenant guild
// visible to the session under its template's allowed_player_role_ids
// (spec §4.6(a) step 3, §6).
func (d *Deps) ListGames(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	sess := middleware.SessionFrom(c.Request.Context())

	games, err := d.Games.ListByGuild(c.Request.Context(), guildID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("list_games", err))
		return
	}

	out := make([]*store.Game, 0, len(games))
	for _, g := range games {
		var tmpl *store.Template
		err := d.DB.WithGuildContext(c.Request.Context(), guildID, func(tx *sql.Tx) error {
			var err error
			tmpl, err = d.Templates.GetByID(c.Request.Context(), tx, g.TemplateID)
			return err
		})
		if err != nil {
			continue
		}
		if middleware.AuthorizeVisibility(sess, guildID, tmpl.AllowedPlayerRoleIDs) != nil {
			continue
		}
		out = append(out, g)
	}
	c.JSON(http.StatusOK, out)
}

// GetGame implements GET /games/{id}. A game outside the caller's
// visibility is reported 404, the same as cross-tenant access (spec §8
// scenario 6) — player-role gating and guild gating share the same
// enumeration-avoidance posture.
func (d *Deps) GetGame(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	sess := middleware.SessionFrom(c.Request.Context())

	g, tmpl, err := d.loadGameAndTemplate(c, guildID)
	if err != nil {
		return
	}
	if middleware.AuthorizeVisibility(sess, guildID, tmpl.AllowedPlayerRoleIDs) != nil {
		middleware.RespondError(c, apperrors.NewNotFoundError("game"))
		return
	}
	c.JSON(http.StatusOK, g)
}

// loadGameAndTemplate fetches a game and its owning template by the
// :id path param, writing a response and returning a non-nil error if
// either lookup fails so callers can early-return.
func (d *Deps) loadGameAndTemplate(c *gin.Context, guildID string) (*store.Game, *store.Template, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("id", "invalid game id"))
		return nil, nil, err
	}
	g, err := d.Games.GetByID(c.Request.Context(), guildID, id)
	if err != nil {
		middleware.RespondError(c, apperrors.NewNotFoundError("game"))
		return nil, nil, err
	}
	var tmpl *store.Template
	err = d.DB.WithGuildContext(c.Request.Context(), guildID, func(tx *sql.Tx) error {
		var err error
		tmpl, err = d.Templates.GetByID(c.Request.Context(), tx, g.TemplateID)
		return err
	})
	if err != nil {
		middleware.RespondError(c, apperrors.NewNotFoundError("template"))
		return nil, nil, err
	}
	return g, tmpl, nil
}

type gameRequest struct {
	TemplateID         string   `form:"template_id" json:"template_id"`
	Title              string   `form:"title" json:"title"`
	Description        string   `form:"description" json:"description"`
	SignupInstructions string   `form:"signup_instructions" json:"signup_instructions"`
	ScheduledAt        string   `form:"scheduled_at" json:"scheduled_at"` // RFC3339
	DurationMinutes    int      `form:"duration_minutes" json:"duration_minutes"`
	Location           string   `form:"location" json:"location"`
	MaxPlayers         int      `form:"max_players" json:"max_players"`
	ReminderMinutes    []int    `form:"reminder_minutes" json:"reminder_minutes"`
	RoleNotifyIDs      []string `form:"role_notify_ids" json:"role_notify_ids"`
	SignupMethod       string   `form:"signup_method" json:"signup_method"`
	ChannelID          string   `form:"channel_id" json:"channel_id"`
	Participants       []string `form:"participants" json:"participants"` // mention/placeholder entries, host excluded
}

// CreateGame implements POST /games: multipart/form-data with optional
// thumbnail/banner uploads, or a plain JSON body when no images are
// attached (spec §6). Template visibility and participant mentions are
// validated before any row is written.
func (d *Deps) CreateGame(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	sess := middleware.SessionFrom(c.Request.Context())

	var req gameRequest
	if ct := c.ContentType(); ct == "multipart/form-data" {
		if err := c.ShouldBind(&req); err != nil {
			middleware.RespondError(c, apperrors.NewValidationError("body", err.Error()))
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("body", err.Error()))
		return
	}

	templateID, err := uuid.Parse(req.TemplateID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("template_id", "invalid template id"))
		return
	}
	var tmpl *store.Template
	err = d.DB.WithGuildContext(c.Request.Context(), guildID, func(tx *sql.Tx) error {
		var err error
		tmpl, err = d.Templates.GetByID(c.Request.Context(), tx, templateID)
		return err
	})
	if err != nil {
		middleware.RespondError(c, apperrors.NewNotFoundError("template"))
		return
	}
	if err := middleware.AuthorizeTemplateVisibility(sess, guildID, tmpl.AllowedHostRoleIDs); err != nil {
		middleware.RespondError(c, err)
		return
	}

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("scheduled_at", "must be RFC3339"))
		return
	}
	if !scheduledAt.After(time.Now()) {
		middleware.RespondError(c, apperrors.NewValidationError("scheduled_at", "must be in the future"))
		return
	}
	if req.MaxPlayers <= 0 {
		middleware.RespondError(c, apperrors.NewValidationError("max_players", "must be greater than zero"))
		return
	}

	members, err := d.Chat.Members(c.Request.Context(), guildID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewChatPlatformError("list_members", err))
		return
	}
	valid, invalid := resolveParticipantEntries(req.Participants, members)
	if len(invalid) > 0 {
		validOut := make([]interface{}, len(valid))
		for i, v := range valid {
			validOut[i] = v
		}
		appErr := apperrors.NewInvalidMentionsError(invalid, validOut)
		c.JSON(appErr.HTTPStatus, gin.H{
			"error": appErr.Code, "message": appErr.Message,
			"invalid_mentions": invalid, "valid_participants": validOut,
		})
		return
	}

	channelID := req.ChannelID
	if channelID == "" {
		channelID = tmpl.ChannelID
	}
	signupMethod := store.SignupMethod(req.SignupMethod)
	if signupMethod == "" {
		signupMethod = tmpl.DefaultSignupMethod
	}

	g := &store.Game{
		GuildID: guildID, TemplateID: templateID, Title: req.Title, Description: req.Description,
		ScheduledAt: scheduledAt, DurationMinutes: req.DurationMinutes, Location: req.Location,
		MaxPlayers: req.MaxPlayers, ReminderMinutes: req.ReminderMinutes, RoleNotifyIDs: req.RoleNotifyIDs,
		SignupMethod: signupMethod, ChannelID: channelID,
	}
	if req.SignupInstructions != "" {
		g.SignupInstructions = &req.SignupInstructions
	}
	if err := bindUploadedImage(c, "thumbnail", &g.ThumbnailMIME, &g.ThumbnailData); err != nil {
		middleware.RespondError(c, err)
		return
	}
	if err := bindUploadedImage(c, "banner", &g.BannerMIME, &g.BannerData); err != nil {
		middleware.RespondError(c, err)
		return
	}

	created, err := d.Games.Create(c.Request.Context(), g)
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("create_game", err))
		return
	}

	hostMention := sess.UserExternalID
	if _, err := d.Participants.Add(c.Request.Context(), guildID, &store.Participant{
		GameID: created.ID, UserID: &hostMention, PositionType: store.PositionHost, Position: 0,
	}); err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("add_host_participant", err))
		return
	}
	for _, entry := range valid {
		p := &store.Participant{GameID: created.ID, PositionType: store.PositionRegular}
		if entry.UserID != "" {
			uid := entry.UserID
			p.UserID = &uid
		}
		mention := entry.Mention
		p.Mention = &mention
		if _, err := d.Participants.Add(c.Request.Context(), guildID, p); err != nil {
			middleware.RespondError(c, apperrors.NewDatabaseError("add_participant", err))
			return
		}
	}

	d.publishGameEvent(c, guildID, bus.RoutingGameCreated, created.ID, created.ScheduledAt)
	c.JSON(http.StatusCreated, created)
}

// bindUploadedImage reads an optional multipart field into mime/data
// pointers, enforcing the PNG/JPEG/GIF/WebP + 5 MiB rules (spec §6
// "Image storage"). A missing field is not an error.
func bindUploadedImage(c *gin.Context, field string, mime **string, data *[]byte) *apperrors.AppError {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil
	}
	if fh.Size > maxImageBytes {
		return apperrors.NewValidationError(field, "image exceeds 5 MiB limit")
	}
	f, err := fh.Open()
	if err != nil {
		return apperrors.NewValidationError(field, "could not read uploaded image")
	}
	defer f.Close()

	sniff := make([]byte, 512)
	n, _ := io.ReadFull(f, sniff)
	contentType := http.DetectContentType(sniff[:n])
	if !allowedImageTypes[contentType] {
		return apperrors.NewValidationError(field, "unsupported image type: "+contentType)
	}

	rest, err := io.ReadAll(f)
	if err != nil {
		return apperrors.NewValidationError(field, "could not read uploaded image")
	}
	full := append(sniff[:n:n], rest...)

	*mime = &contentType
	*data = full
	return nil
}

// publishGameEvent publishes a game.* envelope with the spec §4.1 TTL
// rule: time-until-start, floored at zero.
func (d *Deps) publishGameEvent(c *gin.Context, guildID string, routingKey bus.RoutingKey, gameID uuid.UUID, scheduledAt time.Time) {
	env, err := bus.NewEnvelope(routingKey, guildID, bus.GameEventPayload{GameID: gameID.String()})
	if err != nil {
		return
	}
	_ = d.Publisher.Publish(c.Request.Context(), env, bus.TTL(scheduledAt, time.Now()))
}

func (d *Deps) publishParticipantEvent(c *gin.Context, guildID string, routingKey bus.RoutingKey, gameID uuid.UUID, participantID, userID string, scheduledAt time.Time) {
	env, err := bus.NewEnvelope(routingKey, guildID, bus.ParticipantEventPayload{
		GameID: gameID.String(), ParticipantID: participantID, UserID: userID,
	})
	if err != nil {
		return
	}
	_ = d.Publisher.Publish(c.Request.Context(), env, bus.TTL(scheduledAt, time.Now()))
}

type gameUpdateRequest struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	SignupInstructions string   `json:"signup_instructions"`
	ScheduledAt        string   `json:"scheduled_at"`
	DurationMinutes    int      `json:"duration_minutes"`
	Location           string   `json:"location"`
	MaxPlayers         int      `json:"max_players"`
	ReminderMinutes    []int    `json:"reminder_minutes"`
	RoleNotifyIDs      []string `json:"role_notify_ids"`
	SignupMethod       string   `json:"signup_method"`
	ChannelID          string   `json:"channel_id"`
}

// UpdateGame implements PUT /games/{id}. Detects waitlist promotion
// caused by a max_players increase by partitioning the roster before
// and after the write (spec §4.7 steps 1-5) and fires a
// participant.promoted event per promoted user.
func (d *Deps) UpdateGame(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	sess := middleware.SessionFrom(c.Request.Context())

	g, _, err := d.loadGameAndTemplate(c, guildID)
	if err != nil {
		return
	}
	host, err := d.hostExternalID(c, guildID, g.ID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("load_host", err))
		return
	}
	guild, err := d.Guilds.GetByID(c.Request.Context(), guildID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewNotFoundError("guild"))
		return
	}
	if err := middleware.AuthorizeMutation(sess, guild, guildID, host); err != nil {
		middleware.RespondError(c, err)
		return
	}

	var req gameUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("body", err.Error()))
		return
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("scheduled_at", "must be RFC3339"))
		return
	}

	before, err := d.Participants.ListByGame(c.Request.Context(), guildID, g.ID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("list_participants", err))
		return
	}
	oldPartition := participant.Partition(participant.FromStoreParticipants(before), g.MaxPlayers)

	upd := store.GameUpdate{
		Title: req.Title, Description: req.Description, ScheduledAt: scheduledAt,
		DurationMinutes: req.DurationMinutes, Location: req.Location, MaxPlayers: req.MaxPlayers,
		ReminderMinutes: req.ReminderMinutes, RoleNotifyIDs: req.RoleNotifyIDs,
		SignupMethod: store.SignupMethod(req.SignupMethod), ChannelID: req.ChannelID,
	}
	if req.SignupInstructions != "" {
		upd.SignupInstructions = &req.SignupInstructions
	}
	updated, err := d.Games.Update(c.Request.Context(), guildID, g.ID, upd)
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("update_game", err))
		return
	}

	newPartition := participant.Partition(participant.FromStoreParticipants(before), updated.MaxPlayers)
	for _, uid := range participant.Promoted(oldPartition, newPartition) {
		d.publishParticipantEvent(c, guildID, bus.RoutingParticipantPromo, g.ID, "", uid, updated.ScheduledAt)
	}
	d.publishGameEvent(c, guildID, bus.RoutingGameUpdated, g.ID, updated.ScheduledAt)
	c.JSON(http.StatusOK, updated)
}

// DeleteGame implements DELETE /games/{id} as a cancellation (spec §8
// "Host cancels a game in IN_PROGRESS"): the row is kept with status
// CANCELLED, never hard-deleted, so history and exports still resolve.
func (d *Deps) DeleteGame(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	sess := middleware.SessionFrom(c.Request.Context())

	g, _, err := d.loadGameAndTemplate(c, guildID)
	if err != nil {
		return
	}
	host, err := d.hostExternalID(c, guildID, g.ID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("load_host", err))
		return
	}
	guild, err := d.Guilds.GetByID(c.Request.Context(), guildID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewNotFoundError("guild"))
		return
	}
	if err := middleware.AuthorizeMutation(sess, guild, guildID, host); err != nil {
		middleware.RespondError(c, err)
		return
	}

	cancelled, err := d.Games.Cancel(c.Request.Context(), guildID, g.ID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("cancel_game", err))
		return
	}
	d.publishGameEvent(c, guildID, bus.RoutingGameCancelled, cancelled.ID, cancelled.ScheduledAt)
	c.Status(http.StatusNoContent)
}

// hostExternalID looks up the game's host participant's external user
// id, used by the mutation-authorization check (spec §4.6(a) step 2).
func (d *Deps) hostExternalID(c *gin.Context, guildID string, gameID uuid.UUID) (string, error) {
	rows, err := d.Participants.ListByGame(c.Request.Context(), guildID, gameID)
	if err != nil {
		return "", err
	}
	for _, p := range rows {
		if p.PositionType == store.PositionHost && p.UserID != nil {
			return *p.UserID, nil
		}
	}
	return "", nil
}

// JoinGame implements POST /games/{id}/join. Joining always succeeds
// (into confirmed or overflow) unless the session is already a
// participant, or the game's signup method is not SELF_SIGNUP.
func (d *Deps) JoinGame(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	sess := middleware.SessionFrom(c.Request.Context())

	g, _, err := d.loadGameAndTemplate(c, guildID)
	if err != nil {
		return
	}
	if g.SignupMethod != store.SignupMethodSelf {
		middleware.RespondError(c, apperrors.NewCodedConflictError(apperrors.ConflictCodeStaleSignup, "self-signup is disabled for this game"))
		return
	}

	rows, err := d.Participants.ListByGame(c.Request.Context(), guildID, g.ID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("list_participants", err))
		return
	}
	for _, p := range rows {
		if p.UserID != nil && *p.UserID == sess.UserExternalID {
			middleware.RespondError(c, apperrors.NewCodedConflictError(apperrors.ConflictCodeAlreadyJoined, "you have already joined this game"))
			return
		}
	}

	entries := participant.FromStoreParticipants(rows)
	pos := participant.NextPosition(entries, store.PositionRegular)
	userID := sess.UserExternalID
	created, err := d.Participants.Add(c.Request.Context(), guildID, &store.Participant{
		GameID: g.ID, UserID: &userID, PositionType: store.PositionRegular, Position: pos,
	})
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("join_game", err))
		return
	}

	if err := d.Schedules.InsertJoinNotification(c.Request.Context(), g.ID, created.ID, created.JoinedAt, g.ScheduledAt); err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("schedule_join_notification", err))
		return
	}

	d.publishParticipantEvent(c, guildID, bus.RoutingParticipantJoined, g.ID, created.ID.String(), userID, g.ScheduledAt)
	c.JSON(http.StatusCreated, created)
}

// LeaveGame implements POST /games/{id}/leave. Removing a participant
// (or a placeholder ahead of a waitlisted user) can promote the next
// overflow entry (spec §4.7, §8 boundary case), so the partition is
// diffed before/after the removal even though max_players is unchanged.
func (d *Deps) LeaveGame(c *gin.Context) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	sess := middleware.SessionFrom(c.Request.Context())

	g, _, err := d.loadGameAndTemplate(c, guildID)
	if err != nil {
		return
	}

	before, err := d.Participants.ListByGame(c.Request.Context(), guildID, g.ID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("list_participants", err))
		return
	}
	var self *store.Participant
	for _, p := range before {
		if p.UserID != nil && *p.UserID == sess.UserExternalID {
			self = p
			break
		}
	}
	if self == nil {
		middleware.RespondError(c, apperrors.NewNotFoundError("participant"))
		return
	}

	oldPartition := participant.Partition(participant.FromStoreParticipants(before), g.MaxPlayers)
	if err := d.Participants.Remove(c.Request.Context(), guildID, self.ID); err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("leave_game", err))
		return
	}

	after, err := d.Participants.ListByGame(c.Request.Context(), guildID, g.ID)
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("list_participants", err))
		return
	}
	newPartition := participant.Partition(participant.FromStoreParticipants(after), g.MaxPlayers)
	for _, uid := range participant.Promoted(oldPartition, newPartition) {
		d.publishParticipantEvent(c, guildID, bus.RoutingParticipantPromo, g.ID, "", uid, g.ScheduledAt)
	}
	d.publishParticipantEvent(c, guildID, bus.RoutingParticipantLeft, g.ID, self.ID.String(), sess.UserExternalID, g.ScheduledAt)
	c.Status(http.StatusNoContent)
}

// GetThumbnail implements GET /games/{id}/thumbnail.
func (d *Deps) GetThumbnail(c *gin.Context) {
	d.serveGameImage(c, func(g *store.Game) (*string, []byte) { return g.ThumbnailMIME, g.ThumbnailData })
}

// GetImage implements GET /games/{id}/image (the banner image).
func (d *Deps) GetImage(c *gin.Context) {
	d.serveGameImage(c, func(g *store.Game) (*string, []byte) { return g.BannerMIME, g.BannerData })
}

func (d *Deps) serveGameImage(c *gin.Context, pick func(*store.Game) (*string, []byte)) {
	guildID := middleware.GuildIDFrom(c.Request.Context())
	g, _, err := d.loadGameAndTemplate(c, guildID)
	if err != nil {
		return
	}
	mime, data := pick(g)
	if mime == nil || len(data) == 0 {
		middleware.RespondError(c, apperrors.NewNotFoundError("image"))
		return
	}
	c.Header("Cache-Control", "public, max-age=86400, immutable")
	c.Data(http.StatusOK, *mime, data)
}
