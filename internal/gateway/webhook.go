package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gamenight/scheduler/internal/telemetry"
)

func parseUUIDOrNil(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// InteractionType mirrors the chat platform's webhook interaction
// discriminator (slash command vs. button/component click).
type InteractionType string

const (
	InteractionSlashCommand InteractionType = "slash_command"
	InteractionButtonClick  InteractionType = "button_click"
)

// Interaction is the inbound webhook payload. Grounded on
// internal/bothandler/handler.go's models.Update binding via
// c.ShouldBindJSON, generalized from Telegram's Message/CallbackQuery
// split to a platform-neutral Type discriminator.
type Interaction struct {
	Type      InteractionType `json:"type"`
	Command   string          `json:"command,omitempty"`
	CustomID  string          `json:"custom_id,omitempty"`
	UserID    string          `json:"user_id"`
	ChannelID string          `json:"channel_id"`
	GuildID   string          `json:"guild_id"`
	GameID    string          `json:"game_id,omitempty"`
}

// InteractionResponse is returned synchronously within the platform's
// 3-second interaction window (spec §4.5); any heavier follow-up work
// is deferred to the bus rather than done inline here.
type InteractionResponse struct {
	Content string `json:"content"`
}

type interactionHandlerFunc func(ctx *gin.Context, in Interaction) InteractionResponse

// HandleInteraction is the webhook entrypoint for slash commands and
// button clicks, mirroring
// internal/bothandler/handler.go's HandleWebhook/HandleUpdate split:
// bind the payload, then dispatch by kind.
func (g *Gateway) HandleInteraction(c *gin.Context) {
	var in Interaction
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid interaction payload"})
		return
	}

	logger := telemetry.GetContextualLogger(c.Request.Context()).WithFields(map[string]interface{}{
		"operation": "gateway_interaction", "type": string(in.Type), "guild_id": in.GuildID,
	})

	var handler interactionHandlerFunc
	switch in.Type {
	case InteractionSlashCommand:
		handler = g.slashCommands[in.Command]
	case InteractionButtonClick:
		handler = g.buttonHandlers[in.CustomID]
	}

	if handler == nil {
		logger.Warn("no handler for interaction")
		c.JSON(http.StatusOK, InteractionResponse{Content: "Unknown command."})
		return
	}

	resp := handler(c, in)
	c.JSON(http.StatusOK, resp)
}

// joinButtonCustomID is the custom-id the join-button handler is
// registered under. RenderEmbed does not attach a button to the embed,
// so no rendered post carries this id.
const joinButtonCustomID = "game_join"

func (g *Gateway) registerInteractionHandlers() {
	g.slashCommands = map[string]interactionHandlerFunc{
		"games": g.handleListGamesCommand,
	}
	g.buttonHandlers = map[string]interactionHandlerFunc{
		joinButtonCustomID: g.handleJoinButton,
	}
}

func (g *Gateway) handleListGamesCommand(c *gin.Context, in Interaction) InteractionResponse {
	games, err := g.games.ListByGuild(c.Request.Context(), in.GuildID)
	if err != nil {
		return InteractionResponse{Content: "Sorry, something went wrong listing games."}
	}
	if len(games) == 0 {
		return InteractionResponse{Content: "No upcoming games scheduled."}
	}
	return InteractionResponse{Content: "Check the pinned game posts in this channel for the current schedule."}
}

// handleJoinButton answers within the interaction window with a reply
// chosen from the game's existence and signup method. It does not
// record the join: it neither writes a participant row nor publishes an
// event to the bus.
func (g *Gateway) handleJoinButton(c *gin.Context, in Interaction) InteractionResponse {
	game, err := g.games.GetByID(c.Request.Context(), in.GuildID, parseUUIDOrNil(in.GameID))
	if err != nil || game == nil {
		return InteractionResponse{Content: "This game no longer exists."}
	}
	if !joinButtonEnabled(game) {
		return InteractionResponse{Content: "Signups for this game are host-managed."}
	}
	return InteractionResponse{Content: "Got it — updating the roster."}
}
