package gateway

import (
	"fmt"
	"strings"

	"github.com/gamenight/scheduler/internal/chatapi"
	"github.com/gamenight/scheduler/internal/participant"
	"github.com/gamenight/scheduler/internal/store"
)

// calendarURL builds the frontend download-calendar link placed in the
// embed title (spec §6 "Chat message URL").
func calendarURL(frontendBaseURL string, gameID string) string {
	return fmt.Sprintf("%s/download-calendar/%s", strings.TrimRight(frontendBaseURL, "/"), gameID)
}

// RenderEmbed builds the chat embed for a game from its current
// participant list, centralizing rendering on the same partition
// function every other consumer of participant order uses (spec §4.7
// "single source of truth ... across chat-message rendering").
func RenderEmbed(frontendBaseURL string, g *store.Game, participants []*store.Participant) chatapi.Embed {
	entries := participant.FromStoreParticipants(participants)
	result := participant.Partition(entries, g.MaxPlayers)
	mentions := mentionsByParticipantID(participants)

	embed := chatapi.Embed{
		Title:       g.Title,
		Description: g.Description,
		URL:         calendarURL(frontendBaseURL, g.ID.String()),
		Fields: []chatapi.EmbedField{
			{Name: "When", Value: g.ScheduledAt.Format("Mon Jan 2, 3:04 PM MST"), Inline: true},
			{Name: "Where", Value: g.Location, Inline: true},
			{Name: "Players", Value: fmt.Sprintf("%d/%d", len(result.Confirmed), g.MaxPlayers), Inline: true},
			{Name: "Confirmed", Value: renderRoster(result.Confirmed, mentions), Inline: false},
		},
	}
	if len(result.Overflow) > 0 {
		embed.Fields = append(embed.Fields, chatapi.EmbedField{
			Name: "Waitlist", Value: renderRoster(result.Overflow, mentions), Inline: false,
		})
	}
	return embed
}

func mentionsByParticipantID(participants []*store.Participant) map[string]string {
	out := make(map[string]string, len(participants))
	for _, p := range participants {
		if p.Mention != nil {
			out[p.ID.String()] = *p.Mention
		}
	}
	return out
}

func renderRoster(entries []participant.Entry, mentions map[string]string) string {
	if len(entries) == 0 {
		return "_none yet_"
	}
	var b strings.Builder
	for i, e := range entries {
		label := mentions[e.ParticipantID]
		if label == "" {
			label = "unnamed"
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, label)
	}
	return b.String()
}

// joinButtonEnabled implements spec §4.5's button-state rule:
// SELF_SIGNUP enables join, HOST_SELECTED disables it.
func joinButtonEnabled(g *store.Game) bool {
	return g.SignupMethod == store.SignupMethodSelf
}
