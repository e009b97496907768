package gateway

import (
	"strings"
	"testing"
	"time"

	"github.com/gamenight/scheduler/internal/chatapi"
	"github.com/gamenight/scheduler/internal/store"
	"github.com/google/uuid"
)

func mention(s string) *string { return &s }

func newParticipant(mentionText string, posType store.PositionType, pos int, joinedAt time.Time) *store.Participant {
	return &store.Participant{
		ID:           uuid.New(),
		Mention:      mention(mentionText),
		JoinedAt:     joinedAt,
		PositionType: posType,
		Position:     pos,
	}
}

func TestRenderEmbed_PlayerCountReflectsConfirmedOnly(t *testing.T) {
	base := time.Date(2025, 7, 4, 19, 55, 0, 0, time.UTC)
	g := &store.Game{
		ID:          uuid.New(),
		Title:       "Poker Night",
		ScheduledAt: time.Date(2025, 7, 4, 20, 0, 0, 0, time.UTC),
		Location:    "Table 3",
		MaxPlayers:  4,
	}
	host := newParticipant("@host", store.PositionHost, 0, base)

	embed := RenderEmbed("https://app.example.test", g, []*store.Participant{host})

	if !strings.Contains(embed.Title, "Poker Night") {
		t.Errorf("Title = %q, want it to contain Poker Night", embed.Title)
	}

	players := fieldValue(t, embed, "Players")
	if players != "1/4" {
		t.Errorf("Players field = %q, want 1/4", players)
	}
}

func TestRenderEmbed_PlayerCountIncludesPlaceholders(t *testing.T) {
	base := time.Date(2025, 7, 4, 19, 0, 0, 0, time.UTC)
	g := &store.Game{ID: uuid.New(), Title: "Dungeon Crawl", MaxPlayers: 2}
	host := newParticipant("@host", store.PositionHost, 0, base)
	placeholder := newParticipant("Guest A", store.PositionPlaceholder, 0, base.Add(time.Minute))

	embed := RenderEmbed("https://app.example.test", g, []*store.Participant{host, placeholder})

	if got := fieldValue(t, embed, "Players"); got != "2/2" {
		t.Errorf("Players field = %q, want 2/2 (placeholders count toward the cap)", got)
	}
	if got := fieldValue(t, embed, "Waitlist"); got != "" {
		t.Errorf("expected no Waitlist field when nobody overflows, got %q", got)
	}
}

func TestRenderEmbed_WaitlistFieldOnlyWhenOverflowing(t *testing.T) {
	base := time.Date(2025, 7, 4, 19, 0, 0, 0, time.UTC)
	g := &store.Game{ID: uuid.New(), Title: "Board Games", MaxPlayers: 1}
	host := newParticipant("@host", store.PositionHost, 0, base)
	overflow := newParticipant("@straggler", store.PositionRegular, 0, base.Add(time.Minute))

	embed := RenderEmbed("https://app.example.test", g, []*store.Participant{host, overflow})

	waitlist := fieldValue(t, embed, "Waitlist")
	if !strings.Contains(waitlist, "@straggler") {
		t.Errorf("Waitlist field = %q, want it to list @straggler", waitlist)
	}
}

func TestCalendarURL(t *testing.T) {
	id := uuid.New()
	got := calendarURL("https://app.example.test/", id.String())
	want := "https://app.example.test/download-calendar/" + id.String()
	if got != want {
		t.Errorf("calendarURL() = %q, want %q", got, want)
	}
}

func TestJoinButtonEnabled(t *testing.T) {
	selfSignup := &store.Game{SignupMethod: store.SignupMethodSelf}
	hostSelected := &store.Game{SignupMethod: store.SignupMethodHostSelected}

	if !joinButtonEnabled(selfSignup) {
		t.Error("expected join button enabled for SELF_SIGNUP")
	}
	if joinButtonEnabled(hostSelected) {
		t.Error("expected join button disabled for HOST_SELECTED")
	}
}

func fieldValue(t *testing.T, embed chatapi.Embed, name string) string {
	t.Helper()
	for _, f := range embed.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}
