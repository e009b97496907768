package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gamenight/scheduler/internal/api/middleware"
	apperrors "github.com/gamenight/scheduler/internal/errors"
)

const icsTimeLayout = "20060102T150405Z"

// ExportGame implements GET /export/game/{id}: a single-event iCal feed
// for the chat message's "download calendar" link (spec §6). No example
// in this codebase's dependency pack carries an iCalendar library, and
// a single VEVENT is a few fixed lines of text — this is written
// against the standard library rather than pulled in as a dependency
// for a format this narrow.
func (d *Deps) ExportGame(c *gin.Context) {
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

	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//gamenight//scheduler//EN\r\n")
	b.WriteString("BEGIN:VEVENT\r\n")
	fmt.Fprintf(&b, "UID:%s@gamenight\r\n", g.ID.String())
	fmt.Fprintf(&b, "DTSTAMP:%s\r\n", time.Now().UTC().Format(icsTimeLayout))
	fmt.Fprintf(&b, "DTSTART:%s\r\n", g.ScheduledAt.UTC().Format(icsTimeLayout))
	fmt.Fprintf(&b, "DTEND:%s\r\n", g.EndsAt().UTC().Format(icsTimeLayout))
	fmt.Fprintf(&b, "SUMMARY:%s\r\n", icsEscape(g.Title))
	if g.Description != "" {
		fmt.Fprintf(&b, "DESCRIPTION:%s\r\n", icsEscape(g.Description))
	}
	if g.Location != "" {
		fmt.Fprintf(&b, "LOCATION:%s\r\n", icsEscape(g.Location))
	}
	b.WriteString("END:VEVENT\r\n")
	b.WriteString("END:VCALENDAR\r\n")

	filename := fmt.Sprintf("%s_%s.ics", sanitizeFilename(g.Title), g.ScheduledAt.UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/calendar", []byte(b.String()))
}

func icsEscape(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}

func sanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "game"
	}
	return b.String()
}
