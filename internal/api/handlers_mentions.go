package api

import (
	"strings"

	"github.com/gamenight/scheduler/internal/chatapi"
	apperrors "github.com/gamenight/scheduler/internal/errors"
)

// resolvedParticipant is a single successfully-validated participant
// entry, either a resolved chat mention or a placeholder string (spec
// §4.6(c)).
type resolvedParticipant struct {
	Input   string `json:"input"`
	UserID  string `json:"user_id,omitempty"`
	Mention string `json:"mention"`
}

// resolveMention resolves one entry against a guild's member list.
// A leading "@" marks a mention; anything else is a placeholder and
// always succeeds. Exact case-insensitive username/display-name match
// wins; otherwise every substring match becomes a disambiguation
// suggestion and the entry is reported invalid.
func resolveMention(input string, members []chatapi.Member) (*resolvedParticipant, *apperrors.InvalidMention) {
	if !strings.HasPrefix(input, "@") {
		return &resolvedParticipant{Input: input, Mention: input}, nil
	}

	name := strings.TrimPrefix(input, "@")
	lower := strings.ToLower(name)

	var exact *chatapi.Member
	var suggestions []apperrors.MentionSuggestion
	for i := range members {
		m := &members[i]
		if strings.EqualFold(m.Username, name) || strings.EqualFold(m.DisplayName, name) {
			exact = m
			break
		}
		if strings.Contains(strings.ToLower(m.Username), lower) || strings.Contains(strings.ToLower(m.DisplayName), lower) {
			suggestions = append(suggestions, apperrors.MentionSuggestion{ID: m.UserID, Username: m.Username, DisplayName: m.DisplayName})
		}
	}

	if exact != nil {
		return &resolvedParticipant{Input: input, UserID: exact.UserID, Mention: "@" + exact.Username}, nil
	}

	reason := "no matching member"
	if len(suggestions) > 0 {
		reason = "ambiguous or unconfirmed match"
	}
	return nil, &apperrors.InvalidMention{Input: input, Reason: reason, Suggestions: suggestions}
}

// resolveParticipantEntries resolves every entry in a game-create/update
// request, splitting into valid and invalid per spec §4.6(c) so the
// API can return the full structured 422 response in one pass.
func resolveParticipantEntries(inputs []string, members []chatapi.Member) (valid []resolvedParticipant, invalid []apperrors.InvalidMention) {
	for _, input := range inputs {
		entry, bad := resolveMention(input, members)
		if bad != nil {
			invalid = append(invalid, *bad)
			continue
		}
		valid = append(valid, *entry)
	}
	return valid, invalid
}
