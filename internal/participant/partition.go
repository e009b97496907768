// Package participant implements the single source of truth for
// participant ordering and waitlist promotion (spec §4.7). Every other
// component — chat-message rendering, API responses, notification
// targeting, promotion detection — calls Partition rather than
// re-deriving the sort or the confirmed/overflow split itself.
package participant

import (
	"sort"
	"time"

	"github.com/gamenight/scheduler/internal/store"
)

// Entry is the minimal view of a store.Participant that Partition needs.
// Kept distinct from store.Participant so this package has no database
// dependency — it is a pure function over plain values.
type Entry struct {
	ParticipantID string
	UserID        string // empty for placeholders
	PositionType  store.PositionType
	Position      int
	JoinedAt      time.Time
}

// Result is the output of Partition: the full stable ordering plus the
// confirmed/overflow split and their real-user-id projections.
type Result struct {
	Sorted            []Entry
	Confirmed         []Entry
	Overflow          []Entry
	ConfirmedUserIDs  map[string]bool
	OverflowUserIDs   map[string]bool
}

// Partition sorts participants stably by (position_type, position,
// joined_at) and splits the first maxPlayers entries into Confirmed,
// the remainder into Overflow.
//
// Placeholders count toward the confirmed cap — excluding them produced
// a class of promotion bugs in the system this was ported from (spec
// §4.7 rule 2). Do not special-case PositionPlaceholder here.
func Partition(entries []Entry, maxPlayers int) Result {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.PositionType != b.PositionType {
			return a.PositionType < b.PositionType
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.JoinedAt.Before(b.JoinedAt)
	})

	cap := maxPlayers
	if cap < 0 {
		cap = 0
	}
	if cap > len(sorted) {
		cap = len(sorted)
	}

	confirmed := sorted[:cap]
	overflow := sorted[cap:]

	confirmedIDs := userIDSet(confirmed)
	overflowIDs := userIDSet(overflow)

	return Result{
		Sorted:           sorted,
		Confirmed:        confirmed,
		Overflow:         overflow,
		ConfirmedUserIDs: confirmedIDs,
		OverflowUserIDs:  overflowIDs,
	}
}

func userIDSet(entries []Entry) map[string]bool {
	out := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.UserID != "" {
			out[e.UserID] = true
		}
	}
	return out
}

// FromStoreParticipants adapts store.Participant rows (as returned by
// ParticipantRepository.ListByGame, already ordered or not) into Entry
// values for Partition.
func FromStoreParticipants(rows []*store.Participant) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, p := range rows {
		e := Entry{
			ParticipantID: p.ID.String(),
			PositionType:  p.PositionType,
			Position:      p.Position,
			JoinedAt:      p.JoinedAt,
		}
		if p.UserID != nil {
			e.UserID = *p.UserID
		}
		out = append(out, e)
	}
	return out
}

// Promoted computes the set of real user ids that moved from overflow
// into confirmed between two partitions of the same game (spec §4.7
// steps 4-5). Callers are expected to have computed before with the old
// max_players/roster and after with the new ones, in that order.
func Promoted(before, after Result) []string {
	var out []string
	for uid := range before.OverflowUserIDs {
		if after.ConfirmedUserIDs[uid] {
			out = append(out, uid)
		}
	}
	return out
}

// NextPosition returns the (position_type, position) to assign a newly
// joining entry of the given type: one slot past the highest existing
// position within that type, or 0 if the type is empty. The host slot
// is never assigned this way — callers always pass store.PositionHost
// explicitly and there is at most one per game (spec §3 invariant).
func NextPosition(existing []Entry, positionType store.PositionType) int {
	max := -1
	for _, e := range existing {
		if e.PositionType == positionType && e.Position > max {
			max = e.Position
		}
	}
	return max + 1
}
