package participant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gamenight/scheduler/internal/store"
)

func TestPartition_PlaceholderCountsTowardCap(t *testing.T) {
	now := time.Now()
	entries := []Entry{
		{ParticipantID: "host", UserID: "u-host", PositionType: store.PositionHost, Position: 0, JoinedAt: now},
		{ParticipantID: "ph", PositionType: store.PositionPlaceholder, Position: 0, JoinedAt: now.Add(time.Minute)},
		{ParticipantID: "alice", UserID: "u-alice", PositionType: store.PositionRegular, Position: 0, JoinedAt: now.Add(2 * time.Minute)},
	}

	result := Partition(entries, 2)

	assert.Len(t, result.Confirmed, 2)
	assert.Len(t, result.Overflow, 1)
	assert.Equal(t, "alice", result.Overflow[0].ParticipantID)
	assert.True(t, result.ConfirmedUserIDs["u-host"])
	assert.False(t, result.ConfirmedUserIDs["u-alice"])
	assert.True(t, result.OverflowUserIDs["u-alice"])
}

func TestPartition_SortsByTypeThenPositionThenJoinedAt(t *testing.T) {
	now := time.Now()
	entries := []Entry{
		{ParticipantID: "regular-late", PositionType: store.PositionRegular, Position: 0, JoinedAt: now.Add(time.Hour)},
		{ParticipantID: "cohost", PositionType: store.PositionCohost, Position: 0, JoinedAt: now},
		{ParticipantID: "host", PositionType: store.PositionHost, Position: 0, JoinedAt: now.Add(2 * time.Hour)},
		{ParticipantID: "regular-early", PositionType: store.PositionRegular, Position: 0, JoinedAt: now.Add(30 * time.Minute)},
	}

	result := Partition(entries, 10)

	ids := make([]string, len(result.Sorted))
	for i, e := range result.Sorted {
		ids[i] = e.ParticipantID
	}
	assert.Equal(t, []string{"host", "cohost", "regular-early", "regular-late"}, ids)
}

func TestPromoted_PlaceholderRemovalPromotesWaitlistedUser(t *testing.T) {
	now := time.Now()
	before := Partition([]Entry{
		{ParticipantID: "ph", PositionType: store.PositionPlaceholder, Position: 0, JoinedAt: now},
		{ParticipantID: "alice", UserID: "u-alice", PositionType: store.PositionRegular, Position: 0, JoinedAt: now.Add(time.Minute)},
	}, 1)

	// placeholder removed
	after := Partition([]Entry{
		{ParticipantID: "alice", UserID: "u-alice", PositionType: store.PositionRegular, Position: 0, JoinedAt: now.Add(time.Minute)},
	}, 1)

	promoted := Promoted(before, after)
	assert.Equal(t, []string{"u-alice"}, promoted)
}

func TestPromoted_MaxPlayersIncrease(t *testing.T) {
	now := time.Now()
	roster := []Entry{
		{ParticipantID: "host", UserID: "u-host", PositionType: store.PositionHost, Position: 0, JoinedAt: now},
		{ParticipantID: "ph", PositionType: store.PositionPlaceholder, Position: 0, JoinedAt: now.Add(time.Minute)},
		{ParticipantID: "alice", UserID: "u-alice", PositionType: store.PositionRegular, Position: 0, JoinedAt: now.Add(2 * time.Minute)},
	}

	before := Partition(roster, 2)
	after := Partition(roster, 3)

	promoted := Promoted(before, after)
	assert.Equal(t, []string{"u-alice"}, promoted)
	assert.Empty(t, after.OverflowUserIDs)
}

func TestNextPosition(t *testing.T) {
	existing := []Entry{
		{PositionType: store.PositionRegular, Position: 0},
		{PositionType: store.PositionRegular, Position: 1},
		{PositionType: store.PositionPlaceholder, Position: 0},
	}
	assert.Equal(t, 2, NextPosition(existing, store.PositionRegular))
	assert.Equal(t, 1, NextPosition(existing, store.PositionPlaceholder))
	assert.Equal(t, 0, NextPosition(existing, store.PositionCohost))
}
