package bus

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewEnvelope(t *testing.T) {
	payload := GameEventPayload{GameID: "game-1"}
	env, err := NewEnvelope(RoutingGameCreated, "guild-1", payload)
	if err != nil {
		t.Fatalf("NewEnvelope returned error: %v", err)
	}

	if env.EventID.String() == "" {
		t.Error("expected a non-empty event id")
	}
	if env.EventType != RoutingGameCreated {
		t.Errorf("EventType = %v, want %v", env.EventType, RoutingGameCreated)
	}
	if env.GuildID != "guild-1" {
		t.Errorf("GuildID = %q, want guild-1", env.GuildID)
	}
	if env.Timestamp.IsZero() {
		t.Error("expected a non-zero timestamp")
	}
	if env.Timestamp.Location() != time.UTC {
		t.Error("expected timestamp stamped in UTC")
	}

	var decoded GameEventPayload
	if err := json.Unmarshal(env.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.GameID != "game-1" {
		t.Errorf("decoded GameID = %q, want game-1", decoded.GameID)
	}
}

func TestNewEnvelope_DistinctEventIDs(t *testing.T) {
	a, err := NewEnvelope(RoutingGameCreated, "g", GameEventPayload{GameID: "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewEnvelope(RoutingGameCreated, "g", GameEventPayload{GameID: "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.EventID == b.EventID {
		t.Error("expected distinct event ids across envelopes")
	}
}

func TestTTL(t *testing.T) {
	now := time.Date(2025, 7, 4, 19, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		scheduledAt time.Time
		want        time.Duration
	}{
		{"future start", now.Add(time.Hour), time.Hour},
		{"already started", now.Add(-5 * time.Second), 0},
		{"starts exactly now", now, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TTL(tc.scheduledAt, now)
			if got != tc.want {
				t.Errorf("TTL() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTTL_NeverReturnsNoExpirationSentinel(t *testing.T) {
	now := time.Date(2025, 7, 4, 19, 0, 0, 0, time.UTC)
	cases := []time.Time{now.Add(-time.Hour), now, now.Add(time.Hour)}
	for _, scheduledAt := range cases {
		if got := TTL(scheduledAt, now); got == NoExpiration {
			t.Errorf("TTL(%v) = NoExpiration, but a reminder TTL must always be a real, expirable duration", scheduledAt)
		}
	}
}

func TestDeclarations(t *testing.T) {
	specs := Declarations()
	if len(specs) != 1 {
		t.Fatalf("expected exactly one primary queue declaration, got %d", len(specs))
	}
	spec := specs[0]
	if spec.Name != QueueBotEvents {
		t.Errorf("Name = %q, want %q", spec.Name, QueueBotEvents)
	}
	if spec.DLQName != QueueBotEventsDLQ {
		t.Errorf("DLQName = %q, want %q", spec.DLQName, QueueBotEventsDLQ)
	}
	want := []string{"game.*", "participant.*", "notification.*"}
	if len(spec.BindingPatterns) != len(want) {
		t.Fatalf("BindingPatterns = %v, want %v", spec.BindingPatterns, want)
	}
	for i, p := range want {
		if spec.BindingPatterns[i] != p {
			t.Errorf("BindingPatterns[%d] = %q, want %q", i, spec.BindingPatterns[i], p)
		}
	}
}
