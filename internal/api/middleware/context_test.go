package middleware

import (
	"context"
	"testing"
)

func TestGuildIDFrom_UnboundReturnsEmpty(t *testing.T) {
	if got := GuildIDFrom(context.Background()); got != "" {
		t.Errorf("GuildIDFrom() = %q, want empty on unbound context", got)
	}
}

func TestGuildIDFrom_RoundTrip(t *testing.T) {
	ctx := withGuildID(context.Background(), "guild-123")
	if got := GuildIDFrom(ctx); got != "guild-123" {
		t.Errorf("GuildIDFrom() = %q, want guild-123", got)
	}
}

func TestSessionFrom_UnboundReturnsNil(t *testing.T) {
	if got := SessionFrom(context.Background()); got != nil {
		t.Errorf("SessionFrom() = %v, want nil on unbound context", got)
	}
}

func TestSessionFrom_RoundTrip(t *testing.T) {
	s := &Session{
		UserExternalID: "user-1",
		GuildRoleIDs:   map[string][]string{"guild-1": {"role-a"}},
		IsPlatformAdmin: map[string]bool{"guild-1": true},
	}
	ctx := withSession(context.Background(), s)

	got := SessionFrom(ctx)
	if got != s {
		t.Fatalf("SessionFrom() = %v, want the same session pointer", got)
	}
	if !got.IsPlatformAdmin["guild-1"] {
		t.Error("expected guild-1 admin flag to round-trip")
	}
}
