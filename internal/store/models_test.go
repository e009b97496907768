package store

import (
	"testing"
	"time"
)

func TestStringSlice_ValueAndScan(t *testing.T) {
	s := StringSlice{"role-1", "role-2"}
	v, err := s.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	var out StringSlice
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(out) != 2 || out[0] != "role-1" || out[1] != "role-2" {
		t.Errorf("Scan() = %v, want [role-1 role-2]", out)
	}
}

func TestStringSlice_ScanFromString(t *testing.T) {
	var out StringSlice
	if err := out.Scan(`["a","b"]`); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(out) != 2 || out[0] != "a" || out[1] != "b" {
		t.Errorf("Scan() = %v, want [a b]", out)
	}
}

func TestStringSlice_ScanNil(t *testing.T) {
	out := StringSlice{"stale"}
	if err := out.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if out != nil {
		t.Errorf("Scan(nil) = %v, want nil", out)
	}
}

func TestStringSlice_NilValueEmitsEmptyArray(t *testing.T) {
	var s StringSlice
	v, err := s.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	if v != "[]" {
		t.Errorf("Value() = %v, want \"[]\"", v)
	}
}

func TestStringSlice_ScanRejectsUnsupportedType(t *testing.T) {
	var out StringSlice
	if err := out.Scan(42); err == nil {
		t.Error("expected error scanning an int into StringSlice")
	}
}

func TestIntSlice_ValueAndScan(t *testing.T) {
	s := IntSlice{60, 15}
	v, err := s.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	var out IntSlice
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(out) != 2 || out[0] != 60 || out[1] != 15 {
		t.Errorf("Scan() = %v, want [60 15]", out)
	}
}

func TestIntSlice_ScanRejectsUnsupportedType(t *testing.T) {
	var out IntSlice
	if err := out.Scan(3.14); err == nil {
		t.Error("expected error scanning a float into IntSlice")
	}
}

func TestJoinNotificationDelay(t *testing.T) {
	if JoinNotificationDelay != 60*time.Second {
		t.Errorf("JoinNotificationDelay = %v, want 60s (spec §4.3 post-join delay)", JoinNotificationDelay)
	}
}

func TestGame_EndsAt(t *testing.T) {
	g := &Game{
		ScheduledAt:     time.Date(2025, 7, 4, 20, 0, 0, 0, time.UTC),
		DurationMinutes: 90,
	}
	want := time.Date(2025, 7, 4, 21, 30, 0, 0, time.UTC)
	if got := g.EndsAt(); !got.Equal(want) {
		t.Errorf("EndsAt() = %v, want %v", got, want)
	}
	if !g.ScheduledAt.Before(g.EndsAt()) {
		t.Error("expected scheduled_at to precede scheduled_at + duration (spec §3 invariant)")
	}
}
