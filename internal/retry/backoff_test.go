package retry

import (
	"testing"
	"time"
)

func TestBackoff_FirstAttemptIsImmediate(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Backoff(1); got != 0 {
		t.Errorf("Backoff(1) = %v, want 0", got)
	}
	if got := cfg.Backoff(0); got != 0 {
		t.Errorf("Backoff(0) = %v, want 0", got)
	}
}

func TestBackoff_GrowsByMultiplier(t *testing.T) {
	cfg := Config{BaseDelay: time.Second, Multiplier: 2, MaxDelay: time.Hour}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 8 * time.Second},
	}
	for _, tc := range cases {
		if got := cfg.Backoff(tc.attempt); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestBackoff_CappedAtMaxDelay(t *testing.T) {
	cfg := Config{BaseDelay: time.Minute, Multiplier: 5, MaxDelay: 12 * time.Hour}

	got := cfg.Backoff(20)
	if got != cfg.MaxDelay {
		t.Errorf("Backoff(20) = %v, want capped at %v", got, cfg.MaxDelay)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BaseDelay != time.Minute {
		t.Errorf("BaseDelay = %v, want 1m", cfg.BaseDelay)
	}
	if cfg.Multiplier != 5 {
		t.Errorf("Multiplier = %v, want 5", cfg.Multiplier)
	}
	if cfg.MaxDelay != 12*time.Hour {
		t.Errorf("MaxDelay = %v, want 12h", cfg.MaxDelay)
	}
}
