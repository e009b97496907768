// Package scheduler implements the notification daemon (C4) and
// status-transition daemon (C5): the shared query/sleep/fire loop
// described in spec §4.3, woken by a dedicated LISTEN/NOTIFY connection
// and a coarse periodic safety tick. Grounded on the teacher's
// services/worker daemon shape (errgroup-driven main loop with graceful
// shutdown), generalized from asynq/Redis polling to Postgres
// LISTEN/NOTIFY plus a lib/pq.Listener, since the spec's wake-up model
// is trigger-driven rather than queue-polling.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/gamenight/scheduler/internal/telemetry"
)

// SafetyTick is the coarse periodic wake-up used when no row is pending
// or a LISTEN notification is lost (spec §4.3 default 60s).
const SafetyTick = 60 * time.Second

// Listener wraps a dedicated LISTEN/NOTIFY connection (spec §5
// "one connection dedicated to LISTEN"). It is a pure wake-up signal —
// callers re-query MIN(due_at) on every wake rather than trusting
// anything in the notification payload (spec §4.2).
type Listener struct {
	l *pq.Listener
}

// NewListener opens a dedicated LISTEN connection on channel and starts
// listening immediately.
func NewListener(dsn, channel string) (*Listener, error) {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger := telemetry.GetContextualLogger(context.Background())
			logger.WithError(err).WithField("channel", channel).Warn("listener connection event")
		}
	}
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, reportProblem)
	if err := l.Listen(channel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("listen on %s: %w", channel, err)
	}
	return &Listener{l: l}, nil
}

func (w *Listener) Close() error {
	return w.l.Close()
}

// Wait blocks until a notification arrives, the safety tick elapses, d
// (the time until the next known due row, or SafetyTick if none is
// known) passes, or ctx is cancelled.
func (w *Listener) Wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = SafetyTick
	}
	if d > SafetyTick {
		d = SafetyTick
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-w.l.Notify:
	case <-timer.C:
	}
}
