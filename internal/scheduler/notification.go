package scheduler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gamenight/scheduler/internal/bus"
	"github.com/gamenight/scheduler/internal/retry"
	"github.com/gamenight/scheduler/internal/store"
	"github.com/gamenight/scheduler/internal/telemetry"
)

// NotificationDaemon is component C4. One process-wide instance per
// deployment (spec §4.3 "single instance ... horizontal scaling is not
// required").
type NotificationDaemon struct {
	schedules *store.ScheduleRepository
	publisher bus.Publisher
	listener  *Listener
	backoff   retry.Config
}

func NewNotificationDaemon(schedules *store.ScheduleRepository, publisher bus.Publisher, listener *Listener) *NotificationDaemon {
	return &NotificationDaemon{schedules: schedules, publisher: publisher, listener: listener, backoff: retry.DefaultConfig()}
}

// Run is the state-machine loop from spec §4.3 steps 1-3, specialized
// to notification_schedule. It blocks until ctx is cancelled (SIGTERM
// handling happens one level up, in cmd/notifyd — the loop finishes
// whatever fire is in flight and returns cleanly, spec §5
// "Cancellation/timeouts").
func (d *NotificationDaemon) Run(ctx context.Context) error {
	logger := telemetry.GetContextualLogger(ctx).WithField("component", "notification_daemon")
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		dueAt, hasRow, err := d.schedules.NextNotificationDueAt(ctx)
		if err != nil {
			logger.WithError(err).Error("failed to query next due notification")
			d.listener.Wait(ctx, SafetyTick)
			continue
		}

		now := time.Now()
		if !hasRow {
			d.listener.Wait(ctx, SafetyTick)
			continue
		}
		if dueAt.After(now) {
			d.listener.Wait(ctx, dueAt.Sub(now))
			continue
		}

		n, err := d.schedules.FireDueNotifications(ctx, now, d.fireOne)
		if err != nil {
			attempt++
			backoffDelay := d.backoff.Backoff(attempt)
			logger.WithError(err).WithField("attempt", attempt).Warn("fire batch failed, backing off")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelay):
			}
			continue
		}
		attempt = 0
		if n > 0 {
			logger.WithField("count", n).Info("fired notification rows")
		}
	}
}

// fireOne builds and publishes the NOTIFICATION_DUE event for a single
// due row, inside the same transaction FireDueNotifications holds the
// row lock in (spec §4.3 step 3 "Fire"). A publish failure returns an
// error, which rolls the whole transaction back so the row stays
// pending for the next wake.
func (d *NotificationDaemon) fireOne(tx *sql.Tx, row *store.NotificationSchedule) error {
	ctx := context.Background()
	ref, err := store.GetRefForDaemon(ctx, tx, row.GameID)
	if err != nil {
		if err == store.ErrNotFound {
			// External-fatal (spec §7): the game is gone, nothing to notify
			// about. Treat the row as handled rather than retry forever.
			return nil
		}
		return err
	}

	var payload bus.NotificationDuePayload
	payload.GameID = row.GameID.String()
	switch row.NotificationType {
	case store.NotificationTypeReminder:
		payload.OffsetMinutes = row.OffsetMinutes
		payload.Kind = bus.NotificationKindReminder
	case store.NotificationTypeJoin:
		if row.ParticipantID != nil {
			payload.ParticipantID = row.ParticipantID.String()
		}
		payload.Kind = bus.NotificationKindJoin
	}

	env, err := bus.NewEnvelope(bus.RoutingNotificationDue, ref.GuildID, payload)
	if err != nil {
		return err
	}

	ttl := bus.TTL(row.GameScheduledAt, time.Now())
	return d.publisher.Publish(ctx, env, ttl)
}
