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

// StatusDaemon is component C5: fires GAME_STARTED/GAME_COMPLETED and,
// in the same transaction as the publish, advances the game's status
// column (spec §4.3 "Status daemon additional step").
type StatusDaemon struct {
	schedules *store.ScheduleRepository
	publisher bus.Publisher
	listener  *Listener
	backoff   retry.Config
}

func NewStatusDaemon(schedules *store.ScheduleRepository, publisher bus.Publisher, listener *Listener) *StatusDaemon {
	return &StatusDaemon{schedules: schedules, publisher: publisher, listener: listener, backoff: retry.DefaultConfig()}
}

func (d *StatusDaemon) Run(ctx context.Context) error {
	logger := telemetry.GetContextualLogger(ctx).WithField("component", "status_daemon")
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		dueAt, hasRow, err := d.schedules.NextStatusDueAt(ctx)
		if err != nil {
			logger.WithError(err).Error("failed to query next due status transition")
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

		n, err := d.schedules.FireDueStatusTransitions(ctx, now, d.fireOne)
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
			logger.WithField("count", n).Info("fired status transition rows")
		}
	}
}

// fireOne updates the game's status column and publishes GAME_STARTED
// or GAME_COMPLETED with no TTL — these must always be delivered
// eventually (spec §4.3 "Event construction").
func (d *StatusDaemon) fireOne(tx *sql.Tx, row *store.StatusTransitionSchedule) error {
	ctx := context.Background()
	ref, err := store.GetRefForDaemon(ctx, tx, row.GameID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil // external-fatal: game already gone
		}
		return err
	}

	// A cancelled game's pending rows are deleted by GameRepository.Cancel
	// (spec §8 boundary: "Host cancels a game in IN_PROGRESS ... no
	// GAME_COMPLETED is fired"), so reaching here with a cancelled status
	// would mean a race with a concurrent cancel; skip rather than
	// resurrect the status.
	if ref.Status == store.GameStatusCancelled {
		return nil
	}

	if err := store.ApplyGameStatus(ctx, tx, row.GameID, row.TargetStatus); err != nil {
		return err
	}

	routingKey := bus.RoutingGameStarted
	if row.TargetStatus == store.GameStatusCompleted {
		routingKey = bus.RoutingGameCompleted
	}
	env, err := bus.NewEnvelope(routingKey, ref.GuildID, bus.GameEventPayload{GameID: row.GameID.String()})
	if err != nil {
		return err
	}

	return d.publisher.Publish(ctx, env, bus.NoExpiration)
}
