package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScheduleRepository is the daemon-facing view onto the two schedule
// tables. Daemons are inherently cross-tenant (they poll across every
// guild for the next due row) so every method here uses WithTransaction,
// not WithGuildContext. The only guild-owned table the fire loops touch
// is games, read and updated by explicit game id (GetRefForDaemon,
// ApplyGameStatus) inside the same transaction.
type ScheduleRepository struct {
	db *DB
}

func NewScheduleRepository(db *DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// NextNotificationDueAt returns the earliest due_at among unfired
// notification rows, or zero time if none are pending. The notification
// daemon re-derives its sleep duration from this on every wake instead
// of trusting the LISTEN/NOTIFY payload, so it stays correct even if a
// NOTIFY is lost.
func (r *ScheduleRepository) NextNotificationDueAt(ctx context.Context) (time.Time, bool, error) {
	var dueAt time.Time
	err := r.db.QueryRowContext(ctx, `SELECT min(due_at) FROM notification_schedule WHERE fired = false`).Scan(&dueAt)
	if errors.Is(err, sql.ErrNoRows) || dueAt.IsZero() {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("next notification due_at: %w", err)
	}
	return dueAt, true, nil
}

func (r *ScheduleRepository) NextStatusDueAt(ctx context.Context) (time.Time, bool, error) {
	var dueAt time.Time
	err := r.db.QueryRowContext(ctx, `SELECT min(due_at) FROM status_transition_schedule WHERE fired = false`).Scan(&dueAt)
	if errors.Is(err, sql.ErrNoRows) || dueAt.IsZero() {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("next status due_at: %w", err)
	}
	return dueAt, true, nil
}

// FireDueNotifications locks and deletes every notification row due
// at or before now, invoking fn once per row inside the same
// transaction. A publish failure inside fn rolls the whole batch back so
// the row is retried on the next wake — at-least-once delivery.
func (r *ScheduleRepository) FireDueNotifications(ctx context.Context, now time.Time, fn func(tx *sql.Tx, row *NotificationSchedule) error) (int, error) {
	count := 0
	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, game_id, notification_type, participant_id, due_at, game_scheduled_at, offset_minutes, fired
			FROM notification_schedule
			WHERE fired = false AND due_at <= $1
			ORDER BY due_at ASC
			FOR UPDATE SKIP LOCKED`, now)
		if err != nil {
			return fmt.Errorf("select due notifications: %w", err)
		}
		var due []*NotificationSchedule
		for rows.Next() {
			n := &NotificationSchedule{}
			if err := rows.Scan(&n.ID, &n.GameID, &n.NotificationType, &n.ParticipantID, &n.DueAt, &n.GameScheduledAt, &n.OffsetMinutes, &n.Fired); err != nil {
				rows.Close()
				return err
			}
			due = append(due, n)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, n := range due {
			if err := fn(tx, n); err != nil {
				return fmt.Errorf("fire notification %s: %w", n.ID, err)
			}
			// Deleted, not marked fired (spec §3: "Deleted after fire") —
			// a crash between publish and delete just means the row is
			// re-picked and re-published next wake; handlers are idempotent.
			if _, err := tx.ExecContext(ctx, `DELETE FROM notification_schedule WHERE id = $1`, n.ID); err != nil {
				return fmt.Errorf("delete fired notification: %w", err)
			}
			count++
		}
		return nil
	})
	return count, err
}

// FireDueStatusTransitions locks and applies every status transition due
// at or before now: fn is responsible for updating the owning game's
// status column in the same transaction before the row is deleted.
func (r *ScheduleRepository) FireDueStatusTransitions(ctx context.Context, now time.Time, fn func(tx *sql.Tx, row *StatusTransitionSchedule) error) (int, error) {
	count := 0
	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, game_id, target_status, due_at, fired
			FROM status_transition_schedule
			WHERE fired = false AND due_at <= $1
			ORDER BY due_at ASC
			FOR UPDATE SKIP LOCKED`, now)
		if err != nil {
			return fmt.Errorf("select due status transitions: %w", err)
		}
		var due []*StatusTransitionSchedule
		for rows.Next() {
			s := &StatusTransitionSchedule{}
			if err := rows.Scan(&s.ID, &s.GameID, &s.TargetStatus, &s.DueAt, &s.Fired); err != nil {
				rows.Close()
				return err
			}
			due = append(due, s)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, s := range due {
			if err := fn(tx, s); err != nil {
				return fmt.Errorf("fire status transition %s: %w", s.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM status_transition_schedule WHERE id = $1`, s.ID); err != nil {
				return fmt.Errorf("delete fired status transition: %w", err)
			}
			count++
		}
		return nil
	})
	return count, err
}

// JoinNotificationDelay is the post-join delay before a
// join_notification row fires (spec §4.3 "drop if game started before
// the 60-second post-join delay elapsed").
const JoinNotificationDelay = 60 * time.Second

// InsertJoinNotification schedules the per-participant join
// notification (spec §3 "notification_type = join_notification" /
// §4.3) fired JoinNotificationDelay after the join. Not guild-scoped —
// like the rest of this repository, the schedule tables carry no RLS
// policy (spec §4.6(a) scopes RLS to guild-owned tables only).
func (r *ScheduleRepository) InsertJoinNotification(ctx context.Context, gameID, participantID uuid.UUID, joinedAt, gameScheduledAt time.Time) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notification_schedule
				(id, game_id, notification_type, participant_id, due_at, game_scheduled_at, offset_minutes, fired)
			VALUES ($1, $2, $3, $4, $5, $6, 0, false)`,
			uuid.New(), gameID, NotificationTypeJoin, participantID, joinedAt.Add(JoinNotificationDelay), gameScheduledAt,
		)
		if err != nil {
			return fmt.Errorf("insert join notification: %w", err)
		}
		return nil
	})
}

// ApplyGameStatus is the fn status daemons pass to
// FireDueStatusTransitions: it sets the game's status column, scoped by
// game id alone since the daemon's role has no guild context to bind.
func ApplyGameStatus(ctx context.Context, tx *sql.Tx, gameID uuid.UUID, status GameStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE games SET status = $1, updated_at = now() WHERE id = $2`, status, gameID)
	return err
}
