package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GameRepository persists games and keeps the two schedule tables
// (notification_schedule, status_transition_schedule) in lockstep with
// every create/reschedule/cancel — all three writes happen in the same
// transaction so a crash never leaves schedule rows pointing at a game
// state that no longer exists (spec §4.6(d)).
type GameRepository struct {
	db *DB
}

func NewGameRepository(db *DB) *GameRepository {
	return &GameRepository{db: db}
}

const gameColumns = `
	id, guild_id, template_id, title, description, signup_instructions,
	scheduled_at, duration_minutes, location, max_players, reminder_minutes,
	role_notify_ids, status, chat_message_id, thumbnail_mime, thumbnail_data,
	banner_mime, banner_data, signup_method, channel_id, created_at, updated_at`

const gameInsertColumns = `
	id, guild_id, template_id, title, description, signup_instructions,
	scheduled_at, duration_minutes, location, max_players, reminder_minutes,
	role_notify_ids, status, chat_message_id, thumbnail_mime, thumbnail_data,
	banner_mime, banner_data, signup_method, channel_id`

func scanGame(row rowScanner, g *Game) error {
	return row.Scan(
		&g.ID, &g.GuildID, &g.TemplateID, &g.Title, &g.Description, &g.SignupInstructions,
		&g.ScheduledAt, &g.DurationMinutes, &g.Location, &g.MaxPlayers, &g.ReminderMinutes,
		&g.RoleNotifyIDs, &g.Status, &g.ChatMessageID, &g.ThumbnailMIME, &g.ThumbnailData,
		&g.BannerMIME, &g.BannerData, &g.SignupMethod, &g.ChannelID, &g.CreatedAt, &g.UpdatedAt)
}

func (r *GameRepository) GetByID(ctx context.Context, guildID string, id uuid.UUID) (*Game, error) {
	var out *Game
	err := r.db.WithGuildContext(ctx, guildID, func(tx *sql.Tx) error {
		g := &Game{}
		row := tx.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1 AND guild_id = $2`, id, guildID)
		if err := scanGame(row, g); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("get game: %w", err)
		}
		out = g
		return nil
	})
	return out, err
}

func (r *GameRepository) ListByGuild(ctx context.Context, guildID string) ([]*Game, error) {
	var out []*Game
	err := r.db.WithGuildContext(ctx, guildID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT `+gameColumns+` FROM games WHERE guild_id = $1 ORDER BY scheduled_at ASC`, guildID)
		if err != nil {
			return fmt.Errorf("list games: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			g := &Game{}
			if err := scanGame(rows, g); err != nil {
				return err
			}
			out = append(out, g)
		}
		return rows.Err()
	})
	return out, err
}

// Create inserts a game and its derived schedule rows in one
// transaction: one status_transition_schedule row per (IN_PROGRESS,
// COMPLETED) boundary, and one notification_schedule row per configured
// reminder offset. Join-notification rows are not written here; they are
// added per participant by ScheduleRepository.InsertJoinNotification.
func (r *GameRepository) Create(ctx context.Context, g *Game) (*Game, error) {
	var out *Game
	err := r.db.WithGuildContext(ctx, g.GuildID, func(tx *sql.Tx) error {
		if g.ID == (uuid.UUID{}) {
			g.ID = uuid.New()
		}
		if g.Status == "" {
			g.Status = GameStatusScheduled
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO games (`+gameInsertColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
			RETURNING `+gameColumns,
			g.ID, g.GuildID, g.TemplateID, g.Title, g.Description, g.SignupInstructions,
			g.ScheduledAt, g.DurationMinutes, g.Location, g.MaxPlayers, g.ReminderMinutes,
			g.RoleNotifyIDs, g.Status, g.ChatMessageID, g.ThumbnailMIME, g.ThumbnailData,
			g.BannerMIME, g.BannerData, g.SignupMethod, g.ChannelID)
		created := &Game{}
		if err := scanGame(row, created); err != nil {
			return fmt.Errorf("insert game: %w", err)
		}

		if err := writeGameSchedules(ctx, tx, created); err != nil {
			return err
		}

		out = created
		return nil
	})
	return out, err
}

// Reschedule updates scheduled_at/duration and regenerates every
// schedule row that depends on them. Old pending rows are deleted and
// replaced rather than updated in place — simpler to reason about than
// patching due_at arithmetic, and the daemons only ever care about
// pending rows.
func (r *GameRepository) Reschedule(ctx context.Context, guildID string, id uuid.UUID, scheduledAt time.Time, durationMinutes int) (*Game, error) {
	var out *Game
	err := r.db.WithGuildContext(ctx, guildID, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE games SET scheduled_at = $1, duration_minutes = $2, updated_at = now()
			WHERE id = $3 AND guild_id = $4
			RETURNING `+gameColumns, scheduledAt, durationMinutes, id, guildID)
		g := &Game{}
		if err := scanGame(row, g); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("reschedule game: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM notification_schedule WHERE game_id = $1 AND fired = false`, id); err != nil {
			return fmt.Errorf("clear notification schedule: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM status_transition_schedule WHERE game_id = $1 AND fired = false`, id); err != nil {
			return fmt.Errorf("clear status schedule: %w", err)
		}
		if err := writeGameSchedules(ctx, tx, g); err != nil {
			return err
		}

		out = g
		return nil
	})
	return out, err
}

// GameUpdate carries the mutable fields of a PUT /games/{id} request.
// ScheduledAt/DurationMinutes/ReminderMinutes changing forces the
// schedule rows to be regenerated in the same transaction as the field
// update, the same way Reschedule does it standalone.
type GameUpdate struct {
	Title              string
	Description        string
	SignupInstructions *string
	ScheduledAt        time.Time
	DurationMinutes    int
	Location           string
	MaxPlayers         int
	ReminderMinutes    IntSlice
	RoleNotifyIDs      StringSlice
	SignupMethod       SignupMethod
	ChannelID          string
}

// Update applies a full field set and regenerates both schedule tables,
// mirroring Reschedule's replace-don't-patch approach but covering every
// editable column a template-driven game-edit form exposes (spec §6 PUT
// /games/{id}).
func (r *GameRepository) Update(ctx context.Context, guildID string, id uuid.UUID, upd GameUpdate) (*Game, error) {
	var out *Game
	err := r.db.WithGuildContext(ctx, guildID, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE games SET
				title = $1, description = $2, signup_instructions = $3, scheduled_at = $4,
				duration_minutes = $5, location = $6, max_players = $7, reminder_minutes = $8,
				role_notify_ids = $9, signup_method = $10, channel_id = $11, updated_at = now()
			WHERE id = $12 AND guild_id = $13
			RETURNING `+gameColumns,
			upd.Title, upd.Description, upd.SignupInstructions, upd.ScheduledAt,
			upd.DurationMinutes, upd.Location, upd.MaxPlayers, upd.ReminderMinutes,
			upd.RoleNotifyIDs, upd.SignupMethod, upd.ChannelID, id, guildID)
		g := &Game{}
		if err := scanGame(row, g); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("update game: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM notification_schedule WHERE game_id = $1 AND fired = false`, id); err != nil {
			return fmt.Errorf("clear notification schedule: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM status_transition_schedule WHERE game_id = $1 AND fired = false`, id); err != nil {
			return fmt.Errorf("clear status schedule: %w", err)
		}
		if err := writeGameSchedules(ctx, tx, g); err != nil {
			return err
		}

		out = g
		return nil
	})
	return out, err
}

// Cancel marks a game CANCELLED and deletes its pending schedule rows.
// Per spec §8's boundary case, cancelling an IN_PROGRESS game also
// removes the still-pending COMPLETED transition row so the status
// daemon never fires it against a cancelled game.
func (r *GameRepository) Cancel(ctx context.Context, guildID string, id uuid.UUID) (*Game, error) {
	var out *Game
	err := r.db.WithGuildContext(ctx, guildID, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE games SET status = $1, updated_at = now()
			WHERE id = $2 AND guild_id = $3
			RETURNING `+gameColumns, GameStatusCancelled, id, guildID)
		g := &Game{}
		if err := scanGame(row, g); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("cancel game: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notification_schedule WHERE game_id = $1 AND fired = false`, id); err != nil {
			return fmt.Errorf("clear notification schedule: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM status_transition_schedule WHERE game_id = $1 AND fired = false`, id); err != nil {
			return fmt.Errorf("clear status schedule: %w", err)
		}
		out = g
		return nil
	})
	return out, err
}

// GameRefForDaemon is the minimal projection the schedule daemons need
// when firing a row: they have only a game_id (no guild context to
// scope a WithGuildContext read), so this reads by id alone under the
// cross-tenant daemon role (spec §4.6(a) "non-superuser... daemons use
// a distinct row-scoped role that reads by explicit game_id/guild_id
// join, never a broad SELECT").
type GameRefForDaemon struct {
	GuildID     string
	Title       string
	Status      GameStatus
	ScheduledAt time.Time
}

// GetRefForDaemon reads the fields a fire-loop needs by game id alone,
// within tx so it observes the same row version the schedule row fire
// is operating under.
func GetRefForDaemon(ctx context.Context, tx *sql.Tx, gameID uuid.UUID) (*GameRefForDaemon, error) {
	ref := &GameRefForDaemon{}
	err := tx.QueryRowContext(ctx, `SELECT guild_id, title, status, scheduled_at FROM games WHERE id = $1`, gameID).
		Scan(&ref.GuildID, &ref.Title, &ref.Status, &ref.ScheduledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game ref: %w", err)
	}
	return ref, nil
}

func (r *GameRepository) SetChatMessageID(ctx context.Context, guildID string, id uuid.UUID, messageID string) error {
	return r.db.WithGuildContext(ctx, guildID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE games SET chat_message_id = $1, updated_at = now() WHERE id = $2 AND guild_id = $3`, messageID, id, guildID)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// writeGameSchedules inserts the notification and status rows derived
// from a game's current scheduled_at/duration/reminder configuration.
// Called from within the same transaction as the game write that
// produced g, per spec §4.6(d).
func writeGameSchedules(ctx context.Context, tx *sql.Tx, g *Game) error {
	for _, offset := range g.ReminderMinutes {
		dueAt := g.ScheduledAt.Add(-time.Duration(offset) * time.Minute)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO notification_schedule
				(id, game_id, notification_type, due_at, game_scheduled_at, offset_minutes, fired)
			VALUES ($1, $2, $3, $4, $5, $6, false)`,
			uuid.New(), g.ID, NotificationTypeReminder, dueAt, g.ScheduledAt, offset,
		); err != nil {
			return fmt.Errorf("insert reminder schedule: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO status_transition_schedule (id, game_id, target_status, due_at, fired)
		VALUES ($1, $2, $3, $4, false)`,
		uuid.New(), g.ID, GameStatusInProgress, g.ScheduledAt,
	); err != nil {
		return fmt.Errorf("insert in-progress schedule: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO status_transition_schedule (id, game_id, target_status, due_at, fired)
		VALUES ($1, $2, $3, $4, false)`,
		uuid.New(), g.ID, GameStatusCompleted, g.EndsAt(),
	); err != nil {
		return fmt.Errorf("insert completed schedule: %w", err)
	}

	return nil
}
