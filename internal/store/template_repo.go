package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// TemplateRepository persists game templates and enforces the
// exactly-one-default-per-guild invariant (spec §3).
type TemplateRepository struct {
	db *DB
}

func NewTemplateRepository(db *DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) ListByGuild(ctx context.Context, tx *sql.Tx, guildID string) ([]*Template, error) {
	const q = `
		SELECT id, guild_id, name, sort_order, is_default, channel_id, notification_role_ids,
		       allowed_host_role_ids, allowed_player_role_ids, default_max_players,
		       default_reminder_minutes, default_duration_minutes, default_location,
		       default_signup_instructions, allowed_signup_methods, default_signup_method,
		       locked_fields, created_at, updated_at
		FROM templates WHERE guild_id = $1 ORDER BY sort_order ASC`
	rows, err := queryer(r.db, tx).QueryContext(ctx, q, guildID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []*Template
	for rows.Next() {
		t := &Template{}
		if err := scanTemplate(rows, t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TemplateRepository) GetByID(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*Template, error) {
	const q = `
		SELECT id, guild_id, name, sort_order, is_default, channel_id, notification_role_ids,
		       allowed_host_role_ids, allowed_player_role_ids, default_max_players,
		       default_reminder_minutes, default_duration_minutes, default_location,
		       default_signup_instructions, allowed_signup_methods, default_signup_method,
		       locked_fields, created_at, updated_at
		FROM templates WHERE id = $1`
	t := &Template{}
	row := queryer(r.db, tx).QueryRowContext(ctx, q, id)
	if err := scanTemplate(row, t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// Create inserts a template. If this is the guild's first template, it
// is forced to is_default regardless of the caller's request — a guild
// can never end up with zero default templates.
func (r *TemplateRepository) Create(ctx context.Context, t *Template) (*Template, error) {
	var out *Template
	err := r.db.WithGuildContext(ctx, t.GuildID, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM templates WHERE guild_id = $1`, t.GuildID).Scan(&count); err != nil {
			return fmt.Errorf("count templates: %w", err)
		}
		isDefault := t.IsDefault || count == 0

		if isDefault {
			if _, err := tx.ExecContext(ctx, `UPDATE templates SET is_default = false WHERE guild_id = $1`, t.GuildID); err != nil {
				return fmt.Errorf("clear previous default: %w", err)
			}
		}

		const q = `
			INSERT INTO templates (
				id, guild_id, name, sort_order, is_default, channel_id, notification_role_ids,
				allowed_host_role_ids, allowed_player_role_ids, default_max_players,
				default_reminder_minutes, default_duration_minutes, default_location,
				default_signup_instructions, allowed_signup_methods, default_signup_method, locked_fields
			) VALUES ($1,$2,$3,
				(SELECT coalesce(max(sort_order),-1)+1 FROM templates WHERE guild_id = $2),
				$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			RETURNING id, guild_id, name, sort_order, is_default, channel_id, notification_role_ids,
			          allowed_host_role_ids, allowed_player_role_ids, default_max_players,
			          default_reminder_minutes, default_duration_minutes, default_location,
			          default_signup_instructions, allowed_signup_methods, default_signup_method,
			          locked_fields, created_at, updated_at`
		if t.ID == (uuid.UUID{}) {
			t.ID = uuid.New()
		}
		row := tx.QueryRowContext(ctx, q,
			t.ID, t.GuildID, t.Name, isDefault, t.ChannelID, t.NotificationRoleIDs,
			t.AllowedHostRoleIDs, t.AllowedPlayerRoleIDs, t.DefaultMaxPlayers,
			t.DefaultReminderMinutes, t.DefaultDurationMinutes, t.DefaultLocation,
			t.DefaultSignupInstr, t.AllowedSignupMethods, t.DefaultSignupMethod, t.LockedFields)
		created := &Template{}
		if err := scanTemplate(row, created); err != nil {
			return fmt.Errorf("insert template: %w", err)
		}
		out = created
		return nil
	})
	return out, err
}

// Update overwrites every editable field of an existing template.
// sort_order/is_default are untouched here — those are owned by
// Reorder/SetDefault respectively, so a field edit can never silently
// reshuffle a guild's template order or default.
func (r *TemplateRepository) Update(ctx context.Context, guildID string, id uuid.UUID, t *Template) (*Template, error) {
	var out *Template
	err := r.db.WithGuildContext(ctx, guildID, func(tx *sql.Tx) error {
		const q = `
			UPDATE templates SET
				name = $1, channel_id = $2, notification_role_ids = $3, allowed_host_role_ids = $4,
				allowed_player_role_ids = $5, default_max_players = $6, default_reminder_minutes = $7,
				default_duration_minutes = $8, default_location = $9, default_signup_instructions = $10,
				allowed_signup_methods = $11, default_signup_method = $12, locked_fields = $13,
				updated_at = now()
			WHERE id = $14 AND guild_id = $15
			RETURNING id, guild_id, name, sort_order, is_default, channel_id, notification_role_ids,
			          allowed_host_role_ids, allowed_player_role_ids, default_max_players,
			          default_reminder_minutes, default_duration_minutes, default_location,
			          default_signup_instructions, allowed_signup_methods, default_signup_method,
			          locked_fields, created_at, updated_at`
		row := tx.QueryRowContext(ctx, q,
			t.Name, t.ChannelID, t.NotificationRoleIDs, t.AllowedHostRoleIDs, t.AllowedPlayerRoleIDs,
			t.DefaultMaxPlayers, t.DefaultReminderMinutes, t.DefaultDurationMinutes, t.DefaultLocation,
			t.DefaultSignupInstr, t.AllowedSignupMethods, t.DefaultSignupMethod, t.LockedFields, id, guildID)
		updated := &Template{}
		if err := scanTemplate(row, updated); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("update template: %w", err)
		}
		out = updated
		return nil
	})
	return out, err
}

// SetDefault makes templateID the guild's sole default template.
func (r *TemplateRepository) SetDefault(ctx context.Context, guildID string, templateID uuid.UUID) error {
	return r.db.WithGuildContext(ctx, guildID, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE templates SET is_default = false WHERE guild_id = $1`, guildID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE templates SET is_default = true WHERE id = $1 AND guild_id = $2`, templateID, guildID)
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

// Delete removes a template. Deleting the guild's default template is
// forbidden (spec §3 invariant).
func (r *TemplateRepository) Delete(ctx context.Context, guildID string, templateID uuid.UUID) error {
	return r.db.WithGuildContext(ctx, guildID, func(tx *sql.Tx) error {
		var isDefault bool
		if err := tx.QueryRowContext(ctx, `SELECT is_default FROM templates WHERE id = $1 AND guild_id = $2`, templateID, guildID).Scan(&isDefault); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if isDefault {
			return ErrDefaultTemplateDeleteForbidden
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE id = $1 AND guild_id = $2`, templateID, guildID)
		return err
	})
}

// Reorder persists a full ordering of a guild's template ids.
func (r *TemplateRepository) Reorder(ctx context.Context, guildID string, orderedIDs []uuid.UUID) error {
	return r.db.WithGuildContext(ctx, guildID, func(tx *sql.Tx) error {
		for i, id := range orderedIDs {
			if _, err := tx.ExecContext(ctx, `UPDATE templates SET sort_order = $1 WHERE id = $2 AND guild_id = $3`, i, id, guildID); err != nil {
				return fmt.Errorf("reorder template %s: %w", id, err)
			}
		}
		return nil
	})
}

// ErrDefaultTemplateDeleteForbidden is returned by DeleteTemplate when
// the target is the guild's default template.
var ErrDefaultTemplateDeleteForbidden = errors.New("cannot delete the guild's default template")

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner, t *Template) error {
	return row.Scan(
		&t.ID, &t.GuildID, &t.Name, &t.SortOrder, &t.IsDefault, &t.ChannelID, &t.NotificationRoleIDs,
		&t.AllowedHostRoleIDs, &t.AllowedPlayerRoleIDs, &t.DefaultMaxPlayers,
		&t.DefaultReminderMinutes, &t.DefaultDurationMinutes, &t.DefaultLocation,
		&t.DefaultSignupInstr, &t.AllowedSignupMethods, &t.DefaultSignupMethod,
		&t.LockedFields, &t.CreatedAt, &t.UpdatedAt)
}

// queryer lets repository methods run either inside an existing
// transaction or directly against the pool.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func queryer(db *DB, tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return db
}
