package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("not found")

// GuildRepository persists tenant configuration.
type GuildRepository struct {
	db *DB
}

func NewGuildRepository(db *DB) *GuildRepository {
	return &GuildRepository{db: db}
}

func (r *GuildRepository) GetByID(ctx context.Context, id string) (*Guild, error) {
	const q = `
		SELECT id, bot_manager_role_ids, require_host_role, created_at, updated_at
		FROM guilds WHERE id = $1`
	g := &Guild{}
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&g.ID, &g.BotManagerRoleIDs, &g.RequireHostRole, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get guild: %w", err)
	}
	return g, nil
}

// EnsureExists upserts a guild row the first time the bot joins a
// server, or on every config fetch (idempotent, mirrors the teacher's
// CreateUser-on-first-contact pattern in services.UserService).
func (r *GuildRepository) EnsureExists(ctx context.Context, id string) (*Guild, error) {
	const q = `
		INSERT INTO guilds (id, bot_manager_role_ids, require_host_role)
		VALUES ($1, '[]', false)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id, bot_manager_role_ids, require_host_role, created_at, updated_at`
	g := &Guild{}
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&g.ID, &g.BotManagerRoleIDs, &g.RequireHostRole, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure guild: %w", err)
	}
	return g, nil
}

func (r *GuildRepository) UpdateConfig(ctx context.Context, id string, botManagerRoleIDs StringSlice, requireHostRole bool) (*Guild, error) {
	const q = `
		UPDATE guilds SET bot_manager_role_ids = $2, require_host_role = $3, updated_at = now()
		WHERE id = $1
		RETURNING id, bot_manager_role_ids, require_host_role, created_at, updated_at`
	g := &Guild{}
	err := r.db.QueryRowContext(ctx, q, id, botManagerRoleIDs, requireHostRole).Scan(
		&g.ID, &g.BotManagerRoleIDs, &g.RequireHostRole, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update guild config: %w", err)
	}
	return g, nil
}
