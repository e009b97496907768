package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// UserRepository persists the local projection of chat-platform users,
// grounded on the teacher's services.UserService GetOrCreateUser
// first-contact pattern.
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, external_id, display_name, avatar_hash, created_at, updated_at`

func scanUser(row rowScanner, u *User) error {
	return row.Scan(&u.ID, &u.ExternalID, &u.DisplayName, &u.AvatarHash, &u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*User, error) {
	u := &User{}
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Upsert creates or refreshes a user's cached profile fields. Called by
// the OAuth callback handler with the profile the chat platform returns
// at sign-in.
func (r *UserRepository) Upsert(ctx context.Context, externalID, displayName, avatarHash string) (*User, error) {
	const q = `
		INSERT INTO users (id, external_id, display_name, avatar_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id) DO UPDATE
			SET display_name = EXCLUDED.display_name,
			    avatar_hash = EXCLUDED.avatar_hash,
			    updated_at = now()
		RETURNING ` + userColumns
	u := &User{}
	row := r.db.QueryRowContext(ctx, q, uuid.New(), externalID, displayName, avatarHash)
	if err := scanUser(row, u); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}
