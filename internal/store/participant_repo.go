package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ParticipantRepository persists game participants. Ordering logic
// (confirmed/overflow partitioning) lives in internal/participant — this
// repository only stores and retrieves rows by their assigned
// (position_type, position).
type ParticipantRepository struct {
	db *DB
}

func NewParticipantRepository(db *DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

const participantColumns = `id, game_id, user_id, mention, joined_at, position_type, position`

func scanParticipant(row rowScanner, p *Participant) error {
	return row.Scan(&p.ID, &p.GameID, &p.UserID, &p.Mention, &p.JoinedAt, &p.PositionType, &p.Position)
}

func (r *ParticipantRepository) ListByGame(ctx context.Context, guildID string, gameID uuid.UUID) ([]*Participant, error) {
	var out []*Participant
	err := r.db.WithGuildContext(ctx, guildID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+participantColumns+` FROM participants
			WHERE game_id = $1
			ORDER BY position_type ASC, position ASC, joined_at ASC`, gameID)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			p := &Participant{}
			if err := scanParticipant(rows, p); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// Add inserts a participant row. position is assigned by the caller
// (internal/participant computes it from the current roster) so the
// insert and the reflow happen under the same lock when needed.
func (r *ParticipantRepository) Add(ctx context.Context, guildID string, p *Participant) (*Participant, error) {
	var out *Participant
	err := r.db.WithGuildContext(ctx, guildID, func(tx *sql.Tx) error {
		if p.ID == (uuid.UUID{}) {
			p.ID = uuid.New()
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO participants (id, game_id, user_id, mention, joined_at, position_type, position)
			VALUES ($1,$2,$3,$4, coalesce($5, now()), $6, $7)
			RETURNING `+participantColumns,
			p.ID, p.GameID, p.UserID, p.Mention, p.JoinedAt, p.PositionType, p.Position)
		created := &Participant{}
		if err := scanParticipant(row, created); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
		out = created
		return nil
	})
	return out, err
}

func (r *ParticipantRepository) Remove(ctx context.Context, guildID string, participantID uuid.UUID) error {
	return r.db.WithGuildContext(ctx, guildID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE id = $1`, participantID)
		if err != nil {
			return fmt.Errorf("remove participant: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Reposition updates the (position_type, position) pair on an existing
// row — used after internal/participant recomputes a roster's ordering
// following an add/remove/promotion.
func (r *ParticipantRepository) Reposition(ctx context.Context, tx *sql.Tx, participantID uuid.UUID, positionType PositionType, position int) error {
	_, err := tx.ExecContext(ctx, `UPDATE participants SET position_type = $1, position = $2 WHERE id = $3`, positionType, position, participantID)
	if err != nil {
		return fmt.Errorf("reposition participant: %w", err)
	}
	return nil
}

// WithGame runs fn inside a transaction scoped to guildID — used by
// callers (handlers) that need to read the full roster, compute a new
// partition, and persist every reposition atomically so readers never
// observe a half-reflowed roster.
func (r *ParticipantRepository) WithGame(ctx context.Context, guildID string, fn func(tx *sql.Tx) error) error {
	return r.db.WithGuildContext(ctx, guildID, fn)
}

func (r *ParticipantRepository) GetByID(ctx context.Context, guildID string, id uuid.UUID) (*Participant, error) {
	var out *Participant
	err := r.db.WithGuildContext(ctx, guildID, func(tx *sql.Tx) error {
		p := &Participant{}
		row := tx.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, id)
		if err := scanParticipant(row, p); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("get participant: %w", err)
		}
		out = p
		return nil
	})
	return out, err
}
