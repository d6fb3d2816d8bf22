package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Profile is the minimal user record this service reads. Accounts are
// provisioned elsewhere; we only resolve display names for notifications
// and leaderboard rows.
type Profile struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
}

type ProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// DisplayName resolves a user's display name, falling back to a short ID
// prefix for unknown users so callers never render an empty label.
func (r *ProfileRepository) DisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	var name string
	err := r.db.QueryRow(ctx,
		`SELECT display_name FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "player-" + userID.String()[:8], nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve display name: %w", err)
	}
	return name, nil
}

// Upsert writes a profile row. Used by tooling and tests.
func (r *ProfileRepository) Upsert(ctx context.Context, p Profile) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO profiles (user_id, display_name)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET display_name = EXCLUDED.display_name`,
		p.UserID, p.DisplayName,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
