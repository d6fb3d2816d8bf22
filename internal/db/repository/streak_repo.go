package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pinrlabs/pinr-engine/internal/streak"
)

// StreakRepository stores one daily-play streak row per user.
type StreakRepository struct {
	db *pgxpool.Pool
}

func NewStreakRepository(db *pgxpool.Pool) *StreakRepository {
	return &StreakRepository{db: db}
}

func (r *StreakRepository) Get(ctx context.Context, userID uuid.UUID) (*streak.Streak, error) {
	var s streak.Streak
	err := r.db.QueryRow(ctx,
		`SELECT user_id, current_streak, longest_streak, last_played
		 FROM streaks WHERE user_id = $1`,
		userID,
	).Scan(&s.UserID, &s.Current, &s.Longest, &s.LastPlayed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return &s, nil
}

func (r *StreakRepository) Upsert(ctx context.Context, s streak.Streak) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO streaks (user_id, current_streak, longest_streak, last_played)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE
		 SET current_streak = EXCLUDED.current_streak,
		     longest_streak = EXCLUDED.longest_streak,
		     last_played = EXCLUDED.last_played`,
		s.UserID, s.Current, s.Longest, s.LastPlayed,
	)
	if err != nil {
		return fmt.Errorf("upsert streak: %w", err)
	}
	return nil
}
