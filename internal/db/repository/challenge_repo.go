package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pinrlabs/pinr-engine/internal/challenge"
)

const challengeColumns = `id, challenger_id, opponent_id, game_type, difficulty, status, seed,
	challenger_score, opponent_score, challenger_started_at, opponent_started_at,
	winner_id, created_at, updated_at, expires_at, completed_at`

// ChallengeRepository persists challenges in Postgres. State transitions
// are conditional UPDATEs so concurrent writers race at the database, not
// in application code: a zero-row update means the caller lost.
type ChallengeRepository struct {
	db *pgxpool.Pool
}

func NewChallengeRepository(db *pgxpool.Pool) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

func (r *ChallengeRepository) Create(ctx context.Context, c *challenge.Challenge) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO challenges (id, challenger_id, opponent_id, game_type, difficulty,
			status, seed, created_at, updated_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.ChallengerID, c.OpponentID, c.GameType, c.Difficulty,
		c.Status, c.Seed, c.CreatedAt, c.UpdatedAt, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

func (r *ChallengeRepository) Get(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id)
	c, err := scanChallenge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

func (r *ChallengeRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to challenge.Status, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE challenges SET status = $1, updated_at = $2
		 WHERE id = $3 AND status = $4`,
		to, at, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("update challenge status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ChallengeRepository) StartAttempt(ctx context.Context, id uuid.UUID, side challenge.Side, at time.Time) (bool, error) {
	col := sideColumn(side, "started_at")
	tag, err := r.db.Exec(ctx,
		`UPDATE challenges SET `+col+` = $1, updated_at = $1
		 WHERE id = $2 AND `+col+` IS NULL`,
		at, id,
	)
	if err != nil {
		return false, fmt.Errorf("start attempt: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ChallengeRepository) RecordScore(ctx context.Context, id uuid.UUID, side challenge.Side, score int, at time.Time) (bool, error) {
	col := sideColumn(side, "score")
	tag, err := r.db.Exec(ctx,
		`UPDATE challenges SET `+col+` = $1, updated_at = $2
		 WHERE id = $3 AND `+col+` IS NULL`,
		score, at, id,
	)
	if err != nil {
		return false, fmt.Errorf("record score: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ChallengeRepository) Complete(ctx context.Context, id uuid.UUID, winnerID *uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE challenges
		 SET status = $1, winner_id = $2, completed_at = $3, updated_at = $3
		 WHERE id = $4 AND status <> $1`,
		challenge.StatusCompleted, winnerID, at, id,
	)
	if err != nil {
		return false, fmt.Errorf("complete challenge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ChallengeRepository) ListAsChallenger(ctx context.Context, userID uuid.UUID, limit int) ([]challenge.Challenge, error) {
	return r.list(ctx, "challenger_id", userID, limit)
}

func (r *ChallengeRepository) ListAsOpponent(ctx context.Context, userID uuid.UUID, limit int) ([]challenge.Challenge, error) {
	return r.list(ctx, "opponent_id", userID, limit)
}

func (r *ChallengeRepository) list(ctx context.Context, col string, userID uuid.UUID, limit int) ([]challenge.Challenge, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+challengeColumns+` FROM challenges
		 WHERE `+col+` = $1
		 ORDER BY updated_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var out []challenge.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ExpireOverdue flips open challenges past their deadline to expired and
// returns how many it touched.
func (r *ChallengeRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE challenges SET status = $1, updated_at = $2
		 WHERE status IN ($3, $4) AND expires_at < $2`,
		challenge.StatusExpired, now, challenge.StatusPending, challenge.StatusAccepted,
	)
	if err != nil {
		return 0, fmt.Errorf("expire challenges: %w", err)
	}
	return tag.RowsAffected(), nil
}

func sideColumn(side challenge.Side, suffix string) string {
	if side == challenge.SideChallenger {
		return "challenger_" + suffix
	}
	return "opponent_" + suffix
}

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	var c challenge.Challenge
	err := row.Scan(
		&c.ID, &c.ChallengerID, &c.OpponentID, &c.GameType, &c.Difficulty, &c.Status, &c.Seed,
		&c.ChallengerScore, &c.OpponentScore, &c.ChallengerStartedAt, &c.OpponentStartedAt,
		&c.WinnerID, &c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt, &c.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
