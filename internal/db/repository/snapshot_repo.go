package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SnapshotRepository archives periodic leaderboard snapshots. They back
// the read path when Redis is unavailable and keep a history for audits.
type SnapshotRepository struct {
	db *pgxpool.Pool
}

func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// InsertSnapshot stores one serialized board. A board identical to one
// already archived for the same game type is skipped via the source hash.
func (r *SnapshotRepository) InsertSnapshot(ctx context.Context, gameType string, generatedAt time.Time, entries []byte, sourceHash string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO leaderboard_snapshots (game_type, generated_at, entries, source_hash)
		 SELECT $1, $2, $3, $4
		 WHERE NOT EXISTS (
			SELECT 1 FROM leaderboard_snapshots
			WHERE game_type = $1 AND source_hash = $4
		 )`,
		gameType, generatedAt, entries, sourceHash,
	)
	if err != nil {
		return fmt.Errorf("insert leaderboard snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest stored board for a game type, or nil
// when none exists yet.
func (r *SnapshotRepository) LatestSnapshot(ctx context.Context, gameType string) ([]byte, error) {
	var entries []byte
	err := r.db.QueryRow(ctx,
		`SELECT entries FROM leaderboard_snapshots
		 WHERE game_type = $1
		 ORDER BY generated_at DESC
		 LIMIT 1`,
		gameType,
	).Scan(&entries)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest leaderboard snapshot: %w", err)
	}
	return entries, nil
}
