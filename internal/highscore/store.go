// Package highscore persists per-user personal bests in Redis.
package highscore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Store keeps each user's best quiz score per game type and difficulty in
// a Redis hash. Flag dash field names match the keys the mobile clients
// used for local storage, so migrated devices keep their bests.
type Store struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewStore builds a Redis-backed high score store.
func NewStore(redis *redis.Client, logger zerolog.Logger) *Store {
	return &Store{redis: redis, logger: logger}
}

func hashKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:highscores", userID.String())
}

func fieldName(gameType, difficulty string) string {
	if gameType == "travel_battle" {
		return fmt.Sprintf("travelbattle_highscore_%s", difficulty)
	}
	return fmt.Sprintf("flagdash_highscore_%s", difficulty)
}

// Best returns the stored best, zero when none exists.
func (s *Store) Best(ctx context.Context, userID uuid.UUID, gameType, difficulty string) (int, error) {
	val, err := s.redis.HGet(ctx, hashKey(userID), fieldName(gameType, difficulty)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get high score: %w", err)
	}
	return val, nil
}

// saveBestScript compares and writes atomically so two settling sessions
// cannot clobber each other's best.
var saveBestScript = redis.NewScript(`
	local cur = redis.call("HGET", KEYS[1], ARGV[1])
	if cur == false or tonumber(ARGV[2]) > tonumber(cur) then
		redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
		return 1
	end
	return 0
`)

// SaveBest stores score if it beats the current best and reports whether
// it did.
func (s *Store) SaveBest(ctx context.Context, userID uuid.UUID, gameType, difficulty string, score int) (bool, error) {
	res, err := saveBestScript.Run(ctx, s.redis, []string{hashKey(userID)}, fieldName(gameType, difficulty), score).Int()
	if err != nil {
		return false, fmt.Errorf("save high score: %w", err)
	}
	improved := res == 1
	if improved {
		s.logger.Info().
			Str("user_id", userID.String()).
			Str("game_type", gameType).
			Str("difficulty", difficulty).
			Int("score", score).
			Msg("new personal best")
	}
	return improved, nil
}
