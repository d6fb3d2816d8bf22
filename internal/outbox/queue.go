// Package outbox buffers settled scores so leaderboard submission survives
// transient downstream failures.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultQueueKey is the Redis list holding pending submissions.
const DefaultQueueKey = "outbox:scores"

// Submission is one settled score awaiting delivery. Answers carries the
// raw attempt log so the drain worker can recompute the score before it
// reaches a leaderboard; submissions without a log (already validated at
// the source) are delivered as-is.
type Submission struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	GameType   string          `json:"game_type"`
	Difficulty string          `json:"difficulty,omitempty"`
	Seed       string          `json:"seed,omitempty"`
	Score      int             `json:"score"`
	Answers    json.RawMessage `json:"answers,omitempty"`
	ElapsedMs  int64           `json:"elapsed_ms,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Attempts   int             `json:"attempts"`
}

// Queue is a Redis-list backed submission buffer. Producers push settled
// scores; the worker drains them with retry.
type Queue struct {
	redis  *redis.Client
	key    string
	logger zerolog.Logger
}

// NewQueue builds a queue over the given Redis list key. An empty key uses
// DefaultQueueKey.
func NewQueue(redis *redis.Client, key string, logger zerolog.Logger) *Queue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &Queue{redis: redis, key: key, logger: logger}
}

// Report enqueues a settled score, stamping identity and enqueue time.
// Satisfies the score reporter contract of the game session managers and
// the challenge service.
func (q *Queue) Report(ctx context.Context, sub Submission) error {
	sub.ID = uuid.New()
	sub.EnqueuedAt = time.Now()
	return q.Enqueue(ctx, sub)
}

// Enqueue pushes a submission onto the list.
func (q *Queue) Enqueue(ctx context.Context, sub Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	if err := q.redis.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue submission: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next submission. A nil submission
// with nil error means the wait timed out.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Submission, error) {
	vals, err := q.redis.BRPop(ctx, timeout, q.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue submission: %w", err)
	}
	// BRPop returns [key, value].
	if len(vals) != 2 {
		return nil, fmt.Errorf("unexpected brpop reply of %d values", len(vals))
	}

	var sub Submission
	if err := json.Unmarshal([]byte(vals[1]), &sub); err != nil {
		q.logger.Warn().Err(err).Msg("dropping undecodable submission")
		return nil, nil
	}
	return &sub, nil
}

// DeadLetter parks a submission that exhausted its retries.
func (q *Queue) DeadLetter(ctx context.Context, sub Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	if err := q.redis.LPush(ctx, q.key+":dead", data).Err(); err != nil {
		return fmt.Errorf("park dead letter: %w", err)
	}
	return nil
}
