package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// Sink is the delivery target for drained submissions.
type Sink interface {
	SubmitScore(ctx context.Context, userID uuid.UUID, gameType string, score int) error
}

// Validator recomputes a submission's score from its attempt log.
type Validator interface {
	Authoritative(gameType, difficulty, seed string, claimed int, rawLog json.RawMessage) (int, error)
}

// source is what the worker needs from the queue.
type source interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*Submission, error)
	DeadLetter(ctx context.Context, sub Submission) error
}

// WorkerOptions tune drain behavior.
type WorkerOptions struct {
	MaxAttempts  int
	BaseBackoff  time.Duration
	PollInterval time.Duration
}

func (o *WorkerOptions) defaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 500 * time.Millisecond
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
}

// Worker drains the outbox and delivers submissions with exponential
// backoff. Submissions carrying an attempt log are revalidated before
// delivery; ones that fail validation or exhaust their retries are parked
// on the dead-letter list instead of being dropped.
type Worker struct {
	queue  source
	sink   Sink
	scores Validator
	opts   WorkerOptions
	logger zerolog.Logger
}

// NewWorker builds a drain worker. A nil validator skips revalidation.
func NewWorker(queue *Queue, sink Sink, scores Validator, opts WorkerOptions, logger zerolog.Logger) *Worker {
	opts.defaults()
	return &Worker{queue: queue, sink: sink, scores: scores, opts: opts, logger: logger}
}

// Run drains until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info().Msg("outbox worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("outbox worker stopped")
			return
		default:
		}

		sub, err := w.queue.Dequeue(ctx, w.opts.PollInterval)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				continue
			}
			w.logger.Warn().Err(err).Msg("dequeue failed")
			select {
			case <-ctx.Done():
			case <-time.After(w.opts.PollInterval):
			}
			continue
		}
		if sub == nil {
			continue
		}

		w.deliver(ctx, *sub)
	}
}

// deliver revalidates, then attempts delivery with backoff, dead-lettering
// on exhaustion.
func (w *Worker) deliver(ctx context.Context, sub Submission) {
	if w.scores != nil && len(sub.Answers) > 0 {
		recomputed, err := w.scores.Authoritative(sub.GameType, sub.Difficulty, sub.Seed, sub.Score, sub.Answers)
		if err != nil {
			w.logger.Warn().Err(err).
				Str("submission_id", sub.ID.String()).
				Str("user_id", sub.UserID.String()).
				Str("game_type", sub.GameType).
				Msg("submission failed validation, dead-lettering")
			if dlErr := w.queue.DeadLetter(ctx, sub); dlErr != nil {
				w.logger.Error().Err(dlErr).
					Str("submission_id", sub.ID.String()).
					Msg("dead letter failed, submission lost")
			}
			return
		}
		sub.Score = recomputed
	}

	backoff := retry.WithMaxRetries(uint64(w.opts.MaxAttempts-1), retry.NewExponential(w.opts.BaseBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		sub.Attempts++
		if err := w.sink.SubmitScore(ctx, sub.UserID, sub.GameType, sub.Score); err != nil {
			return retry.RetryableError(fmt.Errorf("submit score: %w", err))
		}
		return nil
	})
	if err == nil {
		w.logger.Debug().
			Str("user_id", sub.UserID.String()).
			Str("game_type", sub.GameType).
			Int("score", sub.Score).
			Int("attempts", sub.Attempts).
			Msg("score delivered")
		return
	}

	w.logger.Error().Err(err).
		Str("submission_id", sub.ID.String()).
		Str("user_id", sub.UserID.String()).
		Int("attempts", sub.Attempts).
		Msg("submission exhausted retries")
	if dlErr := w.queue.DeadLetter(ctx, sub); dlErr != nil {
		w.logger.Error().Err(dlErr).
			Str("submission_id", sub.ID.String()).
			Msg("dead letter failed, submission lost")
	}
}
