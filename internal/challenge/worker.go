package challenge

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ExpiryWorker periodically marks overdue open challenges expired so stale
// invites do not linger in feeds forever.
type ExpiryWorker struct {
	repo     Repository
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewExpiryWorker builds an expiry sweeper.
func NewExpiryWorker(repo Repository, interval time.Duration, logger zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ExpiryWorker{
		repo:     repo,
		interval: interval,
		now:      time.Now,
		logger:   logger.With().Str("component", "challenge_expiry_worker").Logger(),
	}
}

// Run blocks until context cancellation.
func (w *ExpiryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ExpiryWorker) tick(ctx context.Context) {
	n, err := w.repo.ExpireOverdue(ctx, w.now())
	if err != nil {
		w.logger.Warn().Err(err).Msg("expiry sweep failed")
		return
	}
	if n > 0 {
		w.logger.Info().Int64("expired", n).Msg("expired overdue challenges")
	}
}
