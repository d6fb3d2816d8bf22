package leaderboard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotStore persists periodic leaderboard snapshots.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, gameType string, generatedAt time.Time, entries []byte, sourceHash string) error
}

// SnapshotWorker periodically persists Redis leaderboards into Postgres so
// rankings survive a cache flush.
type SnapshotWorker struct {
	svc      *Service
	store    SnapshotStore
	logger   zerolog.Logger
	interval time.Duration
	topN     int
}

func NewSnapshotWorker(svc *Service, store SnapshotStore, interval time.Duration, topN int, logger zerolog.Logger) *SnapshotWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if topN <= 0 {
		topN = 50
	}
	return &SnapshotWorker{
		svc:      svc,
		store:    store,
		logger:   logger.With().Str("component", "leaderboard_snapshot_worker").Logger(),
		interval: interval,
		topN:     topN,
	}
}

// Run blocks until context cancellation.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	if w.svc == nil || w.store == nil {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// run immediately
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

func (w *SnapshotWorker) tick(ctx context.Context) {
	for _, gameType := range w.svc.GameTypes() {
		if err := w.snapshotBoard(ctx, gameType); err != nil {
			w.logger.Warn().Err(err).Str("game_type", gameType).Msg("snapshot failed")
		}
	}
}

func (w *SnapshotWorker) snapshotBoard(ctx context.Context, gameType string) error {
	entries, err := w.svc.Top(ctx, gameType, w.topN)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	data, err := json.Marshal(toWSEntries(entries))
	if err != nil {
		return err
	}

	sourceHash := sha256.Sum256(data)
	now := time.Now().UTC()

	if err := w.store.InsertSnapshot(ctx, gameType, now, data, hex.EncodeToString(sourceHash[:])); err != nil {
		return err
	}

	w.logger.Info().
		Str("game_type", gameType).
		Int("entries", len(entries)).
		Time("generated_at", now).
		Msg("leaderboard snapshot persisted")

	return nil
}
