package pindrop

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pinrlabs/pinr-engine/internal/outbox"
	"github.com/pinrlabs/pinr-engine/internal/pool"
)

// ScoreReporter accepts finished submissions for asynchronous delivery to
// the leaderboard pipeline.
type ScoreReporter interface {
	Report(ctx context.Context, sub outbox.Submission) error
}

// StreakRecorder marks that the user played today.
type StreakRecorder interface {
	RecordPlay(ctx context.Context, userID uuid.UUID) error
}

// ManagerOptions tune session behavior per difficulty.
type ManagerOptions struct {
	TotalRounds   int
	RoundDuration func(difficulty string) time.Duration
	Now           func() time.Time
}

func (o *ManagerOptions) defaults() {
	if o.TotalRounds <= 0 {
		o.TotalRounds = 5
	}
	if o.RoundDuration == nil {
		o.RoundDuration = DefaultRoundDuration
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// DefaultRoundDuration maps difficulty to the standard round timer.
func DefaultRoundDuration(difficulty string) time.Duration {
	switch difficulty {
	case pool.DifficultyMedium:
		return 20 * time.Second
	case pool.DifficultyHard:
		return 15 * time.Second
	default:
		return 30 * time.Second
	}
}

// Manager owns pin drop sessions, one live session per user.
type Manager struct {
	opts     ManagerOptions
	reporter ScoreReporter
	streaks  StreakRecorder
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewManager builds a session manager.
func NewManager(reporter ScoreReporter, streaks StreakRecorder, opts ManagerOptions, logger zerolog.Logger) *Manager {
	opts.defaults()
	return &Manager{
		opts:     opts,
		reporter: reporter,
		streaks:  streaks,
		logger:   logger,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Start creates a fresh session seeded by seed. Sessions sharing a seed and
// difficulty play the same locations in the same order. An empty seed gets
// a random one.
func (m *Manager) Start(ctx context.Context, userID uuid.UUID, difficulty, seed string) (*Session, error) {
	if !pool.ValidDifficulty(difficulty) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDifficulty, difficulty)
	}
	if seed == "" {
		seed = uuid.NewString()
	}

	m.mu.Lock()
	prev := m.sessions[userID]
	sess := newSession(userID, difficulty, seed, m.opts.TotalRounds, m.opts.RoundDuration(difficulty), m.opts.Now, m.finish, m.logger)
	m.sessions[userID] = sess
	m.mu.Unlock()

	if prev != nil {
		prev.Abandon()
	}

	sess.start()
	m.logger.Info().
		Str("user_id", userID.String()).
		Str("session_id", sess.ID.String()).
		Str("difficulty", difficulty).
		Msg("pin drop session started")
	return sess, nil
}

// Get returns the user's live session.
func (m *Manager) Get(userID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Abandon drops the user's session without reporting a score.
func (m *Manager) Abandon(userID uuid.UUID) error {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.Abandon()
	return nil
}

// finish runs after the last round settles: record the play for the
// streak tracker, then hand the full submission to the delivery pipeline.
func (m *Manager) finish(sess *Session, total int) {
	m.mu.Lock()
	if m.sessions[sess.UserID] == sess {
		delete(m.sessions, sess.UserID)
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if m.streaks != nil {
		if err := m.streaks.RecordPlay(ctx, sess.UserID); err != nil {
			m.logger.Warn().Err(err).
				Str("user_id", sess.UserID.String()).
				Msg("record streak failed")
		}
	}

	if m.reporter != nil && total > 0 {
		answers, err := json.Marshal(sess.AttemptLog())
		if err != nil {
			answers = nil
		}
		sub := outbox.Submission{
			UserID:     sess.UserID,
			GameType:   GameTypePinDrop,
			Difficulty: sess.Difficulty,
			Seed:       sess.Seed,
			Score:      total,
			Answers:    answers,
			ElapsedMs:  sess.ElapsedMs(),
		}
		if err := m.reporter.Report(ctx, sub); err != nil {
			m.logger.Warn().Err(err).
				Str("user_id", sess.UserID.String()).
				Msg("report score failed")
		}
	}

	m.logger.Info().
		Str("user_id", sess.UserID.String()).
		Str("session_id", sess.ID.String()).
		Int("total_score", total).
		Msg("pin drop session finished")
}
