package game

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

// HighScoreStore persists a user's best score per game type and difficulty.
type HighScoreStore interface {
	Best(ctx context.Context, userID uuid.UUID, gameType, difficulty string) (int, error)
	// SaveBest stores score if it beats the stored best and reports whether
	// it did.
	SaveBest(ctx context.Context, userID uuid.UUID, gameType, difficulty string, score int) (bool, error)
}

// ScoreReporter accepts settled submissions for asynchronous delivery to
// the leaderboard pipeline.
type ScoreReporter interface {
	Report(ctx context.Context, sub outbox.Submission) error
}

// StreakRecorder marks that the user played today.
type StreakRecorder interface {
	RecordPlay(ctx context.Context, userID uuid.UUID) error
}

// ManagerOptions tune session behavior.
type ManagerOptions struct {
	RoundDuration time.Duration
	FeedbackDelay time.Duration
	Now           func() time.Time
}

func (o *ManagerOptions) defaults() {
	if o.RoundDuration <= 0 {
		o.RoundDuration = 30 * time.Second
	}
	if o.FeedbackDelay <= 0 {
		o.FeedbackDelay = 200 * time.Millisecond
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Manager owns timed quiz sessions, one live session per user across both
// modes.
type Manager struct {
	opts       ManagerOptions
	highScores HighScoreStore
	reporter   ScoreReporter
	streaks    StreakRecorder
	logger     zerolog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewManager builds a session manager.
func NewManager(highScores HighScoreStore, reporter ScoreReporter, streaks StreakRecorder, opts ManagerOptions, logger zerolog.Logger) *Manager {
	opts.defaults()
	return &Manager{
		opts:       opts,
		highScores: highScores,
		reporter:   reporter,
		streaks:    streaks,
		logger:     logger,
		sessions:   make(map[uuid.UUID]*Session),
	}
}

// Start creates a fresh session for the user, abandoning any run still in
// flight. The abandoned run settles normally so its score is not lost. An
// empty mode plays flags.
func (m *Manager) Start(ctx context.Context, userID uuid.UUID, difficulty, mode string) (*Session, error) {
	if !pool.ValidDifficulty(difficulty) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDifficulty, difficulty)
	}
	if mode == "" {
		mode = ModeFlags
	}
	if !ValidMode(mode) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	m.mu.Lock()
	prev := m.sessions[userID]
	sess := newSession(userID, difficulty, mode, m.opts.RoundDuration, m.opts.FeedbackDelay, m.opts.Now, m.settle, m.logger)
	m.sessions[userID] = sess
	m.mu.Unlock()

	if prev != nil {
		if _, err := prev.End(); err == nil {
			m.logger.Info().
				Str("user_id", userID.String()).
				Str("session_id", prev.ID.String()).
				Msg("abandoned previous session")
		}
	}

	sess.start()
	m.logger.Info().
		Str("user_id", userID.String()).
		Str("session_id", sess.ID.String()).
		Str("difficulty", difficulty).
		Str("mode", mode).
		Msg("quiz session started")
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

// End settles and removes the user's session.
func (m *Manager) End(ctx context.Context, userID uuid.UUID) (Result, error) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	if !ok {
		return Result{}, ErrSessionNotFound
	}
	return sess.End()
}

// HighScore reads the stored best for a user, mode and difficulty.
func (m *Manager) HighScore(ctx context.Context, userID uuid.UUID, difficulty, mode string) (int, error) {
	if !pool.ValidDifficulty(difficulty) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDifficulty, difficulty)
	}
	if mode == "" {
		mode = ModeFlags
	}
	if !ValidMode(mode) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return m.highScores.Best(ctx, userID, GameTypeForMode(mode), difficulty)
}

// settle runs after a session's terminal transition: record the play for
// the streak tracker, persist the high score unless the result failed the
// plausibility ceiling, then hand the full submission to the delivery
// pipeline. All of it is best-effort.
func (m *Manager) settle(sess *Session, res Result) {
	m.mu.Lock()
	if m.sessions[res.UserID] == sess {
		delete(m.sessions, res.UserID)
	}
	m.mu.Unlock()

	ctx, cancel := settleContext()
	defer cancel()

	if m.streaks != nil {
		if err := m.streaks.RecordPlay(ctx, res.UserID); err != nil {
			m.logger.Warn().Err(err).
				Str("user_id", res.UserID.String()).
				Msg("record streak failed")
		}
	}

	if res.capped {
		m.logger.Warn().
			Str("user_id", res.UserID.String()).
			Str("session_id", res.SessionID.String()).
			Int("score", res.Score).
			Int("correct", res.CorrectAnswers).
			Msg("score above plausibility ceiling, skipping persistence")
		return
	}

	if m.highScores != nil {
		if _, err := m.highScores.SaveBest(ctx, res.UserID, res.GameType, res.Difficulty, res.Score); err != nil {
			m.logger.Warn().Err(err).
				Str("user_id", res.UserID.String()).
				Msg("persist high score failed")
		}
	}
	if m.reporter != nil && res.Score > 0 {
		answers, err := json.Marshal(res.Answers)
		if err != nil {
			answers = nil
		}
		sub := outbox.Submission{
			UserID:     res.UserID,
			GameType:   res.GameType,
			Difficulty: res.Difficulty,
			Score:      res.Score,
			Answers:    answers,
			ElapsedMs:  res.ElapsedMs,
		}
		if err := m.reporter.Report(ctx, sub); err != nil {
			m.logger.Warn().Err(err).
				Str("user_id", res.UserID.String()).
				Msg("report score failed")
		}
	}

	m.logger.Info().
		Str("user_id", res.UserID.String()).
		Str("session_id", res.SessionID.String()).
		Str("game_type", res.GameType).
		Int("score", res.Score).
		Int("correct", res.CorrectAnswers).
		Msg("quiz session settled")
}
