package challenge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pinrlabs/pinr-engine/internal/outbox"
	"github.com/pinrlabs/pinr-engine/internal/pool"
)

// Repository persists challenges. Mutating methods that return a bool use
// conditional writes: false means another writer got there first.
type Repository interface {
	Create(ctx context.Context, c *Challenge) error
	Get(ctx context.Context, id uuid.UUID) (*Challenge, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (bool, error)
	StartAttempt(ctx context.Context, id uuid.UUID, side Side, at time.Time) (bool, error)
	RecordScore(ctx context.Context, id uuid.UUID, side Side, score int, at time.Time) (bool, error)
	Complete(ctx context.Context, id uuid.UUID, winnerID *uuid.UUID, at time.Time) (bool, error)
	ListAsChallenger(ctx context.Context, userID uuid.UUID, limit int) ([]Challenge, error)
	ListAsOpponent(ctx context.Context, userID uuid.UUID, limit int) ([]Challenge, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// Scorer recomputes an attempt's score from its log.
type Scorer interface {
	Authoritative(gameType, difficulty, seed string, claimed int, rawLog json.RawMessage) (int, error)
}

// ScoreReporter forwards completed challenge scores to the leaderboard
// pipeline.
type ScoreReporter interface {
	Report(ctx context.Context, sub outbox.Submission) error
}

// WinRecorder counts head-to-head victories.
type WinRecorder interface {
	RecordWin(ctx context.Context, userID uuid.UUID, gameType string) error
}

// GameTypeTravelBattle is the ranked category for challenge victories.
const GameTypeTravelBattle = "travel_battle"

var playableGameTypes = map[string]bool{
	"flag_dash":     true,
	"pin_drop":      true,
	"travel_battle": true,
}

// ServiceOptions tune challenge behavior.
type ServiceOptions struct {
	Expiry        time.Duration
	TimeLimit     time.Duration
	PollInterval  time.Duration
	PubSubChannel string
	ListLimit     int
	Now           func() time.Time
}

func (o *ServiceOptions) defaults() {
	if o.Expiry <= 0 {
		o.Expiry = 24 * time.Hour
	}
	if o.TimeLimit <= 0 {
		o.TimeLimit = 40 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 10 * time.Second
	}
	if o.PubSubChannel == "" {
		o.PubSubChannel = "challenge:updates"
	}
	if o.ListLimit <= 0 {
		o.ListLimit = 50
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Service coordinates the two-player challenge lifecycle:
// pending -> accepted -> completed, with decline and expiry exits.
type Service struct {
	repo     Repository
	scorer   Scorer
	reporter ScoreReporter
	wins     WinRecorder
	redis    *redis.Client
	opts     ServiceOptions
	logger   zerolog.Logger
}

// NewService builds a challenge service.
func NewService(repo Repository, scorer Scorer, reporter ScoreReporter, wins WinRecorder, redis *redis.Client, opts ServiceOptions, logger zerolog.Logger) *Service {
	opts.defaults()
	return &Service{
		repo:     repo,
		scorer:   scorer,
		reporter: reporter,
		wins:     wins,
		redis:    redis,
		opts:     opts,
		logger:   logger.With().Str("component", "challenge").Logger(),
	}
}

// Create opens a pending challenge from challenger to opponent.
func (s *Service) Create(ctx context.Context, challengerID, opponentID uuid.UUID, gameType, difficulty string) (*Challenge, error) {
	if challengerID == opponentID {
		return nil, ErrSelfChallenge
	}
	if !playableGameTypes[gameType] {
		return nil, fmt.Errorf("unknown game type %q", gameType)
	}
	if !pool.ValidDifficulty(difficulty) {
		return nil, fmt.Errorf("unknown difficulty %q", difficulty)
	}

	now := s.opts.Now()
	c := &Challenge{
		ID:           uuid.New(),
		ChallengerID: challengerID,
		OpponentID:   opponentID,
		GameType:     gameType,
		Difficulty:   difficulty,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(s.opts.Expiry),
	}
	c.Seed = c.ID.String()

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}

	s.logger.Info().
		Str("challenge_id", c.ID.String()).
		Str("challenger_id", challengerID.String()).
		Str("opponent_id", opponentID.String()).
		Str("game_type", gameType).
		Msg("challenge created")

	s.publish(ctx, EventInvite, c)
	return c, nil
}

// Get loads a challenge for one of its participants.
func (s *Service) Get(ctx context.Context, id, userID uuid.UUID) (*Challenge, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := c.ParticipantSide(userID); !ok {
		return nil, ErrNotParticipant
	}
	return c, nil
}

// Accept moves a pending challenge to accepted. Only the opponent may
// accept.
func (s *Service) Accept(ctx context.Context, id, userID uuid.UUID) (*Challenge, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != c.OpponentID {
		return nil, ErrNotParticipant
	}

	now := s.opts.Now()
	if c.IsExpired(now) {
		s.markExpired(ctx, c)
		return nil, ErrExpired
	}

	ok, err := s.repo.UpdateStatus(ctx, id, StatusPending, StatusAccepted, now)
	if err != nil {
		return nil, fmt.Errorf("accept challenge: %w", err)
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	c, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventUpdate, c)
	return c, nil
}

// Decline marks a pending challenge declined. Only the opponent may
// decline.
func (s *Service) Decline(ctx context.Context, id, userID uuid.UUID) (*Challenge, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != c.OpponentID {
		return nil, ErrNotParticipant
	}

	ok, err := s.repo.UpdateStatus(ctx, id, StatusPending, StatusDeclined, s.opts.Now())
	if err != nil {
		return nil, fmt.Errorf("decline challenge: %w", err)
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	c, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventUpdate, c)
	return c, nil
}

// Attempt describes a started attempt: the seeded run and its deadline.
type Attempt struct {
	Challenge *Challenge `json:"challenge"`
	Side      Side       `json:"side"`
	StartedAt time.Time  `json:"started_at"`
	Deadline  time.Time  `json:"deadline"`
}

// StartAttempt marks a participant's attempt as started. The first write
// wins: retrying a start returns ErrAlreadyStarted and the clock keeps
// running from the original start.
func (s *Service) StartAttempt(ctx context.Context, id, userID uuid.UUID) (*Attempt, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	side, ok := c.ParticipantSide(userID)
	if !ok {
		return nil, ErrNotParticipant
	}

	now := s.opts.Now()
	if c.IsExpired(now) {
		s.markExpired(ctx, c)
		return nil, ErrExpired
	}
	switch c.Status {
	case StatusPending, StatusAccepted:
	default:
		return nil, ErrInvalidTransition
	}

	wrote, err := s.repo.StartAttempt(ctx, id, side, now)
	if err != nil {
		return nil, fmt.Errorf("start attempt: %w", err)
	}
	if !wrote {
		return nil, ErrAlreadyStarted
	}

	c, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventUpdate, c)

	started := *c.StartedAtFor(side)
	return &Attempt{
		Challenge: c,
		Side:      side,
		StartedAt: started,
		Deadline:  started.Add(s.opts.TimeLimit),
	}, nil
}

// SubmitScore records a participant's result. The score is recomputed
// server-side from the attempt log; attempts past the time limit are
// rejected with ErrTimeLimitExceeded. When the second score lands the
// challenge completes and the winner is decided.
func (s *Service) SubmitScore(ctx context.Context, id, userID uuid.UUID, claimed int, attemptLog json.RawMessage) (*Challenge, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	side, ok := c.ParticipantSide(userID)
	if !ok {
		return nil, ErrNotParticipant
	}
	if c.Status == StatusCompleted || c.Status == StatusDeclined || c.Status == StatusExpired {
		return nil, ErrInvalidTransition
	}

	started := c.StartedAtFor(side)
	if started == nil {
		return nil, ErrAttemptNotStarted
	}
	if c.ScoreFor(side) != nil {
		return nil, ErrAlreadySubmitted
	}

	now := s.opts.Now()
	if now.Sub(*started) > s.opts.TimeLimit {
		s.logger.Warn().
			Str("challenge_id", id.String()).
			Str("side", string(side)).
			Dur("elapsed", now.Sub(*started)).
			Msg("attempt over time limit")
		return nil, ErrTimeLimitExceeded
	}

	score, err := s.scorer.Authoritative(c.GameType, c.Difficulty, c.Seed, claimed, attemptLog)
	if err != nil {
		return nil, fmt.Errorf("validate score: %w", err)
	}

	wrote, err := s.repo.RecordScore(ctx, id, side, score, now)
	if err != nil {
		return nil, fmt.Errorf("record score: %w", err)
	}
	if !wrote {
		return nil, ErrAlreadySubmitted
	}

	c, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.ChallengerScore != nil && c.OpponentScore != nil {
		return s.complete(ctx, c)
	}

	s.publish(ctx, EventUpdate, c)
	return c, nil
}

// complete decides the winner and closes the challenge.
func (s *Service) complete(ctx context.Context, c *Challenge) (*Challenge, error) {
	var winnerID *uuid.UUID
	switch {
	case *c.ChallengerScore > *c.OpponentScore:
		id := c.ChallengerID
		winnerID = &id
	case *c.OpponentScore > *c.ChallengerScore:
		id := c.OpponentID
		winnerID = &id
	}
	// Equal scores leave winnerID nil: a tie.

	now := s.opts.Now()
	wrote, err := s.repo.Complete(ctx, c.ID, winnerID, now)
	if err != nil {
		return nil, fmt.Errorf("complete challenge: %w", err)
	}

	c, err = s.load(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !wrote {
		// A concurrent submitter already completed it.
		return c, nil
	}

	s.logger.Info().
		Str("challenge_id", c.ID.String()).
		Int("challenger_score", *c.ChallengerScore).
		Int("opponent_score", *c.OpponentScore).
		Msg("challenge completed")

	s.settleRankings(ctx, c)
	s.publish(ctx, EventComplete, c)
	return c, nil
}

// settleRankings feeds the result into the leaderboard pipeline,
// best-effort.
func (s *Service) settleRankings(ctx context.Context, c *Challenge) {
	if s.reporter != nil {
		// Scores were already recomputed server-side in SubmitScore, so
		// these submissions carry no attempt log for the drain worker to
		// re-validate.
		for _, res := range []struct {
			userID uuid.UUID
			score  int
		}{
			{c.ChallengerID, *c.ChallengerScore},
			{c.OpponentID, *c.OpponentScore},
		} {
			sub := outbox.Submission{
				UserID:     res.userID,
				GameType:   c.GameType,
				Difficulty: c.Difficulty,
				Seed:       c.Seed,
				Score:      res.score,
			}
			if err := s.reporter.Report(ctx, sub); err != nil {
				s.logger.Warn().Err(err).Str("user_id", res.userID.String()).Msg("report challenge score failed")
			}
		}
	}
	if s.wins != nil && c.WinnerID != nil {
		if err := s.wins.RecordWin(ctx, *c.WinnerID, GameTypeTravelBattle); err != nil {
			s.logger.Warn().Err(err).Msg("record win failed")
		}
	}
}

// PollInterval is the cadence clients should re-fetch challenge state at
// when they have no live event stream.
func (s *Service) PollInterval() time.Duration {
	return s.opts.PollInterval
}

// ListForUser returns the user's merged challenge feed: both roles, deduped
// by ID, newest activity first, with lapsed open challenges filtered out.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]Challenge, error) {
	asChallenger, err := s.repo.ListAsChallenger(ctx, userID, s.opts.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list as challenger: %w", err)
	}
	asOpponent, err := s.repo.ListAsOpponent(ctx, userID, s.opts.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list as opponent: %w", err)
	}

	now := s.opts.Now()
	seen := make(map[uuid.UUID]struct{})
	merged := make([]Challenge, 0, len(asChallenger)+len(asOpponent))
	for _, c := range append(asChallenger, asOpponent...) {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		if c.IsExpired(now) {
			continue
		}
		merged = append(merged, c)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].UpdatedAt.After(merged[j].UpdatedAt)
	})
	if len(merged) > s.opts.ListLimit {
		merged = merged[:s.opts.ListLimit]
	}
	return merged, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Challenge, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *Service) markExpired(ctx context.Context, c *Challenge) {
	from := c.Status
	if ok, err := s.repo.UpdateStatus(ctx, c.ID, from, StatusExpired, s.opts.Now()); err != nil {
		s.logger.Warn().Err(err).Str("challenge_id", c.ID.String()).Msg("mark expired failed")
	} else if ok {
		c.Status = StatusExpired
		s.publish(ctx, EventUpdate, c)
	}
}
