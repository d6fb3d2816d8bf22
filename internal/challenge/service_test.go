package challenge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinrlabs/pinr-engine/internal/outbox"
)

// memRepo is an in-memory Repository with the same conditional-write
// semantics as the SQL implementation.
type memRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Challenge
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[uuid.UUID]*Challenge)}
}

func (r *memRepo) Create(ctx context.Context, c *Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *memRepo) Get(ctx context.Context, id uuid.UUID) (*Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = at
	return true, nil
}

func (r *memRepo) StartAttempt(ctx context.Context, id uuid.UUID, side Side, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return false, nil
	}
	if side == SideChallenger {
		if c.ChallengerStartedAt != nil {
			return false, nil
		}
		c.ChallengerStartedAt = &at
	} else {
		if c.OpponentStartedAt != nil {
			return false, nil
		}
		c.OpponentStartedAt = &at
	}
	c.UpdatedAt = at
	return true, nil
}

func (r *memRepo) RecordScore(ctx context.Context, id uuid.UUID, side Side, score int, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return false, nil
	}
	if side == SideChallenger {
		if c.ChallengerScore != nil {
			return false, nil
		}
		c.ChallengerScore = &score
	} else {
		if c.OpponentScore != nil {
			return false, nil
		}
		c.OpponentScore = &score
	}
	c.UpdatedAt = at
	return true, nil
}

func (r *memRepo) Complete(ctx context.Context, id uuid.UUID, winnerID *uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok || c.Status == StatusCompleted {
		return false, nil
	}
	c.Status = StatusCompleted
	c.WinnerID = winnerID
	c.CompletedAt = &at
	c.UpdatedAt = at
	return true, nil
}

func (r *memRepo) ListAsChallenger(ctx context.Context, userID uuid.UUID, limit int) ([]Challenge, error) {
	return r.listBy(func(c *Challenge) bool { return c.ChallengerID == userID })
}

func (r *memRepo) ListAsOpponent(ctx context.Context, userID uuid.UUID, limit int) ([]Challenge, error) {
	return r.listBy(func(c *Challenge) bool { return c.OpponentID == userID })
}

func (r *memRepo) listBy(match func(*Challenge) bool) ([]Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Challenge
	for _, c := range r.items {
		if match(c) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.items {
		if c.IsExpired(now) {
			c.Status = StatusExpired
			c.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// echoScorer trusts the claimed score, standing in for the recompute engine.
type echoScorer struct {
	mu   sync.Mutex
	seen []scorerCall
}

type scorerCall struct {
	gameType   string
	difficulty string
	seed       string
}

func (e *echoScorer) Authoritative(gameType, difficulty, seed string, claimed int, rawLog json.RawMessage) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, scorerCall{gameType, difficulty, seed})
	return claimed, nil
}

type captureReporter struct {
	mu   sync.Mutex
	subs map[uuid.UUID]outbox.Submission
}

func (c *captureReporter) Report(ctx context.Context, sub outbox.Submission) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs == nil {
		c.subs = make(map[uuid.UUID]outbox.Submission)
	}
	c.subs[sub.UserID] = sub
	return nil
}

type captureWins struct {
	mu   sync.Mutex
	wins []uuid.UUID
}

func (c *captureWins) RecordWin(ctx context.Context, userID uuid.UUID, gameType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wins = append(c.wins, userID)
	return nil
}

type fixture struct {
	svc        *Service
	repo       *memRepo
	scorer     *echoScorer
	reporter   *captureReporter
	wins       *captureWins
	now        time.Time
	challenger uuid.UUID
	opponent   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:       newMemRepo(),
		scorer:     &echoScorer{},
		reporter:   &captureReporter{},
		wins:       &captureWins{},
		now:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		challenger: uuid.New(),
		opponent:   uuid.New(),
	}
	f.svc = NewService(f.repo, f.scorer, f.reporter, f.wins, nil, ServiceOptions{
		Now: func() time.Time { return f.now },
	}, zerolog.Nop())
	return f
}

func (f *fixture) create(t *testing.T) *Challenge {
	t.Helper()
	c, err := f.svc.Create(context.Background(), f.challenger, f.opponent, "pin_drop", "medium")
	require.NoError(t, err)
	return c
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.challenger, f.challenger, "pin_drop", "easy")
	assert.ErrorIs(t, err, ErrSelfChallenge)

	_, err = f.svc.Create(ctx, f.challenger, f.opponent, "chess", "easy")
	assert.Error(t, err)

	_, err = f.svc.Create(ctx, f.challenger, f.opponent, "pin_drop", "brutal")
	assert.Error(t, err)

	c := f.create(t)
	assert.Equal(t, StatusPending, c.Status)
	assert.Equal(t, c.ID.String(), c.Seed, "seed ties both runs to the challenge")
	assert.Equal(t, f.now.Add(24*time.Hour), c.ExpiresAt)
}

func TestAcceptLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	// Challenger cannot accept their own challenge.
	_, err := f.svc.Accept(ctx, c.ID, f.challenger)
	assert.ErrorIs(t, err, ErrNotParticipant)

	accepted, err := f.svc.Accept(ctx, c.ID, f.opponent)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)

	_, err = f.svc.Accept(ctx, c.ID, f.opponent)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAcceptExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	f.now = f.now.Add(25 * time.Hour)
	_, err := f.svc.Accept(ctx, c.ID, f.opponent)
	assert.ErrorIs(t, err, ErrExpired)

	stored, err := f.repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)
}

func TestStartAttemptFirstWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	attempt, err := f.svc.StartAttempt(ctx, c.ID, f.challenger)
	require.NoError(t, err)
	assert.Equal(t, SideChallenger, attempt.Side)
	assert.Equal(t, f.now.Add(40*time.Second), attempt.Deadline)

	// Retrying does not reset the clock.
	_, err = f.svc.StartAttempt(ctx, c.ID, f.challenger)
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	// The opponent's side is independent.
	_, err = f.svc.StartAttempt(ctx, c.ID, f.opponent)
	require.NoError(t, err)
}

func TestSubmitRequiresStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	_, err := f.svc.SubmitScore(ctx, c.ID, f.challenger, 100, json.RawMessage(`[]`))
	assert.ErrorIs(t, err, ErrAttemptNotStarted)
}

func TestSubmitOverTimeLimitRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	_, err := f.svc.StartAttempt(ctx, c.ID, f.challenger)
	require.NoError(t, err)

	f.now = f.now.Add(41 * time.Second)
	_, err = f.svc.SubmitScore(ctx, c.ID, f.challenger, 100, json.RawMessage(`[]`))
	assert.ErrorIs(t, err, ErrTimeLimitExceeded)
}

func TestSubmitWithinLimitAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	_, err := f.svc.StartAttempt(ctx, c.ID, f.challenger)
	require.NoError(t, err)

	f.now = f.now.Add(39 * time.Second)
	updated, err := f.svc.SubmitScore(ctx, c.ID, f.challenger, 1800, json.RawMessage(`[]`))
	require.NoError(t, err)
	require.NotNil(t, updated.ChallengerScore)
	assert.Equal(t, 1800, *updated.ChallengerScore)
	assert.NotEqual(t, StatusCompleted, updated.Status)

	_, err = f.svc.SubmitScore(ctx, c.ID, f.challenger, 1800, json.RawMessage(`[]`))
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func submitBoth(t *testing.T, f *fixture, c *Challenge, challengerScore, opponentScore int) *Challenge {
	t.Helper()
	ctx := context.Background()

	_, err := f.svc.StartAttempt(ctx, c.ID, f.challenger)
	require.NoError(t, err)
	_, err = f.svc.SubmitScore(ctx, c.ID, f.challenger, challengerScore, json.RawMessage(`[]`))
	require.NoError(t, err)

	_, err = f.svc.StartAttempt(ctx, c.ID, f.opponent)
	require.NoError(t, err)
	final, err := f.svc.SubmitScore(ctx, c.ID, f.opponent, opponentScore, json.RawMessage(`[]`))
	require.NoError(t, err)
	return final
}

func TestSecondScoreCompletesAndDecidesWinner(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	final := submitBoth(t, f, c, 1200, 900)
	assert.Equal(t, StatusCompleted, final.Status)
	require.NotNil(t, final.WinnerID)
	assert.Equal(t, f.challenger, *final.WinnerID)
	require.NotNil(t, final.CompletedAt)

	// Both scores feed the rankings; only the winner gets the win.
	assert.Equal(t, 1200, f.reporter.subs[f.challenger].Score)
	assert.Equal(t, 900, f.reporter.subs[f.opponent].Score)
	require.Len(t, f.wins.wins, 1)
	assert.Equal(t, f.challenger, f.wins.wins[0])
}

func TestCompletedScoresCarryChallengeContext(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	submitBoth(t, f, c, 400, 700)

	for _, userID := range []uuid.UUID{f.challenger, f.opponent} {
		sub := f.reporter.subs[userID]
		assert.Equal(t, "pin_drop", sub.GameType)
		assert.Equal(t, "medium", sub.Difficulty)
		assert.Equal(t, c.Seed, sub.Seed)
		assert.Empty(t, sub.Answers, "already validated at submit time")
	}
}

func TestScorerSeesChallengeSeedAndDifficulty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t)

	_, err := f.svc.StartAttempt(ctx, c.ID, f.challenger)
	require.NoError(t, err)
	_, err = f.svc.SubmitScore(ctx, c.ID, f.challenger, 350, json.RawMessage(`[]`))
	require.NoError(t, err)

	require.Len(t, f.scorer.seen, 1)
	call := f.scorer.seen[0]
	assert.Equal(t, "pin_drop", call.gameType)
	assert.Equal(t, "medium", call.difficulty)
	assert.Equal(t, c.Seed, call.seed)
}

func TestCreateTravelBattleChallenge(t *testing.T) {
	f := newFixture(t)

	c, err := f.svc.Create(context.Background(), f.challenger, f.opponent, "travel_battle", "hard")
	require.NoError(t, err)
	assert.Equal(t, "travel_battle", c.GameType)
	assert.Equal(t, StatusPending, c.Status)
}

func TestPollIntervalDefaultsAndOverride(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 10*time.Second, f.svc.PollInterval())

	svc := NewService(newMemRepo(), &echoScorer{}, nil, nil, nil, ServiceOptions{
		PollInterval: 3 * time.Second,
	}, zerolog.Nop())
	assert.Equal(t, 3*time.Second, svc.PollInterval())
}

func TestTieLeavesNoWinner(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	final := submitBoth(t, f, c, 1000, 1000)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Nil(t, final.WinnerID)
	assert.Empty(t, f.wins.wins)
}

func TestListMergesDedupesAndSorts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// User appears as challenger in one and opponent in another.
	third := uuid.New()
	a, err := f.svc.Create(ctx, f.challenger, f.opponent, "pin_drop", "easy")
	require.NoError(t, err)

	f.now = f.now.Add(time.Minute)
	b, err := f.svc.Create(ctx, third, f.challenger, "flag_dash", "easy")
	require.NoError(t, err)

	list, err := f.svc.ListForUser(ctx, f.challenger)
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Newest activity first.
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)

	ids := map[uuid.UUID]int{}
	for _, c := range list {
		ids[c.ID]++
	}
	for id, n := range ids {
		assert.Equal(t, 1, n, "challenge %s duplicated in feed", id)
	}
}

func TestListFiltersExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t)

	f.now = f.now.Add(25 * time.Hour)
	list, err := f.svc.ListForUser(ctx, f.challenger)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestExpiryWorkerSweeps(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	n, err := f.repo.ExpireOverdue(context.Background(), f.now.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
