package pindrop

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pinrlabs/pinr-engine/internal/geo"
	"github.com/pinrlabs/pinr-engine/internal/outbox"
)

type mockReporter struct {
	mock.Mock
}

func (m *mockReporter) Report(ctx context.Context, sub outbox.Submission) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

type fakeStreaks struct {
	played chan uuid.UUID
}

func newFakeStreaks() *fakeStreaks {
	return &fakeStreaks{played: make(chan uuid.UUID, 4)}
}

func (f *fakeStreaks) RecordPlay(ctx context.Context, userID uuid.UUID) error {
	f.played <- userID
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{cur: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

func testSession(t *testing.T, clock *fakeClock, seed string) *Session {
	t.Helper()
	s := newSession(uuid.New(), "easy", seed, 5, 30*time.Second, clock.Now, nil, zerolog.Nop())
	s.start()
	return s
}

func TestSeedHashMatchesClientHash(t *testing.T) {
	// h = h<<5 - h + ch with int32 wrap, then abs.
	assert.Equal(t, int64(0), hashSeed(""))
	assert.Equal(t, int64(97), hashSeed("a"))
	assert.Equal(t, int64(97*31+98), hashSeed("ab"))
	assert.GreaterOrEqual(t, hashSeed("some-very-long-challenge-identifier-0123456789"), int64(0))
}

func TestSequenceDeterministicPerSeed(t *testing.T) {
	a := LocationSequence("medium", "challenge-42", 5)
	b := LocationSequence("medium", "challenge-42", 5)
	c := LocationSequence("medium", "challenge-43", 5)

	require.Len(t, a, 5)
	assert.Equal(t, a, b, "same seed must yield the same sequence")

	same := true
	for i := range a {
		if a[i].ID != c[i].ID {
			same = false
			break
		}
	}
	assert.False(t, same, "different seeds should diverge")

	seen := make(map[string]struct{})
	for _, loc := range a {
		_, dup := seen[loc.ID]
		assert.False(t, dup, "no repeats within a run")
		seen[loc.ID] = struct{}{}
	}
}

func TestGuessScoresRound(t *testing.T) {
	clock := newFakeClock()
	s := testSession(t, clock, "seed")

	loc := s.locations[0]
	clock.Advance(5 * time.Second)

	res, err := s.SubmitGuess(loc.Lat, loc.Lon)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Round)
	assert.False(t, res.TimedOut)
	assert.Equal(t, 1000, res.Score.BasePoints)
	// 25 whole seconds left at 10 points each.
	assert.Equal(t, 250, res.Score.TimeBonus)
	assert.Equal(t, 1250, res.Score.TotalPoints)
	assert.Equal(t, 1250, s.Snapshot().TotalScore)
}

func TestRoundSettlesAtMostOnce(t *testing.T) {
	s := testSession(t, newFakeClock(), "seed")
	loc := s.locations[0]

	_, err := s.SubmitGuess(loc.Lat, loc.Lon)
	require.NoError(t, err)

	_, err = s.SubmitGuess(loc.Lat, loc.Lon)
	assert.ErrorIs(t, err, ErrRoundSettled)
	assert.Len(t, s.results, 1)
}

func TestTimeoutSettlesWithSentinel(t *testing.T) {
	s := newSession(uuid.New(), "easy", "seed", 5, 30*time.Millisecond, time.Now, nil, zerolog.Nop())
	s.start()

	require.Eventually(t, func() bool {
		return s.Snapshot().RoundSettled
	}, 2*time.Second, 5*time.Millisecond)

	snap := s.Snapshot()
	require.NotNil(t, snap.LastResult)
	assert.True(t, snap.LastResult.TimedOut)
	assert.Equal(t, geo.TimeoutDistance, snap.LastResult.Score.DistanceKm)
	assert.Equal(t, 0, snap.LastResult.Score.TotalPoints)

	// Late guess loses to the timeout.
	_, err := s.SubmitGuess(0, 0)
	assert.ErrorIs(t, err, ErrRoundSettled)
}

func TestNextRoundRequiresSettlement(t *testing.T) {
	s := testSession(t, newFakeClock(), "seed")

	assert.ErrorIs(t, s.NextRound(), ErrRoundNotSettled)

	loc := s.locations[0]
	_, err := s.SubmitGuess(loc.Lat, loc.Lon)
	require.NoError(t, err)

	require.NoError(t, s.NextRound())
	snap := s.Snapshot()
	assert.Equal(t, 2, snap.Round)
	assert.False(t, snap.RoundSettled)
}

func TestFullRunReportsTotal(t *testing.T) {
	userID := uuid.New()
	reported := make(chan outbox.Submission, 1)
	reporter := &mockReporter{}
	reporter.On("Report", mock.Anything, mock.AnythingOfType("outbox.Submission")).
		Run(func(args mock.Arguments) { reported <- args.Get(1).(outbox.Submission) }).
		Return(nil)
	streaks := newFakeStreaks()

	clock := newFakeClock()
	mgr := NewManager(reporter, streaks, ManagerOptions{Now: clock.Now}, zerolog.Nop())
	sess, err := mgr.Start(context.Background(), userID, "easy", "seed")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		loc := sess.locations[i]
		res, err := sess.SubmitGuess(loc.Lat, loc.Lon)
		require.NoError(t, err)
		require.Equal(t, i+1, res.Round)
		if i < 4 {
			require.NoError(t, sess.NextRound())
		}
	}

	snap := sess.Snapshot()
	assert.True(t, snap.GameOver)
	assert.Len(t, snap.Results, 5)
	// 5 perfect guesses with a full 30s on the clock each.
	assert.Equal(t, 5*(1000+300), snap.TotalScore)

	select {
	case sub := <-reported:
		assert.Equal(t, userID, sub.UserID)
		assert.Equal(t, GameTypePinDrop, sub.GameType)
		assert.Equal(t, "easy", sub.Difficulty)
		assert.Equal(t, "seed", sub.Seed, "submission carries the seed for rescoring")
		assert.Equal(t, snap.TotalScore, sub.Score)
		var log []GuessRecord
		require.NoError(t, json.Unmarshal(sub.Answers, &log))
		require.Len(t, log, 5)
		assert.Equal(t, sess.locations[0].Lat, log[0].Lat)
		assert.Equal(t, 30, log[0].SecondsLeft)
	case <-time.After(2 * time.Second):
		t.Fatal("total never reported")
	}
	select {
	case played := <-streaks.played:
		assert.Equal(t, userID, played)
	case <-time.After(2 * time.Second):
		t.Fatal("streak never recorded")
	}

	assert.ErrorIs(t, sess.NextRound(), ErrGameOver)
	_, err = mgr.Get(userID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPauseResumeKeepsRoundClock(t *testing.T) {
	clock := newFakeClock()
	s := testSession(t, clock, "seed")

	clock.Advance(10 * time.Second)
	require.NoError(t, s.Pause())
	clock.Advance(time.Hour)
	require.NoError(t, s.Resume())

	assert.InDelta(t, 20.0, s.Snapshot().RemainingSeconds, 0.01)

	_, err := s.SubmitGuess(0, 0)
	require.NoError(t, err)
}

func TestGuessWhilePausedRejected(t *testing.T) {
	s := testSession(t, newFakeClock(), "seed")
	require.NoError(t, s.Pause())
	_, err := s.SubmitGuess(0, 0)
	assert.ErrorIs(t, err, ErrSessionPaused)
}
