package outbox

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
)

type fakeSink struct {
	mu       sync.Mutex
	failures int
	calls    int
	lastUser uuid.UUID
	lastType string
	lastVal  int
}

func (s *fakeSink) SubmitScore(ctx context.Context, userID uuid.UUID, gameType string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return assert.AnError
	}
	s.lastUser = userID
	s.lastType = gameType
	s.lastVal = score
	return nil
}

func (s *fakeSink) stats() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.lastVal
}

type fakeSource struct {
	mu   sync.Mutex
	dead []Submission
}

func (s *fakeSource) Dequeue(ctx context.Context, timeout time.Duration) (*Submission, error) {
	return nil, nil
}

func (s *fakeSource) DeadLetter(ctx context.Context, sub Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead = append(s.dead, sub)
	return nil
}

// fakeValidator recomputes by fiat: a fixed score, or an error.
type fakeValidator struct {
	score int
	err   error

	mu         sync.Mutex
	gameType   string
	difficulty string
	seed       string
}

func (v *fakeValidator) Authoritative(gameType, difficulty, seed string, claimed int, rawLog json.RawMessage) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gameType = gameType
	v.difficulty = difficulty
	v.seed = seed
	return v.score, v.err
}

func testWorker(sink Sink, src source, scores Validator, maxAttempts int) *Worker {
	opts := WorkerOptions{MaxAttempts: maxAttempts, BaseBackoff: time.Millisecond, PollInterval: 10 * time.Millisecond}
	opts.defaults()
	return &Worker{queue: src, sink: sink, scores: scores, opts: opts, logger: zerolog.Nop()}
}

func TestDeliverFirstTry(t *testing.T) {
	sink := &fakeSink{}
	src := &fakeSource{}
	w := testWorker(sink, src, nil, 5)

	sub := Submission{ID: uuid.New(), UserID: uuid.New(), GameType: "flag_dash", Score: 120}
	w.deliver(context.Background(), sub)

	calls, val := sink.stats()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 120, val)
	assert.Empty(t, src.dead)
}

func TestDeliverRetriesTransientFailure(t *testing.T) {
	sink := &fakeSink{failures: 2}
	src := &fakeSource{}
	w := testWorker(sink, src, nil, 5)

	sub := Submission{ID: uuid.New(), UserID: uuid.New(), GameType: "pin_drop", Score: 4000}
	w.deliver(context.Background(), sub)

	calls, val := sink.stats()
	assert.Equal(t, 3, calls, "two failures then success")
	assert.Equal(t, 4000, val)
	assert.Empty(t, src.dead)
}

func TestDeliverDeadLettersOnExhaustion(t *testing.T) {
	sink := &fakeSink{failures: 100}
	src := &fakeSource{}
	w := testWorker(sink, src, nil, 3)

	sub := Submission{ID: uuid.New(), UserID: uuid.New(), GameType: "flag_dash", Score: 50}
	w.deliver(context.Background(), sub)

	calls, _ := sink.stats()
	assert.Equal(t, 3, calls)
	require.Len(t, src.dead, 1)
	assert.Equal(t, sub.ID, src.dead[0].ID)
	assert.Equal(t, 3, src.dead[0].Attempts)
}

func TestDeliverRecomputesFromAttemptLog(t *testing.T) {
	sink := &fakeSink{}
	src := &fakeSource{}
	val := &fakeValidator{score: 80}
	w := testWorker(sink, src, val, 5)

	sub := Submission{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		GameType:   "pin_drop",
		Difficulty: "medium",
		Seed:       "challenge-7",
		Score:      9999,
		Answers:    json.RawMessage(`[{"lat":1,"lon":2,"seconds_left":3}]`),
	}
	w.deliver(context.Background(), sub)

	// The recomputed score is what reaches the sink, not the claim.
	_, delivered := sink.stats()
	assert.Equal(t, 80, delivered)
	assert.Equal(t, "pin_drop", val.gameType)
	assert.Equal(t, "medium", val.difficulty)
	assert.Equal(t, "challenge-7", val.seed)
	assert.Empty(t, src.dead)
}

func TestDeliverDeadLettersInvalidLog(t *testing.T) {
	sink := &fakeSink{}
	src := &fakeSource{}
	val := &fakeValidator{err: assert.AnError}
	w := testWorker(sink, src, val, 5)

	sub := Submission{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		GameType: "flag_dash",
		Score:    19600,
		Answers:  json.RawMessage(`[{"question_code":"XX","selected":"Nowhere"}]`),
	}
	w.deliver(context.Background(), sub)

	calls, _ := sink.stats()
	assert.Equal(t, 0, calls, "invalid submissions never reach the sink")
	require.Len(t, src.dead, 1)
	assert.Equal(t, sub.ID, src.dead[0].ID)
}

func TestDeliverSkipsValidationWithoutLog(t *testing.T) {
	sink := &fakeSink{}
	src := &fakeSource{}
	val := &fakeValidator{err: assert.AnError}
	w := testWorker(sink, src, val, 5)

	// No answers attached: the score was already validated at the source.
	sub := Submission{ID: uuid.New(), UserID: uuid.New(), GameType: "travel_battle", Score: 30}
	w.deliver(context.Background(), sub)

	calls, delivered := sink.stats()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 30, delivered)
	assert.Empty(t, src.dead)
}

func TestRunStopsOnCancel(t *testing.T) {
	sink := &fakeSink{}
	src := &fakeSource{}
	w := testWorker(sink, src, nil, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
