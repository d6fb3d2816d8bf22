package pindrop

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pinrlabs/pinr-engine/internal/geo"
	"github.com/pinrlabs/pinr-engine/internal/pool"
)

// GameTypePinDrop identifies pin drop scores on leaderboards and outbox
// entries.
const GameTypePinDrop = "pin_drop"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrGameOver          = errors.New("game is over")
	ErrRoundSettled      = errors.New("round already settled")
	ErrRoundNotSettled   = errors.New("round still in progress")
	ErrSessionPaused     = errors.New("session is paused")
	ErrSessionNotPaused  = errors.New("session is not paused")
	ErrUnknownDifficulty = errors.New("unknown difficulty")
)

// RoundResult is the settled outcome of a single round.
type RoundResult struct {
	Round       int            `json:"round"`
	LocationID  string         `json:"location_id"`
	Location    pool.Location  `json:"location"`
	GuessLat    float64        `json:"guess_lat"`
	GuessLon    float64        `json:"guess_lon"`
	SecondsLeft int            `json:"seconds_left"`
	TimedOut    bool           `json:"timed_out"`
	Score       geo.GuessScore `json:"score"`
}

// GuessRecord is one settled round in a submitted attempt log. The raw
// coordinates let the score be recomputed against the seeded location
// sequence downstream.
type GuessRecord struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	SecondsLeft int     `json:"seconds_left"`
	TimedOut    bool    `json:"timed_out"`
}

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	SessionID        uuid.UUID     `json:"session_id"`
	UserID           uuid.UUID     `json:"user_id"`
	Difficulty       string        `json:"difficulty"`
	Round            int           `json:"round"`
	TotalRounds      int           `json:"total_rounds"`
	Prompt           string        `json:"prompt"`
	RemainingSeconds float64       `json:"remaining_seconds"`
	TotalScore       int           `json:"total_score"`
	Paused           bool          `json:"paused"`
	RoundSettled     bool          `json:"round_settled"`
	GameOver         bool          `json:"game_over"`
	LastResult       *RoundResult  `json:"last_result,omitempty"`
	Results          []RoundResult `json:"results,omitempty"`
}

// Session is one pin drop run: a fixed number of timed rounds where the
// player drops a pin as close to the prompted location as possible.
//
// Each round terminates exactly once. The settledRound flag is the
// check-and-set gate between a player guess and the round timer firing at
// the same instant; whichever path takes it first wins and the other is a
// no-op.
type Session struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Difficulty string
	Seed       string

	mu            sync.Mutex
	createdAt     time.Time
	locations     []pool.Location
	roundIdx      int
	totalRounds   int
	roundDuration time.Duration
	roundStart    time.Time
	settledRound  bool
	results       []RoundResult
	totalScore    int

	paused        bool
	pausedElapsed time.Duration
	gameOver      bool

	timer    *time.Timer
	now      func() time.Time
	onFinish func(*Session, int)
	logger   zerolog.Logger
}

func newSession(userID uuid.UUID, difficulty, seed string, totalRounds int, roundDuration time.Duration, now func() time.Time, onFinish func(*Session, int), logger zerolog.Logger) *Session {
	s := &Session{
		ID:            uuid.New(),
		UserID:        userID,
		Difficulty:    difficulty,
		Seed:          seed,
		createdAt:     now(),
		locations:     LocationSequence(difficulty, seed, totalRounds),
		totalRounds:   totalRounds,
		roundDuration: roundDuration,
		roundStart:    now(),
		now:           now,
		onFinish:      onFinish,
		logger:        logger,
	}
	return s
}

// LocationSequence draws the deterministic, repeat-free sequence a seeded
// run plays. Exposed so attempt logs can be rescored against the same
// draw.
func LocationSequence(difficulty, seed string, count int) []pool.Location {
	candidates := pool.LocationsFor(difficulty)
	remaining := make([]pool.Location, len(candidates))
	copy(remaining, candidates)
	if count > len(remaining) {
		count = len(remaining)
	}

	rng := newSeqRand(seed)
	picked := make([]pool.Location, 0, count)
	for i := 0; i < count; i++ {
		idx := rng.intn(len(remaining))
		picked = append(picked, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return picked
}

func (s *Session) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armTimerLocked()
}

func (s *Session) armTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	remaining := s.remainingLocked()
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	round := s.roundIdx
	s.timer = time.AfterFunc(remaining, func() { s.expireRound(round) })
}

func (s *Session) remainingLocked() time.Duration {
	if s.gameOver || s.settledRound {
		return 0
	}
	var elapsed time.Duration
	if s.paused {
		elapsed = s.pausedElapsed
	} else {
		elapsed = s.now().Sub(s.roundStart)
	}
	remaining := s.roundDuration - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SubmitGuess settles the current round with a player guess. Returns
// ErrRoundSettled if the round already terminated (double tap or a timeout
// that beat the guess).
func (s *Session) SubmitGuess(lat, lon float64) (RoundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gameOver {
		return RoundResult{}, ErrGameOver
	}
	if s.paused {
		return RoundResult{}, ErrSessionPaused
	}
	if s.settledRound {
		return RoundResult{}, ErrRoundSettled
	}

	secondsLeft := int(s.remainingLocked().Seconds())
	loc := s.locations[s.roundIdx]
	dist := geo.Distance(lat, lon, loc.Lat, loc.Lon)
	res := RoundResult{
		Round:       s.roundIdx + 1,
		LocationID:  loc.ID,
		Location:    loc,
		GuessLat:    lat,
		GuessLon:    lon,
		SecondsLeft: secondsLeft,
		Score:       geo.ScoreGuess(dist, secondsLeft),
	}
	s.settleRoundLocked(res)
	return res, nil
}

// expireRound is the timer callback: the round ends with a timeout result
// if nothing settled it first.
func (s *Session) expireRound(round int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gameOver || s.paused || s.settledRound || s.roundIdx != round {
		return
	}
	if s.remainingLocked() > 0 {
		s.armTimerLocked()
		return
	}

	loc := s.locations[s.roundIdx]
	res := RoundResult{
		Round:      s.roundIdx + 1,
		LocationID: loc.ID,
		Location:   loc,
		TimedOut:   true,
		Score:      geo.ScoreGuess(geo.TimeoutDistance, 0),
	}
	s.settleRoundLocked(res)
}

func (s *Session) settleRoundLocked(res RoundResult) {
	s.settledRound = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.results = append(s.results, res)
	s.totalScore += res.Score.TotalPoints

	s.logger.Debug().
		Str("session_id", s.ID.String()).
		Int("round", res.Round).
		Bool("timed_out", res.TimedOut).
		Int("points", res.Score.TotalPoints).
		Msg("round settled")

	if res.Round >= s.totalRounds {
		s.gameOver = true
		if s.onFinish != nil {
			go s.onFinish(s, s.totalScore)
		}
	}
}

// NextRound advances to the next round. The current round must be settled.
func (s *Session) NextRound() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gameOver {
		return ErrGameOver
	}
	if !s.settledRound {
		return ErrRoundNotSettled
	}

	s.roundIdx++
	s.settledRound = false
	s.paused = false
	s.pausedElapsed = 0
	s.roundStart = s.now()
	s.armTimerLocked()
	return nil
}

// Pause freezes the round timer.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gameOver {
		return ErrGameOver
	}
	if s.paused {
		return ErrSessionPaused
	}
	s.pausedElapsed = s.now().Sub(s.roundStart)
	if s.pausedElapsed > s.roundDuration {
		s.pausedElapsed = s.roundDuration
	}
	s.paused = true
	if s.timer != nil {
		s.timer.Stop()
	}
	return nil
}

// Resume rebases the round start so paused time does not count.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gameOver {
		return ErrGameOver
	}
	if !s.paused {
		return ErrSessionNotPaused
	}
	s.roundStart = s.now().Add(-s.pausedElapsed)
	s.paused = false
	if !s.settledRound {
		s.armTimerLocked()
	}
	return nil
}

// Abandon terminates the run without reporting a score.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gameOver {
		return
	}
	s.gameOver = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Snapshot returns the current externally visible state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:        s.ID,
		UserID:           s.UserID,
		Difficulty:       s.Difficulty,
		Round:            s.roundIdx + 1,
		TotalRounds:      s.totalRounds,
		RemainingSeconds: s.remainingLocked().Seconds(),
		TotalScore:       s.totalScore,
		Paused:           s.paused,
		RoundSettled:     s.settledRound,
		GameOver:         s.gameOver,
	}
	if !s.gameOver && s.roundIdx < len(s.locations) {
		snap.Prompt = s.locations[s.roundIdx].DisplayName
	}
	if n := len(s.results); n > 0 {
		last := s.results[n-1]
		snap.LastResult = &last
	}
	if s.gameOver {
		snap.Results = append([]RoundResult(nil), s.results...)
	}
	return snap
}

// AttemptLog renders the settled rounds as a rescorable guess log.
func (s *Session) AttemptLog() []GuessRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]GuessRecord, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, GuessRecord{
			Lat:         r.GuessLat,
			Lon:         r.GuessLon,
			SecondsLeft: r.SecondsLeft,
			TimedOut:    r.TimedOut,
		})
	}
	return out
}

// ElapsedMs is the wall-clock lifetime of the run.
func (s *Session) ElapsedMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.createdAt).Milliseconds()
}
