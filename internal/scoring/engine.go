// Package scoring recomputes claimed scores from raw attempt logs so the
// server, not the client, is the authority on results. Quiz answers are
// regraded against the embedded question banks; pin drop guesses are
// rescored against the seeded location sequence from their raw
// coordinates. Nothing in the log is trusted beyond what the banks and the
// seed can verify.
package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pinrlabs/pinr-engine/internal/game"
	"github.com/pinrlabs/pinr-engine/internal/geo"
	"github.com/pinrlabs/pinr-engine/internal/pindrop"
	"github.com/pinrlabs/pinr-engine/internal/pool"
)

var (
	// ErrImplausibleLog marks a log that could not have been produced
	// inside the attempt's time bounds.
	ErrImplausibleLog = errors.New("attempt log exceeds time bounds")
	// ErrUnverifiableAnswer marks a log entry referencing a question or
	// location the banks do not know.
	ErrUnverifiableAnswer = errors.New("answer references unknown question")
)

// QuizAnswer is one entry in a flag dash or travel battle attempt log. The
// question code is the country code for flag questions and the bank ID for
// trivia; correctness is regraded here, never taken from the log.
type QuizAnswer struct {
	QuestionCode string `json:"question_code"`
	Selected     string `json:"selected"`
}

// PinDropGuess is one settled round in a pin drop attempt log. Only raw
// coordinates and the clock reading are accepted; the distance is derived
// from the seeded target.
type PinDropGuess struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	SecondsLeft int     `json:"seconds_left"`
	TimedOut    bool    `json:"timed_out"`
}

// EngineOptions bound what an attempt log may claim.
type EngineOptions struct {
	// AttemptDuration is the wall-clock limit of one attempt.
	AttemptDuration time.Duration
	// MinAnswerTime is the fastest plausible single quiz answer; it caps
	// how many answers fit into AttemptDuration.
	MinAnswerTime time.Duration
	// PinDropRounds is the round count of a pin drop run.
	PinDropRounds int
	// RoundDuration maps difficulty to the pin drop round timer.
	RoundDuration func(difficulty string) time.Duration
}

func (o *EngineOptions) defaults() {
	if o.AttemptDuration <= 0 {
		o.AttemptDuration = 40 * time.Second
	}
	if o.MinAnswerTime <= 0 {
		o.MinAnswerTime = 500 * time.Millisecond
	}
	if o.PinDropRounds <= 0 {
		o.PinDropRounds = 5
	}
	if o.RoundDuration == nil {
		o.RoundDuration = pindrop.DefaultRoundDuration
	}
}

// Engine recomputes scores from attempt logs.
type Engine struct {
	opts   EngineOptions
	logger zerolog.Logger
}

// NewEngine builds a scoring engine.
func NewEngine(opts EngineOptions, logger zerolog.Logger) *Engine {
	opts.defaults()
	return &Engine{
		opts:   opts,
		logger: logger.With().Str("component", "scoring").Logger(),
	}
}

// Authoritative recomputes the score for a game type from its raw attempt
// log. The claimed value is advisory only: a mismatch is logged and the
// recomputed score wins.
func (e *Engine) Authoritative(gameType, difficulty, seed string, claimed int, rawLog json.RawMessage) (int, error) {
	var (
		score int
		err   error
	)
	switch gameType {
	case game.GameTypeFlagDash:
		score, err = e.recomputeQuiz(rawLog, e.gradeFlag)
	case game.GameTypeTravelBattle:
		score, err = e.recomputeQuiz(rawLog, e.gradeTrivia)
	case pindrop.GameTypePinDrop:
		score, err = e.recomputePinDrop(difficulty, seed, rawLog)
	default:
		return 0, fmt.Errorf("unknown game type %q", gameType)
	}
	if err != nil {
		return 0, err
	}

	if claimed != score {
		e.logger.Warn().
			Str("game_type", gameType).
			Int("claimed", claimed).
			Int("recomputed", score).
			Msg("claimed score mismatch, using recomputed")
	}
	return score, nil
}

func (e *Engine) gradeFlag(a QuizAnswer) (bool, error) {
	c, ok := pool.CountryByCode(a.QuestionCode)
	if !ok {
		return false, fmt.Errorf("%w: country %q", ErrUnverifiableAnswer, a.QuestionCode)
	}
	return a.Selected == c.Name, nil
}

func (e *Engine) gradeTrivia(a QuizAnswer) (bool, error) {
	q, ok := pool.TriviaByID(a.QuestionCode)
	if !ok {
		return false, fmt.Errorf("%w: trivia %q", ErrUnverifiableAnswer, a.QuestionCode)
	}
	return a.Selected == q.CorrectAnswer, nil
}

// recomputeQuiz regrades every answer against the bank and replays the
// streak formula over verified correctness. The answer count is bounded by
// what fits into the attempt window.
func (e *Engine) recomputeQuiz(rawLog json.RawMessage, grade func(QuizAnswer) (bool, error)) (int, error) {
	var answers []QuizAnswer
	if err := json.Unmarshal(rawLog, &answers); err != nil {
		return 0, fmt.Errorf("decode quiz log: %w", err)
	}

	maxAnswers := int(e.opts.AttemptDuration / e.opts.MinAnswerTime)
	if len(answers) > maxAnswers {
		return 0, fmt.Errorf("%w: %d answers in a %s attempt", ErrImplausibleLog, len(answers), e.opts.AttemptDuration)
	}

	score, streak := 0, 0
	for _, a := range answers {
		correct, err := grade(a)
		if err != nil {
			return 0, err
		}
		if correct {
			score += game.BasePoints + streak*game.StreakBonus
			streak++
		} else {
			streak = 0
		}
	}
	return score, nil
}

// recomputePinDrop replays the seeded location draw and rescores each
// guess from its raw coordinates.
func (e *Engine) recomputePinDrop(difficulty, seed string, rawLog json.RawMessage) (int, error) {
	var guesses []PinDropGuess
	if err := json.Unmarshal(rawLog, &guesses); err != nil {
		return 0, fmt.Errorf("decode pin drop log: %w", err)
	}
	if len(guesses) > e.opts.PinDropRounds {
		return 0, fmt.Errorf("%w: %d guesses in a %d-round run", ErrImplausibleLog, len(guesses), e.opts.PinDropRounds)
	}

	locations := pindrop.LocationSequence(difficulty, seed, e.opts.PinDropRounds)
	if len(guesses) > len(locations) {
		return 0, fmt.Errorf("%w: more guesses than seeded locations", ErrImplausibleLog)
	}
	maxSeconds := int(e.opts.RoundDuration(difficulty).Seconds())

	score := 0
	for i, g := range guesses {
		if g.TimedOut {
			continue
		}
		if g.SecondsLeft < 0 || g.SecondsLeft > maxSeconds {
			return 0, fmt.Errorf("%w: %ds left on a %ds round clock", ErrImplausibleLog, g.SecondsLeft, maxSeconds)
		}
		dist := geo.Distance(g.Lat, g.Lon, locations[i].Lat, locations[i].Lon)
		score += geo.ScoreGuess(dist, g.SecondsLeft).TotalPoints
	}
	return score, nil
}
