package game

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Game type identifiers used on leaderboards and outbox entries.
const (
	GameTypeFlagDash     = "flag_dash"
	GameTypeTravelBattle = "travel_battle"
)

// Session modes. Flags runs the country-flag quiz, trivia the travel
// trivia bank; both share the same timer and streak machinery.
const (
	ModeFlags  = "flags"
	ModeTrivia = "trivia"
)

// Question kinds, mirroring the mode that produced them.
const (
	QuestionKindFlag   = "flag"
	QuestionKindTrivia = "trivia"
)

const (
	// BasePoints is awarded for every correct answer.
	BasePoints = 10
	// StreakBonus is awarded per consecutive correct answer already banked.
	StreakBonus = 2
	// MaxPointsPerAnswer caps a plausible single-answer score. Final scores
	// above correctAnswers*MaxPointsPerAnswer are treated as tampered.
	MaxPointsPerAnswer = 100
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionSettled    = errors.New("session already settled")
	ErrSessionPaused     = errors.New("session is paused")
	ErrSessionNotPaused  = errors.New("session is not paused")
	ErrUnknownOption     = errors.New("option not in current question")
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	ErrUnknownMode       = errors.New("unknown mode")
)

// ValidMode reports whether the given session mode exists.
func ValidMode(mode string) bool {
	return mode == ModeFlags || mode == ModeTrivia
}

// GameTypeForMode maps a session mode to its ranked game type.
func GameTypeForMode(mode string) string {
	if mode == ModeTrivia {
		return GameTypeTravelBattle
	}
	return GameTypeFlagDash
}

// Question is one prompt. Flag questions identify the country whose flag
// is shown; trivia questions carry their text inline.
type Question struct {
	Kind        string   `json:"kind"`
	CountryCode string   `json:"country_code,omitempty"`
	QuestionID  string   `json:"question_id,omitempty"`
	Text        string   `json:"text,omitempty"`
	Options     []string `json:"options"`

	answer string // server-side only
}

// Answer returns the correct option for a question.
func (q Question) Answer() string { return q.answer }

// refCode is the stable identifier clients echo back in attempt logs: the
// country code for flag questions, the bank ID for trivia.
func (q Question) refCode() string {
	if q.Kind == QuestionKindTrivia {
		return q.QuestionID
	}
	return q.CountryCode
}

// AnswerRecord is one graded answer in a settled run's log.
type AnswerRecord struct {
	QuestionCode string `json:"question_code"`
	Selected     string `json:"selected"`
	Correct      bool   `json:"correct"`
}

// Feedback describes the outcome of the most recent answer. It is cleared
// automatically a short moment after being set.
type Feedback struct {
	Correct       bool   `json:"correct"`
	PointsAwarded int    `json:"points_awarded"`
	CorrectAnswer string `json:"correct_answer"`
}

// Snapshot is the externally visible state of a session, pushed to
// subscribers on every transition.
type Snapshot struct {
	SessionID        uuid.UUID `json:"session_id"`
	UserID           uuid.UUID `json:"user_id"`
	Difficulty       string    `json:"difficulty"`
	Mode             string    `json:"mode"`
	Question         *Question `json:"question,omitempty"`
	Score            int       `json:"score"`
	Streak           int       `json:"streak"`
	CorrectAnswers   int       `json:"correct_answers"`
	Answered         int       `json:"answered"`
	RemainingSeconds float64   `json:"remaining_seconds"`
	Paused           bool      `json:"paused"`
	GameOver         bool      `json:"game_over"`
	Feedback         *Feedback `json:"feedback,omitempty"`
}

// Result is the settled outcome of one session.
type Result struct {
	SessionID      uuid.UUID      `json:"session_id"`
	UserID         uuid.UUID      `json:"user_id"`
	Difficulty     string         `json:"difficulty"`
	Mode           string         `json:"mode"`
	GameType       string         `json:"game_type"`
	Score          int            `json:"score"`
	CorrectAnswers int            `json:"correct_answers"`
	Answered       int            `json:"answered"`
	BestStreak     int            `json:"best_streak"`
	Answers        []AnswerRecord `json:"answers"`
	ElapsedMs      int64          `json:"elapsed_ms"`
	EndedAt        time.Time      `json:"ended_at"`

	capped bool
}

// Capped reports whether the score failed the plausibility ceiling and was
// excluded from high-score persistence.
func (r Result) Capped() bool { return r.capped }
