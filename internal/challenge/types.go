package challenge

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a challenge.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// Side identifies which participant an attempt belongs to.
type Side string

const (
	SideChallenger Side = "challenger"
	SideOpponent   Side = "opponent"
)

var (
	ErrNotFound          = errors.New("challenge not found")
	ErrNotParticipant    = errors.New("user is not a challenge participant")
	ErrInvalidTransition = errors.New("invalid challenge state transition")
	ErrExpired           = errors.New("challenge expired")
	ErrAlreadyStarted    = errors.New("attempt already started")
	ErrAttemptNotStarted = errors.New("attempt not started")
	ErrAlreadySubmitted  = errors.New("score already submitted")
	ErrTimeLimitExceeded = errors.New("time limit exceeded")
	ErrSelfChallenge     = errors.New("cannot challenge yourself")
)

// Challenge is a head-to-head game between two users. Both play the same
// seeded run; whoever scores higher wins.
type Challenge struct {
	ID           uuid.UUID `json:"id"`
	ChallengerID uuid.UUID `json:"challenger_id"`
	OpponentID   uuid.UUID `json:"opponent_id"`
	GameType     string    `json:"game_type"`
	Difficulty   string    `json:"difficulty"`
	Status       Status    `json:"status"`
	// Seed drives location/question selection so both sides play the
	// identical run.
	Seed string `json:"seed"`

	ChallengerScore     *int       `json:"challenger_score,omitempty"`
	OpponentScore       *int       `json:"opponent_score,omitempty"`
	ChallengerStartedAt *time.Time `json:"challenger_started_at,omitempty"`
	OpponentStartedAt   *time.Time `json:"opponent_started_at,omitempty"`

	WinnerID    *uuid.UUID `json:"winner_id,omitempty"` // nil until completed, and on a tie
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ParticipantSide returns which side a user plays, or false for outsiders.
func (c *Challenge) ParticipantSide(userID uuid.UUID) (Side, bool) {
	switch userID {
	case c.ChallengerID:
		return SideChallenger, true
	case c.OpponentID:
		return SideOpponent, true
	default:
		return "", false
	}
}

// OtherParticipant returns the opposite side's user ID.
func (c *Challenge) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if userID == c.ChallengerID {
		return c.OpponentID
	}
	return c.ChallengerID
}

// ScoreFor returns the submitted score of a side.
func (c *Challenge) ScoreFor(side Side) *int {
	if side == SideChallenger {
		return c.ChallengerScore
	}
	return c.OpponentScore
}

// StartedAtFor returns the attempt start of a side.
func (c *Challenge) StartedAtFor(side Side) *time.Time {
	if side == SideChallenger {
		return c.ChallengerStartedAt
	}
	return c.OpponentStartedAt
}

// IsExpired reports whether a still-open challenge passed its deadline.
func (c *Challenge) IsExpired(now time.Time) bool {
	if c.Status != StatusPending && c.Status != StatusAccepted {
		return false
	}
	return now.After(c.ExpiresAt)
}
