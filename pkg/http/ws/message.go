package ws

import "encoding/json"

// MessageType constants for the WebSocket protocol.
const (
	// Client -> Server
	TypeSubscribeChallenges   = "subscribe_challenges"
	TypeUnsubscribeChallenges = "unsubscribe_challenges"
	TypeWatchChallenge        = "watch_challenge"
	TypeUnwatchChallenge      = "unwatch_challenge"
	TypePing                  = "ping"

	// Server -> Client
	TypeChallengeUpdate   = "challenge_update"
	TypeChallengeInvite   = "challenge_invite"
	TypeChallengeComplete = "challenge_complete"
	TypeLeaderboardUpdate = "leaderboard_update"
	TypeStreakUpdate      = "streak_update"
	TypeError             = "error"
	TypePong              = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// Client Messages (incoming)

type WatchChallengePayload struct {
	ChallengeID string `json:"challenge_id"`
}

// Server Messages (outgoing)

// ChallengeUpdatePayload carries the full challenge document after a state
// transition. Clients replace their local copy wholesale.
type ChallengeUpdatePayload struct {
	Challenge json.RawMessage `json:"challenge"`
}

type ChallengeInvitePayload struct {
	ChallengeID     string `json:"challenge_id"`
	FromUserID      string `json:"from_user_id"`
	FromDisplayName string `json:"from_display_name"`
	GameType        string `json:"game_type"`
	Difficulty      string `json:"difficulty"`
	ExpiresAt       string `json:"expires_at"`
}

type ChallengeCompletePayload struct {
	ChallengeID     string  `json:"challenge_id"`
	WinnerID        *string `json:"winner_id,omitempty"` // nil on a tie
	ChallengerScore int     `json:"challenger_score"`
	OpponentScore   int     `json:"opponent_score"`
}

type LeaderboardUpdatePayload struct {
	GameType string             `json:"game_type"`
	Top      []LeaderboardEntry `json:"top"`
}

type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Games       int    `json:"games"`
	Wins        int    `json:"wins"`
}

type StreakUpdatePayload struct {
	Current int  `json:"current"`
	Longest int  `json:"longest"`
	IsNew   bool `json:"is_new"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
