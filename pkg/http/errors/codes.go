package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeForbidden              = "forbidden"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound      = "not_found"
	ErrCodeAlreadyExists = "already_exists"
	ErrCodeConflict      = "conflict"

	// Session errors
	ErrCodeSessionNotFound   = "session_not_found"
	ErrCodeSessionSettled    = "session_settled"
	ErrCodeSessionPaused     = "session_paused"
	ErrCodeSessionNotPaused  = "session_not_paused"
	ErrCodeRoundSettled      = "round_settled"
	ErrCodeRoundInProgress   = "round_in_progress"
	ErrCodeUnknownDifficulty = "unknown_difficulty"
	ErrCodeInvalidOption     = "invalid_option"

	// Challenge errors
	ErrCodeChallengeNotFound     = "challenge_not_found"
	ErrCodeChallengeExpired      = "challenge_expired"
	ErrCodeNotParticipant        = "not_participant"
	ErrCodeAlreadySubmitted      = "already_submitted"
	ErrCodeInvalidTransition     = "invalid_transition"
	ErrCodeTimeLimitExceeded     = "time_limit_exceeded"
	ErrCodeAttemptNotStarted     = "attempt_not_started"
	ErrCodeSelfChallenge         = "self_challenge"
	ErrCodeChallengeCreateFailed = "challenge_create_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeConnectionError    = "connection_error"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"

	// Leaderboard errors
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
	ErrCodeUnknownGameType        = "unknown_game_type"
)
