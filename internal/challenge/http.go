package challenge

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pinrlabs/pinr-engine/internal/auth"
	httperrors "github.com/pinrlabs/pinr-engine/pkg/http/errors"
)

// HTTPHandler exposes the challenge REST surface. GET /v1/challenges doubles
// as the polling fallback for clients without a live WebSocket.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs a challenge HTTP handler.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "challenge_http").Logger(),
	}
}

type createRequest struct {
	OpponentID string `json:"opponent_id"`
	GameType   string `json:"game_type"`
	Difficulty string `json:"difficulty"`
}

type submitScoreRequest struct {
	Score      int             `json:"score"`
	AttemptLog json.RawMessage `json:"attempt_log"`
}

// ServeHTTP routes /v1/challenges requests.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/challenges"), "/")
	if rest == "" {
		switch r.Method {
		case http.MethodPost:
			h.handleCreate(w, r, userID)
		case http.MethodGet:
			h.handleList(w, r, userID)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	id, err := uuid.Parse(parts[0])
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid challenge id")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleGet(w, r, id, userID)
	case action == "accept" && r.Method == http.MethodPost:
		h.handleAccept(w, r, id, userID)
	case action == "decline" && r.Method == http.MethodPost:
		h.handleDecline(w, r, id, userID)
	case action == "attempt" && r.Method == http.MethodPost:
		h.handleStartAttempt(w, r, id, userID)
	case action == "score" && r.Method == http.MethodPost:
		h.handleSubmitScore(w, r, id, userID)
	default:
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "unknown challenge route")
	}
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid request body")
		return
	}
	opponentID, err := uuid.Parse(req.OpponentID)
	if err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "invalid opponent id", "opponent_id")
		return
	}

	c, err := h.svc.Create(r.Context(), userID, opponentID, req.GameType, req.Difficulty)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	challenges, err := h.svc.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("list challenges failed")
		httperrors.RespondInternalError(w, "failed to list challenges")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"challenges":            challenges,
		"poll_interval_seconds": int(h.svc.PollInterval().Seconds()),
	})
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request, id, userID uuid.UUID) {
	c, err := h.svc.Get(r.Context(), id, userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *HTTPHandler) handleAccept(w http.ResponseWriter, r *http.Request, id, userID uuid.UUID) {
	c, err := h.svc.Accept(r.Context(), id, userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *HTTPHandler) handleDecline(w http.ResponseWriter, r *http.Request, id, userID uuid.UUID) {
	c, err := h.svc.Decline(r.Context(), id, userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *HTTPHandler) handleStartAttempt(w http.ResponseWriter, r *http.Request, id, userID uuid.UUID) {
	attempt, err := h.svc.StartAttempt(r.Context(), id, userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, attempt)
}

func (h *HTTPHandler) handleSubmitScore(w http.ResponseWriter, r *http.Request, id, userID uuid.UUID) {
	var req submitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid request body")
		return
	}

	c, err := h.svc.SubmitScore(r.Context(), id, userID, req.Score, req.AttemptLog)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *HTTPHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeChallengeNotFound, "challenge not found")
	case errors.Is(err, ErrNotParticipant):
		httperrors.RespondForbidden(w, httperrors.ErrCodeNotParticipant, "not a challenge participant")
	case errors.Is(err, ErrExpired):
		httperrors.RespondError(w, http.StatusGone, httperrors.ErrCodeChallengeExpired, "challenge expired")
	case errors.Is(err, ErrInvalidTransition):
		httperrors.RespondConflict(w, httperrors.ErrCodeInvalidTransition, "challenge state does not allow this")
	case errors.Is(err, ErrAlreadyStarted):
		httperrors.RespondConflict(w, httperrors.ErrCodeConflict, "attempt already started")
	case errors.Is(err, ErrAttemptNotStarted):
		httperrors.RespondConflict(w, httperrors.ErrCodeAttemptNotStarted, "attempt not started")
	case errors.Is(err, ErrAlreadySubmitted):
		httperrors.RespondConflict(w, httperrors.ErrCodeAlreadySubmitted, "score already submitted")
	case errors.Is(err, ErrTimeLimitExceeded):
		httperrors.RespondError(w, http.StatusUnprocessableEntity, httperrors.ErrCodeTimeLimitExceeded, "Time limit exceeded")
	case errors.Is(err, ErrSelfChallenge):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeSelfChallenge, "cannot challenge yourself")
	default:
		h.logger.Error().Err(err).Msg("challenge operation failed")
		httperrors.RespondInternalError(w, "challenge operation failed")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
