package pindrop

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pinrlabs/pinr-engine/internal/auth"
	httperrors "github.com/pinrlabs/pinr-engine/pkg/http/errors"
)

// HTTPHandler exposes the Pin Drop session surface under /v1/games/pindrop.
type HTTPHandler struct {
	manager *Manager
	logger  zerolog.Logger
}

func NewHTTPHandler(manager *Manager, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		manager: manager,
		logger:  logger.With().Str("component", "pindrop_http").Logger(),
	}
}

type startRequest struct {
	Difficulty string `json:"difficulty"`
	// Seed replays a fixed location sequence; challenge clients pass the
	// challenge ID here so both sides play the same run.
	Seed string `json:"seed,omitempty"`
}

type guessRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ServeHTTP routes /v1/games/pindrop requests.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/games/pindrop"), "/")
	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleSnapshot(w, r)
	case action == "start" && r.Method == http.MethodPost:
		h.handleStart(w, r)
	case action == "guess" && r.Method == http.MethodPost:
		h.handleGuess(w, r)
	case action == "next" && r.Method == http.MethodPost:
		h.withSession(w, r, func(s *Session) error { return s.NextRound() })
	case action == "pause" && r.Method == http.MethodPost:
		h.withSession(w, r, func(s *Session) error { return s.Pause() })
	case action == "resume" && r.Method == http.MethodPost:
		h.withSession(w, r, func(s *Session) error { return s.Resume() })
	case action == "abandon" && r.Method == http.MethodPost:
		h.handleAbandon(w, r)
	default:
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "unknown pindrop route")
	}
}

func (h *HTTPHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid request body")
		return
	}

	sess, err := h.manager.Start(r.Context(), userID, req.Difficulty, req.Seed)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess.Snapshot())
}

func (h *HTTPHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	sess, err := h.manager.Get(userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *HTTPHandler) handleGuess(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req guessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid request body")
		return
	}

	sess, err := h.manager.Get(userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	result, err := sess.SubmitGuess(req.Lat, req.Lon)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"result": result,
		"state":  sess.Snapshot(),
	})
}

func (h *HTTPHandler) handleAbandon(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.manager.Abandon(userID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) withSession(w http.ResponseWriter, r *http.Request, fn func(*Session) error) {
	userID, _ := auth.UserIDFromContext(r.Context())

	sess, err := h.manager.Get(userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if err := fn(sess); err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *HTTPHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "no active session")
	case errors.Is(err, ErrGameOver):
		httperrors.RespondConflict(w, httperrors.ErrCodeSessionSettled, "game is over")
	case errors.Is(err, ErrRoundSettled):
		httperrors.RespondConflict(w, httperrors.ErrCodeRoundSettled, "round already settled")
	case errors.Is(err, ErrRoundNotSettled):
		httperrors.RespondConflict(w, httperrors.ErrCodeRoundInProgress, "round still in progress")
	case errors.Is(err, ErrSessionPaused):
		httperrors.RespondConflict(w, httperrors.ErrCodeSessionPaused, "session is paused")
	case errors.Is(err, ErrSessionNotPaused):
		httperrors.RespondConflict(w, httperrors.ErrCodeSessionNotPaused, "session is not paused")
	case errors.Is(err, ErrUnknownDifficulty):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeUnknownDifficulty, "unknown difficulty")
	default:
		h.logger.Error().Err(err).Msg("pindrop request failed")
		httperrors.RespondInternalError(w, "request failed")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
