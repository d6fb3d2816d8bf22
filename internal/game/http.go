package game

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pinrlabs/pinr-engine/internal/auth"
	httperrors "github.com/pinrlabs/pinr-engine/pkg/http/errors"
)

// HTTPHandler exposes the Flag Dash session surface under /v1/games/flagdash.
type HTTPHandler struct {
	manager *Manager
	logger  zerolog.Logger
}

func NewHTTPHandler(manager *Manager, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		manager: manager,
		logger:  logger.With().Str("component", "flagdash_http").Logger(),
	}
}

type startRequest struct {
	Difficulty string `json:"difficulty"`
	// Mode selects flags or trivia; empty plays flags.
	Mode string `json:"mode,omitempty"`
}

type answerRequest struct {
	Option string `json:"option"`
}

// ServeHTTP routes /v1/games/flagdash requests. All session operations act
// on the caller's own active session.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/games/flagdash"), "/")
	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleSnapshot(w, r)
	case action == "start" && r.Method == http.MethodPost:
		h.handleStart(w, r)
	case action == "answer" && r.Method == http.MethodPost:
		h.handleAnswer(w, r)
	case action == "pause" && r.Method == http.MethodPost:
		h.withSession(w, r, func(s *Session) error { return s.Pause() })
	case action == "resume" && r.Method == http.MethodPost:
		h.withSession(w, r, func(s *Session) error { return s.Resume() })
	case action == "end" && r.Method == http.MethodPost:
		h.handleEnd(w, r)
	case action == "highscore" && r.Method == http.MethodGet:
		h.handleHighScore(w, r)
	default:
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "unknown flagdash route")
	}
}

func (h *HTTPHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid request body")
		return
	}

	sess, err := h.manager.Start(r.Context(), userID, req.Difficulty, req.Mode)
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

func (h *HTTPHandler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid request body")
		return
	}

	sess, err := h.manager.Get(userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	feedback, err := sess.SubmitAnswer(req.Option)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"feedback": feedback,
		"state":    sess.Snapshot(),
	})
}

func (h *HTTPHandler) handleEnd(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	res, err := h.manager.End(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) handleHighScore(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	difficulty := r.URL.Query().Get("difficulty")
	mode := r.URL.Query().Get("mode")
	best, err := h.manager.HighScore(r.Context(), userID, difficulty, mode)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if mode == "" {
		mode = ModeFlags
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"difficulty": difficulty,
		"mode":       mode,
		"high_score": best,
	})
}

// withSession runs a state transition on the caller's session and returns
// the refreshed snapshot.
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
	case errors.Is(err, ErrSessionSettled):
		httperrors.RespondConflict(w, httperrors.ErrCodeSessionSettled, "session already ended")
	case errors.Is(err, ErrSessionPaused):
		httperrors.RespondConflict(w, httperrors.ErrCodeSessionPaused, "session is paused")
	case errors.Is(err, ErrSessionNotPaused):
		httperrors.RespondConflict(w, httperrors.ErrCodeSessionNotPaused, "session is not paused")
	case errors.Is(err, ErrUnknownOption):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidOption, "option is not part of the current question")
	case errors.Is(err, ErrUnknownDifficulty):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeUnknownDifficulty, "unknown difficulty")
	case errors.Is(err, ErrUnknownMode):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "unknown mode")
	default:
		h.logger.Error().Err(err).Msg("flagdash request failed")
		httperrors.RespondInternalError(w, "request failed")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
